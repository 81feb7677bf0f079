package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const taxRateColumns = `id, name, rate, description, is_default, created_at, updated_at`

func scanTaxRate(row pgx.Row) (TaxRate, error) {
	var i TaxRate
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Rate,
		&i.Description,
		&i.IsDefault,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectTaxRates(rows pgx.Rows) ([]TaxRate, error) {
	defer rows.Close()
	var items []TaxRate
	for rows.Next() {
		i, err := scanTaxRate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const lockTaxRates = `-- name: LockTaxRates :exec
LOCK TABLE tax_rates IN SHARE ROW EXCLUSIVE MODE`

// LockTaxRates serializes writers of tax_rates for the rest of the
// transaction. Readers are not blocked.
func (q *Queries) LockTaxRates(ctx context.Context) error {
	_, err := q.db.Exec(ctx, lockTaxRates)
	return err
}

const listTaxRates = `-- name: ListTaxRates :many
SELECT ` + taxRateColumns + `
FROM tax_rates
ORDER BY created_at, id`

func (q *Queries) ListTaxRates(ctx context.Context) ([]TaxRate, error) {
	rows, err := q.db.Query(ctx, listTaxRates)
	if err != nil {
		return nil, err
	}
	return collectTaxRates(rows)
}

const getTaxRate = `-- name: GetTaxRate :one
SELECT ` + taxRateColumns + `
FROM tax_rates
WHERE id = $1`

func (q *Queries) GetTaxRate(ctx context.Context, id uuid.UUID) (TaxRate, error) {
	return scanTaxRate(q.db.QueryRow(ctx, getTaxRate, id))
}

const getTaxRateByName = `-- name: GetTaxRateByName :one
SELECT ` + taxRateColumns + `
FROM tax_rates
WHERE name = $1`

func (q *Queries) GetTaxRateByName(ctx context.Context, name string) (TaxRate, error) {
	return scanTaxRate(q.db.QueryRow(ctx, getTaxRateByName, name))
}

const getDefaultTaxRate = `-- name: GetDefaultTaxRate :one
SELECT ` + taxRateColumns + `
FROM tax_rates
WHERE is_default
LIMIT 1`

func (q *Queries) GetDefaultTaxRate(ctx context.Context) (TaxRate, error) {
	return scanTaxRate(q.db.QueryRow(ctx, getDefaultTaxRate))
}

const createTaxRate = `-- name: CreateTaxRate :one
INSERT INTO tax_rates (name, rate, description, is_default)
VALUES ($1, $2, $3, $4)
RETURNING ` + taxRateColumns

type CreateTaxRateParams struct {
	Name        string         `json:"name"`
	Rate        pgtype.Numeric `json:"rate"`
	Description pgtype.Text    `json:"description"`
	IsDefault   bool           `json:"is_default"`
}

func (q *Queries) CreateTaxRate(ctx context.Context, arg CreateTaxRateParams) (TaxRate, error) {
	return scanTaxRate(q.db.QueryRow(ctx, createTaxRate, arg.Name, arg.Rate, arg.Description, arg.IsDefault))
}

const updateTaxRate = `-- name: UpdateTaxRate :one
UPDATE tax_rates
SET name = $2, rate = $3, description = $4, is_default = $5, updated_at = now()
WHERE id = $1
RETURNING ` + taxRateColumns

type UpdateTaxRateParams struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Rate        pgtype.Numeric `json:"rate"`
	Description pgtype.Text    `json:"description"`
	IsDefault   bool           `json:"is_default"`
}

func (q *Queries) UpdateTaxRate(ctx context.Context, arg UpdateTaxRateParams) (TaxRate, error) {
	return scanTaxRate(q.db.QueryRow(ctx, updateTaxRate, arg.ID, arg.Name, arg.Rate, arg.Description, arg.IsDefault))
}

const deleteTaxRate = `-- name: DeleteTaxRate :one
DELETE FROM tax_rates
WHERE id = $1
RETURNING id`

func (q *Queries) DeleteTaxRate(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteTaxRate, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}

const clearDefaultTaxRates = `-- name: ClearDefaultTaxRates :exec
UPDATE tax_rates
SET is_default = FALSE, updated_at = now()
WHERE is_default AND ($1::uuid IS NULL OR id <> $1::uuid)`

// ClearDefaultTaxRates demotes every default rate except keep (when valid).
func (q *Queries) ClearDefaultTaxRates(ctx context.Context, keep pgtype.UUID) error {
	_, err := q.db.Exec(ctx, clearDefaultTaxRates, keep)
	return err
}

const setDefaultTaxRate = `-- name: SetDefaultTaxRate :one
UPDATE tax_rates
SET is_default = TRUE, updated_at = now()
WHERE id = $1
RETURNING ` + taxRateColumns

func (q *Queries) SetDefaultTaxRate(ctx context.Context, id uuid.UUID) (TaxRate, error) {
	return scanTaxRate(q.db.QueryRow(ctx, setDefaultTaxRate, id))
}

const countDefaultTaxRates = `-- name: CountDefaultTaxRates :one
SELECT count(*) FROM tax_rates WHERE is_default`

func (q *Queries) CountDefaultTaxRates(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, countDefaultTaxRates)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const promoteOldestTaxRate = `-- name: PromoteOldestTaxRate :one
UPDATE tax_rates
SET is_default = TRUE, updated_at = now()
WHERE id = (SELECT id FROM tax_rates ORDER BY created_at, id LIMIT 1)
RETURNING ` + taxRateColumns

func (q *Queries) PromoteOldestTaxRate(ctx context.Context) (TaxRate, error) {
	return scanTaxRate(q.db.QueryRow(ctx, promoteOldestTaxRate))
}
