package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const staffColumns = `id, name, role, pin_hash, email, phone, status, is_logged_in, login_session_id,
       last_login, last_logout, total_sales, total_transactions, notes, created_at, updated_at`

func scanStaff(row pgx.Row) (Staff, error) {
	var i Staff
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Role,
		&i.PinHash,
		&i.Email,
		&i.Phone,
		&i.Status,
		&i.IsLoggedIn,
		&i.LoginSessionID,
		&i.LastLogin,
		&i.LastLogout,
		&i.TotalSales,
		&i.TotalTransactions,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createStaff = `-- name: CreateStaff :one
INSERT INTO staff (name, role, pin_hash, email, phone, status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + staffColumns

type CreateStaffParams struct {
	Name    string      `json:"name"`
	Role    string      `json:"role"`
	PinHash string      `json:"pin_hash"`
	Email   string      `json:"email"`
	Phone   pgtype.Text `json:"phone"`
	Status  string      `json:"status"`
	Notes   pgtype.Text `json:"notes"`
}

func (q *Queries) CreateStaff(ctx context.Context, arg CreateStaffParams) (Staff, error) {
	row := q.db.QueryRow(ctx, createStaff,
		arg.Name,
		arg.Role,
		arg.PinHash,
		arg.Email,
		arg.Phone,
		arg.Status,
		arg.Notes,
	)
	return scanStaff(row)
}

const getStaffByID = `-- name: GetStaffByID :one
SELECT ` + staffColumns + `
FROM staff
WHERE id = $1`

func (q *Queries) GetStaffByID(ctx context.Context, id uuid.UUID) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, getStaffByID, id))
}

const getStaffByEmail = `-- name: GetStaffByEmail :one
SELECT ` + staffColumns + `
FROM staff
WHERE email = $1`

func (q *Queries) GetStaffByEmail(ctx context.Context, email string) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, getStaffByEmail, email))
}

const listStaff = `-- name: ListStaff :many
SELECT ` + staffColumns + `
FROM staff
ORDER BY name, created_at`

func (q *Queries) ListStaff(ctx context.Context) ([]Staff, error) {
	rows, err := q.db.Query(ctx, listStaff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Staff
	for rows.Next() {
		i, err := scanStaff(rows)
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

const updateStaff = `-- name: UpdateStaff :one
UPDATE staff
SET name = $2, role = $3, email = $4, phone = $5, status = $6, notes = $7, updated_at = now()
WHERE id = $1
RETURNING ` + staffColumns

type UpdateStaffParams struct {
	ID     uuid.UUID   `json:"id"`
	Name   string      `json:"name"`
	Role   string      `json:"role"`
	Email  string      `json:"email"`
	Phone  pgtype.Text `json:"phone"`
	Status string      `json:"status"`
	Notes  pgtype.Text `json:"notes"`
}

func (q *Queries) UpdateStaff(ctx context.Context, arg UpdateStaffParams) (Staff, error) {
	row := q.db.QueryRow(ctx, updateStaff,
		arg.ID,
		arg.Name,
		arg.Role,
		arg.Email,
		arg.Phone,
		arg.Status,
		arg.Notes,
	)
	return scanStaff(row)
}

const updateStaffPin = `-- name: UpdateStaffPin :exec
UPDATE staff
SET pin_hash = $2, updated_at = now()
WHERE id = $1`

type UpdateStaffPinParams struct {
	ID      uuid.UUID `json:"id"`
	PinHash string    `json:"pin_hash"`
}

func (q *Queries) UpdateStaffPin(ctx context.Context, arg UpdateStaffPinParams) error {
	_, err := q.db.Exec(ctx, updateStaffPin, arg.ID, arg.PinHash)
	return err
}

const markStaffLoggedIn = `-- name: MarkStaffLoggedIn :one
UPDATE staff
SET is_logged_in = TRUE, login_session_id = $2, last_login = $3, updated_at = now()
WHERE id = $1
RETURNING ` + staffColumns

type MarkStaffLoggedInParams struct {
	ID             uuid.UUID          `json:"id"`
	LoginSessionID pgtype.Text        `json:"login_session_id"`
	LastLogin      pgtype.Timestamptz `json:"last_login"`
}

func (q *Queries) MarkStaffLoggedIn(ctx context.Context, arg MarkStaffLoggedInParams) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, markStaffLoggedIn, arg.ID, arg.LoginSessionID, arg.LastLogin))
}

const markStaffLoggedOut = `-- name: MarkStaffLoggedOut :one
UPDATE staff
SET is_logged_in = FALSE, login_session_id = NULL, last_logout = $2, updated_at = now()
WHERE id = $1
RETURNING ` + staffColumns

type MarkStaffLoggedOutParams struct {
	ID         uuid.UUID          `json:"id"`
	LastLogout pgtype.Timestamptz `json:"last_logout"`
}

func (q *Queries) MarkStaffLoggedOut(ctx context.Context, arg MarkStaffLoggedOutParams) (Staff, error) {
	return scanStaff(q.db.QueryRow(ctx, markStaffLoggedOut, arg.ID, arg.LastLogout))
}

const addStaffSale = `-- name: AddStaffSale :exec
UPDATE staff
SET total_sales = total_sales + $2, total_transactions = total_transactions + 1, updated_at = now()
WHERE id = $1`

type AddStaffSaleParams struct {
	ID     uuid.UUID      `json:"id"`
	Amount pgtype.Numeric `json:"amount"`
}

func (q *Queries) AddStaffSale(ctx context.Context, arg AddStaffSaleParams) error {
	_, err := q.db.Exec(ctx, addStaffSale, arg.ID, arg.Amount)
	return err
}
