package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tillpoint/pos-api/internal/apperror"
	"github.com/tillpoint/pos-api/internal/database"
	"github.com/tillpoint/pos-api/internal/money"
)

const taxRateNameConstraint = "tax_rates_name_key"

// Errors returned by the tax rate service.
var (
	ErrTaxRateNotFound     = apperror.NotFound("tax rate")
	ErrNoDefaultTaxRate    = apperror.NotFound("default tax rate")
	ErrTaxRateNameRequired = apperror.FieldValidation("name", "name is required")
	ErrTaxRateNameTaken    = apperror.Conflict("tax rate name already exists")
	ErrTaxRateOutOfRange   = apperror.FieldValidation("rate", "rate must be between 0 and 1, or a percentage up to 100")
	ErrTaxRateScale        = apperror.FieldValidation("rate", "rate supports at most 6 decimal places as a fraction (4 as a percentage)")
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// TaxRateStore defines the DB methods needed by the tax rate registry.
// Satisfied by *database.Queries (and its WithTx variant).
type TaxRateStore interface {
	LockTaxRates(ctx context.Context) error
	ListTaxRates(ctx context.Context) ([]database.TaxRate, error)
	GetTaxRate(ctx context.Context, id uuid.UUID) (database.TaxRate, error)
	GetDefaultTaxRate(ctx context.Context) (database.TaxRate, error)
	CreateTaxRate(ctx context.Context, arg database.CreateTaxRateParams) (database.TaxRate, error)
	UpdateTaxRate(ctx context.Context, arg database.UpdateTaxRateParams) (database.TaxRate, error)
	DeleteTaxRate(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ClearDefaultTaxRates(ctx context.Context, keep pgtype.UUID) error
	SetDefaultTaxRate(ctx context.Context, id uuid.UUID) (database.TaxRate, error)
	CountDefaultTaxRates(ctx context.Context) (int64, error)
	PromoteOldestTaxRate(ctx context.Context) (database.TaxRate, error)
}

// NewTaxRateStore creates a TaxRateStore from a DBTX (pool or tx).
type NewTaxRateStore func(db database.DBTX) TaxRateStore

// TaxRateRequest is the input for creating or replacing a tax rate.
type TaxRateRequest struct {
	Name        string
	Rate        decimal.Decimal
	Description string
	IsDefault   bool
}

// TaxRateService maintains the set of named tax rates. Whenever the set is
// non-empty exactly one rate is the default.
type TaxRateService struct {
	pool     TxBeginner
	store    TaxRateStore
	newStore NewTaxRateStore
	logger   *logrus.Logger
}

// NewTaxRateService creates a new TaxRateService.
func NewTaxRateService(pool TxBeginner, store TaxRateStore, newStore NewTaxRateStore, logger *logrus.Logger) *TaxRateService {
	return &TaxRateService{pool: pool, store: store, newStore: newStore, logger: logger}
}

// NormalizeRate accepts a fraction in [0,1] or a percentage in (1,100] and
// returns the fraction. The fraction must fit the stored scale.
func NormalizeRate(rate decimal.Decimal) (decimal.Decimal, error) {
	if rate.GreaterThan(one) {
		rate = rate.Div(hundred)
	}
	if rate.IsNegative() || rate.GreaterThan(one) {
		return decimal.Zero, ErrTaxRateOutOfRange
	}
	if !money.HasScale(rate, money.RateScale) {
		return decimal.Zero, ErrTaxRateScale
	}
	return rate, nil
}

// List returns all tax rates, oldest first.
func (s *TaxRateService) List(ctx context.Context) ([]database.TaxRate, error) {
	rates, err := s.store.ListTaxRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tax rates: %w", err)
	}
	return rates, nil
}

// Get returns one tax rate.
func (s *TaxRateService) Get(ctx context.Context, id uuid.UUID) (database.TaxRate, error) {
	rate, err := s.store.GetTaxRate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.TaxRate{}, ErrTaxRateNotFound
		}
		return database.TaxRate{}, fmt.Errorf("get tax rate: %w", err)
	}
	return rate, nil
}

// Default returns the current default tax rate.
func (s *TaxRateService) Default(ctx context.Context) (database.TaxRate, error) {
	rate, err := s.store.GetDefaultTaxRate(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.TaxRate{}, ErrNoDefaultTaxRate
		}
		return database.TaxRate{}, fmt.Errorf("get default tax rate: %w", err)
	}
	return rate, nil
}

// Create adds a tax rate. A default rate demotes every other rate; the
// first rate ever created becomes the default regardless of IsDefault.
func (s *TaxRateService) Create(ctx context.Context, req TaxRateRequest) (database.TaxRate, error) {
	name, rate, err := validateTaxRate(req)
	if err != nil {
		return database.TaxRate{}, err
	}

	var created database.TaxRate
	err = s.withLock(ctx, func(store TaxRateStore) error {
		if req.IsDefault {
			if err := store.ClearDefaultTaxRates(ctx, pgtype.UUID{}); err != nil {
				return fmt.Errorf("clear defaults: %w", err)
			}
		}

		row, err := store.CreateTaxRate(ctx, database.CreateTaxRateParams{
			Name:        name,
			Rate:        money.ToNumeric(rate),
			Description: textOrNull(req.Description),
			IsDefault:   req.IsDefault,
		})
		if err != nil {
			if isUniqueViolation(err, taxRateNameConstraint) {
				return ErrTaxRateNameTaken
			}
			return fmt.Errorf("create tax rate: %w", err)
		}

		if err := ensureDefaultExists(ctx, store); err != nil {
			return err
		}

		created, err = store.GetTaxRate(ctx, row.ID)
		if err != nil {
			return fmt.Errorf("reload tax rate: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.TaxRate{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"tax_rate_id": created.ID,
		"name":        created.Name,
		"is_default":  created.IsDefault,
	}).Info("tax rate created")
	return created, nil
}

// Update replaces a tax rate. Clearing IsDefault on the current default
// hands the default to the earliest-created rate.
func (s *TaxRateService) Update(ctx context.Context, id uuid.UUID, req TaxRateRequest) (database.TaxRate, error) {
	name, rate, err := validateTaxRate(req)
	if err != nil {
		return database.TaxRate{}, err
	}

	var updated database.TaxRate
	err = s.withLock(ctx, func(store TaxRateStore) error {
		if _, err := store.GetTaxRate(ctx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTaxRateNotFound
			}
			return fmt.Errorf("get tax rate: %w", err)
		}

		if req.IsDefault {
			if err := store.ClearDefaultTaxRates(ctx, pgtype.UUID{Bytes: id, Valid: true}); err != nil {
				return fmt.Errorf("clear defaults: %w", err)
			}
		}

		if _, err := store.UpdateTaxRate(ctx, database.UpdateTaxRateParams{
			ID:          id,
			Name:        name,
			Rate:        money.ToNumeric(rate),
			Description: textOrNull(req.Description),
			IsDefault:   req.IsDefault,
		}); err != nil {
			if isUniqueViolation(err, taxRateNameConstraint) {
				return ErrTaxRateNameTaken
			}
			return fmt.Errorf("update tax rate: %w", err)
		}

		if err := ensureDefaultExists(ctx, store); err != nil {
			return err
		}

		updated, err = store.GetTaxRate(ctx, id)
		if err != nil {
			return fmt.Errorf("reload tax rate: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.TaxRate{}, err
	}

	s.logger.WithField("tax_rate_id", id).Info("tax rate updated")
	return updated, nil
}

// Delete removes a tax rate. Deleting the default promotes the
// earliest-created remaining rate.
func (s *TaxRateService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.withLock(ctx, func(store TaxRateStore) error {
		if _, err := store.DeleteTaxRate(ctx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTaxRateNotFound
			}
			return fmt.Errorf("delete tax rate: %w", err)
		}
		return ensureDefaultExists(ctx, store)
	})
	if err != nil {
		return err
	}

	s.logger.WithField("tax_rate_id", id).Info("tax rate deleted")
	return nil
}

// SetDefault makes id the only default rate.
func (s *TaxRateService) SetDefault(ctx context.Context, id uuid.UUID) (database.TaxRate, error) {
	var rate database.TaxRate
	err := s.withLock(ctx, func(store TaxRateStore) error {
		if _, err := store.GetTaxRate(ctx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTaxRateNotFound
			}
			return fmt.Errorf("get tax rate: %w", err)
		}
		if err := store.ClearDefaultTaxRates(ctx, pgtype.UUID{Bytes: id, Valid: true}); err != nil {
			return fmt.Errorf("clear defaults: %w", err)
		}
		var err error
		rate, err = store.SetDefaultTaxRate(ctx, id)
		if err != nil {
			return fmt.Errorf("set default: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.TaxRate{}, err
	}

	s.logger.WithField("tax_rate_id", id).Info("default tax rate changed")
	return rate, nil
}

// withLock runs fn in a transaction holding the tax_rates write lock.
func (s *TaxRateService) withLock(ctx context.Context, fn func(store TaxRateStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)
	if err := store.LockTaxRates(ctx); err != nil {
		return fmt.Errorf("lock tax rates: %w", err)
	}

	if err := fn(store); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ensureDefaultExists promotes the earliest-created rate when no rate is
// marked default. An empty table is left alone.
func ensureDefaultExists(ctx context.Context, store TaxRateStore) error {
	n, err := store.CountDefaultTaxRates(ctx)
	if err != nil {
		return fmt.Errorf("count defaults: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := store.PromoteOldestTaxRate(ctx); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("promote default: %w", err)
	}
	return nil
}

func validateTaxRate(req TaxRateRequest) (string, decimal.Decimal, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "", decimal.Zero, ErrTaxRateNameRequired
	}
	rate, err := NormalizeRate(req.Rate)
	if err != nil {
		return "", decimal.Zero, err
	}
	return name, rate, nil
}
