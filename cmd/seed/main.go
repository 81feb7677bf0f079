package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tillpoint/pos-api/internal/auth"
	"github.com/tillpoint/pos-api/internal/config"
	"github.com/tillpoint/pos-api/internal/database"
	"github.com/tillpoint/pos-api/internal/enum"
	"github.com/tillpoint/pos-api/internal/logger"
	"github.com/tillpoint/pos-api/internal/service"
)

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	pin := flag.String("pin", "", "Admin PIN (4-6 digits)")
	name := flag.String("name", "", "Admin name")
	taxName := flag.String("tax-name", "Standard", "Default tax rate name")
	taxRate := flag.String("tax-rate", "0", "Default tax rate, as a fraction or a percentage")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Fall back to environment variables, then defaults
	*email = firstNonEmpty(*email, os.Getenv("SEED_EMAIL"), "admin@tillpoint.local")
	*name = firstNonEmpty(*name, os.Getenv("SEED_NAME"), "Administrator")
	*pin = firstNonEmpty(*pin, os.Getenv("SEED_PIN"))
	if *pin == "" {
		*pin = "123456"
		log.Warn("using default PIN 123456, change it immediately in production")
	}

	rate, err := decimal.NewFromString(*taxRate)
	if err != nil {
		log.WithError(err).Fatal("invalid -tax-rate")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("unable to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.WithError(err).Fatal("unable to ping database")
	}
	log.Info("connected to database")

	queries := database.New(pool)
	staffService := service.NewStaffService(pool, queries,
		func(db database.DBTX) service.StaffStore { return database.New(db) },
		auth.NewBcryptVerifier(cfg.BcryptCost), nil, log)
	taxRateService := service.NewTaxRateService(pool, queries,
		func(db database.DBTX) service.TaxRateStore { return database.New(db) },
		log)

	if err := seedAdmin(ctx, log, queries, staffService, *email, *pin, *name); err != nil {
		log.WithError(err).Fatal("failed to seed admin")
	}
	if err := seedDefaultTaxRate(ctx, log, queries, taxRateService, *taxName, rate); err != nil {
		log.WithError(err).Fatal("failed to seed tax rate")
	}

	log.Info("seed completed successfully")
}

// seedAdmin creates the Admin staff member if the email is not taken.
func seedAdmin(ctx context.Context, log *logrus.Logger, queries *database.Queries, svc *service.StaffService, email, pin, name string) error {
	existing, err := queries.GetStaffByEmail(ctx, email)
	if err == nil {
		log.WithField("staff_id", existing.ID).Infof("staff %q already exists, skipping", email)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	staff, err := svc.Create(ctx, service.CreateStaffRequest{
		Name:  name,
		Role:  enum.StaffRoleAdmin,
		Pin:   pin,
		Email: email,
	})
	if err != nil {
		return err
	}
	log.WithField("staff_id", staff.ID).Infof("created admin %q", staff.Email)
	return nil
}

// seedDefaultTaxRate creates a default tax rate unless one already exists.
func seedDefaultTaxRate(ctx context.Context, log *logrus.Logger, queries *database.Queries, svc *service.TaxRateService, name string, rate decimal.Decimal) error {
	if existing, err := queries.GetDefaultTaxRate(ctx); err == nil {
		log.WithField("tax_rate_id", existing.ID).Infof("default tax rate %q already exists, skipping", existing.Name)
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if existing, err := queries.GetTaxRateByName(ctx, name); err == nil {
		promoted, err := svc.SetDefault(ctx, existing.ID)
		if err != nil {
			return err
		}
		log.WithField("tax_rate_id", promoted.ID).Infof("made tax rate %q the default", promoted.Name)
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	created, err := svc.Create(ctx, service.TaxRateRequest{
		Name:        name,
		Rate:        rate,
		Description: "Created by seed",
		IsDefault:   true,
	})
	if err != nil {
		return err
	}
	log.WithField("tax_rate_id", created.ID).Infof("created default tax rate %q", created.Name)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
