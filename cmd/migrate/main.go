package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/tillpoint/pos-api/internal/config"
	"github.com/tillpoint/pos-api/internal/logger"
)

const usage = `usage: migrate [-path dir] <command>

commands:
  up            apply all pending migrations
  down [n]      roll back n migrations (default 1)
  version       print the current version
  force <v>     set the version without running migrations`

func main() {
	path := flag.String("path", "migrations", "Directory holding the migration files")
	flag.Usage = func() { fmt.Println(usage) }
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if flag.NArg() == 0 {
		flag.Usage()
		return
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.WithError(err).Fatal("create migrate driver")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+*path, "postgres", driver)
	if err != nil {
		log.WithError(err).Fatal("create migrate instance")
	}

	if err := run(m, log, flag.Args()); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
}

func run(m *migrate.Migrate, log *logrus.Logger, args []string) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "version":
	case "force":
		if len(args) < 2 {
			return errors.New("force needs a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		if err := m.Force(v); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info("no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("migration state")
	return nil
}
