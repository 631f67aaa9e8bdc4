package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/segmenter/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	var (
		dsn     = flag.String("dsn", "", "Database connection string (defaults to DB_* settings)")
		up      = flag.Bool("up", false, "Run all up migrations")
		down    = flag.Bool("down", false, "Run all down migrations")
		steps   = flag.Int("steps", 0, "Number of migrations (positive=up, negative=down)")
		version = flag.Bool("version", false, "Print current migration version")
		force   = flag.Int("force", -1, "Force set version (use with caution)")
	)
	flag.Parse()

	forceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			forceSet = true
		}
	})

	_ = godotenv.Load()

	if *dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}

		*dsn = cfg.ConnectionString()
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		slog.Error("failed to create migration source", "error", err)
		os.Exit(1)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, *dsn)
	if err != nil {
		slog.Error("failed to create migrator", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	if err := run(m, *version, forceSet, *force, *up, *down, *steps); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, version, forceSet bool, force int, up, down bool, steps int) error {
	switch {
	case version:
		v, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("get version: %w", err)
		}

		fmt.Printf("version: %d, dirty: %v\n", v, dirty)
	case forceSet:
		if err := m.Force(force); err != nil {
			return fmt.Errorf("force version: %w", err)
		}

		fmt.Printf("forced to version %d\n", force)
	case up:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("up migrations: %w", err)
		}

		fmt.Println("migrations applied successfully")
	case down:
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("down migrations: %w", err)
		}

		fmt.Println("migrations reverted successfully")
	case steps != 0:
		if err := m.Steps(steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration steps: %w", err)
		}

		fmt.Printf("applied %d migration steps\n", steps)
	default:
		fmt.Println("usage: migrate [-dsn <connection-string>] [-up|-down|-steps N|-version|-force N]")
		flag.PrintDefaults()
	}

	return nil
}
