package migrations

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/uptrace/bun"

	"ms-reservation/internal/logger"
)

//go:embed sql/*.sql
var embedded embed.FS

// MigrateOptions defines configuration options for migration
type MigrateOptions struct {
	// MigrationsDir overrides the embedded SQL files with a directory on disk.
	MigrationsDir string
	// AutoMigrate determines whether to run migrations automatically on startup
	AutoMigrate bool
}

func DefaultOptions() MigrateOptions {
	return MigrateOptions{AutoMigrate: true}
}

// Runner applies the PostgreSQL schema migrations.
type Runner struct {
	bunDB    *bun.DB
	options  MigrateOptions
	migrator *migrate.Migrate
	log      *logger.Logger
}

func NewRunner(bunDB *bun.DB, opts MigrateOptions, log *logger.Logger) *Runner {
	return &Runner{
		bunDB:   bunDB,
		options: opts,
		log:     log,
	}
}

// Initialize prepares the migration system
func (r *Runner) Initialize() error {
	driver, err := postgres.WithInstance(r.bunDB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	var migrator *migrate.Migrate
	if dir := r.options.MigrationsDir; dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("migrations directory does not exist: %s", dir)
		}
		migrator, err = migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dir), "postgres", driver)
		if err != nil {
			return fmt.Errorf("failed to create migrator: %w", err)
		}
		r.log.LogDatabase("MIGRATE", "schema_migrations", fmt.Sprintf("Using migrations from %s", dir))
	} else {
		source, err := iofs.New(embedded, "sql")
		if err != nil {
			return fmt.Errorf("failed to open embedded migrations: %w", err)
		}
		migrator, err = migrate.NewWithInstance("iofs", source, "postgres", driver)
		if err != nil {
			return fmt.Errorf("failed to create migrator: %w", err)
		}
	}

	r.migrator = migrator
	return nil
}

func (r *Runner) ensure() error {
	if r.migrator != nil {
		return nil
	}
	return r.Initialize()
}

// RunMigrations applies pending migrations, forcing a dirty version first.
func (r *Runner) RunMigrations() error {
	if err := r.ensure(); err != nil {
		return err
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		r.log.Warn("DATABASE", fmt.Sprintf("Detected dirty migration %d, forcing before retry", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("failed to fix dirty migration: %w", err)
		}
	}

	if err := r.MigrateUp(); err != nil {
		return err
	}

	version, _, err = r.migrator.Version()
	if err == nil {
		r.log.LogDatabase("MIGRATE", "schema_migrations", fmt.Sprintf("Current schema version: %d", version))
	} else if !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	return nil
}

func (r *Runner) MigrateUp() error {
	if err := r.ensure(); err != nil {
		return err
	}
	if err := r.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back all migrations
func (r *Runner) MigrateDown() error {
	if err := r.ensure(); err != nil {
		return err
	}
	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateTo migrates up or down to a specific version
func (r *Runner) MigrateTo(version uint) error {
	if err := r.ensure(); err != nil {
		return err
	}
	if err := r.migrator.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration to version %d failed: %w", version, err)
	}
	return nil
}

// Version returns the applied version; 0 when nothing has run yet.
func (r *Runner) Version() (uint, bool, error) {
	if err := r.ensure(); err != nil {
		return 0, false, err
	}
	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close frees resources associated with the migrator
func (r *Runner) Close() error {
	if r.migrator != nil {
		sourceErr, databaseErr := r.migrator.Close()
		if sourceErr != nil {
			return fmt.Errorf("error closing migrator source: %w", sourceErr)
		}
		if databaseErr != nil {
			return fmt.Errorf("error closing migrator database: %w", databaseErr)
		}
	}
	return nil
}
