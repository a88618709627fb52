package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-reservation/internal/config"
	"ms-reservation/internal/database/migrations"
	"ms-reservation/internal/inventory/db"
	"ms-reservation/internal/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"

	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// Open connects to the configured database, retrying while it comes up.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	switch cfg.Driver {
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// one writer; the per-event lock is acquired before the connection
		sqldb.SetMaxOpenConns(1)
		bunDB := bun.NewDB(sqldb, sqlitedialect.New())
		if _, err := bunDB.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			bunDB.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
		log.LogDatabase("CONNECT", "sqlite", "✅ SQLite database opened")
		return bunDB, nil

	case DriverPostgres:
		sqldb, err := openPostgres(ctx, cfg.DSN, log)
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		log.LogDatabase("CONNECT", "postgres", "✅ PostgreSQL connection successful")
		return bun.NewDB(sqldb, pgdialect.New()), nil

	case DriverMySQL:
		dsn, err := mysqlDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		sqldb, err := openWithRetry(ctx, "mysql", dsn, log)
		if err != nil {
			return nil, err
		}
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		log.LogDatabase("CONNECT", "mysql", "✅ MySQL connection successful")
		return bun.NewDB(sqldb, mysqldialect.New()), nil

	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

// mysqlDSN forces parseTime so DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

func openPostgres(ctx context.Context, dsn string, log *logger.Logger) (*sql.DB, error) {
	return openWithRetry(ctx, "postgres", dsn, log)
}

func openWithRetry(ctx context.Context, driver, dsn string, log *logger.Logger) (*sql.DB, error) {
	var lastErr error
	for i := 0; i < connectAttempts; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to %s (attempt %d/%d)", driver, i+1, connectAttempts))
		sqldb, err := sql.Open(driver, dsn)
		if err == nil {
			if err = sqldb.PingContext(ctx); err == nil {
				return sqldb, nil
			}
			sqldb.Close()
		}
		lastErr = err
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to %s: %v", driver, err))

		if i < connectAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectBackoff):
			}
		}
	}
	return nil, fmt.Errorf("connect to %s after %d attempts: %w", driver, connectAttempts, lastErr)
}

// Prepare brings the schema up to date: CreateSchema on SQLite and MySQL,
// the SQL migrations on PostgreSQL. Migrations run on their own connection
// because the migrate driver closes the database it is given.
func Prepare(ctx context.Context, bunDB *bun.DB, cfg config.DatabaseConfig, log *logger.Logger) error {
	if cfg.Driver != DriverPostgres {
		if err := db.CreateSchema(ctx, bunDB); err != nil {
			return err
		}
		log.LogDatabase("SCHEMA", "all", fmt.Sprintf("%s schema ensured", cfg.Driver))
		return nil
	}
	if !cfg.AutoMigrate {
		log.Info("DATABASE", "Automatic migrations disabled")
		return nil
	}

	runner, err := NewMigrationRunner(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.RunMigrations()
}

// NewMigrationRunner opens a dedicated PostgreSQL connection for golang-migrate.
func NewMigrationRunner(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*migrations.Runner, error) {
	if cfg.Driver != DriverPostgres {
		return nil, fmt.Errorf("migrations require DB_DRIVER=postgres, got %q", cfg.Driver)
	}
	sqldb, err := openPostgres(ctx, cfg.DSN, log)
	if err != nil {
		return nil, err
	}
	opts := migrations.DefaultOptions()
	opts.MigrationsDir = cfg.MigrationsPath
	opts.AutoMigrate = cfg.AutoMigrate
	return migrations.NewRunner(bun.NewDB(sqldb, pgdialect.New()), opts, log), nil
}
