package database

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-reservation/internal/config"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

func TestOpenSQLitePreparesSchema(t *testing.T) {
	ctx := context.Background()
	log := logger.New(io.Discard)
	cfg := config.DatabaseConfig{Driver: DriverSQLite, DSN: "file::memory:"}

	bunDB, err := Open(ctx, cfg, log)
	require.NoError(t, err)
	defer bunDB.Close()

	require.NoError(t, Prepare(ctx, bunDB, cfg, log))
	// idempotent
	require.NoError(t, Prepare(ctx, bunDB, cfg, log))

	count, err := bunDB.NewSelect().Model((*models.Event)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"}, logger.New(io.Discard))
	assert.Error(t, err)
}

func TestMigrationRunnerNeedsPostgres(t *testing.T) {
	_, err := NewMigrationRunner(context.Background(), config.DatabaseConfig{Driver: DriverSQLite}, logger.New(io.Discard))
	assert.Error(t, err)
}

func TestMySQLDSNForcesParseTime(t *testing.T) {
	dsn, err := mysqlDSN("app:secret@tcp(db:3306)/reservation")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")

	_, err = mysqlDSN("not a dsn")
	assert.Error(t, err)
}
