package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/joho/godotenv"

	"ms-reservation/internal/config"
	"ms-reservation/internal/database"
	"ms-reservation/internal/logger"
)

// Usage: migrate [-to N] up|down|version
func main() {
	logger := logger.NewLogger("reservation-migrate")
	defer logger.Close()

	to := flag.Uint("to", 0, "migrate up or down to this version instead of the latest")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	ctx := context.Background()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	runner, err := database.NewMigrationRunner(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("MIGRATE", err.Error())
	}
	defer runner.Close()

	switch {
	case *to > 0:
		err = runner.MigrateTo(*to)
	case command == "up":
		err = runner.RunMigrations()
	case command == "down":
		err = runner.MigrateDown()
	case command == "version":
		err = nil
	default:
		logger.Fatal("MIGRATE", fmt.Sprintf("unknown command %q (want up, down or version)", command))
	}
	if err != nil {
		logger.Fatal("MIGRATE", err.Error())
	}

	version, dirty, err := runner.Version()
	if err != nil {
		logger.Fatal("MIGRATE", err.Error())
	}
	logger.Info("MIGRATE", fmt.Sprintf("✅ Done. schema version=%d dirty=%t", version, dirty))
}
