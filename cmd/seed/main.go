package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"ms-reservation/internal/auth"
	"ms-reservation/internal/config"
	"ms-reservation/internal/database"
	"ms-reservation/internal/inventory/db"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

// seed creates a demo event plus one buyer and one admin, and prints a
// session id for each so the API can be exercised right away.
func main() {
	logger := logger.NewLogger("reservation-seed")
	defer logger.Close()

	name := flag.String("event", "Summer Fest 2026", "event name")
	date := flag.String("date", time.Now().AddDate(0, 1, 0).Format("2006-01-02"), "event date (YYYY-MM-DD)")
	premium := flag.Int64("premium", 120, "premium seat price")
	standard := flag.Int64("standard", 80, "standard seat price")
	economy := flag.Int64("economy", 40, "economy seat price")
	sessionTTL := flag.Duration("session-ttl", 24*time.Hour, "lifetime of the printed sessions")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()
	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()
	if err := database.Prepare(ctx, bunDB, cfg.Database, logger); err != nil {
		logger.Fatal("DATABASE", err.Error())
	}

	store := db.NewDB(bunDB, nil)
	event, err := store.CreateEvent(ctx, models.CreateEventRequest{
		Name:      *name,
		EventDate: *date,
		StartTime: "19:00",
		Prices: map[int]int64{
			models.SeatTypePremium:  *premium,
			models.SeatTypeStandard: *standard,
			models.SeatTypeEconomy:  *economy,
		},
	})
	switch {
	case errors.Is(err, models.ErrIntegrityViolation):
		logger.Warn("SEED", fmt.Sprintf("Event %q already exists, skipping", *name))
	case err != nil:
		logger.Fatal("SEED", err.Error())
	default:
		logger.Info("SEED", fmt.Sprintf("Created event %d %q on %s", event.ID, event.Name, event.EventDate))
	}

	sessions := auth.NewSessionStore(bunDB)
	for _, u := range []struct {
		username string
		admin    bool
	}{{"demo-buyer", false}, {"demo-admin", true}} {
		user, err := store.CreateUser(ctx, u.username, u.admin)
		if err != nil {
			logger.Warn("SEED", fmt.Sprintf("User %s not created: %v", u.username, err))
			continue
		}
		sessionID, err := sessions.CreateSession(ctx, user.ID, u.admin, *sessionTTL)
		if err != nil {
			logger.Fatal("SEED", err.Error())
		}
		logger.Info("SEED", fmt.Sprintf("%s (id=%d admin=%t) %s: %s", u.username, user.ID, u.admin, auth.SessionHeader, sessionID))
	}

	logger.Info("SEED", "✅ Done.")
}
