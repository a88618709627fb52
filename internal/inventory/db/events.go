package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

// CreateEvent inserts the event, one seat type per tier and the seat grid.
// Rows are SeatsPerRow wide and continue across tiers, premium first.
func (d *DB) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	if strings.TrimSpace(req.Name) == "" || req.EventDate == "" || req.StartTime == "" {
		return nil, fmt.Errorf("%w: name, event_date and start_time are required", models.ErrInvalidEvent)
	}

	event := &models.Event{
		Name:      req.Name,
		EventDate: req.EventDate,
		StartTime: req.StartTime,
		PosterURL: req.PosterURL,
		CreatedAt: d.Now().UTC(),
	}

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
			return translateError("insert event", err)
		}

		types := make([]models.SeatType, 0, len(models.SeatTypes))
		var seats []models.Seat
		rowOffset := 0
		for _, code := range models.SeatTypes {
			capacity := req.Capacities[code]
			if capacity <= 0 {
				capacity = models.DefaultCapacities[code]
			}
			price, ok := req.Prices[code]
			if !ok || price < 0 {
				return fmt.Errorf("%w: missing price for %s seats", models.ErrInvalidEvent, models.SeatTypeName(code))
			}

			types = append(types, models.SeatType{
				EventID:  event.ID,
				TypeCode: code,
				Price:    price,
				Stock:    capacity,
				Capacity: capacity,
			})
			for i := 0; i < capacity; i++ {
				seats = append(seats, models.Seat{
					EventID:  event.ID,
					RowNo:    i/models.SeatsPerRow + 1 + rowOffset,
					ColNo:    i%models.SeatsPerRow + 1,
					TypeCode: code,
				})
			}
			rowOffset += (capacity + models.SeatsPerRow - 1) / models.SeatsPerRow
		}

		if _, err := tx.NewInsert().Model(&types).Exec(ctx); err != nil {
			return translateError("insert seat types", err)
		}
		if _, err := tx.NewInsert().Model(&seats).Exec(ctx); err != nil {
			return translateError("insert seats", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (d *DB) CreateUser(ctx context.Context, username string, isAdmin bool) (*models.User, error) {
	user := &models.User{
		Username:  username,
		IsAdmin:   isAdmin,
		CreatedAt: d.Now().UTC(),
	}
	if _, err := d.Bun.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, translateError("insert user", err)
	}
	return user, nil
}
