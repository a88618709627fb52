package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-reservation/internal/lock"
	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// DB is the inventory store. It owns events, seat types, seats, orders and
// order lines; every seat or stock mutation goes through RunInEventTx.
type DB struct {
	Bun    *bun.DB
	Locker lock.Locker
	Now    func() time.Time
}

func NewDB(bunDB *bun.DB, locker lock.Locker) *DB {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &DB{Bun: bunDB, Locker: locker, Now: time.Now}
}

func eventLockKey(eventID int64) string {
	return fmt.Sprintf("event:%d", eventID)
}

// RunInEventTx runs fn as one atomic unit serialized against every other unit
// of the same event. The event lock is taken before the transaction begins and
// on PostgreSQL an advisory transaction lock is the first statement, so the
// exclusive intent exists before any availability read. MySQL locks the
// event's seat_types rows instead.
func (d *DB) RunInEventTx(ctx context.Context, eventID int64, fn func(ctx context.Context, tx bun.Tx) error) error {
	unlock, err := d.Locker.Lock(ctx, eventLockKey(eventID))
	if err != nil {
		return fmt.Errorf("lock event %d: %w", eventID, err)
	}
	defer unlock()

	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		switch d.Bun.Dialect().Name() {
		case dialect.PG:
			if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(?)", eventID); err != nil {
				return fmt.Errorf("advisory lock event %d: %w", eventID, err)
			}
		case dialect.MySQL:
			// row locks on the event's tiers, held until commit
			if _, err := tx.ExecContext(ctx, "SELECT type_code FROM seat_types WHERE event_id = ? FOR UPDATE", eventID); err != nil {
				return fmt.Errorf("lock seat types of event %d: %w", eventID, err)
			}
		}
		return fn(ctx, tx)
	})
}

// ---------------- EVENTS ----------------

func (d *DB) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", eventID, err)
	}
	return &event, nil
}

func (d *DB) EventExists(ctx context.Context, eventID int64) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("id = ?", eventID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check event %d: %w", eventID, err)
	}
	return exists, nil
}

// ---------------- SEATS ----------------

// GetSeatsByEvent is the loader behind the seat cache.
func (d *DB) GetSeatsByEvent(ctx context.Context, eventID int64) ([]models.SeatAvailability, error) {
	seats := make([]models.SeatAvailability, 0)
	err := d.Bun.NewRaw(
		"SELECT id, row_no, col_no, type_code, is_reserved FROM seats WHERE event_id = ? ORDER BY id",
		eventID,
	).Scan(ctx, &seats)
	if err != nil {
		return nil, fmt.Errorf("load seats for event %d: %w", eventID, err)
	}
	return seats, nil
}

func (d *DB) GetSeatTypes(ctx context.Context, eventID int64) ([]models.SeatType, error) {
	types := make([]models.SeatType, 0)
	err := d.Bun.NewSelect().
		Model(&types).
		Where("event_id = ?", eventID).
		OrderExpr("type_code ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load seat types for event %d: %w", eventID, err)
	}
	return types, nil
}

// ---------------- ORDERS ----------------

func (d *DB) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}
	return &order, nil
}

func (d *DB) GetOrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	lines := make([]models.OrderLine, 0)
	err := d.Bun.NewSelect().
		Model(&lines).
		Where("order_id = ?", orderID).
		OrderExpr("seat_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load lines of order %d: %w", orderID, err)
	}
	return lines, nil
}

func (d *DB) GetOrderWithLines(ctx context.Context, orderID int64) (*models.OrderWithLines, error) {
	order, err := d.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	lines, err := d.GetOrderLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &models.OrderWithLines{Order: *order, Lines: lines}, nil
}

// OrderFilter narrows ListOrders. UserID 0 means every user; Status is 0, 1
// or models.StatusFilterAll.
type OrderFilter struct {
	UserID int64
	Status int
}

func (d *DB) ListOrders(ctx context.Context, filter OrderFilter) ([]models.OrderSummary, error) {
	orders := make([]models.OrderSummary, 0)
	q := d.Bun.NewSelect().
		TableExpr("orders AS o").
		ColumnExpr("o.id AS order_id, o.event_id, e.name AS event_name, o.user_id, u.username, o.total_price, o.status, o.created_at").
		Join("JOIN events AS e ON e.id = o.event_id").
		Join("JOIN users AS u ON u.id = o.user_id")

	if filter.UserID != 0 {
		q = q.Where("o.user_id = ?", filter.UserID)
	}
	if filter.Status != models.StatusFilterAll {
		q = q.Where("o.status = ?", filter.Status)
	}

	err := q.OrderExpr("o.created_at DESC, o.id DESC").Scan(ctx, &orders)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
