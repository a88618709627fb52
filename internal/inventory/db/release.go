package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

// SetOrderStatus is the single writer of orders.status. Moving an active order
// to cancelled releases its seats and restores stock inside the same atomic
// unit; repeating the call is a no-op. A cancelled order cannot be reactivated.
// An unknown order id is treated as already released.
func (d *DB) SetOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.CancelResult, error) {
	if status != models.OrderCancelled && status != models.OrderActive {
		return nil, fmt.Errorf("%w: unknown status %d", models.ErrInvalidStatusTransition, status)
	}

	var eventID int64
	err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Column("event_id").
		Where("id = ?", orderID).
		Scan(ctx, &eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.CancelResult{OrderID: orderID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}

	result := &models.CancelResult{OrderID: orderID, EventID: eventID}
	err = d.RunInEventTx(ctx, eventID, func(ctx context.Context, tx bun.Tx) error {
		var current models.Order
		if err := tx.NewSelect().Model(&current).Where("id = ?", orderID).Scan(ctx); err != nil {
			return fmt.Errorf("load order %d: %w", orderID, err)
		}

		if status == models.OrderActive {
			if current.Status != models.OrderActive {
				return models.ErrInvalidStatusTransition
			}
			return nil
		}

		res, err := tx.NewUpdate().
			Model((*models.Order)(nil)).
			Set("status = ?", int(models.OrderCancelled)).
			Where("id = ?", orderID).
			Where("status = ?", int(models.OrderActive)).
			Exec(ctx)
		if err != nil {
			return translateError("cancel order", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}

		released, err := releaseOrderLines(ctx, tx, eventID, orderID)
		if err != nil {
			return err
		}
		result.Changed = true
		result.Released = released
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelOrder flips an order to cancelled and releases its seats.
func (d *DB) CancelOrder(ctx context.Context, orderID int64) (*models.CancelResult, error) {
	return d.SetOrderStatus(ctx, orderID, models.OrderCancelled)
}

func releaseOrderLines(ctx context.Context, tx bun.Tx, eventID, orderID int64) ([]int64, error) {
	var lines []models.OrderLine
	err := tx.NewSelect().
		Model(&lines).
		Where("order_id = ?", orderID).
		OrderExpr("seat_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load lines of order %d: %w", orderID, err)
	}
	if len(lines) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(lines))
	perType := make(map[int]int)
	for _, line := range lines {
		ids = append(ids, line.SeatID)
		perType[line.TypeCode]++
	}

	res, err := tx.NewUpdate().
		Model((*models.Seat)(nil)).
		Set("is_reserved = ?", false).
		Where("event_id = ?", eventID).
		Where("id IN (?)", bun.In(ids)).
		Where("is_reserved = ?", true).
		Exec(ctx)
	if err != nil {
		return nil, translateError("release seats", err)
	}
	if n, _ := res.RowsAffected(); n != int64(len(ids)) {
		return nil, fmt.Errorf("%w: order %d holds seats that are not reserved", models.ErrIntegrityViolation, orderID)
	}

	if err := adjustStock(ctx, tx, eventID, perType, 1); err != nil {
		return nil, err
	}
	return ids, nil
}
