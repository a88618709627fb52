package db

import (
	"context"
	"fmt"
	"sort"

	"ms-reservation/internal/models"

	"github.com/uptrace/bun"
)

type candidateSeat struct {
	ID         int64 `bun:"id"`
	IsReserved bool  `bun:"is_reserved"`
	TypeCode   int   `bun:"type_code"`
	Price      int64 `bun:"price"`
}

// ReserveSeats reserves seatIDs of eventID for userID as one atomic unit.
// Either every seat is reserved, one order with one line per seat exists and
// each tier's stock dropped by the number of its seats, or nothing changed.
// seatIDs must be non-empty and distinct; the caller validates that.
func (d *DB) ReserveSeats(ctx context.Context, eventID, userID int64, seatIDs []int64) (*models.ReserveResult, error) {
	if len(seatIDs) == 0 {
		return nil, models.ErrNoSeats
	}

	var result *models.ReserveResult
	err := d.RunInEventTx(ctx, eventID, func(ctx context.Context, tx bun.Tx) error {
		var seats []candidateSeat
		err := tx.NewRaw(
			`SELECT s.id, s.is_reserved, s.type_code, st.price
			FROM seats AS s
			JOIN seat_types AS st ON st.event_id = s.event_id AND st.type_code = s.type_code
			WHERE s.event_id = ? AND s.id IN (?)
			ORDER BY s.id`,
			eventID, bun.In(seatIDs),
		).Scan(ctx, &seats)
		if err != nil {
			return fmt.Errorf("load seats: %w", err)
		}

		if len(seats) != len(seatIDs) {
			return models.ErrSeatNotFound
		}
		for _, s := range seats {
			if s.IsReserved {
				return models.ErrSeatAlreadyReserved
			}
		}

		var total int64
		perType := make(map[int]int)
		ids := make([]int64, 0, len(seats))
		lines := make([]models.OrderLine, 0, len(seats))
		for _, s := range seats {
			total += s.Price
			perType[s.TypeCode]++
			ids = append(ids, s.ID)
			lines = append(lines, models.OrderLine{
				SeatID:    s.ID,
				TypeCode:  s.TypeCode,
				UnitPrice: s.Price,
			})
		}

		order := &models.Order{
			EventID:    eventID,
			UserID:     userID,
			CreatedAt:  d.Now().UTC(),
			TotalPrice: total,
			Status:     models.OrderActive,
		}
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return translateError("insert order", err)
		}

		for i := range lines {
			lines[i].OrderID = order.ID
		}
		if _, err := tx.NewInsert().Model(&lines).Exec(ctx); err != nil {
			return translateError("insert order lines", err)
		}

		res, err := tx.NewUpdate().
			Model((*models.Seat)(nil)).
			Set("is_reserved = ?", true).
			Where("id IN (?)", bun.In(ids)).
			Where("is_reserved = ?", false).
			Exec(ctx)
		if err != nil {
			return translateError("mark seats reserved", err)
		}
		if n, _ := res.RowsAffected(); n != int64(len(ids)) {
			return models.ErrSeatAlreadyReserved
		}

		if err := adjustStock(ctx, tx, eventID, perType, -1); err != nil {
			return err
		}

		result = &models.ReserveResult{
			OrderID:    order.ID,
			TotalPrice: total,
			SeatIDs:    ids,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// adjustStock moves each tier's stock by sign*count. A decrement never takes
// stock below zero and an increment never takes it above capacity; either
// would mean the counters already disagree with the seat flags.
func adjustStock(ctx context.Context, tx bun.Tx, eventID int64, perType map[int]int, sign int) error {
	codes := make([]int, 0, len(perType))
	for code := range perType {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	for _, code := range codes {
		count := perType[code]
		q := tx.NewUpdate().
			Model((*models.SeatType)(nil)).
			Set("stock = stock + ?", sign*count).
			Where("event_id = ?", eventID).
			Where("type_code = ?", code)
		if sign < 0 {
			q = q.Where("stock >= ?", count)
		} else {
			q = q.Where("stock + ? <= capacity", count)
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return translateError("update stock", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("%w: stock of type %d for event %d out of range", models.ErrIntegrityViolation, code, eventID)
		}
	}
	return nil
}
