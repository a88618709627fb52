package db

import (
	"context"
	"fmt"

	"ms-reservation/internal/models"
)

type TypeAudit struct {
	TypeCode      int    `json:"type"`
	TypeName      string `json:"type_name"`
	Capacity      int    `json:"capacity"`
	Stock         int    `json:"stock"`
	ReservedSeats int    `json:"reserved_seats"`
	ActiveLines   int    `json:"active_lines"`
	Consistent    bool   `json:"consistent"`
}

// InventoryAudit compares the stock counters of an event with its seat flags
// and with the lines of its active orders.
type InventoryAudit struct {
	EventID    int64       `json:"event_id"`
	Types      []TypeAudit `json:"types"`
	Consistent bool        `json:"consistent"`
}

type typeCount struct {
	TypeCode int `bun:"type_code"`
	N        int `bun:"n"`
}

func (d *DB) AuditEvent(ctx context.Context, eventID int64) (*InventoryAudit, error) {
	types, err := d.GetSeatTypes(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, models.ErrEventNotFound
	}

	var reserved []typeCount
	err = d.Bun.NewRaw(
		`SELECT type_code, COUNT(*) AS n FROM seats
		WHERE event_id = ? AND is_reserved = ?
		GROUP BY type_code`,
		eventID, true,
	).Scan(ctx, &reserved)
	if err != nil {
		return nil, fmt.Errorf("count reserved seats: %w", err)
	}

	var active []typeCount
	err = d.Bun.NewRaw(
		`SELECT ol.type_code, COUNT(*) AS n FROM order_lines AS ol
		JOIN orders AS o ON o.id = ol.order_id
		WHERE o.event_id = ? AND o.status = ?
		GROUP BY ol.type_code`,
		eventID, int(models.OrderActive),
	).Scan(ctx, &active)
	if err != nil {
		return nil, fmt.Errorf("count active order lines: %w", err)
	}

	reservedBy := make(map[int]int, len(reserved))
	for _, r := range reserved {
		reservedBy[r.TypeCode] = r.N
	}
	activeBy := make(map[int]int, len(active))
	for _, a := range active {
		activeBy[a.TypeCode] = a.N
	}

	audit := &InventoryAudit{EventID: eventID, Consistent: true}
	for _, t := range types {
		row := TypeAudit{
			TypeCode:      t.TypeCode,
			TypeName:      models.SeatTypeName(t.TypeCode),
			Capacity:      t.Capacity,
			Stock:         t.Stock,
			ReservedSeats: reservedBy[t.TypeCode],
			ActiveLines:   activeBy[t.TypeCode],
		}
		row.Consistent = row.Stock >= 0 &&
			row.Stock == row.Capacity-row.ReservedSeats &&
			row.ReservedSeats == row.ActiveLines
		if !row.Consistent {
			audit.Consistent = false
		}
		audit.Types = append(audit.Types, row)
	}
	return audit, nil
}
