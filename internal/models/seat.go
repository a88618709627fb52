package models

import (
	"fmt"

	"github.com/uptrace/bun"
)

const (
	SeatTypePremium  = 1
	SeatTypeStandard = 2
	SeatTypeEconomy  = 3
)

// SeatTypes lists every tier in display order.
var SeatTypes = []int{SeatTypePremium, SeatTypeStandard, SeatTypeEconomy}

// DefaultCapacities is the number of seats created per tier for a new event.
var DefaultCapacities = map[int]int{
	SeatTypePremium:  40,
	SeatTypeStandard: 50,
	SeatTypeEconomy:  60,
}

// SeatsPerRow is the width of the generated seat grid.
const SeatsPerRow = 10

func SeatTypeName(code int) string {
	switch code {
	case SeatTypePremium:
		return "premium"
	case SeatTypeStandard:
		return "standard"
	case SeatTypeEconomy:
		return "economy"
	default:
		return fmt.Sprintf("type-%d", code)
	}
}

// SeatType holds the price and the unsold-seat counter of one tier of an event.
type SeatType struct {
	bun.BaseModel `bun:"table:seat_types"`

	EventID  int64 `bun:"event_id,pk" json:"event_id"`
	TypeCode int   `bun:"type_code,pk" json:"type"`
	Price    int64 `bun:"price,notnull" json:"price"`
	Stock    int   `bun:"stock,notnull" json:"stock"`
	Capacity int   `bun:"capacity,notnull" json:"capacity"`
}

type Seat struct {
	bun.BaseModel `bun:"table:seats"`

	ID         int64 `bun:"id,pk,autoincrement" json:"id"`
	EventID    int64 `bun:"event_id,notnull,unique:seat_position" json:"event_id"`
	RowNo      int   `bun:"row_no,notnull,unique:seat_position" json:"row"`
	ColNo      int   `bun:"col_no,notnull,unique:seat_position" json:"col"`
	TypeCode   int   `bun:"type_code,notnull" json:"type"`
	IsReserved bool  `bun:"is_reserved,notnull" json:"is_reserved"`
}

// SeatAvailability is the cached, client-facing view of a seat.
type SeatAvailability struct {
	ID         int64 `bun:"id" json:"id"`
	Row        int   `bun:"row_no" json:"row"`
	Col        int   `bun:"col_no" json:"col"`
	Type       int   `bun:"type_code" json:"type"`
	IsReserved bool  `bun:"is_reserved" json:"is_reserved"`
}
