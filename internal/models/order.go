package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus int

const (
	OrderCancelled OrderStatus = 0
	OrderActive    OrderStatus = 1
)

// StatusFilterAll selects orders regardless of status when listing.
const StatusFilterAll = 2

func (s OrderStatus) String() string {
	if s == OrderActive {
		return "active"
	}
	return "cancelled"
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID         int64       `bun:"id,pk,autoincrement" json:"id"`
	EventID    int64       `bun:"event_id,notnull" json:"event_id"`
	UserID     int64       `bun:"user_id,notnull" json:"user_id"`
	CreatedAt  time.Time   `bun:"created_at,notnull" json:"created_at"`
	TotalPrice int64       `bun:"total_price,notnull" json:"total_price"`
	Status     OrderStatus `bun:"status,notnull" json:"status"`
}

// OrderLine snapshots the price a seat was sold at. Rows are never updated.
type OrderLine struct {
	bun.BaseModel `bun:"table:order_lines"`

	OrderID   int64 `bun:"order_id,pk" json:"order_id"`
	SeatID    int64 `bun:"seat_id,pk" json:"seat_id"`
	TypeCode  int   `bun:"type_code,notnull" json:"type"`
	UnitPrice int64 `bun:"unit_price,notnull" json:"unit_price"`
}

type ReserveRequest struct {
	EventID int64   `json:"event_id"`
	SeatIDs []int64 `json:"seat_ids"`
}

type ReserveResult struct {
	OrderID    int64   `json:"order_id"`
	TotalPrice int64   `json:"total_price"`
	SeatIDs    []int64 `json:"seat_ids"`
}

// CancelResult reports whether a cancel call flipped the order and which seats it released.
type CancelResult struct {
	OrderID  int64   `json:"order_id"`
	EventID  int64   `json:"event_id,omitempty"`
	Changed  bool    `json:"changed"`
	Released []int64 `json:"released_seat_ids,omitempty"`
}

// OrderSummary is one row of an order listing.
type OrderSummary struct {
	OrderID    int64       `bun:"order_id" json:"order_id"`
	EventID    int64       `bun:"event_id" json:"event_id"`
	EventName  string      `bun:"event_name" json:"event_name"`
	UserID     int64       `bun:"user_id" json:"user_id"`
	Username   string      `bun:"username" json:"username"`
	TotalPrice int64       `bun:"total_price" json:"total_price"`
	Status     OrderStatus `bun:"status" json:"status"`
	CreatedAt  time.Time   `bun:"created_at" json:"created_at"`
}

type OrderWithLines struct {
	Order
	Lines []OrderLine `json:"lines"`
}

type StatusUpdateRequest struct {
	Status OrderStatus `json:"status"`
}
