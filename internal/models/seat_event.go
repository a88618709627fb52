package models

import (
	"time"

	"github.com/google/uuid"
)

// SeatStatusChangeEvent is published after every committed reservation or release
// so that other instances can patch their seat caches.
type SeatStatusChangeEvent struct {
	MessageID  uuid.UUID `json:"message_id"`
	Origin     string    `json:"origin"`
	EventID    int64     `json:"event_id"`
	OrderID    int64     `json:"order_id"`
	SeatIDs    []int64   `json:"seat_ids"`
	Reserved   bool      `json:"reserved"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewSeatStatusChangeEvent(origin string, eventID, orderID int64, seatIDs []int64, reserved bool) SeatStatusChangeEvent {
	return SeatStatusChangeEvent{
		MessageID:  uuid.New(),
		Origin:     origin,
		EventID:    eventID,
		OrderID:    orderID,
		SeatIDs:    seatIDs,
		Reserved:   reserved,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderEvent is the payload of order created/cancelled messages.
type OrderEvent struct {
	MessageID  uuid.UUID   `json:"message_id"`
	OrderID    int64       `json:"order_id"`
	EventID    int64       `json:"event_id"`
	UserID     int64       `json:"user_id"`
	TotalPrice int64       `json:"total_price"`
	Status     OrderStatus `json:"status"`
	SeatIDs    []int64     `json:"seat_ids"`
	OccurredAt time.Time   `json:"occurred_at"`
}
