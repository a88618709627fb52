package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event rows are owned by event management; the reservation core only reads them.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull,unique" json:"name"`
	EventDate string    `bun:"event_date,notnull" json:"event_date"` // YYYY-MM-DD
	StartTime string    `bun:"start_time,notnull" json:"start_time"` // HH:MM
	PosterURL string    `bun:"poster_url" json:"poster_url"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// CreateEventRequest describes a new event together with its price tiers.
// Zero capacities fall back to DefaultCapacities.
type CreateEventRequest struct {
	Name       string        `json:"name"`
	EventDate  string        `json:"event_date"`
	StartTime  string        `json:"start_time"`
	PosterURL  string        `json:"poster_url"`
	Prices     map[int]int64 `json:"prices"`
	Capacities map[int]int   `json:"capacities,omitempty"`
}
