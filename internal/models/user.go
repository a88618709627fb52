package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Username  string    `bun:"username,unique,notnull" json:"username"`
	IsAdmin   bool      `bun:"is_admin,notnull" json:"is_admin"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Session maps an opaque token issued at login to a user.
type Session struct {
	bun.BaseModel `bun:"table:sessions"`

	SessionID string    `bun:"session_id,pk" json:"session_id"`
	UserID    int64     `bun:"user_id,notnull" json:"user_id"`
	IsAdmin   bool      `bun:"is_admin,notnull" json:"is_admin"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
}

// Principal is the caller identity resolved from a session.
type Principal struct {
	UserID  int64
	IsAdmin bool
}
