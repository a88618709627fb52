package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-reservation/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionStore resolves session ids issued at login. Login itself lives in
// the account service; CreateSession exists for the seed tool and tests.
type SessionStore struct {
	Bun *bun.DB
	Now func() time.Time
}

func NewSessionStore(bunDB *bun.DB) *SessionStore {
	return &SessionStore{Bun: bunDB, Now: time.Now}
}

func (s *SessionStore) Resolve(ctx context.Context, token string) (models.Principal, error) {
	if token == "" {
		return models.Principal{}, models.ErrSessionInvalid
	}

	var session models.Session
	err := s.Bun.NewSelect().
		Model(&session).
		Where("session_id = ?", token).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Principal{}, models.ErrSessionInvalid
	}
	if err != nil {
		return models.Principal{}, fmt.Errorf("load session: %w", err)
	}

	if !session.ExpiresAt.IsZero() && !s.Now().Before(session.ExpiresAt) {
		return models.Principal{}, models.ErrSessionInvalid
	}
	return models.Principal{UserID: session.UserID, IsAdmin: session.IsAdmin}, nil
}

// CreateSession stores a new session for userID. A zero ttl never expires.
func (s *SessionStore) CreateSession(ctx context.Context, userID int64, isAdmin bool, ttl time.Duration) (string, error) {
	now := s.Now().UTC()
	session := &models.Session{
		SessionID: uuid.NewString(),
		UserID:    userID,
		IsAdmin:   isAdmin,
		CreatedAt: now,
	}
	if ttl > 0 {
		session.ExpiresAt = now.Add(ttl)
	}

	if _, err := s.Bun.NewInsert().Model(session).Exec(ctx); err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return session.SessionID, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.Bun.NewDelete().
		Model((*models.Session)(nil)).
		Where("session_id = ?", token).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
