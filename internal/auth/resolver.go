package auth

import (
	"context"
	"errors"

	"ms-reservation/internal/models"
)

// SessionResolver turns an opaque credential into the caller's identity.
// Unknown, malformed or expired credentials yield models.ErrSessionInvalid.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (models.Principal, error)
}

// ChainResolver asks each resolver in turn and returns the first identity.
type ChainResolver []SessionResolver

func (c ChainResolver) Resolve(ctx context.Context, token string) (models.Principal, error) {
	for _, r := range c {
		p, err := r.Resolve(ctx, token)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, models.ErrSessionInvalid) {
			return models.Principal{}, err
		}
	}
	return models.Principal{}, models.ErrSessionInvalid
}
