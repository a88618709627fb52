package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"

	"github.com/go-redis/redis/v8"
)

const principalKeyPrefix = "auth:principal:"

// CachedResolver keeps resolved principals in Redis for a short TTL so that
// every request does not hit the session table or the identity provider.
// Negative results are not cached.
type CachedResolver struct {
	Next   SessionResolver
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewCachedResolver(next SessionResolver, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedResolver {
	return &CachedResolver{Next: next, Client: client, TTL: ttl, Logger: log}
}

func principalKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return principalKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *CachedResolver) Resolve(ctx context.Context, token string) (models.Principal, error) {
	if token == "" {
		return models.Principal{}, models.ErrSessionInvalid
	}
	key := principalKey(token)

	cached, err := c.Client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p models.Principal
		if jsonErr := json.Unmarshal(cached, &p); jsonErr == nil {
			return p, nil
		}
	case !errors.Is(err, redis.Nil):
		c.Logger.Warn("AUTH", fmt.Sprintf("Principal cache read failed: %v", err))
	}

	p, err := c.Next.Resolve(ctx, token)
	if err != nil {
		return models.Principal{}, err
	}

	if payload, err := json.Marshal(p); err == nil {
		if err := c.Client.Set(ctx, key, payload, c.TTL).Err(); err != nil {
			c.Logger.Warn("AUTH", fmt.Sprintf("Principal cache write failed: %v", err))
		}
	}
	return p, nil
}

// Forget drops a cached principal, e.g. after logout.
func (c *CachedResolver) Forget(ctx context.Context, token string) error {
	return c.Client.Del(ctx, principalKey(token)).Err()
}
