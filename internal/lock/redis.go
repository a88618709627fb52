package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ms-reservation/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const defaultLockPrefix = "reservation_lock:"

// Deletes the key only while it still carries our token, so a holder whose
// lease expired cannot release somebody else's lock.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every instance pointed at the same Redis.
// The TTL releases locks of crashed holders.
type RedisLocker struct {
	Client        *redis.Client
	Prefix        string
	TTL           time.Duration
	RetryInterval time.Duration
	Logger        *logger.Logger
}

func NewRedisLocker(client *redis.Client, ttl, retry time.Duration, log *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if retry <= 0 {
		retry = 10 * time.Millisecond
	}
	return &RedisLocker{
		Client:        client,
		Prefix:        defaultLockPrefix,
		TTL:           ttl,
		RetryInterval: retry,
		Logger:        log,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.Prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.Client.SetNX(ctx, redisKey, token, r.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(r.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.unlock(redisKey, token) })
	}, nil
}

func (r *RedisLocker) unlock(redisKey, token string) {
	// The caller's ctx may already be cancelled; the release must still go out.
	unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := unlockScript.Run(unlockCtx, r.Client, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
		if r.Logger != nil {
			r.Logger.Warn("LOCK", fmt.Sprintf("Failed to release %s: %v", redisKey, err))
		}
	}
}

// IsLocked reports whether any instance currently holds key.
func (r *RedisLocker) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := r.Client.Exists(ctx, r.Prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
