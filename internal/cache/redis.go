package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisBackend struct {
	Client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{Client: client}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.Client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.Client.Set(ctx, key, value, ttl).Err()
}

var errAbsent = errors.New("absent")

// Update watches the key, applies fn and writes the result in a MULTI block.
// EXEC fails when another client touched the key in between; the whole cycle
// is then retried.
func (r *RedisBackend) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return errAbsent
		}
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := r.Client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, errAbsent):
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return err
		}
	}
	return ErrConflict
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.Client.Del(ctx, key).Err()
}
