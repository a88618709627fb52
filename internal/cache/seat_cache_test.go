package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	calls atomic.Int32
	delay time.Duration
	err   error

	mu    sync.Mutex
	seats []models.SeatAvailability
}

func newCountingLoader() *countingLoader {
	return &countingLoader{seats: []models.SeatAvailability{
		{ID: 1, Row: 1, Col: 1, Type: models.SeatTypePremium},
		{ID: 2, Row: 1, Col: 2, Type: models.SeatTypePremium},
		{ID: 3, Row: 2, Col: 1, Type: models.SeatTypeEconomy, IsReserved: true},
	}}
}

func (l *countingLoader) Load(ctx context.Context, eventID int64) ([]models.SeatAvailability, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.SeatAvailability, len(l.seats))
	copy(out, l.seats)
	return out, nil
}

func (l *countingLoader) setReserved(id int64, reserved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.seats {
		if l.seats[i].ID == id {
			l.seats[i].IsReserved = reserved
		}
	}
}

func newTestSeatCache(backend Backend, loader *countingLoader) *SeatCache {
	return NewSeatCache(backend, loader.Load, 300*time.Second, "event:seats:", logger.New(io.Discard))
}

func reservedOf(seats []models.SeatAvailability, id int64) bool {
	for _, s := range seats {
		if s.ID == id {
			return s.IsReserved
		}
	}
	return false
}

func TestGetAvailabilityHitSkipsStore(t *testing.T) {
	backend, _ := newTestMemoryBackend()
	loader := newCountingLoader()
	c := newTestSeatCache(backend, loader)
	ctx := context.Background()

	first, err := c.GetAvailability(ctx, 7)
	require.NoError(t, err)
	second, err := c.GetAvailability(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), loader.calls.Load())
	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Loads)
}

func TestGetAvailabilityCoalescesConcurrentMisses(t *testing.T) {
	backend, _ := newTestMemoryBackend()
	loader := newCountingLoader()
	loader.delay = 50 * time.Millisecond
	c := newTestSeatCache(backend, loader)

	const readers = 50
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([][]byte, readers)
		errs    = make([]error, readers)
	)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = c.GetAvailabilityJSON(context.Background(), 9)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load())
	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestGetAvailabilityExpiresAfterTTL(t *testing.T) {
	backend, clock := newTestMemoryBackend()
	loader := newCountingLoader()
	c := newTestSeatCache(backend, loader)
	ctx := context.Background()

	_, err := c.GetAvailability(ctx, 1)
	require.NoError(t, err)

	// a release the cache never heard about
	loader.setReserved(3, false)

	seats, err := c.GetAvailability(ctx, 1)
	require.NoError(t, err)
	assert.True(t, reservedOf(seats, 3), "stale within the TTL window")

	clock.Advance(300 * time.Second)
	seats, err = c.GetAvailability(ctx, 1)
	require.NoError(t, err)
	assert.False(t, reservedOf(seats, 3))
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestApplyIncrementalUpdate(t *testing.T) {
	backend, clock := newTestMemoryBackend()
	loader := newCountingLoader()
	c := newTestSeatCache(backend, loader)
	ctx := context.Background()

	// no entry yet: nothing to patch and nothing created
	require.NoError(t, c.MarkSeats(ctx, 4, []int64{1}, true))
	_, err := backend.Get(ctx, "event:seats:4")
	assert.ErrorIs(t, err, ErrMiss)

	_, err = c.GetAvailability(ctx, 4)
	require.NoError(t, err)

	clock.Advance(200 * time.Second)
	require.NoError(t, c.ApplyIncrementalUpdate(ctx, 4, map[int64]bool{1: true, 3: false, 99: true}))

	// refreshed TTL keeps the entry past the original expiry
	clock.Advance(200 * time.Second)
	seats, err := c.GetAvailability(ctx, 4)
	require.NoError(t, err)
	assert.True(t, reservedOf(seats, 1))
	assert.False(t, reservedOf(seats, 2))
	assert.False(t, reservedOf(seats, 3))
	assert.Len(t, seats, 3)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestInvalidate(t *testing.T) {
	backend, _ := newTestMemoryBackend()
	loader := newCountingLoader()
	c := newTestSeatCache(backend, loader)
	ctx := context.Background()

	_, err := c.GetAvailability(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, 2))
	_, err = c.GetAvailability(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestGetAvailabilityLoaderError(t *testing.T) {
	backend, _ := newTestMemoryBackend()
	loader := newCountingLoader()
	loader.err = errors.New("database is down")
	c := newTestSeatCache(backend, loader)

	_, err := c.GetAvailability(context.Background(), 1)
	assert.ErrorIs(t, err, loader.err)

	_, err = backend.Get(context.Background(), "event:seats:1")
	assert.ErrorIs(t, err, ErrMiss)
}

type brokenBackend struct{}

var errBackendDown = errors.New("connection refused")

func (brokenBackend) Get(context.Context, string) ([]byte, error) { return nil, errBackendDown }
func (brokenBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errBackendDown
}
func (brokenBackend) Update(context.Context, string, time.Duration, UpdateFunc) error {
	return errBackendDown
}
func (brokenBackend) Delete(context.Context, string) error { return errBackendDown }

func TestBackendFailureFallsBackToStore(t *testing.T) {
	loader := newCountingLoader()
	c := newTestSeatCache(brokenBackend{}, loader)
	ctx := context.Background()

	seats, err := c.GetAvailability(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, seats, 3)

	seats, err = c.GetAvailability(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, seats, 3)

	assert.Equal(t, int32(2), loader.calls.Load())
	assert.NotZero(t, c.Stats().BackendErrors)

	assert.ErrorIs(t, c.MarkSeats(ctx, 1, []int64{1}, true), errBackendDown)
}

func TestSeatCacheOnRedis(t *testing.T) {
	client, mr := setupTestRedis(t)
	loader := newCountingLoader()
	c := newTestSeatCache(NewRedisBackend(client), loader)
	ctx := context.Background()

	_, err := c.GetAvailability(ctx, 11)
	require.NoError(t, err)
	assert.True(t, mr.Exists("event:seats:11"))
	assert.Equal(t, 300*time.Second, mr.TTL("event:seats:11"))

	require.NoError(t, c.MarkSeats(ctx, 11, []int64{2}, true))
	seats, err := c.GetAvailability(ctx, 11)
	require.NoError(t, err)
	assert.True(t, reservedOf(seats, 2))
	assert.Equal(t, int32(1), loader.calls.Load())

	mr.FastForward(301 * time.Second)
	seats, err = c.GetAvailability(ctx, 11)
	require.NoError(t, err)
	assert.False(t, reservedOf(seats, 2))
	assert.Equal(t, int32(2), loader.calls.Load())
}
