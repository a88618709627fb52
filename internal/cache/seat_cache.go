package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"ms-reservation/internal/lock"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/models"
)

// Loader reads the seats of an event from the inventory store.
type Loader func(ctx context.Context, eventID int64) ([]models.SeatAvailability, error)

// Stats counts cache traffic since start.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Loads         uint64 `json:"loads"`
	BackendErrors uint64 `json:"backend_errors"`
}

// SeatCache is a cache-aside view of per-event seat availability. Concurrent
// misses for one event are coalesced into a single load; entries live for a
// fixed TTL, which bounds how stale a missed update can leave them.
type SeatCache struct {
	backend Backend
	load    Loader
	ttl     time.Duration
	prefix  string
	locks   lock.Locker
	logger  *logger.Logger

	hits          atomic.Uint64
	misses        atomic.Uint64
	loads         atomic.Uint64
	backendErrors atomic.Uint64
}

func NewSeatCache(backend Backend, load Loader, ttl time.Duration, prefix string, log *logger.Logger) *SeatCache {
	return &SeatCache{
		backend: backend,
		load:    load,
		ttl:     ttl,
		prefix:  prefix,
		locks:   lock.NewKeyedMutex(),
		logger:  log,
	}
}

func (c *SeatCache) key(eventID int64) string {
	return c.prefix + strconv.FormatInt(eventID, 10)
}

// GetAvailabilityJSON returns the encoded seat list of an event. Every caller
// that shares one load receives the same bytes.
func (c *SeatCache) GetAvailabilityJSON(ctx context.Context, eventID int64) (json.RawMessage, error) {
	key := c.key(eventID)
	if data, ok := c.lookup(ctx, key, eventID); ok {
		c.hits.Add(1)
		return data, nil
	}
	c.misses.Add(1)

	unlock, err := c.locks.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// another caller may have populated the entry while we waited
	if data, ok := c.lookup(ctx, key, eventID); ok {
		c.logger.LogCache("COALESCED", eventID, "served by concurrent load")
		return data, nil
	}

	seats, err := c.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	c.loads.Add(1)

	data, err := json.Marshal(seats)
	if err != nil {
		return nil, fmt.Errorf("encode seats of event %d: %w", eventID, err)
	}

	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.backendErrors.Add(1)
		c.logger.Warn("CACHE", fmt.Sprintf("Failed to populate %s: %v", key, err))
	} else {
		c.logger.LogCache("POPULATE", eventID, fmt.Sprintf("%d seats, ttl %s", len(seats), c.ttl))
	}
	return data, nil
}

func (c *SeatCache) GetAvailability(ctx context.Context, eventID int64) ([]models.SeatAvailability, error) {
	data, err := c.GetAvailabilityJSON(ctx, eventID)
	if err != nil {
		return nil, err
	}
	var seats []models.SeatAvailability
	if err := json.Unmarshal(data, &seats); err != nil {
		return nil, fmt.Errorf("decode seats of event %d: %w", eventID, err)
	}
	return seats, nil
}

// lookup treats any backend failure as a miss.
func (c *SeatCache) lookup(ctx context.Context, key string, eventID int64) (json.RawMessage, bool) {
	data, err := c.backend.Get(ctx, key)
	if err == nil {
		return data, true
	}
	if !errors.Is(err, ErrMiss) {
		c.backendErrors.Add(1)
		c.logger.Warn("CACHE", fmt.Sprintf("Read of %s failed, falling back to store: %v", key, err))
	}
	return nil, false
}

// ApplyIncrementalUpdate sets is_reserved for the given seats inside an
// existing entry and refreshes its TTL. Without an entry nothing happens.
func (c *SeatCache) ApplyIncrementalUpdate(ctx context.Context, eventID int64, updates map[int64]bool) error {
	if len(updates) == 0 {
		return nil
	}
	key := c.key(eventID)

	err := c.backend.Update(ctx, key, c.ttl, func(current []byte) ([]byte, error) {
		var seats []models.SeatAvailability
		if err := json.Unmarshal(current, &seats); err != nil {
			return nil, fmt.Errorf("decode cached seats: %w", err)
		}
		for i := range seats {
			if reserved, ok := updates[seats[i].ID]; ok {
				seats[i].IsReserved = reserved
			}
		}
		return json.Marshal(seats)
	})
	if err != nil {
		c.backendErrors.Add(1)
		return fmt.Errorf("update %s: %w", key, err)
	}
	c.logger.LogCache("UPDATE", eventID, fmt.Sprintf("%d seats", len(updates)))
	return nil
}

// MarkSeats is ApplyIncrementalUpdate with one flag for every seat.
func (c *SeatCache) MarkSeats(ctx context.Context, eventID int64, seatIDs []int64, reserved bool) error {
	updates := make(map[int64]bool, len(seatIDs))
	for _, id := range seatIDs {
		updates[id] = reserved
	}
	return c.ApplyIncrementalUpdate(ctx, eventID, updates)
}

func (c *SeatCache) Invalidate(ctx context.Context, eventID int64) error {
	if err := c.backend.Delete(ctx, c.key(eventID)); err != nil {
		c.backendErrors.Add(1)
		return fmt.Errorf("invalidate event %d: %w", eventID, err)
	}
	c.logger.LogCache("INVALIDATE", eventID, "entry dropped")
	return nil
}

func (c *SeatCache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Loads:         c.loads.Load(),
		BackendErrors: c.backendErrors.Load(),
	}
}
