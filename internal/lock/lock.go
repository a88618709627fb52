// Package lock provides per-key mutual exclusion. The reservation store takes
// one lock per event before reading seat availability, and the seat cache takes
// one per event around a cold load.
package lock

import (
	"context"
	"sync"
)

// Locker acquires an exclusive lock on key. The returned unlock func is safe to
// call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type slot struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Slots are dropped once no goroutine holds
// or waits on them, so the map only grows with live contention.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(key, s)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, s *slot) {
	k.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}

// Len returns the number of keys currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
