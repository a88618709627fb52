package sse

import (
	"context"
	"sync"
	"sync/atomic"

	"ms-reservation/internal/models"
)

const clientBuffer = 16

// Subscription is one client's feed of seat changes for an event.
type Subscription struct {
	C      <-chan models.SeatStatusChangeEvent
	ch     chan models.SeatStatusChangeEvent
	lagged atomic.Bool
}

// Lagged reports whether a change was dropped since the last call. A lagged
// client must reload the full seat map; the flag is cleared by the call.
func (s *Subscription) Lagged() bool {
	return s.lagged.Swap(false)
}

// SeatEventEmitter fans seat status changes out to the live subscribers of
// each event.
type SeatEventEmitter struct {
	mu      sync.RWMutex
	clients map[int64][]*Subscription
}

func NewSeatEventEmitter() *SeatEventEmitter {
	return &SeatEventEmitter{clients: make(map[int64][]*Subscription)}
}

// Subscribe registers a client for eventID. Its channel is closed once ctx is done.
func (e *SeatEventEmitter) Subscribe(ctx context.Context, eventID int64) *Subscription {
	clientChan := make(chan models.SeatStatusChangeEvent, clientBuffer)
	sub := &Subscription{C: clientChan, ch: clientChan}

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], sub)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(eventID, sub)
	}()

	return sub
}

// Emit never blocks. A client whose buffer is full misses the change and is
// marked lagged.
func (e *SeatEventEmitter) Emit(evt models.SeatStatusChangeEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, sub := range e.clients[evt.EventID] {
		select {
		case sub.ch <- evt:
		default:
			sub.lagged.Store(true)
		}
	}
}

func (e *SeatEventEmitter) remove(eventID int64, sub *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, s := range clients {
		if s == sub {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(sub.ch)
			break
		}
	}
	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

// ClientCount returns the number of clients currently subscribed to an event
func (e *SeatEventEmitter) ClientCount(eventID int64) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}
