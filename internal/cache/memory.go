package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
	version uint64
}

// MemoryBackend keeps entries in a versioned map. It serves single-instance
// deployments and tests. Versions come from one backend-wide sequence, so a
// key that was deleted or expired and then written again never reuses a
// version an in-flight Update has already read.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	seq     uint64
	Now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		Now:     time.Now,
	}
}

// lookup must be called with mu held.
func (m *MemoryBackend) lookup(key string) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.Now().Before(entry.expires) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

// nextVersion must be called with mu held.
func (m *MemoryBackend) nextVersion() uint64 {
	m.seq++
	return m.seq
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.lookup(key)
	if !ok {
		return nil, ErrMiss
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = memoryEntry{
		value:   stored,
		expires: m.Now().Add(ttl),
		version: m.nextVersion(),
	}
	return nil
}

func (m *MemoryBackend) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) error {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.mu.Lock()
		entry, ok := m.lookup(key)
		m.mu.Unlock()
		if !ok {
			return nil
		}

		current := make([]byte, len(entry.value))
		copy(current, entry.value)
		next, err := fn(current)
		if err != nil {
			return err
		}

		m.mu.Lock()
		latest, ok := m.lookup(key)
		if !ok {
			m.mu.Unlock()
			return nil
		}
		if latest.version != entry.version {
			m.mu.Unlock()
			continue
		}
		m.entries[key] = memoryEntry{
			value:   next,
			expires: m.Now().Add(ttl),
			version: m.nextVersion(),
		}
		m.mu.Unlock()
		return nil
	}
	return ErrConflict
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
