package cache

import (
	"sync"
	"time"
)

type entry struct {
	value      interface{}
	insertedAt time.Time
}

// Memo is a process-wide read-through memo with a single TTL. Entries are
// only overwritten on refresh, never evicted. Constructed once at startup
// and injected into the handlers that need it.
type Memo struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New creates a memo with the given TTL.
func New(ttl time.Duration) *Memo {
	return &Memo{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the cached value for key when it exists and is fresh.
func (m *Memo) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.now().Sub(e.insertedAt) > m.ttl {
		return nil, false
	}
	return e.value, true
}

// Set stores a value for key, restarting its TTL.
func (m *Memo) Set(key string, value interface{}) {
	m.mu.Lock()
	m.entries[key] = entry{value: value, insertedAt: m.now()}
	m.mu.Unlock()
}

// GetOrFill returns the fresh cached value for key or calls fill to produce
// one. fill runs outside the lock: concurrent misses for the same key may
// duplicate work, which is accepted in exchange for never blocking a reader
// on another caller's in-flight fetch. A fill error is returned as-is and
// nothing is cached.
func (m *Memo) GetOrFill(key string, fill func() (interface{}, error)) (interface{}, error) {
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	v, err := fill()
	if err != nil {
		return nil, err
	}
	m.Set(key, v)
	return v, nil
}
