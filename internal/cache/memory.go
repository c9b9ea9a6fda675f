package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore is an in-process cache used when no Redis is configured, and in
// tests. Values are stored JSON-encoded so hits behave exactly like the Redis
// backend. Eviction is FIFO once MaxEntries is exceeded.
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[string]*memoryEntry
	order      []string
	maxEntries int
	metrics    MetricsHooks
}

// NewMemoryStore creates an in-memory cache store. maxEntries <= 0 disables
// eviction.
func NewMemoryStore(maxEntries int, hooks MetricsHooks) *MemoryStore {
	return &MemoryStore{
		items:      make(map[string]*memoryEntry),
		order:      make([]string, 0, 128),
		maxEntries: maxEntries,
		metrics:    hooks,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string, dest interface{}) bool {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		if ok {
			m.mu.Lock()
			delete(m.items, key)
			m.removeFromOrder(key)
			m.mu.Unlock()
		}
		if m.metrics.OnMiss != nil {
			m.metrics.OnMiss(map[string]string{"backend": "memory"})
		}
		return false
	}

	if err := json.Unmarshal(e.payload, dest); err != nil {
		if m.metrics.OnError != nil {
			m.metrics.OnError(map[string]string{"backend": "memory", "op": "decode"})
		}
		return false
	}

	if m.metrics.OnHit != nil {
		m.metrics.OnHit(map[string]string{"backend": "memory"})
	}
	return true
}

func (m *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		if m.metrics.OnError != nil {
			m.metrics.OnError(map[string]string{"backend": "memory", "op": "encode"})
		}
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[key]; !exists {
		m.order = append(m.order, key)
	}
	m.items[key] = &memoryEntry{payload: payload, expiresAt: time.Now().Add(ttl)}
	m.evictIfNeeded()

	if m.metrics.OnStore != nil {
		m.metrics.OnStore(map[string]string{"backend": "memory"})
	}
}

// Invalidate drops every key with the given prefix and returns how many were
// removed.
func (m *MemoryStore) Invalidate(_ context.Context, prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.items {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(m.items, key)
			m.removeFromOrder(key)
			removed++
		}
	}

	if m.metrics.OnInvalidate != nil {
		m.metrics.OnInvalidate(map[string]string{"backend": "memory"})
	}
	return removed
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) removeFromOrder(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *MemoryStore) evictIfNeeded() {
	if m.maxEntries <= 0 || len(m.items) <= m.maxEntries {
		return
	}
	// Simple FIFO eviction; can be replaced with true LRU
	excess := len(m.items) - m.maxEntries
	for excess > 0 && len(m.order) > 0 {
		victim := m.order[0]
		m.order = m.order[1:]
		delete(m.items, victim)
		excess--
	}
}
