package cache

import (
	"sync"
	"time"
)

// memoryStore is the bounded in-memory tier. Overflow evicts the
// oldest-inserted entry; reads do not refresh insertion order.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
	max     int
}

func newMemoryStore(max int) *memoryStore {
	return &memoryStore{
		entries: make(map[string]*Entry),
		max:     max,
	}
}

func (m *memoryStore) get(key string, now time.Time) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if entry.Expired(now) {
		m.removeLocked(key)
		return nil, false
	}
	return entry, true
}

func (m *memoryStore) put(key string, entry *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists {
		for len(m.order) >= m.max {
			m.removeLocked(m.order[0])
		}
		m.order = append(m.order, key)
	}
	m.entries[key] = entry
}

func (m *memoryStore) removeLocked(key string) {
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *memoryStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
