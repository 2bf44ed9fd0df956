package cache

import "sync"

// Memory implements Store with a map held in process memory.
// Entries are never evicted; they live until overwritten or the process exits.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Get implements Reader
func (m *Memory) Get(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

// Put implements Writer
func (m *Memory) Put(key string, entry Entry) {
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
}

// Len returns the number of stored entries, stale ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
