package session

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local Store used when Redis is unavailable. Expired
// entries are dropped lazily on Get.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
	Now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]Entry{}, Now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(key)
}

func (m *Memory) Take(_ context.Context, key string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(key)
	delete(m.entries, key)
	return e, err
}

func (m *Memory) lookup(key string) (Entry, error) {
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if !e.ExpiresAt.After(m.Now()) {
		delete(m.entries, key)
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) Set(_ context.Context, key string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	return nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
