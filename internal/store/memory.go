package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Memory is an in-process Store. It backs tests and STORE_DRIVER=memory.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]json.RawMessage
	hub  *Hub
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	m := &Memory{data: map[string]map[string]json.RawMessage{}}
	m.hub = NewHub(m.List)
	return m
}

func (m *Memory) List(_ context.Context, coll string) ([]Record, error) {
	if err := CheckCollection(coll); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.data[coll]))
	for id, body := range m.data[coll] {
		out = append(out, Record{ID: id, Data: append(json.RawMessage(nil), body...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Get(_ context.Context, coll, id string) (Record, error) {
	if err := CheckCollection(coll); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.data[coll][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return Record{ID: id, Data: append(json.RawMessage(nil), body...)}, nil
}

func (m *Memory) FindBy(ctx context.Context, coll, field, value string) ([]Record, error) {
	if err := CheckField(field); err != nil {
		return nil, err
	}
	all, err := m.List(ctx, coll)
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, r := range all {
		if FieldEquals(r.Data, field, value) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) Push(_ context.Context, coll string, doc json.RawMessage) (string, error) {
	if err := CheckCollection(coll); err != nil {
		return "", err
	}
	body, err := Merge(doc, nil)
	if err != nil {
		return "", err
	}
	id := NewID()
	m.mu.Lock()
	if m.data[coll] == nil {
		m.data[coll] = map[string]json.RawMessage{}
	}
	m.data[coll][id] = body
	m.mu.Unlock()
	m.hub.Notify(coll)
	return id, nil
}

func (m *Memory) Update(ctx context.Context, coll, id string, patch map[string]any) error {
	ok, err := m.UpdateIf(ctx, coll, id, nil, patch)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// UpdateIf returns ErrNotFound for a missing id and false when cond fails.
func (m *Memory) UpdateIf(_ context.Context, coll, id string, cond, patch map[string]any) (bool, error) {
	if err := CheckCollection(coll); err != nil {
		return false, err
	}
	m.mu.Lock()
	body, ok := m.data[coll][id]
	if !ok {
		m.mu.Unlock()
		return false, ErrNotFound
	}
	match, err := Matches(body, cond)
	if err != nil || !match {
		m.mu.Unlock()
		return false, err
	}
	next, err := Merge(body, patch)
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	m.data[coll][id] = next
	m.mu.Unlock()
	m.hub.Notify(coll)
	return true, nil
}

func (m *Memory) Delete(_ context.Context, coll, id string) error {
	if err := CheckCollection(coll); err != nil {
		return err
	}
	m.mu.Lock()
	if _, ok := m.data[coll][id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.data[coll], id)
	m.mu.Unlock()
	m.hub.Notify(coll)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, coll string) (<-chan []Record, error) {
	return m.hub.Subscribe(ctx, coll)
}
