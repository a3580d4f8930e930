package adjust

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Repository. Rows keep insertion order.
type Memory struct {
	mu    sync.Mutex
	keys  []string
	byKey map[string]Adjustment
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{byKey: make(map[string]Adjustment)}
}

func (m *Memory) Upsert(_ context.Context, a Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if old, ok := m.byKey[a.Key]; ok {
		old.SubtitlePath = a.SubtitlePath
		old.Start = a.Start
		old.End = a.End
		old.UpdatedAt = now
		m.byKey[a.Key] = old
		return nil
	}
	a.CreatedAt, a.UpdatedAt = now, now
	m.keys = append(m.keys, a.Key)
	m.byKey[a.Key] = a
	return nil
}

func (m *Memory) DeleteByKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteWhere(func(a Adjustment) bool { return a.Key == key })
	return nil
}

func (m *Memory) DeleteByFileHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteWhere(func(a Adjustment) bool { return a.SubtitleHash == hash })
	return nil
}

func (m *Memory) deleteWhere(match func(Adjustment) bool) {
	keys := m.keys[:0]
	for _, k := range m.keys {
		if match(m.byKey[k]) {
			delete(m.byKey, k)
			continue
		}
		keys = append(keys, k)
	}
	m.keys = keys
}

func (m *Memory) FindByKey(_ context.Context, key string) (*Adjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byKey[key]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) FindByPath(_ context.Context, path string) ([]Adjustment, error) {
	return m.filter(func(a Adjustment) bool { return a.SubtitlePath == path }), nil
}

func (m *Memory) FindByHash(_ context.Context, hash string) ([]Adjustment, error) {
	return m.filter(func(a Adjustment) bool { return a.SubtitleHash == hash }), nil
}

func (m *Memory) filter(match func(Adjustment) bool) []Adjustment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Adjustment
	for _, k := range m.keys {
		if a := m.byKey[k]; match(a) {
			out = append(out, a)
		}
	}
	return out
}
