package chkbookmark

import (
	"context"
	"strings"
	"sync"
)

// MemKV is an in-memory KV, grounded on the teacher's in-memory TTL stores
// (jobtracker.Tracker, checkpoint.Store): a map guarded by a RWMutex, no
// external dependency. Used by tests and by single-process dev deployments
// that run without Postgres.
type MemKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

func (m *MemKV) Upsert(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

func (m *MemKV) UpsertMany(_ context.Context, kv map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range kv {
		cp := make([]byte, len(v))
		copy(cp, v)
		m.data[k] = cp
	}
	return nil
}

func (m *MemKV) Fetch(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *MemKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemKV) Traverse(_ context.Context, prefix string, fn func(key string, value []byte) error) error {
	m.mu.RLock()
	type kv struct {
		k string
		v []byte
	}
	var snapshot []kv
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			cp := make([]byte, len(v))
			copy(cp, v)
			snapshot = append(snapshot, kv{k, cp})
		}
	}
	m.mu.RUnlock()

	for _, e := range snapshot {
		if err := fn(e.k, e.v); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemKV) Close() error { return nil }
