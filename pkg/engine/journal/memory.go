package journal

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory journal store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

// NewMemoryStore creates a new in-memory journal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, rec Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	// Copy payload to avoid retaining caller's slice
	rec.Payload = append([]byte(nil), rec.Payload...)
	rec.Seq = int64(len(m.records)) + 1
	m.records = append(m.records, rec)
	return rec.Seq, nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, q Query) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := []Record{}
	for _, rec := range m.records {
		if rec.Seq <= q.AfterSeq {
			continue
		}
		if q.Kind != "" && rec.Kind != q.Kind {
			continue
		}
		rec.Payload = append([]byte(nil), rec.Payload...)
		out = append(out, rec)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Count implements Store.
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.records), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	return nil
}
