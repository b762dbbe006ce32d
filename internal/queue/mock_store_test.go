package queue

import (
	"context"
	"sort"
	"sync"

	"github.com/alfredjeanlab/relayq/internal/model"
	"github.com/alfredjeanlab/relayq/internal/store"
)

// mockStore is an in-memory store.Store with error injection for tests.
type mockStore struct {
	mu       sync.Mutex
	events   map[string]*model.EventRecord
	counters model.SyncCounters
	meta     map[string][]byte

	upsertErr error
	deleteErr error
	loadErr   error

	upsertCalls int
	deleteCalls int
}

var _ store.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		events: make(map[string]*model.EventRecord),
		meta:   make(map[string][]byte),
	}
}

func (m *mockStore) UpsertEvents(_ context.Context, records []*model.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, rec := range records {
		cp := *rec
		m.events[rec.ID] = &cp
	}
	return nil
}

func (m *mockStore) DeleteEvents(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for _, id := range ids {
		delete(m.events, id)
	}
	return nil
}

func (m *mockStore) LoadEvents(_ context.Context) ([]*model.EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	records := make([]*model.EventRecord, 0, len(m.events))
	for _, rec := range m.events {
		cp := *rec
		records = append(records, &cp)
	}
	sort.Slice(records, func(i, j int) bool {
		ri, rj := records[i].Priority.Rank(), records[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return records[i].Seq < records[j].Seq
	})
	return records, nil
}

func (m *mockStore) ListEvents(_ context.Context, filter store.EventFilter) ([]*model.EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.EventRecord
	for _, rec := range m.events {
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		if filter.Priority != "" && rec.Priority != filter.Priority {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	// Oldest first, matching the store contract.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Seq < out[j].Seq
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockStore) PutCounters(_ context.Context, counters model.SyncCounters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = counters
	return nil
}

func (m *mockStore) GetCounters(_ context.Context) (model.SyncCounters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters, nil
}

func (m *mockStore) GetMeta(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.meta[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return value, nil
}

func (m *mockStore) SetMeta(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = value
	return nil
}

func (m *mockStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = make(map[string]*model.EventRecord)
	return nil
}

func (m *mockStore) Close() error { return nil }

func (m *mockStore) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
