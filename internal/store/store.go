// Package store defines the durable local persistence interface for the
// event queue. The in-memory queue remains authoritative; the store is a
// crash-recovery substrate written to incrementally, keyed by event ID.
package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/relayq/internal/model"
)

// ErrNotFound is returned when a requested record or meta key does not exist.
var ErrNotFound = errors.New("store: not found")

// EventFilter narrows diagnostic event listings. Zero values mean "any".
type EventFilter struct {
	Type     model.EventType
	Priority model.Priority
	Limit    int
}

// Store is the transactional durable object store backing the queue.
// Write transactions are serialized by the implementation; they are never
// interleaved.
type Store interface {
	// UpsertEvents inserts or replaces the given records in one transaction.
	UpsertEvents(ctx context.Context, records []*model.EventRecord) error

	// DeleteEvents removes the records with the given IDs in one transaction.
	// Unknown IDs are ignored.
	DeleteEvents(ctx context.Context, ids []string) error

	// LoadEvents returns every persisted record ordered by priority rank
	// descending, then sequence ascending (store order).
	LoadEvents(ctx context.Context) ([]*model.EventRecord, error)

	// ListEvents returns records matching the filter, oldest first.
	// Secondary lookups by timestamp/type/priority exist for diagnostics only.
	ListEvents(ctx context.Context, filter EventFilter) ([]*model.EventRecord, error)

	// PutCounters stores the monotonic sync counters as a single keyed blob.
	PutCounters(ctx context.Context, counters model.SyncCounters) error

	// GetCounters loads the persisted sync counters. A store that has never
	// persisted counters returns zero counters and no error.
	GetCounters(ctx context.Context) (model.SyncCounters, error)

	// GetMeta / SetMeta read and write small keyed metadata blobs
	// (e.g. the stable device ID).
	GetMeta(ctx context.Context, key string) ([]byte, error)
	SetMeta(ctx context.Context, key string, value []byte) error

	// Clear removes all persisted events. Counters and meta are retained.
	Clear(ctx context.Context) error

	// Lifecycle
	Close() error
}
