package queue

import (
	"time"

	"github.com/alfredjeanlab/relayq/internal/model"
)

// Options are the runtime-tunable queue settings. They are distinct from
// process configuration: a subset can be changed live via an OptionsPatch.
type Options struct {
	// MaxQueueSize bounds the in-memory store; enqueueing at or above this
	// size triggers capacity eviction.
	MaxQueueSize int

	// MaxEventAge fixes each record's expires_at at creation time.
	MaxEventAge time.Duration

	// MaxRetries is the per-event retry ceiling; a record reaching it is dropped.
	MaxRetries int

	// SyncInterval is the baseline sync timer cadence.
	SyncInterval time.Duration

	// BatchSize caps how many records a sync cycle selects.
	BatchSize int

	// CleanupInterval is the cadence of the age/retry expiry sweep.
	CleanupInterval time.Duration

	// FlushInterval is the cadence of the background persistence flush.
	// Mutations also signal an immediate flush.
	FlushInterval time.Duration

	// CompressionEnabled gzip-compresses batch submissions to the collector.
	CompressionEnabled bool

	// ConflictStrategy is the client's preferred conflict resolution policy,
	// forwarded to the collector with every batch.
	ConflictStrategy model.ConflictResolution
}

// DefaultOptions returns the standard queue settings.
func DefaultOptions() Options {
	return Options{
		MaxQueueSize:       1000,
		MaxEventAge:        7 * 24 * time.Hour,
		MaxRetries:         3,
		SyncInterval:       30 * time.Second,
		BatchSize:          50,
		CleanupInterval:    time.Minute,
		FlushInterval:      time.Second,
		CompressionEnabled: false,
		ConflictStrategy:   model.ConflictClientWins,
	}
}

// OptionsPatch is a partial live update; nil fields keep their current value.
type OptionsPatch struct {
	MaxQueueSize       *int
	MaxEventAge        *time.Duration
	MaxRetries         *int
	SyncInterval       *time.Duration
	BatchSize          *int
	CompressionEnabled *bool
	ConflictStrategy   *model.ConflictResolution
}

// Apply returns a copy of o with the patch's non-nil fields applied.
// Non-positive sizes, counts, and intervals are ignored: a zero or negative
// MaxQueueSize would drain the queue on the next enqueue, a non-positive
// MaxRetries would drop every record at the next sweep, and a non-positive
// BatchSize would break batch selection.
func (o Options) Apply(p OptionsPatch) Options {
	if p.MaxQueueSize != nil && *p.MaxQueueSize > 0 {
		o.MaxQueueSize = *p.MaxQueueSize
	}
	if p.MaxEventAge != nil && *p.MaxEventAge > 0 {
		o.MaxEventAge = *p.MaxEventAge
	}
	if p.MaxRetries != nil && *p.MaxRetries > 0 {
		o.MaxRetries = *p.MaxRetries
	}
	if p.SyncInterval != nil && *p.SyncInterval > 0 {
		o.SyncInterval = *p.SyncInterval
	}
	if p.BatchSize != nil && *p.BatchSize > 0 {
		o.BatchSize = *p.BatchSize
	}
	if p.CompressionEnabled != nil {
		o.CompressionEnabled = *p.CompressionEnabled
	}
	if p.ConflictStrategy != nil {
		o.ConflictStrategy = *p.ConflictStrategy
	}
	return o
}
