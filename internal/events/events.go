package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/relayq/internal/model"
)

// Event topic constants
const (
	TopicEventEnqueued = "relayq.event.enqueued"
	TopicEventSynced   = "relayq.event.synced"
	TopicEventDropped  = "relayq.event.dropped"
	TopicEventExpired  = "relayq.event.expired"
	TopicEventEvicted  = "relayq.event.evicted"

	// Sync cycle lifecycle events
	TopicSyncCompleted = "relayq.sync.completed"
	TopicSyncFailed    = "relayq.sync.failed"
)

// Event types

type EventEnqueued struct {
	ID       string          `json:"id"`
	Type     model.EventType `json:"type"`
	Priority model.Priority  `json:"priority"`
}

type EventSynced struct {
	ID                 string                   `json:"id"`
	ConflictResolution model.ConflictResolution `json:"conflict_resolution,omitempty"`
}

// EventDropped is emitted when a record hits its retry ceiling.
type EventDropped struct {
	ID         string `json:"id"`
	RetryCount int    `json:"retry_count"`
}

// EventExpired is emitted when the age sweep removes a record.
type EventExpired struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EventEvicted is emitted when capacity pressure removes a record.
type EventEvicted struct {
	ID       string         `json:"id"`
	Priority model.Priority `json:"priority"`
}

type SyncCompleted struct {
	BatchSize int           `json:"batch_size"`
	Synced    int           `json:"synced"`
	Rejected  int           `json:"rejected"`
	Duration  time.Duration `json:"duration_ns"`
}

type SyncFailed struct {
	BatchSize int    `json:"batch_size"`
	Error     string `json:"error"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
