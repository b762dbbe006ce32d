package model

import (
	"encoding/json"
	"time"
)

// EventType categorizes the kind of client event being queued.
type EventType string

const (
	TypeDetection   EventType = "detection"
	TypePerformance EventType = "performance"
	TypeError       EventType = "error"
	TypeInteraction EventType = "interaction"
	TypeSystem      EventType = "system"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsValid checks whether the event type is a known value.
func (t EventType) IsValid() bool {
	switch t {
	case TypeDetection, TypePerformance, TypeError, TypeInteraction, TypeSystem:
		return true
	}
	return false
}

// Priority orders delivery importance. Higher-priority events are always
// attempted before lower-priority ones.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// IsValid checks whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank returns the numeric ordering of the priority: critical > high >
// medium > low. Unknown priorities rank below low.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Metadata carries per-event client context forwarded to the collector.
type Metadata struct {
	SessionID     string `json:"session_id,omitempty"`
	DeviceID      string `json:"device_id,omitempty"`
	SchemaVersion string `json:"schema_version,omitempty"`
}

// EventRecord is one queued unit of work. Records are immutable once
// created except for RetryCount, which only the sync engine advances.
type EventRecord struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
	RetryCount int             `json:"retry_count"`
	Priority   Priority        `json:"priority"`
	ExpiresAt  time.Time       `json:"expires_at"`
	Metadata   Metadata        `json:"metadata"`

	// Seq is the insertion sequence number. It breaks ties between records
	// of equal priority so that store order stays FIFO across restarts.
	Seq int64 `json:"seq"`
}

// Expired reports whether the record's lifetime has elapsed at the given time.
func (e *EventRecord) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Size returns the serialized payload size in bytes, used for the
// queue-size-bytes metric.
func (e *EventRecord) Size() int {
	return len(e.Payload)
}
