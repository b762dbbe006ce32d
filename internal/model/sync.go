package model

import "time"

// ConflictResolution is the collector's report of how divergent
// client/server state for an event was reconciled.
type ConflictResolution string

const (
	ConflictClientWins ConflictResolution = "client_wins"
	ConflictServerWins ConflictResolution = "server_wins"
	ConflictMerged     ConflictResolution = "merged"
)

// String returns the string representation of the conflict resolution.
func (c ConflictResolution) String() string {
	return string(c)
}

// IsValid checks whether the conflict resolution is a known value.
func (c ConflictResolution) IsValid() bool {
	switch c {
	case ConflictClientWins, ConflictServerWins, ConflictMerged:
		return true
	}
	return false
}

// SyncResult is the collector's per-event verdict for one submitted event.
type SyncResult struct {
	Success            bool               `json:"success"`
	EventID            string             `json:"event_id"`
	Error              string             `json:"error,omitempty"`
	ServerTimestamp    *time.Time         `json:"server_timestamp,omitempty"`
	ConflictResolution ConflictResolution `json:"conflict_resolution,omitempty"`
}

// SyncCounters are the monotonic sync counters persisted across restarts
// as a single keyed blob in the durable store.
type SyncCounters struct {
	SyncedEvents int64 `json:"synced_events"`
	FailedEvents int64 `json:"failed_events"`
}
