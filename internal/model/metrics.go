package model

import "time"

// QueueMetrics is an immutable aggregate snapshot of queue health.
// Callers receive a copy; mutating it has no effect on the queue.
type QueueMetrics struct {
	TotalEvents    int64 `json:"total_events"`
	PendingEvents  int64 `json:"pending_events"`
	SyncedEvents   int64 `json:"synced_events"`
	FailedEvents   int64 `json:"failed_events"`
	QueueSizeBytes int64 `json:"queue_size_bytes"`

	OldestEvent        *time.Time `json:"oldest_event,omitempty"`
	LastSyncAttempt    *time.Time `json:"last_sync_attempt,omitempty"`
	LastSuccessfulSync *time.Time `json:"last_successful_sync,omitempty"`

	// AvgSyncLatency is the rolling average cycle duration over a
	// fixed-window ring buffer of recent sync cycles.
	AvgSyncLatency time.Duration `json:"avg_sync_latency_ns"`

	// Conflicts counts collector-reported conflict resolutions by strategy.
	Conflicts map[ConflictResolution]int64 `json:"conflicts,omitempty"`
}

// QueueStatus is a lightweight liveness view of the queue.
type QueueStatus struct {
	Size      int  `json:"size"`
	IsOnline  bool `json:"is_online"`
	IsSyncing bool `json:"is_syncing"`
}
