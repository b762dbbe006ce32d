package queue

import (
	"sync"
	"time"

	"github.com/alfredjeanlab/relayq/internal/model"
)

// latencyWindow is the size of the sync-latency ring buffer.
const latencyWindow = 20

// Collector derives and exposes aggregate queue health. Gauges
// (pending/bytes/oldest) are recomputed by the queue on every store
// mutation; the synced/failed counters are monotonic and advanced only by
// the sync engine.
type Collector struct {
	mu sync.Mutex

	totalEnqueued int64
	pending       int64
	queueBytes    int64
	synced        int64
	failed        int64

	oldestEvent        *time.Time
	lastSyncAttempt    *time.Time
	lastSuccessfulSync *time.Time

	latencies [latencyWindow]time.Duration
	latIdx    int
	latCount  int

	conflicts map[model.ConflictResolution]int64
}

// NewCollector returns an empty metrics collector.
func NewCollector() *Collector {
	return &Collector{conflicts: make(map[model.ConflictResolution]int64)}
}

// Seed restores the persisted monotonic counters on startup.
func (c *Collector) Seed(counters model.SyncCounters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synced = counters.SyncedEvents
	c.failed = counters.FailedEvents
}

// Counters returns the monotonic counters for persistence.
func (c *Collector) Counters() model.SyncCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.SyncCounters{SyncedEvents: c.synced, FailedEvents: c.failed}
}

func (c *Collector) setGauges(pending int, bytes int64, oldest *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = int64(pending)
	c.queueBytes = bytes
	c.oldestEvent = oldest
}

func (c *Collector) noteEnqueued() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalEnqueued++
}

// addTotal accounts records restored from the durable store on startup.
func (c *Collector) addTotal(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalEnqueued += int64(n)
}

// AddSynced advances the monotonic synced counter.
func (c *Collector) AddSynced(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synced += int64(n)
}

// AddFailed advances the monotonic failed counter.
func (c *Collector) AddFailed(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed += int64(n)
}

// AddConflict counts a collector-reported conflict resolution.
func (c *Collector) AddConflict(res model.ConflictResolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conflicts[res]++
}

// RecordSyncAttempt stamps the start of a sync cycle.
func (c *Collector) RecordSyncAttempt(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := t
	c.lastSyncAttempt = &ts
}

// RecordSyncSuccess stamps a completed sync cycle and appends its duration
// to the latency ring buffer.
func (c *Collector) RecordSyncSuccess(t time.Time, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := t
	c.lastSuccessfulSync = &ts
	c.latencies[c.latIdx] = d
	c.latIdx = (c.latIdx + 1) % latencyWindow
	if c.latCount < latencyWindow {
		c.latCount++
	}
}

// Snapshot returns an immutable copy of the current metrics.
func (c *Collector) Snapshot() model.QueueMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := model.QueueMetrics{
		TotalEvents:    c.totalEnqueued,
		PendingEvents:  c.pending,
		SyncedEvents:   c.synced,
		FailedEvents:   c.failed,
		QueueSizeBytes: c.queueBytes,
		AvgSyncLatency: c.avgLatencyLocked(),
	}
	if c.oldestEvent != nil {
		ts := *c.oldestEvent
		m.OldestEvent = &ts
	}
	if c.lastSyncAttempt != nil {
		ts := *c.lastSyncAttempt
		m.LastSyncAttempt = &ts
	}
	if c.lastSuccessfulSync != nil {
		ts := *c.lastSuccessfulSync
		m.LastSuccessfulSync = &ts
	}
	if len(c.conflicts) > 0 {
		m.Conflicts = make(map[model.ConflictResolution]int64, len(c.conflicts))
		for k, v := range c.conflicts {
			m.Conflicts[k] = v
		}
	}
	return m
}

func (c *Collector) avgLatencyLocked() time.Duration {
	if c.latCount == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < c.latCount; i++ {
		total += c.latencies[i]
	}
	return total / time.Duration(c.latCount)
}
