// Package queue implements the in-memory priority store at the heart of the
// offline event queue: priority+FIFO ordering, capacity eviction, age/retry
// expiry, dirty-tracked incremental persistence, and derived metrics.
//
// The queue is authoritative; the durable store is a crash-recovery shadow
// written asynchronously. Persistence failures are logged and absorbed.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alfredjeanlab/relayq/internal/events"
	"github.com/alfredjeanlab/relayq/internal/idgen"
	"github.com/alfredjeanlab/relayq/internal/model"
	"github.com/alfredjeanlab/relayq/internal/store"
)

// Queue is the priority store. All mutations go through Queue methods;
// no other component may touch a record directly.
type Queue struct {
	store     store.Store
	logger    *slog.Logger
	publisher events.Publisher
	collector *Collector

	// now is the injected clock; tests override it.
	now func() time.Time

	mu      sync.Mutex
	opts    Options
	records []*model.EventRecord
	index   map[string]*model.EventRecord
	seq     int64

	// dirty/deleted track IDs pending the next incremental persist.
	dirty   map[string]struct{}
	deleted map[string]struct{}

	flushSignal chan struct{}
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a queue backed by the given durable store. The publisher may
// be nil, in which case lifecycle events are discarded.
func New(st store.Store, opts Options, logger *slog.Logger, publisher events.Publisher) *Queue {
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Queue{
		store:       st,
		logger:      logger,
		publisher:   publisher,
		collector:   NewCollector(),
		now:         time.Now,
		opts:        opts,
		index:       make(map[string]*model.EventRecord),
		dirty:       make(map[string]struct{}),
		deleted:     make(map[string]struct{}),
		flushSignal: make(chan struct{}, 1),
	}
}

// Load reconstructs the in-memory store from the durable store. It must run
// before any sync activity begins.
func (q *Queue) Load(ctx context.Context) error {
	records, err := q.store.LoadEvents(ctx)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	counters, err := q.store.GetCounters(ctx)
	if err != nil {
		return fmt.Errorf("load counters: %w", err)
	}

	q.mu.Lock()
	q.records = records
	q.index = make(map[string]*model.EventRecord, len(records))
	for _, rec := range records {
		q.index[rec.ID] = rec
		if rec.Seq > q.seq {
			q.seq = rec.Seq
		}
	}
	q.recomputeLocked()
	q.mu.Unlock()

	q.collector.Seed(counters)
	q.collector.addTotal(len(records))
	return nil
}

// Start launches the background persistence flusher and the expiry sweeper.
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	q.wg.Add(2)
	go func() {
		defer q.wg.Done()
		q.flushLoop(ctx)
	}()
	go func() {
		defer q.wg.Done()
		q.sweepLoop(ctx)
	}()
}

// Stop cancels the background loops and runs a final flush so a clean
// shutdown leaves nothing unpersisted.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	if err := q.Flush(context.Background()); err != nil {
		q.logger.Error("final flush failed", "err", err)
	}
}

// Enqueue constructs an event record, inserts it preserving priority+FIFO
// order, evicts under capacity pressure, and schedules an asynchronous
// persist. It returns the new ID immediately without blocking on
// persistence. The only error cause is invalid input.
func (q *Queue) Enqueue(typ model.EventType, payload json.RawMessage, priority model.Priority, meta model.Metadata) (string, error) {
	if err := model.ValidateEnqueue(typ, payload, priority); err != nil {
		return "", err
	}
	id, err := idgen.Generate()
	if err != nil {
		return "", err
	}

	now := q.now().UTC()

	q.mu.Lock()
	q.seq++
	rec := &model.EventRecord{
		ID:        id,
		Type:      typ,
		Timestamp: now,
		Payload:   payload,
		Priority:  priority,
		ExpiresAt: now.Add(q.opts.MaxEventAge),
		Metadata:  meta,
		Seq:       q.seq,
	}

	var evicted []*model.EventRecord
	for len(q.records) >= q.opts.MaxQueueSize && len(q.records) > 0 {
		victim := q.evictLocked()
		if victim == nil {
			break
		}
		evicted = append(evicted, victim)
	}

	q.insertLocked(rec)
	q.dirty[rec.ID] = struct{}{}
	q.recomputeLocked()
	q.mu.Unlock()

	q.collector.noteEnqueued()
	q.signalFlush()

	for _, victim := range evicted {
		q.publish(events.TopicEventEvicted, events.EventEvicted{ID: victim.ID, Priority: victim.Priority})
	}
	q.publish(events.TopicEventEnqueued, events.EventEnqueued{ID: rec.ID, Type: rec.Type, Priority: rec.Priority})

	return id, nil
}

// PeekBatch returns copies of the first n records in store order without
// removing them. The sync engine submits batches exactly in this order.
func (q *Queue) PeekBatch(n int) []model.EventRecord {
	if n <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.records) {
		n = len(q.records)
	}
	batch := make([]model.EventRecord, 0, n)
	for _, rec := range q.records[:n] {
		batch = append(batch, *rec)
	}
	return batch
}

// Remove deletes the record with the given ID. Removing a non-existent ID
// is a no-op; the return value reports whether a record was removed.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	_, ok := q.removeLocked(id)
	if ok {
		q.recomputeLocked()
	}
	q.mu.Unlock()
	if ok {
		q.signalFlush()
	}
	return ok
}

// IncrementRetry advances the retry count for the given ID. It returns the
// new count and whether the record exists; unknown IDs are a no-op.
func (q *Queue) IncrementRetry(id string) (int, bool) {
	q.mu.Lock()
	rec, ok := q.index[id]
	if !ok {
		q.mu.Unlock()
		return 0, false
	}
	rec.RetryCount++
	count := rec.RetryCount
	q.dirty[id] = struct{}{}
	q.mu.Unlock()
	q.signalFlush()
	return count, true
}

// Size returns the number of pending records.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Sweep removes expired records and records past the retry ceiling,
// independent of capacity pressure. It returns the removal counts.
func (q *Queue) Sweep() (expired, dropped int) {
	now := q.now().UTC()

	q.mu.Lock()
	maxRetries := q.opts.MaxRetries
	var expiredRecs, droppedRecs []*model.EventRecord
	for _, rec := range q.records {
		switch {
		case rec.Expired(now):
			expiredRecs = append(expiredRecs, rec)
		case rec.RetryCount >= maxRetries:
			droppedRecs = append(droppedRecs, rec)
		}
	}
	for _, rec := range expiredRecs {
		q.removeLocked(rec.ID)
	}
	for _, rec := range droppedRecs {
		q.removeLocked(rec.ID)
	}
	if len(expiredRecs)+len(droppedRecs) > 0 {
		q.recomputeLocked()
	}
	q.mu.Unlock()

	if len(droppedRecs) > 0 {
		q.collector.AddFailed(len(droppedRecs))
	}
	for _, rec := range expiredRecs {
		q.publish(events.TopicEventExpired, events.EventExpired{ID: rec.ID, ExpiresAt: rec.ExpiresAt})
	}
	for _, rec := range droppedRecs {
		q.publish(events.TopicEventDropped, events.EventDropped{ID: rec.ID, RetryCount: rec.RetryCount})
	}
	if len(expiredRecs)+len(droppedRecs) > 0 {
		q.signalFlush()
	}
	return len(expiredRecs), len(droppedRecs)
}

// Clear removes every pending record from memory and the durable store.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	q.records = nil
	q.index = make(map[string]*model.EventRecord)
	q.dirty = make(map[string]struct{})
	q.deleted = make(map[string]struct{})
	q.recomputeLocked()
	q.mu.Unlock()

	if err := q.store.Clear(ctx); err != nil {
		q.logger.Error("clear durable store failed", "err", err)
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}

// Flush applies the dirty set to the durable store as incremental upserts
// and deletes, then persists the monotonic counters blob. On failure the
// affected IDs are re-marked dirty for the next cycle.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	upserts := make([]*model.EventRecord, 0, len(q.dirty))
	for id := range q.dirty {
		if rec, ok := q.index[id]; ok {
			cp := *rec
			upserts = append(upserts, &cp)
		}
	}
	deletes := make([]string, 0, len(q.deleted))
	for id := range q.deleted {
		deletes = append(deletes, id)
	}
	q.dirty = make(map[string]struct{})
	q.deleted = make(map[string]struct{})
	q.mu.Unlock()

	if err := q.store.UpsertEvents(ctx, upserts); err != nil {
		q.remarkDirty(upserts, nil)
		return fmt.Errorf("persist upserts: %w", err)
	}
	if err := q.store.DeleteEvents(ctx, deletes); err != nil {
		q.remarkDirty(nil, deletes)
		return fmt.Errorf("persist deletes: %w", err)
	}
	if err := q.store.PutCounters(ctx, q.collector.Counters()); err != nil {
		return fmt.Errorf("persist counters: %w", err)
	}
	return nil
}

// Metrics returns an immutable snapshot of the queue metrics.
func (q *Queue) Metrics() model.QueueMetrics {
	return q.collector.Snapshot()
}

// Collector exposes the metrics collector so the sync engine can advance
// the monotonic counters and stamp cycle times.
func (q *Queue) Collector() *Collector {
	return q.collector
}

// Options returns a copy of the current queue options.
func (q *Queue) Options() Options {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.opts
}

// UpdateOptions applies a partial live update and returns the new options.
func (q *Queue) UpdateOptions(patch OptionsPatch) Options {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.opts = q.opts.Apply(patch)
	return q.opts
}

// --- internals ---

// insertLocked places rec at the position preserving priority-descending,
// FIFO-within-priority order. New records always follow existing records of
// equal priority because their sequence number is larger.
func (q *Queue) insertLocked(rec *model.EventRecord) {
	rank := rec.Priority.Rank()
	idx := sort.Search(len(q.records), func(i int) bool {
		return q.records[i].Priority.Rank() < rank
	})
	q.records = append(q.records, nil)
	copy(q.records[idx+1:], q.records[idx:])
	q.records[idx] = rec
	q.index[rec.ID] = rec
}

func (q *Queue) removeLocked(id string) (*model.EventRecord, bool) {
	rec, ok := q.index[id]
	if !ok {
		return nil, false
	}
	delete(q.index, id)
	for i, r := range q.records {
		if r == rec {
			q.records = append(q.records[:i], q.records[i+1:]...)
			break
		}
	}
	delete(q.dirty, id)
	q.deleted[id] = struct{}{}
	return rec, true
}

// evictLocked removes and returns one record under capacity pressure: the
// oldest low-priority record, or, when no low-priority record exists, the
// globally oldest record regardless of priority. The fallback can evict
// critical records; callers relying on critical delivery should size
// MaxQueueSize accordingly.
func (q *Queue) evictLocked() *model.EventRecord {
	var victim *model.EventRecord
	for _, rec := range q.records {
		if rec.Priority != model.PriorityLow {
			continue
		}
		if victim == nil || rec.Timestamp.Before(victim.Timestamp) {
			victim = rec
		}
	}
	if victim == nil {
		for _, rec := range q.records {
			if victim == nil || rec.Timestamp.Before(victim.Timestamp) {
				victim = rec
			}
		}
	}
	if victim == nil {
		return nil
	}
	q.removeLocked(victim.ID)
	return victim
}

// recomputeLocked refreshes the derived gauges after a store mutation.
func (q *Queue) recomputeLocked() {
	var bytes int64
	var oldest *time.Time
	for _, rec := range q.records {
		bytes += int64(rec.Size())
		if oldest == nil || rec.Timestamp.Before(*oldest) {
			ts := rec.Timestamp
			oldest = &ts
		}
	}
	q.collector.setGauges(len(q.records), bytes, oldest)
}

func (q *Queue) remarkDirty(upserts []*model.EventRecord, deletes []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, rec := range upserts {
		if _, ok := q.index[rec.ID]; ok {
			q.dirty[rec.ID] = struct{}{}
		}
	}
	for _, id := range deletes {
		q.deleted[id] = struct{}{}
	}
}

func (q *Queue) signalFlush() {
	select {
	case q.flushSignal <- struct{}{}:
	default:
	}
}

func (q *Queue) publish(topic string, event any) {
	if err := q.publisher.Publish(context.Background(), topic, event); err != nil {
		q.logger.Error("event publish failed", "topic", topic, "err", err)
	}
}

func (q *Queue) flushLoop(ctx context.Context) {
	q.mu.Lock()
	interval := q.opts.FlushInterval
	q.mu.Unlock()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.flushSignal:
		case <-ticker.C:
		}
		if err := q.Flush(ctx); err != nil && ctx.Err() == nil {
			q.logger.Error("persistence flush failed", "err", err)
		}
	}
}

func (q *Queue) sweepLoop(ctx context.Context) {
	q.mu.Lock()
	interval := q.opts.CleanupInterval
	q.mu.Unlock()
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, dropped := q.Sweep()
			if expired > 0 || dropped > 0 {
				q.logger.Info("expiry sweep", "expired", expired, "dropped", dropped)
			}
		}
	}
}
