// Package sync implements the network-aware synchronization engine: batch
// selection in store order, per-event reconciliation of collector verdicts,
// and transport-level backoff.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/relayq/internal/events"
	"github.com/alfredjeanlab/relayq/internal/model"
	"github.com/alfredjeanlab/relayq/internal/netstatus"
	"github.com/alfredjeanlab/relayq/internal/queue"
)

// ErrOffline is returned by ForceSync when the collector is unreachable.
var ErrOffline = errors.New("sync: offline")

// Engine runs the sync control loop. At most one cycle is in flight;
// triggers arriving while a cycle runs are dropped and the next timer tick
// re-evaluates.
type Engine struct {
	queue     *queue.Queue
	collector Collector
	net       netstatus.Provider
	publisher events.Publisher
	logger    *slog.Logger
	backoff   *Backoff

	// now is the injected clock; tests override it.
	now func() time.Time

	syncing    atomic.Bool
	trigger    chan struct{}
	intervalCh chan time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine over the given queue and transport. The
// publisher may be nil, in which case lifecycle events are discarded.
func NewEngine(q *queue.Queue, collector Collector, net netstatus.Provider, publisher events.Publisher, logger *slog.Logger) *Engine {
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	opts := q.Options()
	return &Engine{
		queue:      q,
		collector:  collector,
		net:        net,
		publisher:  publisher,
		logger:     logger,
		backoff:    NewBackoff(opts.SyncInterval, DefaultMaxBackoff),
		now:        time.Now,
		trigger:    make(chan struct{}, 1),
		intervalCh: make(chan time.Duration, 1),
	}
}

// Start launches the periodic sync loop.
func (e *Engine) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx)
	}()
}

// Stop cancels the loop and waits for it to exit. An in-flight cycle is
// abandoned in place via context cancellation; its batch stays queued and
// unresolved for the next start, which is safe because event IDs are
// idempotency keys.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// Trigger requests an immediate sync cycle (critical enqueue, connectivity
// transition). It never blocks; pending triggers coalesce.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// SetInterval applies a live syncInterval change and restarts the timer.
func (e *Engine) SetInterval(d time.Duration) {
	for {
		select {
		case e.intervalCh <- d:
			return
		default:
			select {
			case <-e.intervalCh:
			default:
			}
		}
	}
}

// Syncing reports whether a cycle is currently in flight.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}

// ForceSync runs one cycle immediately. It fails with ErrOffline when
// disconnected instead of silently queuing.
func (e *Engine) ForceSync(ctx context.Context) error {
	if !e.net.Online() {
		return ErrOffline
	}
	return e.syncOnce(ctx)
}

func (e *Engine) run(ctx context.Context) {
	timer := time.NewTimer(e.backoff.Interval(e.now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-e.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case d := <-e.intervalCh:
			e.backoff.SetBase(d)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(e.backoff.Interval(e.now()))
			continue
		}

		if err := e.syncOnce(ctx); err != nil && !errors.Is(err, ErrOffline) && ctx.Err() == nil {
			e.logger.Error("sync cycle failed", "err", err)
		}
		timer.Reset(e.backoff.Interval(e.now()))
	}
}

// syncOnce runs one sync cycle: skip if offline/busy/empty, select a batch
// in store order, submit it, reconcile per-event verdicts, persist, and
// record cycle metrics.
func (e *Engine) syncOnce(ctx context.Context) error {
	if !e.net.Online() {
		return ErrOffline
	}
	if !e.syncing.CompareAndSwap(false, true) {
		// A cycle is already in flight; drop this trigger.
		return nil
	}
	defer e.syncing.Store(false)

	opts := e.queue.Options()
	batch := e.queue.PeekBatch(opts.BatchSize)
	if len(batch) == 0 {
		return nil
	}

	start := e.now().UTC()
	metrics := e.queue.Collector()
	metrics.RecordSyncAttempt(start)

	results, err := e.collector.SubmitBatch(ctx, batch, BatchOptions{
		Compress:         opts.CompressionEnabled,
		ConflictStrategy: opts.ConflictStrategy,
	})
	if err != nil {
		// Whole-batch transport failure: the batch is left untouched for
		// retry and only the timer cadence backs off.
		next := e.backoff.Fail(e.now())
		e.logger.Error("batch submission failed",
			"batch_size", len(batch), "next_interval", next, "err", err)
		e.publish(events.TopicSyncFailed, events.SyncFailed{BatchSize: len(batch), Error: err.Error()})
		return fmt.Errorf("submit batch: %w", err)
	}

	synced, rejected := e.reconcile(results, opts.MaxRetries)

	if err := e.queue.Flush(ctx); err != nil {
		e.logger.Error("post-sync persist failed", "err", err)
	}

	end := e.now().UTC()
	metrics.RecordSyncSuccess(end, end.Sub(start))
	e.logger.Info("sync cycle completed",
		"batch_size", len(batch), "synced", synced, "rejected", rejected, "duration", end.Sub(start))
	e.publish(events.TopicSyncCompleted, events.SyncCompleted{
		BatchSize: len(batch),
		Synced:    synced,
		Rejected:  rejected,
		Duration:  end.Sub(start),
	})
	return nil
}

// reconcile applies per-event verdicts. Replayed verdicts for already
// removed IDs are no-ops, so counters never double-advance.
func (e *Engine) reconcile(results []model.SyncResult, maxRetries int) (synced, rejected int) {
	metrics := e.queue.Collector()
	for _, res := range results {
		if res.Success {
			if !e.queue.Remove(res.EventID) {
				continue
			}
			metrics.AddSynced(1)
			if res.ConflictResolution != "" {
				metrics.AddConflict(res.ConflictResolution)
			}
			synced++
			e.publish(events.TopicEventSynced, events.EventSynced{
				ID:                 res.EventID,
				ConflictResolution: res.ConflictResolution,
			})
			continue
		}

		count, ok := e.queue.IncrementRetry(res.EventID)
		if !ok {
			continue
		}
		rejected++
		if count >= maxRetries {
			if e.queue.Remove(res.EventID) {
				metrics.AddFailed(1)
				e.publish(events.TopicEventDropped, events.EventDropped{
					ID:         res.EventID,
					RetryCount: count,
				})
			}
		}
	}
	return synced, rejected
}

func (e *Engine) publish(topic string, event any) {
	if err := e.publisher.Publish(context.Background(), topic, event); err != nil {
		e.logger.Error("event publish failed", "topic", topic, "err", err)
	}
}
