// Package relayq is an offline-capable, reliably-synchronized event queue.
// Events are buffered in a durable local store while the collector is
// unreachable and delivered in priority order once connectivity returns.
package relayq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/relayq/internal/archive"
	"github.com/alfredjeanlab/relayq/internal/events"
	"github.com/alfredjeanlab/relayq/internal/model"
	"github.com/alfredjeanlab/relayq/internal/netstatus"
	"github.com/alfredjeanlab/relayq/internal/queue"
	"github.com/alfredjeanlab/relayq/internal/store"
	"github.com/alfredjeanlab/relayq/internal/store/sqlite"
	syncengine "github.com/alfredjeanlab/relayq/internal/sync"
)

// Re-exported model types. Aliases keep the public surface in one package
// without duplicating the definitions.
type (
	EventType    = model.EventType
	Priority     = model.Priority
	Metadata     = model.Metadata
	EventRecord  = model.EventRecord
	QueueMetrics = model.QueueMetrics
	QueueStatus  = model.QueueStatus
	ConfigPatch  = queue.OptionsPatch

	// InspectFilter narrows diagnostic event listings.
	InspectFilter = store.EventFilter
)

const (
	TypeDetection   = model.TypeDetection
	TypePerformance = model.TypePerformance
	TypeError       = model.TypeError
	TypeInteraction = model.TypeInteraction
	TypeSystem      = model.TypeSystem

	PriorityCritical = model.PriorityCritical
	PriorityHigh     = model.PriorityHigh
	PriorityMedium   = model.PriorityMedium
	PriorityLow      = model.PriorityLow
)

// ErrOffline is returned by ForceSync when the collector is unreachable.
var ErrOffline = syncengine.ErrOffline

// schemaVersion stamps the metadata of every enqueued event.
const schemaVersion = "1"

// deviceIDKey is the store meta key holding the stable device identifier.
const deviceIDKey = "device_id"

// Options configure a Client. Zero values fall back to defaults; only
// CollectorURL is required unless a custom Net provider that never reports
// online is supplied.
type Options struct {
	// DBPath locates the SQLite database file.
	DBPath string

	// CollectorURL is the base URL of the remote collector.
	CollectorURL string

	// AuthToken, when non-empty, is sent as a bearer token.
	AuthToken string

	// NATSURL, when non-empty, enables lifecycle event publishing.
	NATSURL string

	// ProbeInterval is the connectivity polling cadence; 0 disables the
	// probe and the client assumes it is always online.
	ProbeInterval time.Duration

	// SessionID identifies this client session; generated when empty.
	SessionID string

	MaxQueueSize int
	MaxEventAge  time.Duration
	MaxRetries   int
	SyncInterval time.Duration
	BatchSize    int
	Compression  bool

	// ArchiveInterval and ArchiveDestinations enable periodic JSONL
	// snapshots; both must be set.
	ArchiveInterval     time.Duration
	ArchiveDestinations []archive.Destination

	Logger *slog.Logger
}

func (o Options) queueOptions() queue.Options {
	opts := queue.DefaultOptions()
	if o.MaxQueueSize > 0 {
		opts.MaxQueueSize = o.MaxQueueSize
	}
	if o.MaxEventAge > 0 {
		opts.MaxEventAge = o.MaxEventAge
	}
	if o.MaxRetries > 0 {
		opts.MaxRetries = o.MaxRetries
	}
	if o.SyncInterval > 0 {
		opts.SyncInterval = o.SyncInterval
	}
	if o.BatchSize > 0 {
		opts.BatchSize = o.BatchSize
	}
	opts.CompressionEnabled = o.Compression
	return opts
}

// Client is an instance of the event queue. Multiple clients may coexist in
// one process as long as they use distinct database files.
type Client struct {
	store     store.Store
	queue     *queue.Queue
	engine    *syncengine.Engine
	net       netstatus.Provider
	probe     *netstatus.Probe
	publisher events.Publisher
	archiver  *archive.Scheduler
	logger    *slog.Logger

	sessionID   string
	deviceID    string
	unsubscribe func()
}

// New opens the durable store, restores the queue, and starts the sync
// engine and background loops. The returned client must be closed.
func New(ctx context.Context, opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	st, err := sqlite.Open(opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	deviceID, err := loadDeviceID(ctx, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var publisher events.Publisher = &events.NoopPublisher{}
	var natsPub *events.NATSPublisher
	if opts.NATSURL != "" {
		natsPub, err = events.NewNATSPublisher(opts.NATSURL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect event publisher: %w", err)
		}
		publisher = natsPub
	}

	q := queue.New(st, opts.queueOptions(), logger, publisher)
	if err := q.Load(ctx); err != nil {
		if natsPub != nil {
			natsPub.Close()
		}
		st.Close()
		return nil, fmt.Errorf("restore queue: %w", err)
	}

	collector := syncengine.NewHTTPCollector(opts.CollectorURL, opts.AuthToken)

	var net netstatus.Provider
	var probe *netstatus.Probe
	if opts.ProbeInterval > 0 {
		probe = netstatus.NewProbe(collector.HealthURL(), opts.ProbeInterval, logger)
		net = probe
	} else {
		net = netstatus.NewStatic(true)
	}

	engine := syncengine.NewEngine(q, collector, net, publisher, logger)

	c := &Client{
		store:     st,
		queue:     q,
		engine:    engine,
		net:       net,
		probe:     probe,
		publisher: publisher,
		logger:    logger,
		sessionID: sessionID,
		deviceID:  deviceID,
	}

	// Reconnection is a sync trigger; the first cycle after an outage
	// drains the backlog in priority order.
	c.unsubscribe = net.Subscribe(func(online bool) {
		if online {
			engine.Trigger()
		}
	})

	if opts.ArchiveInterval > 0 && len(opts.ArchiveDestinations) > 0 {
		c.archiver = archive.NewScheduler(st, opts.ArchiveDestinations, opts.ArchiveInterval, logger)
	}

	q.Start()
	engine.Start()
	if probe != nil {
		probe.Start()
	}
	if c.archiver != nil {
		c.archiver.Start()
	}

	logger.Info("relayq client started",
		"db", opts.DBPath, "device_id", deviceID, "session_id", sessionID)
	return c, nil
}

// loadDeviceID returns the stable device identifier, creating and persisting
// one on first run.
func loadDeviceID(ctx context.Context, st store.Store) (string, error) {
	v, err := st.GetMeta(ctx, deviceIDKey)
	if err == nil {
		return string(v), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("load device id: %w", err)
	}
	id := uuid.NewString()
	if err := st.SetMeta(ctx, deviceIDKey, []byte(id)); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}

// Enqueue buffers an event and returns its ID. Critical events trigger an
// immediate sync attempt. The only error cause is invalid input; capacity
// pressure is resolved internally by eviction.
func (c *Client) Enqueue(typ EventType, payload json.RawMessage, priority Priority) (string, error) {
	id, err := c.queue.Enqueue(typ, payload, priority, Metadata{
		SessionID:     c.sessionID,
		DeviceID:      c.deviceID,
		SchemaVersion: schemaVersion,
	})
	if err != nil {
		return "", err
	}
	if priority == PriorityCritical {
		c.engine.Trigger()
	}
	return id, nil
}

// Metrics returns an immutable snapshot of queue health.
func (c *Client) Metrics() QueueMetrics {
	return c.queue.Metrics()
}

// Status reports the queue size and the connectivity/sync flags.
func (c *Client) Status() QueueStatus {
	return QueueStatus{
		Size:      c.queue.Size(),
		IsOnline:  c.net.Online(),
		IsSyncing: c.engine.Syncing(),
	}
}

// ForceSync runs one sync cycle immediately. It returns ErrOffline when the
// collector is unreachable.
func (c *Client) ForceSync(ctx context.Context) error {
	return c.engine.ForceSync(ctx)
}

// ClearQueue discards every pending event from memory and the durable store.
func (c *Client) ClearQueue(ctx context.Context) error {
	return c.queue.Clear(ctx)
}

// UpdateConfig applies a partial configuration change live. A changed
// syncInterval restarts the sync timer.
func (c *Client) UpdateConfig(patch ConfigPatch) {
	before := c.queue.Options().SyncInterval
	after := c.queue.UpdateOptions(patch).SyncInterval
	if after != before {
		c.engine.SetInterval(after)
	}
}

// Inspect lists persisted events matching the filter for diagnostics,
// oldest first.
func (c *Client) Inspect(ctx context.Context, filter store.EventFilter) ([]*EventRecord, error) {
	return c.store.ListEvents(ctx, filter)
}

// Close stops the background loops, flushes pending persistence, and closes
// the store. An in-flight sync cycle is abandoned; its batch stays queued
// for the next start, which is safe because event IDs are idempotency keys.
func (c *Client) Close() error {
	if c.archiver != nil {
		c.archiver.Stop()
	}
	if c.probe != nil {
		c.probe.Stop()
	}
	c.unsubscribe()
	c.engine.Stop()
	c.queue.Stop()
	if err := c.publisher.Close(); err != nil {
		c.logger.Error("closing event publisher", "err", err)
	}
	if err := c.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
