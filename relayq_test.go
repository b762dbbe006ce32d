package relayq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

// startCollector runs a fake collector that accepts every submitted event.
func startCollector(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	accepted := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		var items []struct {
			ID string `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
			t.Errorf("decoding batch: %v", err)
		}
		*accepted += len(items)
		results := make([]map[string]any, len(items))
		for i, item := range items {
			results[i] = map[string]any{"success": true, "event_id": item.ID}
		}
		json.NewEncoder(w).Encode(results)
	}))
	t.Cleanup(srv.Close)
	return srv, accepted
}

func newTestClient(t *testing.T, mutate func(*Options)) *Client {
	t.Helper()
	srv, _ := startCollector(t)
	opts := Options{
		DBPath:       filepath.Join(t.TempDir(), "relayq.db"),
		CollectorURL: srv.URL,
		SyncInterval: time.Hour, // cycles run only via ForceSync
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&opts)
	}
	c, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_EnqueueAndForceSync(t *testing.T) {
	c := newTestClient(t, nil)

	id, err := c.Enqueue(TypeDetection, json.RawMessage(`{"label":"glass"}`), PriorityHigh)
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if id == "" {
		t.Fatal("Enqueue() returned empty id")
	}
	if got := c.Status().Size; got != 1 {
		t.Fatalf("Status().Size = %d, want 1", got)
	}

	if err := c.ForceSync(context.Background()); err != nil {
		t.Fatalf("ForceSync() error: %v", err)
	}
	if got := c.Status().Size; got != 0 {
		t.Errorf("Status().Size after sync = %d, want 0", got)
	}
	m := c.Metrics()
	if m.SyncedEvents != 1 {
		t.Errorf("SyncedEvents = %d, want 1", m.SyncedEvents)
	}
	if m.LastSuccessfulSync == nil {
		t.Error("LastSuccessfulSync not stamped")
	}
}

func TestClient_EnqueueInvalidInput(t *testing.T) {
	c := newTestClient(t, nil)

	if _, err := c.Enqueue("bogus", json.RawMessage(`{}`), PriorityLow); err == nil {
		t.Error("expected error for unknown event type")
	}
	if _, err := c.Enqueue(TypeError, json.RawMessage(`{}`), "urgent"); err == nil {
		t.Error("expected error for unknown priority")
	}
}

func TestClient_ForceSyncOffline(t *testing.T) {
	c := newTestClient(t, func(o *Options) {
		// Probe against a dead endpoint; the initial state is offline.
		o.CollectorURL = "http://127.0.0.1:0"
		o.ProbeInterval = time.Hour
	})

	if err := c.ForceSync(context.Background()); !errors.Is(err, ErrOffline) {
		t.Fatalf("ForceSync() = %v, want ErrOffline", err)
	}
	if c.Status().IsOnline {
		t.Error("Status().IsOnline = true for unreachable collector")
	}
}

func TestClient_MetadataStamped(t *testing.T) {
	c := newTestClient(t, func(o *Options) {
		o.SessionID = "session-1"
	})

	if _, err := c.Enqueue(TypeSystem, json.RawMessage(`{}`), PriorityLow); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	recs, err := c.Inspect(context.Background(), InspectFilter{})
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	// Persistence is asynchronous; poll briefly.
	deadline := time.After(3 * time.Second)
	for len(recs) == 0 {
		select {
		case <-deadline:
			t.Fatal("event never persisted")
		case <-time.After(10 * time.Millisecond):
		}
		recs, err = c.Inspect(context.Background(), InspectFilter{})
		if err != nil {
			t.Fatalf("Inspect() error: %v", err)
		}
	}
	if recs[0].Metadata.SessionID != "session-1" {
		t.Errorf("session id = %q, want session-1", recs[0].Metadata.SessionID)
	}
	if recs[0].Metadata.DeviceID == "" {
		t.Error("device id not stamped")
	}
	if recs[0].Metadata.SchemaVersion != schemaVersion {
		t.Errorf("schema version = %q", recs[0].Metadata.SchemaVersion)
	}
}

func TestClient_DeviceIDStableAcrossRestarts(t *testing.T) {
	srv, _ := startCollector(t)
	dbPath := filepath.Join(t.TempDir(), "relayq.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	open := func() *Client {
		c, err := New(context.Background(), Options{
			DBPath: dbPath, CollectorURL: srv.URL, SyncInterval: time.Hour, Logger: logger,
		})
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		return c
	}

	c1 := open()
	first := c1.deviceID
	c1.Close()

	c2 := open()
	defer c2.Close()
	if c2.deviceID != first {
		t.Errorf("device id changed across restarts: %q vs %q", first, c2.deviceID)
	}
}

func TestClient_QueueSurvivesRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relayq.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// A probe against a dead endpoint keeps the engine offline so the
	// event stays queued across the restart.
	opts := Options{
		DBPath:        dbPath,
		CollectorURL:  "http://127.0.0.1:0",
		ProbeInterval: time.Hour,
		SyncInterval:  time.Hour,
		Logger:        logger,
	}

	c1, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := c1.Enqueue(TypeDetection, json.RawMessage(`{"n":1}`), PriorityMedium); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	c1.Close() // final flush persists the event

	c2, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer c2.Close()
	if got := c2.Status().Size; got != 1 {
		t.Errorf("restored queue size = %d, want 1", got)
	}
}

func TestClient_UpdateConfig(t *testing.T) {
	c := newTestClient(t, nil)

	newMax := 5
	newInterval := 2 * time.Hour
	c.UpdateConfig(ConfigPatch{MaxQueueSize: &newMax, SyncInterval: &newInterval})

	opts := c.queue.Options()
	if opts.MaxQueueSize != 5 {
		t.Errorf("MaxQueueSize = %d, want 5", opts.MaxQueueSize)
	}
	if opts.SyncInterval != 2*time.Hour {
		t.Errorf("SyncInterval = %v, want 2h", opts.SyncInterval)
	}
}

func TestClient_ClearQueue(t *testing.T) {
	c := newTestClient(t, nil)

	for i := 0; i < 3; i++ {
		if _, err := c.Enqueue(TypeInteraction, json.RawMessage(`{}`), PriorityLow); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
	}
	if err := c.ClearQueue(context.Background()); err != nil {
		t.Fatalf("ClearQueue() error: %v", err)
	}
	if got := c.Status().Size; got != 0 {
		t.Errorf("size after clear = %d, want 0", got)
	}
}
