package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/relayq/internal/model"
	"github.com/alfredjeanlab/relayq/internal/store"
	"github.com/alfredjeanlab/relayq/internal/store/sqlite"
)

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
}

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// seededStore returns a store holding two events, "ev-old" enqueued before
// "ev-new".
func seededStore(t *testing.T) store.Store {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "relayq.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	now := time.Now().UTC()
	records := []*model.EventRecord{
		{
			ID: "ev-old", Type: model.TypeDetection, Timestamp: now.Add(-time.Minute),
			Payload: json.RawMessage(`{"label":"plastic"}`), Priority: model.PriorityMedium,
			ExpiresAt: now.Add(time.Hour), Seq: 1,
			Metadata: model.Metadata{SessionID: "s", DeviceID: "d", SchemaVersion: "1"},
		},
		{
			ID: "ev-new", Type: model.TypeError, Timestamp: now,
			Payload: json.RawMessage(`{"code":"E42"}`), Priority: model.PriorityHigh,
			ExpiresAt: now.Add(time.Hour), Seq: 2,
			Metadata: model.Metadata{SessionID: "s", DeviceID: "d", SchemaVersion: "1"},
		},
	}
	if err := st.UpsertEvents(context.Background(), records); err != nil {
		t.Fatalf("seeding store: %v", err)
	}
	if err := st.PutCounters(context.Background(), model.SyncCounters{SyncedEvents: 7, FailedEvents: 1}); err != nil {
		t.Fatalf("seeding counters: %v", err)
	}
	return st
}

func TestExportJSONL(t *testing.T) {
	st := seededStore(t)

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), st, &buf); err != nil {
		t.Fatalf("ExportJSONL() error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3 (header + 2 events)", len(lines))
	}

	var hdr header
	if err := json.Unmarshal([]byte(lines[0]), &hdr); err != nil {
		t.Fatalf("header line is not valid JSON: %v", err)
	}
	if hdr.Type != "header" || hdr.Version != "1" {
		t.Errorf("header = %+v", hdr)
	}
	if hdr.EventCount != 2 {
		t.Errorf("header event count = %d, want 2", hdr.EventCount)
	}
	if hdr.Counters.SyncedEvents != 7 || hdr.Counters.FailedEvents != 1 {
		t.Errorf("header counters = %+v", hdr.Counters)
	}

	// Events follow oldest first.
	wantIDs := []string{"ev-old", "ev-new"}
	for i, line := range lines[1:] {
		var rec struct {
			Type string            `json:"type"`
			Data model.EventRecord `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("event line %d is not valid JSON: %v", i, err)
		}
		if rec.Type != "event" {
			t.Errorf("line %d type = %q, want event", i, rec.Type)
		}
		if rec.Data.ID != wantIDs[i] {
			t.Errorf("line %d id = %s, want %s", i, rec.Data.ID, wantIDs[i])
		}
	}
}

func TestSchedulerStartStop(t *testing.T) {
	st := seededStore(t)
	dest := &mockDestination{}

	sched := NewScheduler(st, []Destination{dest}, 50*time.Millisecond, discardLogger())
	sched.Start()

	// Wait for at least the initial export + one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes < 2 {
		t.Fatalf("expected at least 2 writes, got %d", writes)
	}

	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	if lines := nonEmptyLines(string(data)); len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	st := seededStore(t)
	sched := NewScheduler(st, nil, time.Minute, discardLogger())
	// Stop without Start should not panic.
	sched.Stop()
}

func TestSchedulerMultipleDestinations(t *testing.T) {
	st := seededStore(t)
	dest1 := &mockDestination{}
	dest2 := &mockDestination{}

	sched := NewScheduler(st, []Destination{dest1, dest2}, time.Second, discardLogger())
	sched.Start()

	// Wait for the initial export.
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	if dest1.writes.Load() < 1 {
		t.Fatal("dest1 expected at least 1 write")
	}
	if dest2.writes.Load() < 1 {
		t.Fatal("dest2 expected at least 1 write")
	}
}
