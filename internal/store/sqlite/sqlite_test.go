package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alfredjeanlab/relayq/internal/model"
	"github.com/alfredjeanlab/relayq/internal/store"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(id string, priority model.Priority, seq int64, ts time.Time) *model.EventRecord {
	return &model.EventRecord{
		ID:        id,
		Type:      model.TypeDetection,
		Timestamp: ts,
		Payload:   json.RawMessage(`{"label":"plastic","confidence":0.92}`),
		Priority:  priority,
		ExpiresAt: ts.Add(24 * time.Hour),
		Metadata:  model.Metadata{SessionID: "sess-1", DeviceID: "dev-1", SchemaVersion: "1"},
		Seq:       seq,
	}
}

func TestUpsertAndLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	want := testRecord("ev-1", model.PriorityHigh, 1, now)
	if err := s.UpsertEvents(ctx, []*model.EventRecord{want}); err != nil {
		t.Fatalf("UpsertEvents() error: %v", err)
	}

	got, err := s.LoadEvents(ctx)
	if err != nil {
		t.Fatalf("LoadEvents() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("LoadEvents() returned %d records, want 1", len(got))
	}
	rec := got[0]
	if rec.ID != want.ID || rec.Type != want.Type || rec.Priority != want.Priority || rec.Seq != want.Seq {
		t.Errorf("loaded record mismatch: got %+v, want %+v", rec, want)
	}
	if !rec.Timestamp.Equal(want.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", rec.Timestamp, want.Timestamp)
	}
	if !rec.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", rec.ExpiresAt, want.ExpiresAt)
	}
	if string(rec.Payload) != string(want.Payload) {
		t.Errorf("Payload = %s, want %s", rec.Payload, want.Payload)
	}
	if rec.Metadata != want.Metadata {
		t.Errorf("Metadata = %+v, want %+v", rec.Metadata, want.Metadata)
	}
}

func TestUpsertUpdatesRetryCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := testRecord("ev-1", model.PriorityMedium, 1, now)
	if err := s.UpsertEvents(ctx, []*model.EventRecord{rec}); err != nil {
		t.Fatalf("UpsertEvents() error: %v", err)
	}

	rec.RetryCount = 2
	if err := s.UpsertEvents(ctx, []*model.EventRecord{rec}); err != nil {
		t.Fatalf("UpsertEvents() second call error: %v", err)
	}

	got, err := s.LoadEvents(ctx)
	if err != nil {
		t.Fatalf("LoadEvents() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record after re-upsert, got %d", len(got))
	}
	if got[0].RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", got[0].RetryCount)
	}
}

func TestLoadEvents_StoreOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Insert out of store order: low first, then critical, then high.
	records := []*model.EventRecord{
		testRecord("ev-low", model.PriorityLow, 1, now),
		testRecord("ev-crit", model.PriorityCritical, 2, now),
		testRecord("ev-high-a", model.PriorityHigh, 3, now),
		testRecord("ev-high-b", model.PriorityHigh, 4, now),
	}
	if err := s.UpsertEvents(ctx, records); err != nil {
		t.Fatalf("UpsertEvents() error: %v", err)
	}

	got, err := s.LoadEvents(ctx)
	if err != nil {
		t.Fatalf("LoadEvents() error: %v", err)
	}
	wantOrder := []string{"ev-crit", "ev-high-a", "ev-high-b", "ev-low"}
	if len(got) != len(wantOrder) {
		t.Fatalf("LoadEvents() returned %d records, want %d", len(got), len(wantOrder))
	}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestDeleteEvents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := []*model.EventRecord{
		testRecord("ev-1", model.PriorityLow, 1, now),
		testRecord("ev-2", model.PriorityLow, 2, now),
	}
	if err := s.UpsertEvents(ctx, records); err != nil {
		t.Fatalf("UpsertEvents() error: %v", err)
	}

	// Deleting one known and one unknown ID succeeds; unknown is ignored.
	if err := s.DeleteEvents(ctx, []string{"ev-1", "ev-missing"}); err != nil {
		t.Fatalf("DeleteEvents() error: %v", err)
	}

	got, err := s.LoadEvents(ctx)
	if err != nil {
		t.Fatalf("LoadEvents() error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ev-2" {
		t.Fatalf("expected only ev-2 to remain, got %+v", got)
	}
}

func TestListEvents_Filters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	records := []*model.EventRecord{
		testRecord("ev-1", model.PriorityLow, 1, base),
		testRecord("ev-2", model.PriorityHigh, 2, base.Add(time.Second)),
		testRecord("ev-3", model.PriorityLow, 3, base.Add(2*time.Second)),
	}
	records[1].Type = model.TypeError
	if err := s.UpsertEvents(ctx, records); err != nil {
		t.Fatalf("UpsertEvents() error: %v", err)
	}

	for _, tc := range []struct {
		name    string
		filter  store.EventFilter
		wantIDs []string
	}{
		{"All", store.EventFilter{}, []string{"ev-1", "ev-2", "ev-3"}},
		{"ByType", store.EventFilter{Type: model.TypeError}, []string{"ev-2"}},
		{"ByPriority", store.EventFilter{Priority: model.PriorityLow}, []string{"ev-1", "ev-3"}},
		{"Limit", store.EventFilter{Limit: 2}, []string{"ev-1", "ev-2"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListEvents(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListEvents() error: %v", err)
			}
			if len(got) != len(tc.wantIDs) {
				t.Fatalf("ListEvents() returned %d records, want %d", len(got), len(tc.wantIDs))
			}
			for i, id := range tc.wantIDs {
				if got[i].ID != id {
					t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestCounters_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Fresh store yields zero counters without error.
	got, err := s.GetCounters(ctx)
	if err != nil {
		t.Fatalf("GetCounters() on fresh store error: %v", err)
	}
	if got != (model.SyncCounters{}) {
		t.Errorf("fresh counters = %+v, want zero", got)
	}

	want := model.SyncCounters{SyncedEvents: 42, FailedEvents: 7}
	if err := s.PutCounters(ctx, want); err != nil {
		t.Fatalf("PutCounters() error: %v", err)
	}
	got, err = s.GetCounters(ctx)
	if err != nil {
		t.Fatalf("GetCounters() error: %v", err)
	}
	if got != want {
		t.Errorf("GetCounters() = %+v, want %+v", got, want)
	}
}

func TestMeta_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetMeta(ctx, "device_id"); err != store.ErrNotFound {
		t.Fatalf("GetMeta() on missing key = %v, want ErrNotFound", err)
	}

	if err := s.SetMeta(ctx, "device_id", []byte("dev-abc")); err != nil {
		t.Fatalf("SetMeta() error: %v", err)
	}
	got, err := s.GetMeta(ctx, "device_id")
	if err != nil {
		t.Fatalf("GetMeta() error: %v", err)
	}
	if string(got) != "dev-abc" {
		t.Errorf("GetMeta() = %q, want %q", got, "dev-abc")
	}
}

func TestClear_RetainsCountersAndMeta(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.UpsertEvents(ctx, []*model.EventRecord{testRecord("ev-1", model.PriorityLow, 1, now)}); err != nil {
		t.Fatalf("UpsertEvents() error: %v", err)
	}
	if err := s.PutCounters(ctx, model.SyncCounters{SyncedEvents: 3}); err != nil {
		t.Fatalf("PutCounters() error: %v", err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	events, err := s.LoadEvents(ctx)
	if err != nil {
		t.Fatalf("LoadEvents() error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events after Clear, got %d", len(events))
	}
	counters, err := s.GetCounters(ctx)
	if err != nil {
		t.Fatalf("GetCounters() error: %v", err)
	}
	if counters.SyncedEvents != 3 {
		t.Errorf("counters lost on Clear: %+v", counters)
	}
}

func TestReopen_SurvivesRestart(t *testing.T) {
	path := t.TempDir() + "/queue.db"
	ctx := context.Background()
	now := time.Now().UTC()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := s.UpsertEvents(ctx, []*model.EventRecord{testRecord("ev-1", model.PriorityCritical, 1, now)}); err != nil {
		t.Fatalf("UpsertEvents() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.LoadEvents(ctx)
	if err != nil {
		t.Fatalf("LoadEvents() after reopen error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ev-1" {
		t.Fatalf("expected ev-1 to survive restart, got %+v", got)
	}
}
