// Package archive periodically exports a JSONL snapshot of the pending
// queue to one or more destinations. The archive is an operator-facing
// audit trail; it never participates in sync reconciliation.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/relayq/internal/model"
	"github.com/alfredjeanlab/relayq/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version    string             `json:"version"`
	Type       string             `json:"type"`
	Timestamp  time.Time          `json:"timestamp"`
	EventCount int                `json:"event_count"`
	Counters   model.SyncCounters `json:"counters"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportJSONL writes every persisted event as JSONL to w, oldest first,
// preceded by a header line carrying the snapshot time and sync counters.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	events, err := s.ListEvents(ctx, store.EventFilter{})
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	counters, err := s.GetCounters(ctx)
	if err != nil {
		return fmt.Errorf("get counters: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:    "1",
		Type:       "header",
		Timestamp:  time.Now().UTC(),
		EventCount: len(events),
		Counters:   counters,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, e := range events {
		if err := enc.Encode(record{Type: "event", Data: e}); err != nil {
			return fmt.Errorf("encode event %s: %w", e.ID, err)
		}
	}

	return nil
}
