package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/alfredjeanlab/relayq/internal/model"
)

// Collector is the transport to the remote event collector. Implementations
// must treat the event ID as an idempotency key and deduplicate replays.
type Collector interface {
	// SubmitBatch sends the batch in order and returns one SyncResult per
	// event. A returned error means the whole batch failed at the transport
	// level and no per-event verdicts exist.
	SubmitBatch(ctx context.Context, batch []model.EventRecord, opts BatchOptions) ([]model.SyncResult, error)
}

// BatchOptions carry the per-submission knobs read from the live queue options.
type BatchOptions struct {
	Compress         bool
	ConflictStrategy model.ConflictResolution
}

// batchItem is the wire form of one submitted event.
type batchItem struct {
	ID        string          `json:"id"`
	Type      model.EventType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  model.Metadata  `json:"metadata"`
}

// HTTPCollector implements Collector against the collector's HTTP/JSON API.
type HTTPCollector struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Compile-time check that HTTPCollector implements Collector.
var _ Collector = (*HTTPCollector)(nil)

// NewHTTPCollector creates a collector client targeting the given base URL
// (e.g. "https://collector.example.com"). When token is non-empty, an
// Authorization header is set on every request.
func NewHTTPCollector(baseURL, token string) *HTTPCollector {
	return &HTTPCollector{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// HealthURL returns the collector's health endpoint, suitable for a
// netstatus probe.
func (c *HTTPCollector) HealthURL() string {
	return c.baseURL + "/healthz"
}

// SubmitBatch POSTs the batch to /v1/events/batch and decodes the per-event
// results. The batch is serialized in the exact order given.
func (c *HTTPCollector) SubmitBatch(ctx context.Context, batch []model.EventRecord, opts BatchOptions) ([]model.SyncResult, error) {
	items := make([]batchItem, len(batch))
	for i, rec := range batch {
		items[i] = batchItem{
			ID:        rec.ID,
			Type:      rec.Type,
			Timestamp: rec.Timestamp,
			Payload:   rec.Payload,
			Metadata:  rec.Metadata,
		}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshaling batch: %w", err)
	}

	var body io.Reader = bytes.NewReader(data)
	if opts.Compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("compressing batch: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compressing batch: %w", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/events/batch", body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if opts.Compress {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if opts.ConflictStrategy != "" {
		req.Header.Set("X-Conflict-Strategy", opts.ConflictStrategy.String())
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var results []model.SyncResult
	if err := json.Unmarshal(respBody, &results); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return results, nil
}

// APIError is an HTTP-level error from the collector.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}
