package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/relayq/internal/model"
)

func scanEvents(rows *sql.Rows) ([]*model.EventRecord, error) {
	var records []*model.EventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}

func scanEvent(rows *sql.Rows) (*model.EventRecord, error) {
	var (
		rec          model.EventRecord
		typ          string
		priority     string
		priorityRank int
		timestamp    int64
		expiresAt    int64
		payload      []byte
	)
	err := rows.Scan(
		&rec.ID,
		&typ,
		&priority,
		&priorityRank,
		&rec.Seq,
		&timestamp,
		&expiresAt,
		&rec.RetryCount,
		&payload,
		&rec.Metadata.SessionID,
		&rec.Metadata.DeviceID,
		&rec.Metadata.SchemaVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	rec.Type = model.EventType(typ)
	rec.Priority = model.Priority(priority)
	rec.Timestamp = timeFromNanos(timestamp)
	rec.ExpiresAt = timeFromNanos(expiresAt)
	rec.Payload = json.RawMessage(payload)
	return &rec, nil
}

func countersToJSON(counters model.SyncCounters) ([]byte, error) {
	data, err := json.Marshal(counters)
	if err != nil {
		return nil, fmt.Errorf("marshal counters: %w", err)
	}
	return data, nil
}

func countersFromJSON(data []byte) (model.SyncCounters, error) {
	var counters model.SyncCounters
	if err := json.Unmarshal(data, &counters); err != nil {
		return model.SyncCounters{}, fmt.Errorf("unmarshal counters: %w", err)
	}
	return counters, nil
}
