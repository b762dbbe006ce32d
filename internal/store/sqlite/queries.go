package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alfredjeanlab/relayq/internal/model"
	"github.com/alfredjeanlab/relayq/internal/store"
)

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, type, priority, priority_rank, seq, timestamp,
	expires_at, retry_count, payload, session_id, device_id, schema_version`

// countersKey is the meta key holding the persisted sync counters blob.
const countersKey = "sync_counters"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryUpsertEvent(ctx context.Context, db executor, e *model.EventRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (
			id, type, priority, priority_rank, seq, timestamp,
			expires_at, retry_count, payload, session_id, device_id, schema_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			retry_count = excluded.retry_count`,
		e.ID,
		string(e.Type),
		string(e.Priority),
		e.Priority.Rank(),
		e.Seq,
		e.Timestamp.UnixNano(),
		e.ExpiresAt.UnixNano(),
		e.RetryCount,
		[]byte(e.Payload),
		e.Metadata.SessionID,
		e.Metadata.DeviceID,
		e.Metadata.SchemaVersion,
	)
	return err
}

func queryDeleteEvent(ctx context.Context, db executor, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	return err
}

func queryLoadEvents(ctx context.Context, db executor) ([]*model.EventRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		ORDER BY priority_rank DESC, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryListEvents(ctx context.Context, db executor, filter store.EventFilter) ([]*model.EventRecord, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	var (
		whereClauses []string
		args         []any
	)
	if filter.Type != "" {
		whereClauses = append(whereClauses, `type = ?`)
		args = append(args, string(filter.Type))
	}
	if filter.Priority != "" {
		whereClauses = append(whereClauses, `priority = ?`)
		args = append(args, string(filter.Priority))
	}
	for i, clause := range whereClauses {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY timestamp ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryPutCounters(ctx context.Context, db executor, counters model.SyncCounters) error {
	data, err := countersToJSON(counters)
	if err != nil {
		return err
	}
	return querySetMeta(ctx, db, countersKey, data)
}

func queryGetCounters(ctx context.Context, db executor) (model.SyncCounters, error) {
	data, err := queryGetMeta(ctx, db, countersKey)
	if err == store.ErrNotFound {
		return model.SyncCounters{}, nil
	}
	if err != nil {
		return model.SyncCounters{}, err
	}
	return countersFromJSON(data)
}

func querySetMeta(ctx context.Context, db executor, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

func queryGetMeta(ctx context.Context, db executor, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, nil
}

// timeFromNanos converts a stored unix-nano timestamp back to UTC time.
func timeFromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
