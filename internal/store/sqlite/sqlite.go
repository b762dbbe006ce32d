// Package sqlite implements the store.Store interface backed by a local
// SQLite database, so the queue survives process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/alfredjeanlab/relayq/internal/model"
	"github.com/alfredjeanlab/relayq/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements store.Store backed by a single-file SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// mu serializes write transactions; SQLite allows one writer at a time
	// and the queue's persistence protocol requires snapshots never interleave.
	mu sync.Mutex
}

// Compile-time check that SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)

// Open creates or opens a SQLite database at the given path, applies the
// required pragmas, and runs any pending migrations. Use ":memory:" for an
// ephemeral store in tests.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer avoids SQLITE_BUSY; reads share the same connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertEvents(ctx context.Context, records []*model.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, rec := range records {
			if err := queryUpsertEvent(ctx, tx, rec); err != nil {
				return fmt.Errorf("upsert event %s: %w", rec.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteEvents(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, id := range ids {
			if err := queryDeleteEvent(ctx, tx, id); err != nil {
				return fmt.Errorf("delete event %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) LoadEvents(ctx context.Context) ([]*model.EventRecord, error) {
	return queryLoadEvents(ctx, s.db)
}

func (s *SQLiteStore) ListEvents(ctx context.Context, filter store.EventFilter) ([]*model.EventRecord, error) {
	return queryListEvents(ctx, s.db, filter)
}

func (s *SQLiteStore) PutCounters(ctx context.Context, counters model.SyncCounters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queryPutCounters(ctx, s.db, counters)
}

func (s *SQLiteStore) GetCounters(ctx context.Context) (model.SyncCounters, error) {
	return queryGetCounters(ctx, s.db)
}

func (s *SQLiteStore) GetMeta(ctx context.Context, key string) ([]byte, error) {
	return queryGetMeta(ctx, s.db, key)
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return querySetMeta(ctx, s.db, key, value)
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM events`)
	if err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	return nil
}

// inTx runs fn inside a transaction, committing on success and rolling back
// on error.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
