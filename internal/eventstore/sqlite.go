package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/foundation/errors"

	_ "modernc.org/sqlite"
)

const memoryDSN = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS run_events (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	kind        TEXT    NOT NULL,
	recorded_ms INTEGER NOT NULL,
	payload     BLOB    NOT NULL,
	meta        TEXT
);
CREATE INDEX IF NOT EXISTS run_events_run ON run_events(run_id, seq);
CREATE INDEX IF NOT EXISTS run_events_recorded ON run_events(recorded_ms);
`

const selectEvents = `SELECT seq, run_id, kind, recorded_ms, payload, meta FROM run_events `

// SQLiteStore implements Store on a single SQLite file. All access goes through
// one connection, so writers never contend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the run history at dbPath. Pass
// ":memory:" for a throwaway store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, errors.WrapError(err, errors.CategoryStorage, "create run history directory").
				WithContext("path", dbPath).
				Build()
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatabaseOpenFailed, err)
	}
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrInitializeSchemaFailed, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append records one event. A zero at records the current time.
func (s *SQLiteStore) Append(ctx context.Context, runID, eventType string, at time.Time, payload []byte, metadata map[string]string) error {
	var meta []byte
	if len(metadata) > 0 {
		var err error
		if meta, err = json.Marshal(metadata); err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_events (run_id, kind, recorded_ms, payload, meta) VALUES (?, ?, ?, ?, ?)`,
		runID, eventType, at.UnixMilli(), payload, meta)
	if err != nil {
		return errors.WrapError(err, errors.CategoryStorage, "append run event").
			WithContext("run_id", runID).
			WithContext("event", eventType).
			Build()
	}
	return nil
}

// GetByRunID returns the events of one run in append order.
func (s *SQLiteStore) GetByRunID(ctx context.Context, runID string) ([]Event, error) {
	return s.query(ctx, selectEvents+`WHERE run_id = ? ORDER BY seq`, runID)
}

// GetRange returns events recorded in [start, end], in append order.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx, selectEvents+`WHERE recorded_ms BETWEEN ? AND ? ORDER BY seq`,
		start.UnixMilli(), end.UnixMilli())
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryStorage, "query run events").Build()
	}
	defer func() { _ = rows.Close() }()

	var out []Event
	for rows.Next() {
		var (
			e          BaseEvent
			recordedMS int64
			meta       []byte
		)
		if err := rows.Scan(&e.EventID, &e.EventRunID, &e.EventType, &recordedMS, &e.EventPayload, &meta); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		e.EventTimestamp = time.UnixMilli(recordedMS)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.EventMetadata); err != nil {
				return nil, fmt.Errorf("decode metadata of event %d: %w", e.EventID, err)
			}
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run events: %w", err)
	}
	return out, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
