package events

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/folio-labs/ocrflow/core"
	"github.com/folio-labs/ocrflow/engine"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStoreConfig configures the SQLite event store.
type SQLiteStoreConfig struct {
	// DSN is the database connection string.
	DSN string

	// RetentionAge deletes events older than this duration (0 = no age
	// pruning).
	RetentionAge time.Duration

	// RetentionCount keeps at most this many events per job (0 = no
	// count pruning).
	RetentionCount int

	// PruneInterval is how often to run pruning (default 1 hour).
	PruneInterval time.Duration
}

// SQLiteStore persists job events to a SQLite database. It satisfies
// the Store interface and enables WAL mode for concurrent read access;
// a background goroutine prunes old events when retention is
// configured.
type SQLiteStore struct {
	db   *sql.DB
	cfg  SQLiteStoreConfig
	stop chan struct{}
	done chan struct{}
}

// NewSQLiteStore opens (or creates) a SQLite event store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.PruneInterval == 0 {
		cfg.PruneInterval = time.Hour
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}

	// WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}

	s := &SQLiteStore{
		db:   db,
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	if cfg.RetentionAge > 0 || cfg.RetentionCount > 0 {
		go s.pruneLoop()
	} else {
		close(s.done)
	}

	return s, nil
}

// Append stores an event in the database.
func (s *SQLiteStore) Append(ctx context.Context, event engine.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_events (job_key, seq, kind, tool, state, time, progress, stream, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.JobKey,
		event.Seq,
		string(event.Kind),
		event.Tool,
		string(event.State),
		event.Time.Format(time.RFC3339Nano),
		event.Progress,
		event.Stream,
		event.Message,
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: append: %w", err)
	}
	return nil
}

// List returns events for a job, optionally filtered by afterSeq and
// limit.
func (s *SQLiteStore) List(ctx context.Context, jobKey string, afterSeq uint64, limit int) ([]engine.Event, error) {
	query := `SELECT job_key, seq, kind, tool, state, time, progress, stream, message
	           FROM job_events WHERE job_key = ? AND seq > ? ORDER BY seq ASC`
	args := []any{jobKey, afterSeq}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LatestSeq returns the highest Seq for a job (0 if no events).
func (s *SQLiteStore) LatestSeq(ctx context.Context, jobKey string) (uint64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM job_events WHERE job_key = ?`, jobKey,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("sqlitestore: latest seq: %w", err)
	}
	if !seq.Valid || seq.Int64 < 0 {
		return 0, nil
	}
	return uint64(seq.Int64), nil // #nosec G115 -- seq is always non-negative
}

// JobKeys returns distinct job keys present in the store.
func (s *SQLiteStore) JobKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT job_key FROM job_events ORDER BY job_key`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: job keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan job key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close stops the background pruner and closes the database connection.
func (s *SQLiteStore) Close() error {
	select {
	case <-s.stop:
		// Already closed.
	default:
		close(s.stop)
	}
	<-s.done
	return s.db.Close()
}

// Prune runs a single pruning pass. Exported for testing.
func (s *SQLiteStore) Prune(ctx context.Context) error {
	if s.cfg.RetentionAge > 0 {
		cutoff := time.Now().Add(-s.cfg.RetentionAge).Format(time.RFC3339Nano)
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM job_events WHERE time < ?`, cutoff); err != nil {
			return fmt.Errorf("sqlitestore: prune by age: %w", err)
		}
	}
	if s.cfg.RetentionCount > 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM job_events WHERE id IN (
			   SELECT id FROM (
			     SELECT id, ROW_NUMBER() OVER (PARTITION BY job_key ORDER BY seq DESC) AS rn
			     FROM job_events
			   ) WHERE rn > ?
			 )`, s.cfg.RetentionCount); err != nil {
			return fmt.Errorf("sqlitestore: prune by count: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) pruneLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			_ = s.Prune(context.Background())
		}
	}
}

func scanEvents(rows *sql.Rows) ([]engine.Event, error) {
	var events []engine.Event
	for rows.Next() {
		var (
			e         engine.Event
			kind      string
			state     string
			timestamp string
		)
		if err := rows.Scan(&e.JobKey, &e.Seq, &kind, &e.Tool, &state,
			&timestamp, &e.Progress, &e.Stream, &e.Message); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan event: %w", err)
		}
		e.Kind = engine.EventKind(kind)
		e.State = core.ProcessState(state)
		t, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("sqlitestore: parse time: %w", err)
		}
		e.Time = t
		events = append(events, e)
	}
	return events, rows.Err()
}

// Ensure interface compliance at compile time.
var _ Store = (*SQLiteStore)(nil)
