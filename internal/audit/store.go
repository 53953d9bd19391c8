// Package audit persists a journal of executed page interactions. Recording
// is optional: a nil *Store accepts every call and does nothing, so callers
// never branch on whether the journal is enabled.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/pagepilot/pagepilot/internal/audit/migrations"
	"github.com/pagepilot/pagepilot/internal/logging"
)

// Entry is one journal row. Zero ID and Time are filled in by Record.
type Entry struct {
	ID         string        `json:"id"`
	Time       time.Time     `json:"time"`
	Op         string        `json:"op"`
	Descriptor string        `json:"descriptor,omitempty"`
	Target     string        `json:"target,omitempty"`
	Tier       string        `json:"tier,omitempty"`
	Outcome    string        `json:"outcome"` // "ok" or "error"
	ErrorKind  string        `json:"errorKind,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Store is the SQLite-backed journal.
type Store struct {
	db *sql.DB
}

// Open creates the journal database, runs migrations, and returns a Store.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	// WAL mode with a single connection: all access is serialized, SQLite
	// does not handle concurrent writers well.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run journal migrations: %w", err)
	}

	logging.Debugf("action journal opened at %s", path)
	return &Store{db: db}, nil
}

// Record inserts one entry. Safe on a nil Store.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	var kind any
	if e.ErrorKind != "" {
		kind = e.ErrorKind
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO actions (id, created_at, op, descriptor, target, tier, outcome, error_kind, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Time.Unix(), e.Op, e.Descriptor, e.Target, e.Tier, e.Outcome, kind, e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}
	return nil
}

// Recent returns the newest n entries, newest first. n <= 0 defaults to 20.
// Safe on a nil Store.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, op, descriptor, target, tier, outcome, error_kind, duration_ms
		 FROM actions ORDER BY created_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created, durationMS int64
		var kind sql.NullString
		if err := rows.Scan(&e.ID, &created, &e.Op, &e.Descriptor, &e.Target, &e.Tier, &e.Outcome, &kind, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Time = time.Unix(created, 0)
		e.ErrorKind = kind.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database connection. Safe on a nil Store.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
