// Package history persists dispatch outcomes to a local SQLite file so
// operators can reconstruct what was sent (or failed to send) after the
// fact. The live alerting path never depends on it: a write failure is
// logged and ingestion continues.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/poolwatch/poolwatch/internal/watcher"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	severity     TEXT NOT NULL,
	title        TEXT NOT NULL,
	message      TEXT NOT NULL,
	delivered    INTEGER NOT NULL,
	delivery_err TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
`

// createdAtLayout pads nanoseconds to a fixed width so the TEXT column
// sorts chronologically. RFC3339Nano trims trailing zeros, which would
// order "…00Z" after "…00.5Z".
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one recorded dispatch outcome.
type Entry struct {
	ID          string
	Kind        watcher.Kind
	Severity    watcher.Severity
	Title       string
	Message     string
	Delivered   bool
	DeliveryErr string
	CreatedAt   time.Time
}

// Store is a SQLite-backed alert audit log.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db '%s': %w", path, err)
	}
	// One writer at a time keeps modernc/sqlite happy without WAL tuning.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts one dispatch outcome.
func (s *Store) Record(ctx context.Context, alert watcher.Alert, delivered bool, deliveryErr string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, kind, severity, title, message, delivered, delivery_err, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, string(alert.Kind), string(alert.Severity), alert.Title, alert.Message,
		boolToInt(delivered), deliveryErr, alert.Timestamp.UTC().Format(createdAtLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record alert %s: %w", alert.ID, err)
	}
	return nil
}

// Recent returns the most recent entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, severity, title, message, delivered, delivery_err, created_at
		 FROM alerts ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			kind      string
			severity  string
			delivered int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &kind, &severity, &e.Title, &e.Message, &delivered, &e.DeliveryErr, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert history row: %w", err)
		}
		e.Kind = watcher.Kind(kind)
		e.Severity = watcher.Severity(severity)
		e.Delivered = delivered != 0
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
