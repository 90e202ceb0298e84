// Package storage keeps the in-memory invocation journal.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusOK    = "ok"
	StatusError = "error"

	DefaultMaxEntries = 500
)

// Entry is one recorded dispatch.
type Entry struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	Window     string    `json:"window,omitempty"`
	Status     string    `json:"status"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Journal records recent dispatches, keeping at most maxEntries rows.
type Journal struct {
	db         *sql.DB
	maxEntries int
}

// OpenJournal opens an empty in-memory journal.
func OpenJournal(ctx context.Context, maxEntries int) (*Journal, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	db, err := OpenMemory(ctx)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db, maxEntries: maxEntries}, nil
}

// Record stores e and trims the oldest entries beyond the limit. An empty
// ID is filled with a new UUID.
func (j *Journal) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	e.StartedAt = e.StartedAt.UTC()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("begin journal tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO invocations(id, command, window, status, error_kind, error, started_at, duration_ms)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);`,
		e.ID, e.Command, nullString(e.Window), e.Status, nullString(e.ErrorKind), nullString(e.Error),
		e.StartedAt.Format(time.RFC3339Nano), e.DurationMS,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert invocation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
DELETE FROM invocations
WHERE seq <= (SELECT MAX(seq) FROM invocations) - ?;`, j.maxEntries)
	if err != nil {
		return Entry{}, fmt.Errorf("trim invocations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit journal tx: %w", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > j.maxEntries {
		limit = j.maxEntries
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, command, window, status, error_kind, error, started_at, duration_ms
FROM invocations
ORDER BY seq DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                     Entry
			window, kind, errText sql.NullString
			startedAt             string
		)
		if err := rows.Scan(&e.ID, &e.Command, &window, &e.Status, &kind, &errText, &startedAt, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		e.Window = window.String
		e.ErrorKind = kind.String
		e.Error = errText.String
		e.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return out, nil
}

// Count returns the number of retained entries.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invocations;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count invocations: %w", err)
	}
	return n, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
