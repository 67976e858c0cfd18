// Package sqlite provides a durable, single-node event store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/framecast/internal/fanout"
	"github.com/aretw0/framecast/pkg/domain"
	"github.com/aretw0/framecast/pkg/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS action_events (
    id TEXT PRIMARY KEY,
    action_type TEXT NOT NULL CHECK(action_type IN ('download', 'share')),
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_action_type ON action_events(action_type);
`

// Store implements ports.EventStore on an action_events table.
// Subscribers are served from an in-process hub, so pushes reach only
// subscribers of the same Store.
type Store struct {
	db  *sql.DB
	hub *fanout.Hub[domain.ActionEvent]

	mu     sync.Mutex
	closed bool
}

var _ ports.EventStore = (*Store)(nil)

// Open opens (or creates) the database at dataSourceName and runs migrations.
func Open(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		db:  db,
		hub: fanout.New[domain.ActionEvent](fanout.DefaultBuffer),
	}, nil
}

// Append inserts the event and returns it with the post-commit total for its kind.
func (s *Store) Append(ctx context.Context, kind domain.ActionKind) (domain.ActionEvent, error) {
	if !kind.Valid() {
		return domain.ActionEvent{}, fmt.Errorf("%w: %q", domain.ErrUnknownAction, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ActionEvent{}, domain.ErrStoreClosed
	}

	ev := domain.NewActionEvent(kind)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ActionEvent{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO action_events (id, action_type, created_at) VALUES (?, ?, ?)`,
		ev.ID, string(kind), ev.At.Format(time.RFC3339Nano),
	); err != nil {
		return domain.ActionEvent{}, fmt.Errorf("failed to insert event: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM action_events WHERE action_type = ?`, string(kind),
	).Scan(&ev.Seq); err != nil {
		return domain.ActionEvent{}, fmt.Errorf("failed to count events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.ActionEvent{}, fmt.Errorf("failed to commit event: %w", err)
	}

	s.hub.Publish(ev)
	return ev, nil
}

// Count returns the number of stored events of kind.
func (s *Store) Count(ctx context.Context, kind domain.ActionKind) (int64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownAction, kind)
	}
	if s.isClosed() {
		return 0, domain.ErrStoreClosed
	}

	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM action_events WHERE action_type = ?`, string(kind),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// Subscribe receives events appended through this Store.
func (s *Store) Subscribe(ctx context.Context) (<-chan domain.ActionEvent, ports.CancelFunc, error) {
	ch, cancel, err := s.hub.Subscribe(ctx)
	if err != nil {
		if errors.Is(err, fanout.ErrClosed) {
			return nil, nil, domain.ErrStoreClosed
		}
		return nil, nil, err
	}
	return ch, ports.CancelFunc(cancel), nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.ActionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action_type, created_at FROM action_events ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []domain.ActionEvent
	for rows.Next() {
		var (
			ev   domain.ActionEvent
			kind string
			at   string
		)
		if err := rows.Scan(&ev.ID, &kind, &at); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Kind = domain.ActionKind(kind)
		ev.At, _ = time.Parse(time.RFC3339Nano, at)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close ends all subscriptions and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.Close()
	return s.db.Close()
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
