// Package sqlite implements the session history store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wstail/wstail/internal/history"
)

// Store implements history.Store using SQLite.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// New creates a SQLite-backed history store at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// NewInMemory creates an in-memory store (useful for testing).
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			endpoint TEXT NOT NULL,
			log_id TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			fragments INTEGER NOT NULL DEFAULT 0,
			bytes INTEGER NOT NULL DEFAULT 0,
			close_code INTEGER NOT NULL DEFAULT 0,
			close_reason TEXT,
			error TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_sessions_log ON sessions(log_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Add records a session and returns its ID.
func (s *Store) Add(ctx context.Context, entry history.Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", history.ErrStoreClosed
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, endpoint, log_id, started_at, ended_at,
			fragments, bytes, close_code, close_reason, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID, entry.Endpoint, entry.LogID, entry.StartedAt, entry.EndedAt,
		entry.Fragments, entry.Bytes, entry.CloseCode, entry.CloseReason, entry.Error,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	return entry.ID, nil
}

// Get retrieves a session by ID.
func (s *Store) Get(ctx context.Context, id string) (history.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return history.Session{}, history.ErrStoreClosed
	}
	if id == "" {
		return history.Session{}, history.ErrInvalidID
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, endpoint, log_id, started_at, ended_at,
			fragments, bytes, close_code, close_reason, error
		FROM sessions WHERE id = ?
	`, id)

	entry, err := scanSession(row)
	if err == sql.ErrNoRows {
		return history.Session{}, history.ErrNotFound
	}
	if err != nil {
		return history.Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	return entry, nil
}

// List returns the most recent sessions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]history.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, history.ErrStoreClosed
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint, log_id, started_at, ended_at,
			fragments, bytes, close_code, close_reason, error
		FROM sessions ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []history.Session
	for rows.Next() {
		entry, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, entry)
	}
	return sessions, rows.Err()
}

// Prune deletes sessions that started before the cutoff.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, history.ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE started_at < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (history.Session, error) {
	var entry history.Session
	var endedAt sql.NullTime
	var closeReason, errText sql.NullString

	err := row.Scan(
		&entry.ID, &entry.Endpoint, &entry.LogID, &entry.StartedAt, &endedAt,
		&entry.Fragments, &entry.Bytes, &entry.CloseCode, &closeReason, &errText,
	)
	if err != nil {
		return history.Session{}, err
	}

	if endedAt.Valid {
		entry.EndedAt = endedAt.Time
	}
	entry.CloseReason = closeReason.String
	entry.Error = errText.String
	return entry, nil
}
