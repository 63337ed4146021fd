// Package history records completed stream sessions.
package history

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")
	// ErrStoreClosed is returned when the store has been closed.
	ErrStoreClosed = errors.New("history store closed")
	// ErrInvalidID is returned for an empty session ID.
	ErrInvalidID = errors.New("invalid session ID")
)

// Session is one completed connection attempt.
type Session struct {
	ID          string
	Endpoint    string
	LogID       string
	StartedAt   time.Time
	EndedAt     time.Time
	Fragments   int
	Bytes       int
	CloseCode   int
	CloseReason string
	Error       string
}

// Duration returns how long the session lasted.
func (s Session) Duration() time.Duration {
	if s.EndedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Store persists sessions.
type Store interface {
	// Add records a session and returns its ID.
	Add(ctx context.Context, s Session) (string, error)

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (Session, error)

	// List returns the most recent sessions, newest first.
	List(ctx context.Context, limit int) ([]Session, error)

	// Prune deletes sessions older than the cutoff and returns the count.
	Prune(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases store resources.
	Close() error
}
