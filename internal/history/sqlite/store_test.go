package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wstail/wstail/internal/history"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleSession(logID string, started time.Time) history.Session {
	return history.Session{
		Endpoint:  "ws://host:9000/gen/" + logID,
		LogID:     logID,
		StartedAt: started,
		EndedAt:   started.Add(3 * time.Second),
		Fragments: 12,
		Bytes:     480,
		CloseCode: 1000,
	}
}

func TestStore_AddGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, sampleSession("42", time.Now()))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "42", got.LogID)
	assert.Equal(t, "ws://host:9000/gen/42", got.Endpoint)
	assert.Equal(t, 12, got.Fragments)
	assert.Equal(t, 480, got.Bytes)
	assert.Equal(t, 1000, got.CloseCode)
}

func TestStore_Get(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("missing session", func(t *testing.T) {
		_, err := store.Get(ctx, "nope")
		assert.ErrorIs(t, err, history.ErrNotFound)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := store.Get(ctx, "")
		assert.ErrorIs(t, err, history.ErrInvalidID)
	})
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		_, err := store.Add(ctx, sampleSession("42", base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	t.Run("newest first", func(t *testing.T) {
		sessions, err := store.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, sessions, 5)
		for i := 1; i < len(sessions); i++ {
			assert.False(t, sessions[i].StartedAt.After(sessions[i-1].StartedAt))
		}
	})

	t.Run("limit applies", func(t *testing.T) {
		sessions, err := store.List(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, sessions, 2)
	})
}

func TestStore_Prune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-time.Minute)
	_, err := store.Add(ctx, sampleSession("old", old))
	require.NoError(t, err)
	_, err = store.Add(ctx, sampleSession("new", recent))
	require.NoError(t, err)

	n, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sessions, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "new", sessions[0].LogID)
}

func TestStore_Closed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Close())

	_, err := store.Add(ctx, sampleSession("42", time.Now()))
	assert.ErrorIs(t, err, history.ErrStoreClosed)

	_, err = store.List(ctx, 10)
	assert.ErrorIs(t, err, history.ErrStoreClosed)

	assert.NoError(t, store.Close())
}

func TestSession_Duration(t *testing.T) {
	started := time.Now()
	s := history.Session{StartedAt: started, EndedAt: started.Add(2 * time.Second)}
	assert.Equal(t, 2*time.Second, s.Duration())

	assert.Zero(t, history.Session{StartedAt: started}.Duration())
}
