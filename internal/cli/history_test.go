package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wstail/wstail/internal/history"
	sqlitestore "github.com/wstail/wstail/internal/history/sqlite"
)

func seedStore(t *testing.T, sessions ...history.Session) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	for _, s := range sessions {
		_, err := store.Add(context.Background(), s)
		require.NoError(t, err)
	}
	return store
}

func TestRunHistory(t *testing.T) {
	now := time.Now()

	t.Run("lists recorded sessions", func(t *testing.T) {
		store := seedStore(t,
			history.Session{
				Endpoint:  "ws://host/gen/7",
				LogID:     "7",
				StartedAt: now.Add(-time.Minute),
				EndedAt:   now,
				Fragments: 12,
				CloseCode: 1000,
			},
			history.Session{
				Endpoint:  "ws://host/gen/8",
				LogID:     "8",
				StartedAt: now.Add(-time.Hour),
				EndedAt:   now.Add(-time.Hour).Add(5 * time.Second),
				Error:     "connection refused",
			},
		)

		var out bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&out)

		require.NoError(t, runHistory(cmd, store, &HistoryOptions{Limit: 10}))

		got := out.String()
		assert.Contains(t, got, "7")
		assert.Contains(t, got, "closed 1000")
		assert.Contains(t, got, "error: connection refused")
	})

	t.Run("empty store", func(t *testing.T) {
		store := seedStore(t)

		var out bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&out)

		require.NoError(t, runHistory(cmd, store, &HistoryOptions{Limit: 10}))
		assert.Contains(t, out.String(), "No sessions recorded")
	})

	t.Run("prune removes old sessions", func(t *testing.T) {
		store := seedStore(t,
			history.Session{LogID: "old", StartedAt: now.Add(-48 * time.Hour)},
			history.Session{LogID: "new", StartedAt: now},
		)

		var out bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&out)

		require.NoError(t, runHistory(cmd, store, &HistoryOptions{Limit: 10, Prune: 24 * time.Hour}))

		got := out.String()
		assert.Contains(t, got, "Pruned 1 session(s)")
		assert.Contains(t, got, "new")
		assert.NotContains(t, got, "old")
	})
}

func TestSessionResult(t *testing.T) {
	assert.Equal(t, "done", sessionResult(history.Session{}))
	assert.Equal(t, "closed 1006", sessionResult(history.Session{CloseCode: 1006}))
	assert.Equal(t, "closed 1000 (bye)", sessionResult(history.Session{CloseCode: 1000, CloseReason: "bye"}))
	assert.Equal(t, "error: boom", sessionResult(history.Session{Error: "boom"}))
}
