package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wstail/wstail/internal/interfaces"
)

// streamWSServer accepts one connection, sends the given frames, then
// closes with the given code and reason.
func streamWSServer(t *testing.T, frames []string, closeCode int, closeReason string) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(closeCode, closeReason),
			time.Now().Add(time.Second),
		)
		// Wait for the client close response or a read error.
		conn.ReadMessage()
	}))
}

// eventRecorder collects delivered events for assertions.
type eventRecorder struct {
	mu       sync.Mutex
	opened   bool
	messages []string
	errs     []error
	closes   []struct {
		code   int
		reason string
	}
	done chan struct{}
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{done: make(chan struct{}, 4)}
}

func (r *eventRecorder) events() interfaces.Events {
	return interfaces.Events{
		OnOpen: func() {
			r.mu.Lock()
			r.opened = true
			r.mu.Unlock()
		},
		OnMessage: func(text string) {
			r.mu.Lock()
			r.messages = append(r.messages, text)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			r.done <- struct{}{}
		},
		OnClose: func(code int, reason string) {
			r.mu.Lock()
			r.closes = append(r.closes, struct {
				code   int
				reason string
			}{code, reason})
			r.mu.Unlock()
			r.done <- struct{}{}
		},
	}
}

func (r *eventRecorder) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for terminal event")
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestDialer_Dial(t *testing.T) {
	t.Run("rejects non-websocket scheme", func(t *testing.T) {
		d := NewDialer()

		_, err := d.Dial(context.Background(), "http://example.com", interfaces.DialOptions{}, interfaces.Events{})
		assert.ErrorIs(t, err, ErrBadScheme)
	})

	t.Run("rejects unparsable URL", func(t *testing.T) {
		d := NewDialer()

		_, err := d.Dial(context.Background(), "ws://host\x7f/path", interfaces.DialOptions{}, interfaces.Events{})
		assert.Error(t, err)
	})

	t.Run("delivers frames then close", func(t *testing.T) {
		server := streamWSServer(t, []string{"alpha", "beta"}, websocket.CloseNormalClosure, "all done")
		defer server.Close()

		rec := newEventRecorder()
		d := NewDialer()
		sock, err := d.Dial(context.Background(), wsURL(server), interfaces.DialOptions{}, rec.events())
		require.NoError(t, err)
		defer sock.Close()

		rec.waitDone(t)

		rec.mu.Lock()
		defer rec.mu.Unlock()
		assert.True(t, rec.opened)
		assert.Equal(t, []string{"alpha", "beta"}, rec.messages)
		require.Len(t, rec.closes, 1)
		assert.Equal(t, websocket.CloseNormalClosure, rec.closes[0].code)
		assert.Equal(t, "all done", rec.closes[0].reason)
		assert.Empty(t, rec.errs)
	})

	t.Run("handshake failure reports error", func(t *testing.T) {
		rec := newEventRecorder()
		d := NewDialer()
		sock, err := d.Dial(context.Background(), "ws://localhost:59999/nope", interfaces.DialOptions{
			HandshakeTimeout: 200 * time.Millisecond,
		}, rec.events())
		require.NoError(t, err)
		defer sock.Close()

		rec.waitDone(t)

		rec.mu.Lock()
		defer rec.mu.Unlock()
		assert.False(t, rec.opened)
		require.NotEmpty(t, rec.errs)
	})

	t.Run("sends handshake headers", func(t *testing.T) {
		headerCh := make(chan string, 1)
		upgrader := websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headerCh <- r.Header.Get("Authorization")
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			conn.Close()
		}))
		defer server.Close()

		d := NewDialer()
		sock, err := d.Dial(context.Background(), wsURL(server), interfaces.DialOptions{
			Headers: map[string]string{"Authorization": "secret-token"},
		}, interfaces.Events{})
		require.NoError(t, err)
		defer sock.Close()

		select {
		case got := <-headerCh:
			assert.Equal(t, "secret-token", got)
		case <-time.After(5 * time.Second):
			t.Fatal("server never saw the handshake")
		}
	})
}

func TestHandle_Close(t *testing.T) {
	t.Run("close is idempotent", func(t *testing.T) {
		server := streamWSServer(t, nil, websocket.CloseNormalClosure, "")
		defer server.Close()

		d := NewDialer()
		sock, err := d.Dial(context.Background(), wsURL(server), interfaces.DialOptions{}, interfaces.Events{})
		require.NoError(t, err)

		assert.NoError(t, sock.Close())
		assert.NoError(t, sock.Close())
	})

	t.Run("close before handshake completes", func(t *testing.T) {
		d := NewDialer()
		sock, err := d.Dial(context.Background(), "ws://localhost:59999/nope", interfaces.DialOptions{
			HandshakeTimeout: time.Second,
		}, interfaces.Events{})
		require.NoError(t, err)

		assert.NoError(t, sock.Close())
	})

	t.Run("no events after local close", func(t *testing.T) {
		upgrader := websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			// Hold the connection; the client closes first.
			conn.ReadMessage()
		}))
		defer server.Close()

		rec := newEventRecorder()
		d := NewDialer()
		sock, err := d.Dial(context.Background(), wsURL(server), interfaces.DialOptions{}, rec.events())
		require.NoError(t, err)

		require.NoError(t, sock.Close())
		time.Sleep(200 * time.Millisecond)

		rec.mu.Lock()
		defer rec.mu.Unlock()
		assert.Empty(t, rec.closes)
		assert.Empty(t, rec.errs)
	})
}
