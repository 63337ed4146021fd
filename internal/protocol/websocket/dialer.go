// Package websocket provides the gorilla/websocket-backed transport for
// wstail. It adapts the blocking dial/read API into the event-callback
// contract the controller consumes.
package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wstail/wstail/internal/interfaces"
)

// ErrBadScheme is returned when the URL scheme is not ws or wss.
var ErrBadScheme = errors.New("URL scheme must be ws or wss")

// DefaultHandshakeTimeout bounds the handshake when DialOptions does not.
const DefaultHandshakeTimeout = 30 * time.Second

// Dialer opens WebSocket connections and delivers lifecycle events.
type Dialer struct{}

// NewDialer creates a new WebSocket dialer.
func NewDialer() *Dialer {
	return &Dialer{}
}

// Dial validates the URL, then performs the handshake asynchronously.
// The returned handle is live immediately: closing it cancels the dial
// and suppresses all further events.
func (d *Dialer) Dial(ctx context.Context, rawURL string, opts interfaces.DialOptions, ev interfaces.Events) (interfaces.Socket, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, ErrBadScheme
	}

	h := &handle{
		events:    ev,
		closeChan: make(chan struct{}),
	}
	go h.run(ctx, rawURL, opts)
	return h, nil
}

// handle is a single live connection. All events are suppressed once the
// handle is closed locally, so a superseded handle cannot fire callbacks
// after its owner has let go of it.
type handle struct {
	mu        sync.Mutex
	conn      *websocket.Conn
	events    interfaces.Events
	closeChan chan struct{}
	closed    bool
}

// run performs the handshake and then reads frames until the connection
// ends. Runs on its own goroutine.
func (h *handle) run(ctx context.Context, rawURL string, opts interfaces.DialOptions) {
	timeout := opts.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	if opts.TLSInsecure {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	var headers http.Header
	if len(opts.Headers) > 0 {
		headers = make(http.Header, len(opts.Headers))
		for k, v := range opts.Headers {
			headers.Set(k, v)
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, rawURL, headers)
	if err != nil {
		h.notifyError(fmt.Errorf("failed to connect: %w", err))
		return
	}
	defer resp.Body.Close()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.conn = conn
	h.mu.Unlock()

	h.notifyOpen()
	h.readLoop(conn)
}

// readLoop reads frames until an error ends the connection. Text frames
// become OnMessage events; binary and control frames are dropped (the
// framing contract with the server is text-only).
func (h *handle) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-h.closeChan:
				return
			default:
			}

			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				h.notifyClose(closeErr.Code, closeErr.Text)
			} else {
				h.notifyError(err)
			}
			h.teardown()
			return
		}

		if msgType != websocket.TextMessage {
			continue
		}
		h.notifyMessage(string(data))
	}
}

// Close shuts the connection down best-effort. Safe to call repeatedly
// and before the handshake has finished; no events fire afterwards.
func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	close(h.closeChan)

	if h.conn != nil {
		h.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err := h.conn.Close()
		h.conn = nil
		return err
	}
	return nil
}

// teardown releases the underlying connection after a remote close or
// read failure without firing further events.
func (h *handle) teardown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.closeChan)
	if h.conn != nil {
		h.conn.Close()
		h.conn = nil
	}
}

// suppressed reports whether the handle was closed locally, in which case
// no more events may be delivered.
func (h *handle) suppressed() bool {
	select {
	case <-h.closeChan:
		return true
	default:
		return false
	}
}

func (h *handle) notifyOpen() {
	if h.suppressed() || h.events.OnOpen == nil {
		return
	}
	h.events.OnOpen()
}

func (h *handle) notifyMessage(text string) {
	if h.suppressed() || h.events.OnMessage == nil {
		return
	}
	h.events.OnMessage(text)
}

func (h *handle) notifyError(err error) {
	if h.suppressed() || h.events.OnError == nil {
		return
	}
	h.events.OnError(err)
}

func (h *handle) notifyClose(code int, reason string) {
	if h.suppressed() || h.events.OnClose == nil {
		return
	}
	h.events.OnClose(code, reason)
}
