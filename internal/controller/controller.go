// Package controller implements the stream connection lifecycle: it owns
// at most one live socket, derives the connection URL from the editable
// target, and accumulates received text into the output buffer.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wstail/wstail/internal/core"
	"github.com/wstail/wstail/internal/interfaces"
)

// EndOfStream is the reserved payload the server sends to signal a
// graceful end of stream. It is never appended to the output.
const EndOfStream = "[DONE]"

const openMarker = "[connected]\n"

func errorMarker(err error) string {
	return fmt.Sprintf("[error: %v]\n", err)
}

func closeMarker(code int, reason string) string {
	return fmt.Sprintf("[closed code=%d reason=%s]\n", code, reason)
}

// Filter decides whether an incoming fragment is appended to the output.
type Filter interface {
	Keep(message string) bool
}

// Stats summarize one connection attempt, for session recording.
type Stats struct {
	Fragments   int
	Bytes       int
	CloseCode   int
	CloseReason string
	Err         error
}

// Snapshot is the render-facing view of the controller.
type Snapshot struct {
	State       interfaces.ConnState
	Target      core.StreamTarget
	ResolvedURL string
	Output      string
}

// Controller drives a single logical stream connection. All methods are
// safe for concurrent use; transport callbacks and user actions serialize
// on one mutex. State changes are announced through the OnChange hook,
// never by assuming any particular rendering layer.
type Controller struct {
	mu     sync.Mutex
	dialer interfaces.Dialer
	caps   core.Capabilities
	target core.StreamTarget
	filter Filter

	state  interfaces.ConnState
	output strings.Builder
	stats  Stats

	// cur is the single live handle; gen identifies the connection
	// attempt it belongs to, so stale callbacks can be ignored.
	cur interfaces.Socket
	gen uint64

	notify func()
}

// New creates a controller using the given dialer and host capabilities.
func New(dialer interfaces.Dialer, caps core.Capabilities) *Controller {
	return &Controller{
		dialer: dialer,
		caps:   caps,
		state:  interfaces.ConnStateIdle,
	}
}

// OnChange registers the observer invoked after every externally visible
// state mutation. At most one observer; nil disables notification.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// SetFilter installs an optional fragment filter. Nil removes it.
func (c *Controller) SetFilter(f Filter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

// SetTarget replaces the whole stream target.
func (c *Controller) SetTarget(t core.StreamTarget) {
	c.mu.Lock()
	c.target = t
	c.mu.Unlock()
	c.notifyChange()
}

// SetServer updates the base URL.
func (c *Controller) SetServer(server string) {
	c.mu.Lock()
	c.target.Server = server
	c.mu.Unlock()
	c.notifyChange()
}

// SetLogID updates the log identifier.
func (c *Controller) SetLogID(logID string) {
	c.mu.Lock()
	c.target.LogID = logID
	c.mu.Unlock()
	c.notifyChange()
}

// SetToken updates the authorization token.
func (c *Controller) SetToken(token string) {
	c.mu.Lock()
	c.target.Token = token
	c.mu.Unlock()
	c.notifyChange()
}

// Target returns the current stream target.
func (c *Controller) Target() core.StreamTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// State returns the current connection state.
func (c *Controller) State() interfaces.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ResolvedURL returns the connection URL derived from the target, empty
// when the log id is empty.
func (c *Controller) ResolvedURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return core.Resolve(c.target, c.caps)
}

// Output returns the accumulated output buffer.
func (c *Controller) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output.String()
}

// Stats returns the counters for the current or most recent connection.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Snapshot returns a consistent view for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:       c.state,
		Target:      c.target,
		ResolvedURL: core.Resolve(c.target, c.caps),
		Output:      c.output.String(),
	}
}

// ConnectEnabled reports whether a connect action is currently meaningful:
// the URL resolves and no attempt is in flight.
func (c *Controller) ConnectEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == interfaces.ConnStateConnecting || c.state == interfaces.ConnStateOpen {
		return false
	}
	return core.Resolve(c.target, c.caps) != ""
}

// Connect starts a new connection attempt. A no-op when the URL does not
// resolve. Any prior handle is closed best-effort and the output buffer
// is reset before the new attempt begins.
func (c *Controller) Connect(ctx context.Context) {
	c.mu.Lock()
	resolved := core.Resolve(c.target, c.caps)
	if resolved == "" {
		c.mu.Unlock()
		return
	}

	if c.cur != nil {
		c.cur.Close()
		c.cur = nil
	}
	c.gen++
	gen := c.gen
	c.output.Reset()
	c.stats = Stats{}
	c.state = interfaces.ConnStateConnecting

	headers := core.HandshakeHeaders(c.target, c.caps)
	opts := interfaces.DialOptions{
		Headers:     headers,
		TLSInsecure: c.caps.TLSInsecure,
	}
	ev := interfaces.Events{
		OnOpen:    func() { c.handleOpen(gen) },
		OnMessage: func(text string) { c.handleMessage(gen, text) },
		OnError:   func(err error) { c.handleError(gen, err) },
		OnClose:   func(code int, reason string) { c.handleClose(gen, code, reason) },
	}
	c.mu.Unlock()
	c.notifyChange()

	sock, err := c.dialer.Dial(ctx, resolved, opts, ev)

	c.mu.Lock()
	if c.gen != gen {
		// Superseded while dialing; the newer attempt owns the slot.
		c.mu.Unlock()
		if sock != nil {
			sock.Close()
		}
		return
	}
	if err != nil {
		c.output.WriteString(errorMarker(err))
		c.stats.Err = err
		c.state = interfaces.ConnStateClosed
		c.mu.Unlock()
		c.notifyChange()
		return
	}
	c.cur = sock
	c.mu.Unlock()
}

// Disconnect closes any live handle best-effort and forces the state to
// Closed. Safe to call repeatedly.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	sock := c.cur
	c.cur = nil
	c.gen++
	c.state = interfaces.ConnStateClosed
	c.mu.Unlock()

	if sock != nil {
		sock.Close()
	}
	c.notifyChange()
}

// Clear empties the output buffer without touching the connection.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.output.Reset()
	c.mu.Unlock()
	c.notifyChange()
}

func (c *Controller) handleOpen(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = interfaces.ConnStateOpen
	c.output.WriteString(openMarker)
	c.mu.Unlock()
	c.notifyChange()
}

func (c *Controller) handleMessage(gen uint64, text string) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}

	if text == EndOfStream {
		sock := c.cur
		c.cur = nil
		c.gen++
		c.state = interfaces.ConnStateClosed
		c.mu.Unlock()
		if sock != nil {
			sock.Close()
		}
		c.notifyChange()
		return
	}

	if c.filter != nil && !c.filter.Keep(text) {
		c.mu.Unlock()
		return
	}
	c.output.WriteString(text)
	c.stats.Fragments++
	c.stats.Bytes += len(text)
	c.mu.Unlock()
	c.notifyChange()
}

func (c *Controller) handleError(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = interfaces.ConnStateClosed
	c.output.WriteString(errorMarker(err))
	c.stats.Err = err
	c.mu.Unlock()
	c.notifyChange()
}

func (c *Controller) handleClose(gen uint64, code int, reason string) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.state = interfaces.ConnStateClosed
	c.output.WriteString(closeMarker(code, reason))
	c.stats.CloseCode = code
	c.stats.CloseReason = reason
	c.mu.Unlock()
	c.notifyChange()
}

func (c *Controller) notifyChange() {
	c.mu.Lock()
	fn := c.notify
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
