// Package interfaces defines the abstractions that decouple the stream
// controller from the concrete WebSocket implementation.
package interfaces

import (
	"context"
	"time"
)

// ConnState represents the lifecycle state of a stream connection.
type ConnState int

const (
	// ConnStateIdle means no connection has been attempted yet.
	ConnStateIdle ConnState = iota
	// ConnStateConnecting means a dial is in flight.
	ConnStateConnecting
	// ConnStateOpen means the connection is established.
	ConnStateOpen
	// ConnStateClosed means the connection ended, by either side.
	ConnStateClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnStateIdle:
		return "idle"
	case ConnStateConnecting:
		return "connecting"
	case ConnStateOpen:
		return "open"
	case ConnStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Events are the lifecycle callbacks a dialer delivers for one socket.
// All callbacks are optional. A transport must stop delivering events
// once Close has been called on the socket it handed out.
type Events struct {
	// OnOpen fires once when the handshake completes.
	OnOpen func()

	// OnMessage fires for every received text frame, in arrival order.
	OnMessage func(text string)

	// OnError fires when the transport fails (handshake or read error).
	OnError func(err error)

	// OnClose fires when the peer closes the connection. Code and reason
	// come from the close frame and may be zero/empty.
	OnClose func(code int, reason string)
}

// DialOptions carries per-dial settings.
type DialOptions struct {
	// Headers are custom handshake headers (e.g. Authorization).
	Headers map[string]string

	// HandshakeTimeout bounds the handshake. Zero means the dialer default.
	HandshakeTimeout time.Duration

	// TLSInsecure allows insecure TLS connections.
	TLSInsecure bool
}

// Socket is a live connection handle. Close is best-effort: it may be
// called multiple times or on an already-dead handle without error.
type Socket interface {
	Close() error
}

// Dialer opens text-message sockets. Dial returns an error only for
// immediate construction failures (unparsable URL, bad scheme); handshake
// and transport failures are reported through the event callbacks.
type Dialer interface {
	Dial(ctx context.Context, url string, opts DialOptions, ev Events) (Socket, error)
}
