// Package core holds the domain types for wstail: the user-editable
// stream target and the pure URL resolution rules derived from it.
package core

import (
	"net/url"
	"strings"
)

// StreamTarget is the user-editable connection configuration. Every field
// may be edited independently; there is no cross-field validation.
type StreamTarget struct {
	// Server is the base WebSocket URL (ws:// or wss://).
	Server string

	// LogID identifies the log/generation stream to attach to.
	LogID string

	// Token is the optional authorization token.
	Token string
}

// Capabilities describe what the host environment supports. They are
// resolved once at startup and injected, never probed inline.
type Capabilities struct {
	// HandshakeHeaders is true when the transport can send custom
	// handshake headers. When false the token is embedded in the URL
	// as query parameters instead.
	HandshakeHeaders bool

	// LoopbackRewrite, when non-empty, replaces a localhost/127.0.0.1
	// host segment with this address. Escape hatch for environments
	// where loopback does not reach the intended host.
	LoopbackRewrite string

	// TLSInsecure allows insecure TLS connections.
	TLSInsecure bool
}

// DefaultCapabilities returns the capabilities of a native Go host:
// handshake headers supported, no loopback rewrite.
func DefaultCapabilities() Capabilities {
	return Capabilities{HandshakeHeaders: true}
}

// NormalizeServer trims trailing slashes from the base URL and applies
// the loopback rewrite when configured. Malformed URLs pass through
// unchanged; they fail later at dial time.
func NormalizeServer(server string, caps Capabilities) string {
	base := strings.TrimRight(server, "/")
	if caps.LoopbackRewrite == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return base
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1":
		host := caps.LoopbackRewrite
		if port := u.Port(); port != "" {
			host += ":" + port
		}
		u.Host = host
		return u.String()
	}
	return base
}

// Resolve derives the final connection URL from the target. The result is
// empty exactly when the trimmed LogID is empty. When the environment
// cannot send handshake headers, a non-empty token is appended under two
// query keys: the current name and a legacy alias the server also accepts.
func Resolve(t StreamTarget, caps Capabilities) string {
	logID := strings.TrimSpace(t.LogID)
	if logID == "" {
		return ""
	}
	resolved := NormalizeServer(t.Server, caps) + "/" + logID
	if !caps.HandshakeHeaders && t.Token != "" {
		tok := url.QueryEscape(t.Token)
		resolved += "?authorization=" + tok + "&accesstoken=" + tok
	}
	return resolved
}

// HandshakeHeaders returns the headers to send at dial time: the token as
// an Authorization header when the environment supports it, nil otherwise.
func HandshakeHeaders(t StreamTarget, caps Capabilities) map[string]string {
	if !caps.HandshakeHeaders || t.Token == "" {
		return nil
	}
	return map[string]string{"Authorization": t.Token}
}
