package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeServer(t *testing.T) {
	t.Run("trims trailing slashes", func(t *testing.T) {
		caps := DefaultCapabilities()

		assert.Equal(t, "ws://host:9000/gen", NormalizeServer("ws://host:9000/gen/", caps))
		assert.Equal(t, "ws://host:9000/gen", NormalizeServer("ws://host:9000/gen///", caps))
		assert.Equal(t, "ws://host:9000/gen", NormalizeServer("ws://host:9000/gen", caps))
	})

	t.Run("loopback rewrite", func(t *testing.T) {
		caps := Capabilities{HandshakeHeaders: true, LoopbackRewrite: "10.0.2.2"}

		assert.Equal(t, "ws://10.0.2.2:9000/gen", NormalizeServer("ws://localhost:9000/gen", caps))
		assert.Equal(t, "ws://10.0.2.2:9000/gen", NormalizeServer("ws://127.0.0.1:9000/gen", caps))
		assert.Equal(t, "ws://10.0.2.2/gen", NormalizeServer("ws://localhost/gen", caps))
	})

	t.Run("rewrite leaves other hosts alone", func(t *testing.T) {
		caps := Capabilities{HandshakeHeaders: true, LoopbackRewrite: "10.0.2.2"}

		assert.Equal(t, "wss://example.com/gen", NormalizeServer("wss://example.com/gen/", caps))
	})

	t.Run("rewrite disabled by default", func(t *testing.T) {
		assert.Equal(t, "ws://localhost:9000/gen", NormalizeServer("ws://localhost:9000/gen", DefaultCapabilities()))
	})

	t.Run("malformed URL passes through", func(t *testing.T) {
		caps := Capabilities{LoopbackRewrite: "10.0.2.2"}

		assert.Equal(t, "not a url", NormalizeServer("not a url/", caps))
	})
}

func TestResolve(t *testing.T) {
	t.Run("empty log id resolves empty", func(t *testing.T) {
		caps := DefaultCapabilities()

		assert.Empty(t, Resolve(StreamTarget{Server: "ws://host/gen"}, caps))
		assert.Empty(t, Resolve(StreamTarget{Server: "ws://host/gen", LogID: "   "}, caps))
		assert.Empty(t, Resolve(StreamTarget{Server: "ws://host/gen", LogID: "\t\n"}, caps))
	})

	t.Run("joins normalized base and trimmed log id", func(t *testing.T) {
		target := StreamTarget{Server: "ws://host:9000/gen/", LogID: " 42 "}

		assert.Equal(t, "ws://host:9000/gen/42", Resolve(target, DefaultCapabilities()))
	})

	t.Run("loopback rewrite applies", func(t *testing.T) {
		caps := Capabilities{HandshakeHeaders: true, LoopbackRewrite: "10.0.2.2"}
		target := StreamTarget{Server: "ws://localhost:9000/gen", LogID: "42"}

		assert.Equal(t, "ws://10.0.2.2:9000/gen/42", Resolve(target, caps))
	})

	t.Run("token as query parameters without header support", func(t *testing.T) {
		caps := Capabilities{HandshakeHeaders: false}
		target := StreamTarget{Server: "wss://host/test/generation2", LogID: "1075", Token: "abc"}

		assert.Equal(t, "wss://host/test/generation2/1075?authorization=abc&accesstoken=abc", Resolve(target, caps))
	})

	t.Run("token escaped in query", func(t *testing.T) {
		caps := Capabilities{HandshakeHeaders: false}
		target := StreamTarget{Server: "ws://host", LogID: "1", Token: "a b&c"}

		assert.Equal(t, "ws://host/1?authorization=a+b%26c&accesstoken=a+b%26c", Resolve(target, caps))
	})

	t.Run("token stays out of URL with header support", func(t *testing.T) {
		target := StreamTarget{Server: "ws://host", LogID: "1", Token: "abc"}

		assert.Equal(t, "ws://host/1", Resolve(target, DefaultCapabilities()))
	})

	t.Run("no token no query", func(t *testing.T) {
		caps := Capabilities{HandshakeHeaders: false}
		target := StreamTarget{Server: "ws://host", LogID: "1"}

		assert.Equal(t, "ws://host/1", Resolve(target, caps))
	})
}

func TestHandshakeHeaders(t *testing.T) {
	t.Run("authorization header with support and token", func(t *testing.T) {
		target := StreamTarget{Token: "abc"}

		headers := HandshakeHeaders(target, DefaultCapabilities())
		assert.Equal(t, map[string]string{"Authorization": "abc"}, headers)
	})

	t.Run("nil without token", func(t *testing.T) {
		assert.Nil(t, HandshakeHeaders(StreamTarget{}, DefaultCapabilities()))
	})

	t.Run("nil without header support", func(t *testing.T) {
		caps := Capabilities{HandshakeHeaders: false}

		assert.Nil(t, HandshakeHeaders(StreamTarget{Token: "abc"}, caps))
	})
}
