package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelope_Render(t *testing.T) {
	cases := []struct {
		name     string
		envelope Envelope
		expected string
	}{
		{name: "chat", envelope: Chat("alice", "hi"), expected: "alice: hi"},
		{name: "forwarded", envelope: Forwarded([]byte("alice: hi")), expected: "alice: hi"},
		{name: "typing", envelope: TypingEvent("bob"), expected: "TYPING_EVENT:bob"},
		{name: "joined", envelope: Joined("carol"), expected: "carol joined the chat!"},
		{name: "left", envelope: Left("carol"), expected: "carol left the chat!"},
		{name: "server notice", envelope: ServerNotice("restart soon"), expected: "SERVER: restart soon"},
		{name: "empty typing name", envelope: TypingEvent(""), expected: "TYPING_EVENT:"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, string(tc.envelope.Render()))
		})
	}
}

func TestEnvelope_Unknown_Kind_Renders_Nothing(t *testing.T) {
	require.Nil(t, Envelope{}.Render())
}

func TestParseInbound(t *testing.T) {
	cases := []struct {
		name     string
		msg      string
		kind     EnvelopeKind
		rendered string
	}{
		{name: "typing", msg: "TYPING:bob", kind: KindTyping, rendered: "TYPING_EVENT:bob"},
		{name: "typing with empty name", msg: "TYPING:", kind: KindTyping, rendered: "TYPING_EVENT:"},
		{name: "typing claims any name", msg: "TYPING:mallory", kind: KindTyping, rendered: "TYPING_EVENT:mallory"},
		{name: "plain chat", msg: "alice: hello", kind: KindForwarded, rendered: "alice: hello"},
		{name: "prefix without colon", msg: "TYPING", kind: KindForwarded, rendered: "TYPING"},
		{name: "lowercase prefix", msg: "typing:bob", kind: KindForwarded, rendered: "typing:bob"},
		{name: "prefix not at start", msg: " TYPING:bob", kind: KindForwarded, rendered: " TYPING:bob"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := require.New(t)
			envelope := ParseInbound([]byte(tc.msg))
			req.Equal(tc.kind, envelope.Kind)
			req.Equal(tc.rendered, string(envelope.Render()))
		})
	}
}

func TestEnvelopeKind_String(t *testing.T) {
	req := require.New(t)
	req.Equal("chat", KindChat.String())
	req.Equal("forwarded", KindForwarded.String())
	req.Equal("typing", KindTyping.String())
	req.Equal("joined", KindJoined.String())
	req.Equal("left", KindLeft.String())
	req.Equal("server_notice", KindServerNotice.String())
	req.Equal("kind(42)", EnvelopeKind(42).String())
}
