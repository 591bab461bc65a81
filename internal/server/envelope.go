// Package server defines the relay's wire literals and the Envelope type the
// hub renders for fan-out.
package server

import (
	"bytes"
	"fmt"
)

// Wire literals of the chat protocol.
const (
	NickRequest        = "NICK"
	ConnectedNotice    = "Connected to the server!"
	TypingPrefix       = "TYPING:"
	TypingEventPrefix  = "TYPING_EVENT:"
	ServerNoticePrefix = "SERVER: "
	joinedSuffix       = " joined the chat!"
	leftSuffix         = " left the chat!"
)

// EnvelopeKind identifies the shape of an Envelope.
type EnvelopeKind int

const (
	KindChat EnvelopeKind = iota + 1
	KindForwarded
	KindTyping
	KindJoined
	KindLeft
	KindServerNotice
)

func (k EnvelopeKind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindForwarded:
		return "forwarded"
	case KindTyping:
		return "typing"
	case KindJoined:
		return "joined"
	case KindLeft:
		return "left"
	case KindServerNotice:
		return "server_notice"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Envelope is a transient message the hub renders once and sends to every
// target of a broadcast.
type Envelope struct {
	Kind   EnvelopeKind
	Sender string
	Text   string
	Line   []byte
}

// Chat builds a chat line attributed to sender.
func Chat(sender, text string) Envelope {
	return Envelope{Kind: KindChat, Sender: sender, Text: text}
}

// Forwarded wraps a chat line the client formatted itself. It is relayed
// byte for byte.
func Forwarded(line []byte) Envelope {
	return Envelope{Kind: KindForwarded, Line: line}
}

// TypingEvent announces that sender is typing.
func TypingEvent(sender string) Envelope {
	return Envelope{Kind: KindTyping, Sender: sender}
}

// Joined announces a new participant.
func Joined(name string) Envelope {
	return Envelope{Kind: KindJoined, Sender: name}
}

// Left announces a departed participant.
func Left(name string) Envelope {
	return Envelope{Kind: KindLeft, Sender: name}
}

// ServerNotice carries operator text.
func ServerNotice(text string) Envelope {
	return Envelope{Kind: KindServerNotice, Text: text}
}

// Render returns the wire bytes for the envelope.
func (e Envelope) Render() []byte {
	switch e.Kind {
	case KindChat:
		return []byte(e.Sender + ": " + e.Text)
	case KindForwarded:
		return e.Line
	case KindTyping:
		return []byte(TypingEventPrefix + e.Sender)
	case KindJoined:
		return []byte(e.Sender + joinedSuffix)
	case KindLeft:
		return []byte(e.Sender + leftSuffix)
	case KindServerNotice:
		return []byte(ServerNoticePrefix + e.Text)
	default:
		return nil
	}
}

// ParseInbound classifies a message received from an active session.
// "TYPING:<name>" becomes a TypingEvent for name; anything else is forwarded
// untouched.
func ParseInbound(msg []byte) Envelope {
	if name, ok := bytes.CutPrefix(msg, []byte(TypingPrefix)); ok {
		return TypingEvent(string(name))
	}
	return Forwarded(msg)
}
