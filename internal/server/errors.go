// Package server defines the error values used by sessions, the relay hub and
// the acceptor to classify connection failures.
package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

var (
	// ErrHandshakeFailure is returned when a connection fails or closes before
	// the client has supplied a display name. Nothing is broadcast for it.
	ErrHandshakeFailure = errors.New("handshake failure")

	// ErrSendFailure is returned when a write to a single session fails.
	ErrSendFailure = errors.New("send failure")

	// ErrReadFailure is returned when reading from an active session fails
	// for any reason other than an orderly close.
	ErrReadFailure = errors.New("read failure")

	// ErrConnectionClosed reports an orderly close by the peer or by the server.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrAcceptFailure wraps listener errors that end the accept loop.
	ErrAcceptFailure = errors.New("accept failure")

	// ErrDuplicateSession is returned by Registry.Add when the session id is
	// already registered.
	ErrDuplicateSession = errors.New("duplicate session")

	// ErrInvalidSession is returned by Registry.Add for a nil session or a
	// session without a display name.
	ErrInvalidSession = errors.New("invalid session")

	// ErrSessionClosed is returned when sending to a session that was closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrServerClosed is returned once the server or its hub is shutting down.
	ErrServerClosed = errors.New("server closed")

	// ErrConnectionLimit is returned when admission control rejects a client.
	ErrConnectionLimit = errors.New("connection limit reached")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "connection reset by peer") ||
		strings.Contains(errStr, "broken pipe")
}

// classifyReadError maps a transport read error onto ErrConnectionClosed or
// ErrReadFailure. Both lead to the same disconnect handling.
func classifyReadError(err error) error {
	if isExpectedCloseError(err) {
		return fmt.Errorf("%w: %w", ErrConnectionClosed, err)
	}
	return fmt.Errorf("%w: %w", ErrReadFailure, err)
}
