// Package server runs the per-connection session state machine: nickname
// handshake, read loop, message classification and disconnect detection.
package server

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// SessionState is the lifecycle stage of a client connection.
type SessionState int

const (
	StateConnected SessionState = iota
	StateHandshaking
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateHandshaking:
		return "handshaking"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session represents one handshaken chat peer. Its connection is written only
// through Send, which serialises writes so each peer sees a FIFO stream.
type Session struct {
	id          string
	name        string
	addr        string
	conn        Conn
	connectedAt time.Time

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

// SessionInfo is a read-only view of a registered session.
type SessionInfo struct {
	ID          string
	Name        string
	RemoteAddr  string
	ConnectedAt time.Time
}

func newSession(conn Conn, name string) *Session {
	s := &Session{
		id:          uuid.NewString(),
		name:        name,
		conn:        conn,
		connectedAt: time.Now().UTC(),
	}
	if conn != nil {
		s.addr = conn.RemoteAddr()
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Name returns the display name chosen during the handshake.
func (s *Session) Name() string { return s.name }

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() string { return s.addr }

// Info returns a snapshot of the session's identity.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:          s.id,
		Name:        s.name,
		RemoteAddr:  s.addr,
		ConnectedAt: s.connectedAt,
	}
}

// Send writes one message to the peer.
func (s *Session) Send(payload []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteMessage(payload); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSendFailure, s.name, err)
	}
	return nil
}

// Close closes the underlying connection. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.conn.Close()
	})
	return err
}

type sessionHandler struct {
	hub       *Hub
	conn      Conn
	log       *slog.Logger
	limiter   *rate.Limiter
	rateLimit RateLimitConfig
	state     SessionState
	session   *Session
}

func newSessionHandler(hub *Hub, conn Conn, log *slog.Logger, rateLimit RateLimitConfig) *sessionHandler {
	return &sessionHandler{
		hub:       hub,
		conn:      conn,
		log:       log.With("addr", conn.RemoteAddr()),
		limiter:   newSessionLimiter(rateLimit),
		rateLimit: rateLimit,
	}
}

func (h *sessionHandler) transition(next SessionState) {
	h.log.Debug("Session state changed", "from", h.state, "to", next)
	h.state = next
}

// run drives the session until it ends and returns the cause.
func (h *sessionHandler) run() error {
	h.state = StateConnected
	defer h.transition(StateClosed)

	session, err := h.handshake()
	if err != nil {
		_ = h.conn.Close()
		return err
	}
	h.session = session
	h.log = h.log.With("session_id", session.ID(), "name", session.Name())
	h.log.Info("Nickname of the client received")

	h.hub.Broadcast(Joined(session.Name()), session.ID())
	if err := session.Send([]byte(ConnectedNotice)); err != nil {
		h.hub.Disconnect(session)
		return err
	}

	h.transition(StateActive)
	return h.readLoop()
}

// handshake requests a nickname and registers the session under it.
func (h *sessionHandler) handshake() (*Session, error) {
	if err := h.conn.WriteMessage([]byte(NickRequest)); err != nil {
		return nil, fmt.Errorf("%w: request nickname: %w", ErrHandshakeFailure, err)
	}
	h.transition(StateHandshaking)

	name, err := h.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("%w: read nickname: %w", ErrHandshakeFailure, err)
	}
	if len(name) == 0 {
		return nil, fmt.Errorf("%w: empty nickname", ErrHandshakeFailure)
	}

	session := newSession(h.conn, string(name))
	if err := h.hub.Register(session); err != nil {
		return nil, fmt.Errorf("%w: register: %w", ErrHandshakeFailure, err)
	}
	return session, nil
}

func (h *sessionHandler) readLoop() error {
	for {
		msg, err := h.conn.ReadMessage()
		if err == nil && len(msg) == 0 {
			return h.disconnect(fmt.Errorf("%w: empty read", ErrConnectionClosed))
		}
		if err != nil {
			return h.disconnect(classifyReadError(err))
		}

		if !h.checkRateLimit() {
			continue
		}
		h.relay(msg)
	}
}

// disconnect unregisters the session. The hub announces the departure only if
// this path is the first to detect it.
func (h *sessionHandler) disconnect(cause error) error {
	if h.hub.Disconnect(h.session) {
		h.log.Info("Client disconnected", "cause", cause)
	}
	return cause
}

// checkRateLimit verifies if the session has exceeded its rate limit
// and returns true if the message should be relayed
func (h *sessionHandler) checkRateLimit() bool {
	if h.limiter != nil && !h.limiter.Allow() {
		h.log.Warn("Rate limit exceeded, discarding message",
			"burst", h.rateLimit.Burst, "interval", h.rateLimit.RefillInterval)
		return false
	}
	return true
}

func (h *sessionHandler) relay(msg []byte) {
	envelope := ParseInbound(msg)
	delivered := h.hub.Broadcast(envelope, h.session.ID())
	h.log.Debug("Relayed message", "kind", envelope.Kind, "recipients", delivered)
}
