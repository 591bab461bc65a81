// Package server coordinates session registration, envelope fan-out and
// disconnect announcements for the relay via the Hub type.
package server

import (
	"log/slog"
	"sync/atomic"

	"github.com/samber/lo"
)

// Hub is the relay engine. It renders envelopes and fans them out to a
// snapshot of the registry, sending outside the registry lock so a slow peer
// never blocks registration or removal.
type Hub struct {
	registry *Registry
	log      *slog.Logger
	closing  atomic.Bool
}

// NewHub creates a Hub with an empty registry.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		registry: NewRegistry(),
		log:      log,
	}
}

// Registry returns the hub's session registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Online returns a view of every registered session.
func (h *Hub) Online() []SessionInfo {
	return lo.Map(h.registry.Snapshot(), func(s *Session, _ int) SessionInfo {
		return s.Info()
	})
}

// Register adds a handshaken session. It fails with ErrServerClosed once the
// hub is closing.
func (h *Hub) Register(session *Session) error {
	if h.closing.Load() {
		return ErrServerClosed
	}
	if err := h.registry.Add(session); err != nil {
		return err
	}
	h.log.Info("Client registered", "session_id", session.ID(), "name", session.Name(),
		"total_clients", h.registry.Len())
	return nil
}

// Broadcast sends the envelope to every registered session except excludeID
// and returns the number of successful deliveries. Targets whose send fails are
// removed, closed and announced with a Left envelope.
func (h *Hub) Broadcast(envelope Envelope, excludeID string) int {
	delivered, failed := h.broadcastToSessions(h.registry.Snapshot(), envelope.Render(), excludeID)
	h.removeFailedSessions(failed)
	return delivered
}

// broadcastToSessions sends payload to every session except excludeID and
// returns the delivered count and the sessions whose send failed.
func (h *Hub) broadcastToSessions(sessions []*Session, payload []byte, excludeID string) (int, []*Session) {
	var (
		delivered int
		failed    []*Session
	)
	for _, session := range sessions {
		if excludeID != "" && session.ID() == excludeID {
			continue
		}
		if err := session.Send(payload); err != nil {
			h.log.Warn("Send to client failed", "session_id", session.ID(), "name", session.Name(), "error", err)
			failed = append(failed, session)
			continue
		}
		delivered++
	}
	return delivered, failed
}

// removeFailedSessions announces every session dropped after a failed send.
// Each announcement is attempted once; sessions that fail to receive it are
// dropped and announced in turn. The queue drains because a session can be
// removed from the registry only once.
func (h *Hub) removeFailedSessions(failed []*Session) {
	departed := h.dropSessions(failed)
	for len(departed) > 0 {
		name := departed[0]
		departed = departed[1:]

		_, more := h.broadcastToSessions(h.registry.Snapshot(), Left(name).Render(), "")
		departed = append(departed, h.dropSessions(more)...)
	}
}

// dropSessions removes and closes the given sessions and returns the names
// that still need a Left announcement.
func (h *Hub) dropSessions(sessions []*Session) []string {
	var departed []string
	for _, session := range sessions {
		if _, removed := h.registry.Remove(session.ID()); !removed {
			continue
		}
		_ = session.Close()
		h.log.Info("Client removed after failed send", "session_id", session.ID(), "name", session.Name(),
			"total_clients", h.registry.Len())
		if !h.closing.Load() {
			departed = append(departed, session.Name())
		}
	}
	return departed
}

// Disconnect removes the session, closes it and broadcasts its departure.
// It returns false when another path already removed the session, in which
// case nothing is broadcast.
func (h *Hub) Disconnect(session *Session) bool {
	if session == nil {
		return false
	}
	if _, removed := h.registry.Remove(session.ID()); !removed {
		_ = session.Close()
		return false
	}
	_ = session.Close()
	h.log.Info("Client unregistered", "session_id", session.ID(), "name", session.Name(),
		"total_clients", h.registry.Len())

	if !h.closing.Load() {
		h.Broadcast(Left(session.Name()), "")
	}
	return true
}

// Close drains the registry and closes every session without announcing
// departures. It returns the number of sessions closed.
func (h *Hub) Close() int {
	h.closing.Store(true)

	sessions := h.registry.Drain()
	for _, session := range sessions {
		if err := session.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("Error closing client connection", "session_id", session.ID(), "error", err)
		}
	}
	h.log.Info("Closed client connections", "count", len(sessions))
	return len(sessions)
}
