// Package server keeps the registry of handshaken sessions, the single source
// of truth for who is online.
package server

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Registry maps session ids to sessions. All mutations and snapshots are
// mutually exclusive; callers send to snapshot members without holding the lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Add inserts a session that completed its handshake.
func (r *Registry) Add(session *Session) error {
	if session == nil || session.Name() == "" {
		return ErrInvalidSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.ID()]; exists {
		return ErrDuplicateSession
	}
	r.sessions[session.ID()] = session
	return nil
}

// Remove deletes the session with the given id and reports whether this call
// removed it. Removing an absent id is a no-op, so only the first of several
// concurrent removals returns true.
func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	return session, true
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	return session, ok
}

// Snapshot returns the current members for fan-out.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Values(r.sessions)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// Names returns the sorted display names of registered sessions. Duplicates
// are kept.
func (r *Registry) Names() []string {
	names := lo.Map(r.Snapshot(), func(s *Session, _ int) string {
		return s.Name()
	})
	slices.Sort(names)
	return names
}

// Drain removes every session and returns them.
func (r *Registry) Drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := lo.Values(r.sessions)
	r.sessions = make(map[string]*Session)
	return drained
}
