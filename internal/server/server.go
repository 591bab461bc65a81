// Package server accepts TCP connections and runs one session per connection
// until a deliberate shutdown closes the listeners.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/semaphore"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server is the connection acceptor. Each accepted connection gets its own
// goroutine; there is no admission control unless Config.MaxConnections is set.
type Server struct {
	cfg       Config
	log       *slog.Logger
	hub       *Hub
	origins   *originPolicy
	admission *semaphore.Weighted

	mu        sync.Mutex
	closed    bool
	listeners map[net.Listener]struct{}
	conns     map[Conn]struct{}
	sessions  sync.WaitGroup
}

// NewServer creates a Server for the given configuration.
func NewServer(cfg Config, log *slog.Logger) *Server {
	cfg = sanitizeConfig(cfg)
	s := &Server{
		cfg:       cfg,
		log:       log,
		hub:       NewHub(log),
		origins:   newOriginPolicy(cfg.Origins(), log),
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[Conn]struct{}),
	}
	if cfg.MaxConnections > 0 {
		s.admission = semaphore.NewWeighted(int64(cfg.MaxConnections))
	}
	return s
}

// Hub returns the relay hub shared by every transport.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Config returns the sanitized configuration.
func (s *Server) Config() Config {
	return s.cfg
}

// ListenAndServe binds the configured TCP address and serves it until ctx is
// cancelled or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := s.cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on ln. Transient accept errors are logged and
// retried with exponential backoff. It returns nil after a deliberate
// shutdown, including one that happened before Serve was called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.trackListener(ln) {
		_ = ln.Close()
		return nil
	}
	defer s.untrackListener(ln)

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	s.log.Info("Server is running and waiting for connections", "addr", ln.Addr().String())

	retry := newAcceptBackOff()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("%w: %w", ErrAcceptFailure, err)
			}

			delay := retry.NextBackOff()
			s.log.Error("Accept failed", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		retry.Reset()
		s.log.Info("Connected with client", "addr", conn.RemoteAddr().String())
		go func() {
			_ = s.ServeConn(newTCPConn(conn, s.cfg.ReadBufferSize, s.cfg.ReadTimeout, s.cfg.WriteTimeout))
		}()
	}
}

// newAcceptBackOff doubles the retry delay from minAcceptDelay up to
// maxAcceptDelay and never gives up.
func newAcceptBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = minAcceptDelay
	b.MaxInterval = maxAcceptDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// ServeConn runs one client session over conn and blocks until it ends. The
// returned error is the session's terminal cause; it never affects other
// sessions.
func (s *Server) ServeConn(conn Conn) error {
	if !s.admit() {
		s.log.Warn("Connection limit reached, rejecting client",
			"addr", conn.RemoteAddr(), "max_connections", s.cfg.MaxConnections)
		_ = conn.Close()
		return ErrConnectionLimit
	}
	defer s.release()

	if !s.trackConn(conn) {
		_ = conn.Close()
		return ErrServerClosed
	}
	defer s.untrackConn(conn)

	err := newSessionHandler(s.hub, conn, s.log, s.cfg.RateLimit()).run()
	s.logSessionEnd(conn.RemoteAddr(), err)
	return err
}

func (s *Server) logSessionEnd(addr string, err error) {
	switch {
	case err == nil, errors.Is(err, ErrConnectionClosed):
		s.log.Debug("Session ended", "addr", addr)
	case errors.Is(err, ErrHandshakeFailure):
		s.log.Warn("Handshake failed", "addr", addr, "error", err)
	default:
		s.log.Warn("Session ended with error", "addr", addr, "error", err)
	}
}

func (s *Server) admit() bool {
	return s.admission == nil || s.admission.TryAcquire(1)
}

func (s *Server) release() {
	if s.admission != nil {
		s.admission.Release(1)
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

func (s *Server) trackConn(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.sessions.Add(1)
	return true
}

func (s *Server) untrackConn(conn Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.sessions.Done()
}

// Shutdown closes every listener and client connection, then waits for the
// session goroutines to finish or ctx to expire. Departures during shutdown are
// not announced.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listeners := make([]net.Listener, 0, len(s.listeners))
	for ln := range s.listeners {
		listeners = append(listeners, ln)
	}
	conns := make([]Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	s.log.Info("Shutting down server...")
	for _, ln := range listeners {
		if err := ln.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Warn("Error closing listener", "error", err)
		}
	}

	s.hub.Close()
	for _, conn := range conns {
		if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
			s.log.Warn("Error closing connection", "addr", conn.RemoteAddr(), "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Server shutdown completed")
		return nil
	case <-ctx.Done():
		s.log.Warn("Server shutdown timeout reached, some sessions may still be running")
		return ctx.Err()
	}
}
