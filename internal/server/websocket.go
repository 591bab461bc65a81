// Package server exposes the WebSocket gateway, which runs the same session
// protocol with one frame per message, and the health check handler.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// wsConn adapts a gorilla WebSocket to Conn. Text and binary frames are both
// accepted; outbound messages are always text frames.
type wsConn struct {
	conn         *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newWSConn(conn *websocket.Conn, readTimeout, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		conn:         conn,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}

	_, p, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived) {
			return nil, fmt.Errorf("%w: %w", io.EOF, err)
		}
		return nil, err
	}
	return p, nil
}

func (c *wsConn) WriteMessage(p []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, p)
}

func (c *wsConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Close sends a best-effort close frame before closing the socket.
// WriteControl may run concurrently with WriteMessage.
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod)); err != nil &&
		!errors.Is(err, websocket.ErrCloseSent) && !isExpectedCloseError(err) {
		_ = c.conn.Close()
		return err
	}
	return c.conn.Close()
}

// WebSocketHandler upgrades GET requests to WebSocket and runs a chat session
// over the connection until it ends.
func WebSocketHandler(s *Server) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  s.cfg.ReadBufferSize,
		WriteBufferSize: s.cfg.ReadBufferSize,
		CheckOrigin:     s.origins.check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
			return
		}
		conn.SetReadLimit(s.cfg.MaxFrameSize)

		s.log.Info("Connected with WebSocket client", "addr", r.RemoteAddr)
		_ = s.ServeConn(newWSConn(conn, s.cfg.ReadTimeout, s.cfg.WriteTimeout))
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "relaychat server is running!")
}
