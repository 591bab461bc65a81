package server

import (
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const (
	testOriginURL  = "http://localhost:8080"
	receiveTimeout = time.Second
	quietPeriod    = 150 * time.Millisecond
)

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func testConfig() Config {
	cfg := NewConfig()
	cfg.Port = 0
	cfg.AllowedOrigins = testOriginURL
	cfg.AdminConsole = false
	return cfg
}

// pipeClient is a peer connected through net.Pipe. A pipe never coalesces
// writes, so each server message arrives as exactly one inbox entry.
type pipeClient struct {
	t     *testing.T
	conn  net.Conn
	inbox chan string
	ended chan error
}

func dialPipe(t *testing.T, srv *Server) *pipeClient {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	c := &pipeClient{
		t:     t,
		conn:  clientSide,
		inbox: make(chan string, 128),
		ended: make(chan error, 1),
	}
	go func() {
		c.ended <- srv.ServeConn(newTCPConn(serverSide, srv.cfg.ReadBufferSize, 0, 0))
	}()
	go c.readLoop()
	t.Cleanup(func() { _ = c.conn.Close() })
	return c
}

func (c *pipeClient) readLoop() {
	defer close(c.inbox)
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.inbox <- string(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

func (c *pipeClient) send(msg string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(receiveTimeout)))
	_, err := c.conn.Write([]byte(msg))
	require.NoError(c.t, err)
}

func (c *pipeClient) expect(want string) {
	c.t.Helper()
	select {
	case got, ok := <-c.inbox:
		require.True(c.t, ok, "connection closed while waiting for %q", want)
		require.Equal(c.t, want, got)
	case <-time.After(receiveTimeout):
		require.Failf(c.t, "message not received", "expected %q", want)
	}
}

func (c *pipeClient) expectNothing() {
	c.t.Helper()
	select {
	case got, ok := <-c.inbox:
		if ok {
			require.Failf(c.t, "unexpected message", "received %q", got)
		}
	case <-time.After(quietPeriod):
	}
}

func (c *pipeClient) expectClosed() {
	c.t.Helper()
	deadline := time.After(receiveTimeout)
	for {
		select {
		case _, ok := <-c.inbox:
			if !ok {
				return
			}
		case <-deadline:
			require.Fail(c.t, "connection still open")
			return
		}
	}
}

func (c *pipeClient) handshake(name string) {
	c.t.Helper()
	c.expect(NickRequest)
	c.send(name)
	c.expect(ConnectedNotice)
}

func (c *pipeClient) close() {
	_ = c.conn.Close()
}

func (c *pipeClient) result() error {
	c.t.Helper()
	select {
	case err := <-c.ended:
		return err
	case <-time.After(receiveTimeout):
		require.Fail(c.t, "session did not end")
		return nil
	}
}

func waitForClients(t *testing.T, srv *Server, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return srv.Hub().Registry().Len() == want
	}, receiveTimeout, 5*time.Millisecond, "expected %d registered clients", want)
}
