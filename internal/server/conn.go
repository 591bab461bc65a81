//go:generate go run go.uber.org/mock/mockgen -source=conn.go -destination=../../mocks/mock_conn.go -package=mocks

// Package server adapts raw TCP connections to the message-oriented Conn
// interface shared by every transport the relay serves.
package server

import (
	"io"
	"net"
	"time"
)

// Conn is a message-oriented transport for one chat peer. Each ReadMessage
// call returns one inbound message and each WriteMessage call sends one
// outbound message. Implementations must allow Close to be called
// concurrently with ReadMessage and WriteMessage.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(p []byte) error
	RemoteAddr() string
	Close() error
}

// tcpConn treats every successful Read as one complete message. There is no
// delimiter or length prefix on the wire.
type tcpConn struct {
	conn         net.Conn
	buf          []byte
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newTCPConn(conn net.Conn, bufSize int, readTimeout, writeTimeout time.Duration) *tcpConn {
	if bufSize <= 0 {
		bufSize = defaultReadBufferSize
	}
	return &tcpConn{
		conn:         conn,
		buf:          make([]byte, bufSize),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadMessage performs a single Read. A zero-byte read is reported as io.EOF.
func (c *tcpConn) ReadMessage() ([]byte, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}

	n, err := c.conn.Read(c.buf)
	if n > 0 {
		msg := make([]byte, n)
		copy(msg, c.buf[:n])
		return msg, nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

func (c *tcpConn) WriteMessage(p []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(p)
	return err
}

func (c *tcpConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}
