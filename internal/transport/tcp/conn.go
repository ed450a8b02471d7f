// Package tcp provides TCP transport implementation for the chat server.
package tcp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/omochice/shift-chat/pkg/protocol"
)

// Conn adapts net.Conn to chat.Conn interface.
type Conn struct {
	conn         net.Conn
	reader       *bufio.Reader
	framer       protocol.Framer
	writeTimeout time.Duration
	writeMu      sync.Mutex
}

// NewConn wraps a net.Conn. A zero writeTimeout disables write deadlines.
func NewConn(conn net.Conn, framer protocol.Framer, writeTimeout time.Duration) *Conn {
	return &Conn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		framer:       framer,
		writeTimeout: writeTimeout,
	}
}

// Dial connects to a chat server at address.
func Dial(ctx context.Context, address string, framer protocol.Framer) (*Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewConn(conn, framer, 0), nil
}

// Read implements chat.Conn.
// Reads one frame as cut by the configured framer.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	return c.framer.ReadFrame(c.reader)
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Time{}
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if ctx != nil {
		if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
			deadline = d
		}
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.framer.WriteFrame(c.conn, data)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
