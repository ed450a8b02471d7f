// Package ws provides WebSocket transport implementation for the chat server.
package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/shift-chat/pkg/protocol"
)

const closeTimeout = 250 * time.Millisecond

// Conn adapts a gobwas/ws connection to chat.Conn interface.
// Every text or binary message is one frame.
type Conn struct {
	conn         net.Conn
	state        ws.State
	reader       *wsutil.Reader
	control      wsutil.FrameHandlerFunc
	writeTimeout time.Duration
	maxSize      int64
	writeMu      sync.Mutex
	closeOnce    sync.Once
}

// NewServerConn wraps a connection that has completed the server side of
// the handshake. Messages longer than maxFrameSize bytes fail the read with
// protocol.ErrFrameTooLarge; zero means no limit.
func NewServerConn(conn net.Conn, writeTimeout time.Duration, maxFrameSize int) *Conn {
	return newConn(conn, conn, ws.StateServerSide, writeTimeout, maxFrameSize)
}

// Dial performs the client side of the handshake against url
// (for example ws://127.0.0.1:55556/).
func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	var src io.Reader = conn
	if br != nil {
		// The server already sent frames that sit in the handshake buffer.
		src = br
	}
	return newConn(conn, src, ws.StateClientSide, 0, 0), nil
}

// NewClientConn wraps a connection that has completed the client side of
// the handshake.
func NewClientConn(conn net.Conn) *Conn {
	return newConn(conn, conn, ws.StateClientSide, 0, 0)
}

func newConn(conn net.Conn, src io.Reader, state ws.State, writeTimeout time.Duration, maxFrameSize int) *Conn {
	c := &Conn{
		conn:         conn,
		state:        state,
		writeTimeout: writeTimeout,
		maxSize:      int64(maxFrameSize),
	}
	c.control = wsutil.ControlFrameHandler(lockedWriter{c}, state)
	c.reader = &wsutil.Reader{
		Source:         src,
		State:          state,
		MaxFrameSize:   c.maxSize,
		OnIntermediate: c.control,
	}
	return c
}

// Read implements chat.Conn.
// Control frames are answered in place; a close frame reads as io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	for {
		hdr, err := c.reader.NextFrame()
		if errors.Is(err, wsutil.ErrFrameTooLarge) {
			return nil, fmt.Errorf("%w: %d bytes exceeds %d", protocol.ErrFrameTooLarge, hdr.Length, c.maxSize)
		}
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := c.control(hdr, c.reader); err != nil {
				var closed wsutil.ClosedError
				if errors.As(err, &closed) {
					return nil, io.EOF
				}
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := c.reader.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return c.readMessage()
	}
}

// readMessage reads the current message, including any continuation
// frames, up to the size limit.
func (c *Conn) readMessage() ([]byte, error) {
	if c.maxSize <= 0 {
		return io.ReadAll(c.reader)
	}
	data, err := io.ReadAll(io.LimitReader(c.reader, c.maxSize+1))
	if err != nil {
		if errors.Is(err, wsutil.ErrFrameTooLarge) {
			return nil, fmt.Errorf("%w: continuation exceeds %d bytes", protocol.ErrFrameTooLarge, c.maxSize)
		}
		return nil, err
	}
	if int64(len(data)) > c.maxSize {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", protocol.ErrFrameTooLarge, c.maxSize)
	}
	return data, nil
}

// Write implements chat.Conn.
// Frames go out as text messages.
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
	return wsutil.WriteMessage(c.conn, c.state, ws.OpText, data)
}

// Close implements chat.Conn.
// It makes one attempt to send a close frame before closing the socket. The
// close frame is skipped while another write holds the connection, so Close
// never waits behind a stalled peer.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if !c.writeMu.TryLock() {
			return
		}
		defer c.writeMu.Unlock()
		if err := c.conn.SetWriteDeadline(time.Now().Add(closeTimeout)); err != nil {
			return
		}
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = wsutil.WriteMessage(c.conn, c.state, ws.OpClose, body)
	})
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// lockedWriter serializes control frame replies with data writes.
type lockedWriter struct {
	c *Conn
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.writeMu.Lock()
	defer w.c.writeMu.Unlock()
	return w.c.conn.Write(p)
}
