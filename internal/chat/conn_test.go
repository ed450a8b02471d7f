package chat_test

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/omochice/shift-chat/internal/chat"
	"github.com/omochice/shift-chat/pkg/protocol"
)

const testShift = 3

// mockConn is a mock implementation of chat.Conn for testing.
// Frames pushed with send are returned by Read; Close unblocks Read.
type mockConn struct {
	readCh     chan []byte
	writeErr   error
	writeBlock chan struct{} // when set, Write waits for it or for Close
	remoteAddr string

	mu       sync.Mutex
	written  [][]byte
	writes   chan []byte
	closed   bool
	closedCh chan struct{}
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan []byte, 10),
		writes:     make(chan []byte, 32),
		remoteAddr: addr,
		closedCh:   make(chan struct{}),
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-m.closedCh:
		return nil, net.ErrClosed
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockConn) Write(ctx context.Context, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if m.writeBlock != nil {
		select {
		case <-m.writeBlock:
		case <-m.closedCh:
			return net.ErrClosed
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return net.ErrClosed
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	select {
	case m.writes <- copied:
	default:
	}
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fs.ErrClosed
	}
	m.closed = true
	close(m.closedCh)
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

// send queues a frame for Read.
func (m *mockConn) send(frame string) {
	m.readCh <- []byte(frame)
}

// hangUp makes the next Read return io.EOF.
func (m *mockConn) hangUp() {
	close(m.readCh)
}

func (m *mockConn) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetWritten returns every frame written so far, revealed with testShift.
func (m *mockConn) GetWritten() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.written))
	for _, frame := range m.written {
		text, _ := protocol.Open(frame, testShift)
		out = append(out, text)
	}
	return out
}

// nextWrite waits for the next written frame and reveals it.
func (m *mockConn) nextWrite(timeout time.Duration) (string, bool) {
	select {
	case frame := <-m.writes:
		text, _ := protocol.Open(frame, testShift)
		return text, true
	case <-time.After(timeout):
		return "", false
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Compile-time check that mockConn implements chat.Conn
var _ chat.Conn = (*mockConn)(nil)
