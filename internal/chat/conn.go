// Package chat holds the relay core shared by every transport: the registry
// of live connections, the per-connection session and the relay that runs
// them.
package chat

import "context"

// Conn abstracts one peer connection for both TCP and WebSocket.
// A Conn value is the handle the registry keys its entries by.
type Conn interface {
	// Read reads a single frame.
	// Returns io.EOF when the peer closed the connection.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single frame. Implementations serialize concurrent
	// writers so frames never interleave on the wire.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection and unblocks a pending Read.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
