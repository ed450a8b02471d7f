package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrDuplicateHandle is returned when a connection is registered twice.
var ErrDuplicateHandle = errors.New("connection already registered")

// Registry maps live connections to their nicknames and fans frames out to
// them. The map is guarded by one mutex; network writes never happen while
// it is held.
type Registry struct {
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[Conn]string
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger,
		entries: make(map[Conn]string),
	}
}

// Register adds conn under nickname.
func (r *Registry) Register(conn Conn, nickname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[conn]; ok {
		return ErrDuplicateHandle
	}
	r.entries[conn] = nickname
	return nil
}

// Deregister removes conn and returns the nickname it was registered with.
// ok is false if conn was not registered.
func (r *Registry) Deregister(conn Conn) (nickname string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nickname, ok = r.entries[conn]
	if ok {
		delete(r.entries, conn)
	}
	return nickname, ok
}

// Nickname returns the nickname registered for conn.
func (r *Registry) Nickname(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	nickname, ok := r.entries[conn]
	return nickname, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Snapshot returns the connections registered right now.
func (r *Registry) Snapshot() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]Conn, 0, len(r.entries))
	for conn := range r.entries {
		conns = append(conns, conn)
	}
	return conns
}

// Drain removes every entry and returns the connections that were
// registered. Sessions that deregister afterwards find nothing to remove.
func (r *Registry) Drain() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]Conn, 0, len(r.entries))
	for conn := range r.entries {
		conns = append(conns, conn)
	}
	clear(r.entries)
	return conns
}

// Broadcast writes payload to every connection registered at the time of the
// call, except exclude (which may be nil). A failed write is logged and the
// fan-out continues; the failing connection stays registered until its own
// session notices. Broadcast returns the number of successful writes.
//
// Recipients are a point-in-time snapshot: a peer that joins mid-broadcast
// may miss it, and one that is leaving may produce a write error.
func (r *Registry) Broadcast(ctx context.Context, payload []byte, exclude Conn) int {
	delivered := 0
	for _, conn := range r.Snapshot() {
		if exclude != nil && conn == exclude {
			continue
		}
		if err := conn.Write(ctx, payload); err != nil {
			r.logger.Warn("broadcast write failed",
				"remote", conn.RemoteAddr(),
				"error", err)
			continue
		}
		delivered++
	}
	return delivered
}
