package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/omochice/shift-chat/pkg/protocol"
)

// ErrRelayClosed is returned by Serve after Shutdown has started.
var ErrRelayClosed = errors.New("relay is shut down")

// Options configures sessions run by a Relay.
type Options struct {
	// Shift is the key for server announcements. Relayed frames are never
	// re-keyed.
	Shift int

	// ExcludeSender stops a peer's own lines from being echoed back to it.
	ExcludeSender bool

	// MaxSessions bounds concurrent sessions. Zero means unbounded.
	MaxSessions int64
}

// Relay runs one Session per connection against a shared Registry and
// sequences shutdown. Every transport listener hands its connections to the
// same Relay.
type Relay struct {
	registry *Registry
	opts     Options
	logger   *slog.Logger
	sessions *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRelay creates a Relay around registry.
func NewRelay(registry *Registry, opts Options, logger *slog.Logger) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		registry: registry,
		opts:     opts,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	if opts.MaxSessions > 0 {
		r.sessions = semaphore.NewWeighted(opts.MaxSessions)
	}
	return r
}

// Registry returns the registry the relay's sessions share.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Serve starts a session for conn on its own goroutine. When MaxSessions is
// set, Serve blocks while the pool is full; ctx bounds that wait. On error
// conn has already been closed.
func (r *Relay) Serve(ctx context.Context, conn Conn) error {
	if r.sessions != nil {
		if err := r.sessions.Acquire(ctx, 1); err != nil {
			conn.Close()
			return err
		}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.release()
		conn.Close()
		return ErrRelayClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.release()

		session := NewSession(conn, r.registry, r.opts, r.logger)
		if err := session.Run(r.ctx); err != nil {
			if errors.Is(err, ErrDuplicateHandle) {
				r.logger.Error("session invariant violated", "remote", conn.RemoteAddr(), "error", err)
				return
			}
			r.logger.Warn("session ended", "remote", conn.RemoteAddr(), "error", err)
		}
	}()
	return nil
}

func (r *Relay) release() {
	if r.sessions != nil {
		r.sessions.Release(1)
	}
}

// Shutdown sends the shutdown notice to every registered peer, closes their
// connections, cancels the remaining sessions and waits for all of them to
// return or for ctx to expire. Notice write failures are ignored.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	first := !r.closed
	r.closed = true
	r.mu.Unlock()

	if first {
		conns := r.registry.Drain()
		r.notifyShutdown(ctx, conns)
		r.logger.Info("disconnected clients for shutdown", "clients", len(conns))
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notifyShutdown writes the notice to every peer concurrently and closes
// each connection after its write. Peers still writing when ctx expires are
// closed without waiting, which unblocks their writes.
func (r *Relay) notifyShutdown(ctx context.Context, conns []Conn) {
	notice := protocol.Seal(protocol.ShutdownNotice, r.opts.Shift)

	var wg sync.WaitGroup
	for _, conn := range conns {
		conn := conn
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := conn.Write(ctx, notice); err != nil {
				r.logger.Debug("shutdown notice not delivered", "remote", conn.RemoteAddr(), "error", err)
			}
			conn.Close()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("shutdown notices timed out, closing remaining connections")
		for _, conn := range conns {
			conn.Close()
		}
	}
}
