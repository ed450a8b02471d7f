package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"unicode/utf8"

	"github.com/omochice/shift-chat/pkg/protocol"
)

// State is the lifecycle position of a Session.
type State int32

const (
	StateConnecting State = iota
	StateAwaitingNickname
	StateActive
	StateClosing
	StateClosed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAwaitingNickname:
		return "awaiting-nickname"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session drives one peer connection from accept to close: it reads the
// nickname, registers the peer, relays its frames and announces its
// departure.
type Session struct {
	conn          Conn
	registry      *Registry
	shift         int
	excludeSender bool
	logger        *slog.Logger
	state         atomic.Int32
}

// NewSession creates a Session that owns conn.
func NewSession(conn Conn, registry *Registry, opts Options, logger *slog.Logger) *Session {
	return &Session{
		conn:          conn,
		registry:      registry,
		shift:         opts.Shift,
		excludeSender: opts.ExcludeSender,
		logger:        logger.With("remote", conn.RemoteAddr()),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// Run serves the connection until the peer leaves, a transport error occurs
// or ctx is cancelled. Cancelling ctx closes the connection, which is what
// unblocks a pending read. Run always closes the connection before it
// returns. An orderly end (EOF, rejected nickname, cancellation) returns nil.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()
	defer s.setState(StateClosed)
	defer s.conn.Close()

	s.setState(StateAwaitingNickname)
	nickname, err := s.awaitNickname(ctx)
	if errors.Is(err, protocol.ErrEmptyNickname) {
		s.logger.Info("rejecting empty nickname")
		if werr := s.conn.Write(ctx, protocol.Seal(protocol.NicknameRejected, s.shift)); werr != nil {
			s.logger.Debug("rejection notice not delivered", "error", werr)
		}
		return nil
	}
	if err != nil {
		if isOrderlyClose(ctx, err) {
			s.logger.Info("disconnected before sending nickname")
			return nil
		}
		return fmt.Errorf("reading nickname: %w", err)
	}

	if err := s.registry.Register(s.conn, nickname); err != nil {
		return fmt.Errorf("registering %q: %w", nickname, err)
	}
	s.setState(StateActive)
	s.logger = s.logger.With("nickname", nickname)
	s.logger.Info("client joined", "clients", s.registry.Len())
	s.registry.Broadcast(ctx, protocol.Seal(protocol.Joined(nickname), s.shift), nil)

	err = s.relay(ctx)

	s.setState(StateClosing)
	s.leave(ctx)

	if err != nil && !isOrderlyClose(ctx, err) {
		return fmt.Errorf("reading from %q: %w", nickname, err)
	}
	return nil
}

// awaitNickname reads frames until one carries text.
func (s *Session) awaitNickname(ctx context.Context) (string, error) {
	for {
		frame, err := s.conn.Read(ctx)
		if err != nil {
			return "", err
		}
		nickname, err := protocol.ParseNickname(frame)
		if errors.Is(err, protocol.ErrInvalidText) {
			s.logger.Warn("dropping undecodable nickname frame", "bytes", len(frame))
			continue
		}
		return nickname, err
	}
}

// relay forwards every frame verbatim until the connection fails.
func (s *Session) relay(ctx context.Context) error {
	var exclude Conn
	if s.excludeSender {
		exclude = s.conn
	}
	for {
		frame, err := s.conn.Read(ctx)
		if err != nil {
			return err
		}
		if len(frame) == 0 {
			continue
		}
		if !utf8.Valid(frame) {
			s.logger.Warn("dropping undecodable frame", "bytes", len(frame))
			continue
		}
		s.registry.Broadcast(ctx, frame, exclude)
	}
}

func (s *Session) leave(ctx context.Context) {
	nickname, ok := s.registry.Deregister(s.conn)
	if !ok {
		s.logger.Debug("already deregistered")
		return
	}
	s.logger.Info("client left", "clients", s.registry.Len())
	s.registry.Broadcast(ctx, protocol.Seal(protocol.Left(nickname), s.shift), nil)
}

func isOrderlyClose(ctx context.Context, err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil
}
