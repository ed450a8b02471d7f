package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/omochice/shift-chat/internal/chat"
	"github.com/omochice/shift-chat/pkg/protocol"
)

// Server accepts TCP connections and hands them to a Relay.
type Server struct {
	address      string
	listener     net.Listener
	relay        *chat.Relay
	framer       protocol.Framer
	writeTimeout time.Duration
	logger       *slog.Logger

	quit     chan struct{}
	quitOnce sync.Once
}

// New creates a TCP server that uses the provided Relay.
func New(address string, relay *chat.Relay, framer protocol.Framer, writeTimeout time.Duration, logger *slog.Logger) *Server {
	return &Server{
		address:      address,
		relay:        relay,
		framer:       framer,
		writeTimeout: writeTimeout,
		logger:       logger.With("transport", "tcp"),
		quit:         make(chan struct{}),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.listener = listener

	s.logger.Info("listening", "address", listener.Addr().String())
	return nil
}

// Serve accepts connections until Close is called. Listen must have
// succeeded first. ctx bounds the wait for a free session slot.
func (s *Server) Serve(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Warn("failed to accept connection", "error", err)
			continue
		}

		select {
		case <-s.quit:
			s.logger.Debug("refusing connection during shutdown", "remote", conn.RemoteAddr().String())
			conn.Close()
			continue
		default:
		}

		s.logger.Info("accepted connection", "remote", conn.RemoteAddr().String())
		if err := s.relay.Serve(ctx, NewConn(conn, s.framer, s.writeTimeout)); err != nil {
			s.logger.Warn("connection not served", "remote", conn.RemoteAddr().String(), "error", err)
		}
	}
}

// StopAccepting makes the accept loop close every new connection
// immediately. The listening socket stays bound until Close.
func (s *Server) StopAccepting() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Close stops accepting and closes the listening socket, which makes Serve
// return.
func (s *Server) Close() error {
	s.StopAccepting()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
