package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"

	"github.com/omochice/shift-chat/internal/chat"
)

const handshakeTimeout = 10 * time.Second

// Server accepts WebSocket connections and hands them to a Relay.
type Server struct {
	address      string
	listener     net.Listener
	relay        *chat.Relay
	writeTimeout time.Duration
	maxFrameSize int
	logger       *slog.Logger

	quit     chan struct{}
	quitOnce sync.Once
}

// New creates a WebSocket server that uses the provided Relay. Incoming
// messages over maxFrameSize bytes end the session; zero means no limit.
func New(address string, relay *chat.Relay, writeTimeout time.Duration, maxFrameSize int, logger *slog.Logger) *Server {
	return &Server{
		address:      address,
		relay:        relay,
		writeTimeout: writeTimeout,
		maxFrameSize: maxFrameSize,
		logger:       logger.With("transport", "websocket"),
		quit:         make(chan struct{}),
	}
}

// Listen binds the listening socket.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	s.listener = listener

	s.logger.Info("listening", "address", listener.Addr().String())
	return nil
}

// Serve accepts connections until Close is called. The handshake runs on
// the connection's own goroutine so a slow client cannot stall the loop.
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
			conn.Close()
			continue
		default:
		}

		go s.handshake(ctx, conn)
	}
}

func (s *Server) handshake(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()

	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	if _, err := ws.Upgrade(conn); err != nil {
		s.logger.Warn("failed to upgrade connection", "remote", remote, "error", err)
		conn.Close()
		return
	}
	conn.SetDeadline(time.Time{})

	s.logger.Info("accepted connection", "remote", remote)
	if err := s.relay.Serve(ctx, NewServerConn(conn, s.writeTimeout, s.maxFrameSize)); err != nil {
		s.logger.Warn("connection not served", "remote", remote, "error", err)
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
