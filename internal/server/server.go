// Package server wires the relay to its listeners and sequences process
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omochice/shift-chat/internal/chat"
	"github.com/omochice/shift-chat/internal/config"
	"github.com/omochice/shift-chat/internal/transport/tcp"
	"github.com/omochice/shift-chat/internal/transport/ws"
)

// Server is the chat server: a TCP listener, an optional WebSocket listener
// and the relay they share.
type Server struct {
	relay           *chat.Relay
	tcp             *tcp.Server
	ws              *ws.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// New builds a Server from cfg. Nothing is bound until Listen.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	framer, err := cfg.Framer()
	if err != nil {
		return nil, fmt.Errorf("building framer: %w", err)
	}

	relay := chat.NewRelay(chat.NewRegistry(logger), chat.Options{
		Shift:         cfg.Cipher.Shift,
		ExcludeSender: cfg.Server.ExcludeSender,
		MaxSessions:   cfg.Server.MaxSessions,
	}, logger)

	s := &Server{
		relay:           relay,
		tcp:             tcp.New(cfg.Server.Address, relay, framer, cfg.Server.WriteTimeout, logger),
		shutdownTimeout: cfg.Server.ShutdownTimeout,
		logger:          logger,
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = config.DefaultShutdownTimeout
	}
	if cfg.Server.WSAddress != "" {
		s.ws = ws.New(cfg.Server.WSAddress, relay, cfg.Server.WriteTimeout, cfg.Server.MaxFrameSize, logger)
	}
	return s, nil
}

// Listen binds every configured listener.
func (s *Server) Listen() error {
	if err := s.tcp.Listen(); err != nil {
		return err
	}
	if s.ws != nil {
		if err := s.ws.Listen(); err != nil {
			s.tcp.Close()
			return err
		}
	}
	return nil
}

// Serve runs the accept loops until ctx is cancelled or a listener fails,
// then shuts down. Sessions still running after the shutdown timeout are
// abandoned with a warning; that alone is not an error. Listen must have
// succeeded first.
func (s *Server) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.tcp.Serve(gctx)
	})
	if s.ws != nil {
		g.Go(func() error {
			return s.ws.Serve(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		err := s.Shutdown(shutdownCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("sessions still running after shutdown timeout", "timeout", s.shutdownTimeout)
			return nil
		}
		return err
	})

	return g.Wait()
}

// Run binds the listeners and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Shutdown stops accepting, notifies and disconnects every registered peer,
// then closes the listening sockets and waits for sessions to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server is shutting down")

	s.tcp.StopAccepting()
	if s.ws != nil {
		s.ws.StopAccepting()
	}

	err := s.relay.Shutdown(ctx)

	s.tcp.Close()
	if s.ws != nil {
		s.ws.Close()
	}

	s.logger.Info("server stopped")
	return err
}

// Addr returns the TCP listening address.
func (s *Server) Addr() string {
	return s.tcp.Addr()
}

// WSAddr returns the WebSocket listening address, or "" when disabled.
func (s *Server) WSAddr() string {
	if s.ws == nil {
		return ""
	}
	return s.ws.Addr()
}

// ClientCount returns the number of registered peers.
func (s *Server) ClientCount() int {
	return s.relay.Registry().Len()
}
