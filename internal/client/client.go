// Package client implements the connecting side of the chat: it sends the
// nickname, obscures outgoing lines and reveals incoming ones.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/omochice/shift-chat/internal/chat"
	"github.com/omochice/shift-chat/internal/config"
	"github.com/omochice/shift-chat/internal/transport/tcp"
	"github.com/omochice/shift-chat/internal/transport/ws"
	"github.com/omochice/shift-chat/pkg/protocol"
)

// ErrNotConnected is returned by Send after the client has stopped.
var ErrNotConnected = errors.New("not connected to server")

// Dial connects to the server named by cfg.Client using its transport.
func Dial(ctx context.Context, cfg *config.Config) (chat.Conn, error) {
	switch cfg.Client.Transport {
	case config.TransportWebSocket:
		url := cfg.Client.Address
		if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			url = "ws://" + url + "/"
		}
		return ws.Dial(ctx, url)
	default:
		framer, err := cfg.Framer()
		if err != nil {
			return nil, err
		}
		return tcp.Dial(ctx, cfg.Client.Address, framer)
	}
}

// Client is one chat participant. A receive goroutine delivers revealed
// messages on Messages while the caller sends lines with Send; both share
// the connection and stop together.
type Client struct {
	conn     chat.Conn
	shift    int
	logger   *slog.Logger
	nickname string

	messages chan string
	stopped  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a Client over an established connection.
func New(conn chat.Conn, shift int, logger *slog.Logger) *Client {
	return &Client{
		conn:     conn,
		shift:    shift,
		logger:   logger,
		messages: make(chan string, 10),
		done:     make(chan struct{}),
	}
}

// Join sends the nickname in plaintext and starts receiving.
func (c *Client) Join(ctx context.Context, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return protocol.ErrEmptyNickname
	}
	if c.stopped.Load() {
		return ErrNotConnected
	}
	if err := c.conn.Write(ctx, []byte(nickname)); err != nil {
		c.stop()
		return fmt.Errorf("failed to send nickname: %w", err)
	}
	c.nickname = nickname

	c.wg.Add(1)
	go c.receive()
	return nil
}

// Nickname returns the nickname sent by Join.
func (c *Client) Nickname() string {
	return c.nickname
}

// Send obscures one chat line and sends it. A write failure stops the client.
func (c *Client) Send(ctx context.Context, message string) error {
	if c.stopped.Load() {
		return ErrNotConnected
	}
	frame := protocol.Seal(protocol.ChatLine(c.nickname, message), c.shift)
	if err := c.conn.Write(ctx, frame); err != nil {
		if !c.stopped.Load() {
			c.logger.Warn("error sending message, connection lost", "error", err)
		}
		c.stop()
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Messages delivers revealed frames. It is closed when receiving stops.
func (c *Client) Messages() <-chan string {
	return c.messages
}

// Done is closed once the client has stopped, locally or because the
// connection failed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close stops the client and waits for the receive goroutine.
func (c *Client) Close() error {
	c.stop()
	c.wg.Wait()
	return nil
}

// stop raises the stop signal and closes the connection, which is what
// unblocks a pending read.
func (c *Client) stop() {
	c.doneOnce.Do(func() {
		c.stopped.Store(true)
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) receive() {
	defer c.wg.Done()
	defer close(c.messages)

	for {
		frame, err := c.conn.Read(context.Background())
		if err != nil {
			if !c.stopped.Load() {
				if errors.Is(err, io.EOF) {
					c.logger.Info("server closed the connection")
				} else {
					c.logger.Warn("error receiving message", "error", err)
				}
			}
			c.stop()
			return
		}

		text, err := protocol.Open(frame, c.shift)
		if err != nil {
			if !c.stopped.Load() {
				c.logger.Warn("dropping undecodable message", "bytes", len(frame))
			}
			continue
		}

		select {
		case c.messages <- text:
		case <-c.done:
			return
		}
	}
}
