package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/omochice/shift-chat/pkg/protocol"
)

const prompt = "> "

// PromptNickname asks for a nickname until a non-blank one is entered.
func PromptNickname(in *bufio.Reader, out io.Writer) (string, error) {
	for {
		fmt.Fprint(out, "Enter your nickname: ")
		line, err := in.ReadString('\n')
		nickname := strings.TrimSpace(line)
		if nickname != "" {
			return nickname, nil
		}
		if err != nil {
			return "", err
		}
		fmt.Fprintln(out, "[!] Nickname cannot be empty. Please try again.")
	}
}

// Console connects a Client to a line-oriented terminal.
type Console struct {
	client *Client
	in     *bufio.Reader
	out    io.Writer

	// ShowPrompt prints "> " after every message, for interactive use.
	ShowPrompt bool
}

// NewConsole creates a Console reading typed lines from in.
func NewConsole(client *Client, in *bufio.Reader, out io.Writer) *Console {
	return &Console{client: client, in: in, out: out}
}

// Run relays typed lines to the server and prints incoming messages until
// the user types /quit, input ends, ctx is cancelled or the server goes
// away. The client is closed on return.
func (c *Console) Run(ctx context.Context) error {
	defer c.client.Close()

	lines := make(chan string)
	inputErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			line, err := c.in.ReadString('\n')
			if line != "" {
				select {
				case lines <- line:
				case <-stop:
					return
				}
			}
			if err != nil {
				inputErr <- err
				return
			}
		}
	}()

	c.showPrompt()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out, "\n[*] Quitting...")
			return nil

		case msg, ok := <-c.client.Messages():
			if !ok {
				fmt.Fprintln(c.out, "\n[*] Server has closed the connection.")
				return nil
			}
			fmt.Fprintf(c.out, "\r%s\n", msg)
			c.showPrompt()

		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				c.showPrompt()
				continue
			}
			if protocol.IsQuit(line) {
				fmt.Fprintln(c.out, "[*] Disconnecting...")
				return nil
			}
			if err := c.client.Send(ctx, line); err != nil {
				fmt.Fprintln(c.out, "\n[!] Error sending message. Connection lost.")
				return err
			}
			c.showPrompt()

		case err := <-inputErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
	}
}

func (c *Console) showPrompt() {
	if c.ShowPrompt {
		fmt.Fprint(c.out, prompt)
	}
}
