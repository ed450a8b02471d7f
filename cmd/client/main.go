package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/omochice/shift-chat/internal/client"
	"github.com/omochice/shift-chat/internal/config"
	"github.com/omochice/shift-chat/pkg/cipher"
	"github.com/omochice/shift-chat/pkg/protocol"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// clientLogLevel keeps diagnostics quiet on stderr so they do not
// interleave with the chat.
const clientLogLevel = "warn"

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("shift-chat-client", pflag.ContinueOnError)
	flags.StringP("config", "c", "", "Path to YAML config (default $"+config.EnvVar+")")
	flags.StringP("address", "a", config.DefaultAddress, "Server address (host:port or ws:// URL)")
	flags.StringP("transport", "t", string(config.TransportTCP), "Transport: tcp or ws")
	flags.IntP("shift", "s", cipher.DefaultShift, "Letter shift shared with the other participants")
	flags.StringP("nickname", "n", "", "Nickname (prompted for when empty)")
	flags.String("log-level", clientLogLevel, "Log level: debug, info, warn or error")
	return flags
}

// applyFlags copies explicitly given flags over cfg. Without a config file
// the log level falls back to the client's quiet default; with one, the
// file's level stands unless --log-level is given.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config, fromFile bool) {
	if flags.Changed("address") {
		cfg.Client.Address, _ = flags.GetString("address")
	}
	if flags.Changed("transport") {
		transport, _ := flags.GetString("transport")
		cfg.Client.Transport = config.Transport(transport)
	}
	if flags.Changed("shift") {
		cfg.Cipher.Shift, _ = flags.GetInt("shift")
	}
	if flags.Changed("log-level") || !fromFile {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
}

func run(args []string) int {
	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] Failed to load config: %v\n", err)
		return 1
	}
	applyFlags(flags, cfg, configPath != "" || os.Getenv(config.EnvVar) != "")
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "[!] Invalid configuration: %v\n", err)
		return 1
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] Invalid log configuration: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in := bufio.NewReader(os.Stdin)
	name, _ := flags.GetString("nickname")
	if name == "" {
		if name, err = client.PromptNickname(in, os.Stdout); err != nil {
			return 0
		}
	}

	conn, err := client.Dial(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[!] Unable to connect to %s: %v\n", cfg.Client.Address, err)
		return 1
	}
	fmt.Printf("[*] Connected successfully to %s.\n", cfg.Client.Address)

	c := client.New(conn, cfg.Cipher.Shift, logger)
	if err := c.Join(ctx, name); err != nil {
		fmt.Fprintf(os.Stderr, "[!] %v\n", err)
		return 1
	}
	fmt.Printf("[*] Type messages and press Enter. Type %s to leave.\n", protocol.QuitCommand)

	console := client.NewConsole(c, in, os.Stdout)
	console.ShowPrompt = term.IsTerminal(int(os.Stdin.Fd()))
	if err := console.Run(ctx); err != nil {
		logger.Debug("console stopped", "error", err)
	}
	return 0
}
