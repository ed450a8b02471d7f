package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/omochice/shift-chat/internal/config"
	"github.com/omochice/shift-chat/internal/server"
	"github.com/omochice/shift-chat/pkg/cipher"
	"github.com/omochice/shift-chat/pkg/protocol"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("shift-chat-server", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "Path to YAML config (default $"+config.EnvVar+")")
	address := flags.StringP("address", "a", config.DefaultAddress, "TCP address to listen on")
	wsAddress := flags.String("ws-address", "", "WebSocket address to listen on (disabled when empty)")
	shift := flags.IntP("shift", "s", cipher.DefaultShift, "Letter shift used for server announcements")
	framing := flags.String("framing", string(protocol.FramingRaw), "Frame boundaries on TCP: raw or delimited")
	maxSessions := flags.Int64("max-sessions", 0, "Maximum concurrent sessions (0 for unlimited)")
	excludeSender := flags.Bool("exclude-sender", false, "Do not echo a peer's lines back to it")
	logLevel := flags.String("log-level", "info", "Log level: debug, info, warn or error")
	logFormat := flags.String("log-format", "text", "Log format: text or json")
	shutdownTimeout := flags.Duration("shutdown-timeout", config.DefaultShutdownTimeout, "How long shutdown waits for sessions")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Flags override the file only when given explicitly.
	if flags.Changed("address") {
		cfg.Server.Address = *address
	}
	if flags.Changed("ws-address") {
		cfg.Server.WSAddress = *wsAddress
	}
	if flags.Changed("shift") {
		cfg.Cipher.Shift = *shift
	}
	if flags.Changed("framing") {
		cfg.Server.Framing = *framing
	}
	if flags.Changed("max-sessions") {
		cfg.Server.MaxSessions = *maxSessions
	}
	if flags.Changed("exclude-sender") {
		cfg.Server.ExcludeSender = *excludeSender
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = *logFormat
	}
	if flags.Changed("shutdown-timeout") {
		cfg.Server.ShutdownTimeout = *shutdownTimeout
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	logger, err := cfg.Log.NewLogger(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log configuration: %v\n", err)
		return 1
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return 1
	}
	if err := srv.Listen(); err != nil {
		logger.Error("failed to start server", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		logger.Error("server stopped with error", "error", err)
		return 1
	}
	return 0
}
