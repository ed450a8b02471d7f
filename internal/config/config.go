// Package config loads shift-chat configuration.
//
// Configuration comes from a single YAML file named by the --config flag or,
// failing that, the SHIFTCHAT_CONFIG environment variable. Without either,
// Default is used. Command-line flags are applied on top by the binaries.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/omochice/shift-chat/pkg/cipher"
	"github.com/omochice/shift-chat/pkg/protocol"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "SHIFTCHAT_CONFIG"

// DefaultAddress is where the server listens and the client connects.
const DefaultAddress = "127.0.0.1:55555"

// DefaultShutdownTimeout bounds the wait for sessions when the server stops.
const DefaultShutdownTimeout = 5 * time.Second

// Transport selects how the client reaches the server.
type Transport string

const (
	TransportTCP       Transport = "tcp"
	TransportWebSocket Transport = "ws"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete configuration for both binaries.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Cipher CipherConfig `yaml:"cipher"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the relay and its listeners.
type ServerConfig struct {
	// Address is the TCP listen address.
	Address string `yaml:"address"`

	// WSAddress is the WebSocket listen address. Empty disables it.
	WSAddress string `yaml:"ws_address"`

	// Framing is "raw" or "delimited". Both ends must agree.
	Framing string `yaml:"framing"`

	// ReadBuffer is the largest raw frame one read returns.
	ReadBuffer int `yaml:"read_buffer"`

	// MaxFrameSize bounds delimited frames.
	MaxFrameSize int `yaml:"max_frame_size"`

	// MaxSessions bounds concurrent sessions. Zero means unbounded.
	MaxSessions int64 `yaml:"max_sessions"`

	// WriteTimeout bounds each write to a peer. Zero disables it.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ExcludeSender stops the relay from echoing a line to its author.
	ExcludeSender bool `yaml:"exclude_sender"`

	// ShutdownTimeout bounds how long shutdown waits for sessions to end.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ClientConfig configures the interactive client.
type ClientConfig struct {
	Address   string    `yaml:"address"`
	Transport Transport `yaml:"transport"`
}

// CipherConfig holds the shared shift. It only obscures text; it is not
// encryption.
type CipherConfig struct {
	Shift int `yaml:"shift"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      DefaultAddress,
			Framing:      string(protocol.FramingRaw),
			ReadBuffer:   protocol.DefaultReadBuffer,
			MaxFrameSize: protocol.DefaultMaxFrameSize,
			WriteTimeout: 10 * time.Second,

			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Client: ClientConfig{
			Address:   DefaultAddress,
			Transport: TransportTCP,
		},
		Cipher: CipherConfig{
			Shift: cipher.DefaultShift,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the file at path, or the file named by SHIFTCHAT_CONFIG when
// path is empty. With neither it returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a YAML file over the defaults and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field that has a restricted range.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("%w: server.address is required", ErrInvalid)
	}
	if _, err := protocol.ParseFraming(c.Server.Framing); err != nil {
		return fmt.Errorf("%w: server.framing: %v", ErrInvalid, err)
	}
	if c.Server.ReadBuffer <= 0 {
		return fmt.Errorf("%w: server.read_buffer must be positive", ErrInvalid)
	}
	if c.Server.MaxFrameSize <= 0 {
		return fmt.Errorf("%w: server.max_frame_size must be positive", ErrInvalid)
	}
	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("%w: server.max_sessions must not be negative", ErrInvalid)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: server.shutdown_timeout must be positive", ErrInvalid)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("%w: server.write_timeout must not be negative", ErrInvalid)
	}
	if c.Client.Address == "" {
		return fmt.Errorf("%w: client.address is required", ErrInvalid)
	}
	switch c.Client.Transport {
	case TransportTCP, TransportWebSocket:
	default:
		return fmt.Errorf("%w: client.transport %q (want tcp or ws)", ErrInvalid, c.Client.Transport)
	}
	if _, err := c.Log.level(); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (want text or json)", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Framer builds the frame codec selected by the server section. The client
// uses it too, so both ends agree.
func (c *Config) Framer() (protocol.Framer, error) {
	framing, err := protocol.ParseFraming(c.Server.Framing)
	if err != nil {
		return nil, err
	}
	return protocol.NewFramer(framing, c.Server.ReadBuffer, c.Server.MaxFrameSize)
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.ToUpper(l.Level)))
	return level, err
}

// NewLogger builds a logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, options)), nil
	}
	return slog.New(slog.NewTextHandler(w, options)), nil
}
