package main

import (
	"testing"

	"github.com/omochice/shift-chat/internal/config"
)

func TestApplyFlags_LogLevel(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		fromFile bool
		want     string
	}{
		{"no file, no flag", nil, false, clientLogLevel},
		{"file, no flag", nil, true, "debug"},
		{"file and flag", []string{"--log-level", "error"}, true, "error"},
		{"flag only", []string{"--log-level", "info"}, false, "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := newFlagSet()
			if err := flags.Parse(tt.args); err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			cfg := config.Default()
			cfg.Log.Level = "debug"

			applyFlags(flags, cfg, tt.fromFile)
			if cfg.Log.Level != tt.want {
				t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, tt.want)
			}
		})
	}
}

func TestApplyFlags_OnlyExplicitOverrides(t *testing.T) {
	flags := newFlagSet()
	if err := flags.Parse([]string{"--transport", "ws", "-s", "5"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	cfg := config.Default()
	cfg.Client.Address = "10.0.0.1:7000"

	applyFlags(flags, cfg, true)

	if cfg.Client.Address != "10.0.0.1:7000" {
		t.Errorf("Client.Address = %q, want file value kept", cfg.Client.Address)
	}
	if cfg.Client.Transport != config.TransportWebSocket {
		t.Errorf("Client.Transport = %q, want %q", cfg.Client.Transport, config.TransportWebSocket)
	}
	if cfg.Cipher.Shift != 5 {
		t.Errorf("Cipher.Shift = %d, want 5", cfg.Cipher.Shift)
	}
}
