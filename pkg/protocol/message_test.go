package protocol_test

import (
	"errors"
	"testing"

	"github.com/omochice/shift-chat/pkg/protocol"
)

func TestAnnouncements(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"joined", protocol.Joined("Alice"), "[SERVER] 'Alice' has joined the chat!"},
		{"left", protocol.Left("Alice"), "[SERVER] 'Alice' has left the chat."},
		{"chat line", protocol.ChatLine("Alice", "hello"), "[Alice]: hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseNickname(t *testing.T) {
	tests := []struct {
		name    string
		frame   []byte
		want    string
		wantErr error
	}{
		{name: "plain", frame: []byte("Alice"), want: "Alice"},
		{name: "trims surrounding whitespace", frame: []byte("  Bob \r\n"), want: "Bob"},
		{name: "keeps inner spaces", frame: []byte("Mary Ann"), want: "Mary Ann"},
		{name: "whitespace only", frame: []byte(" \t\n"), wantErr: protocol.ErrEmptyNickname},
		{name: "empty", frame: []byte{}, wantErr: protocol.ErrEmptyNickname},
		{name: "invalid utf-8", frame: []byte{0xff, 0xfe}, wantErr: protocol.ErrInvalidText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := protocol.ParseNickname(tt.frame)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseNickname() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseNickname() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsQuit(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"/quit", true},
		{"/QUIT", true},
		{"  /Quit  ", true},
		{"/quit now", false},
		{"quit", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := protocol.IsQuit(tt.line); got != tt.want {
			t.Errorf("IsQuit(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestSealOpen(t *testing.T) {
	sealed := protocol.Seal("[Alice]: hello", 3)
	if string(sealed) != "[Dolfh]: khoor" {
		t.Errorf("Seal() = %q, want %q", sealed, "[Dolfh]: khoor")
	}

	opened, err := protocol.Open(sealed, 3)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if opened != "[Alice]: hello" {
		t.Errorf("Open() = %q, want %q", opened, "[Alice]: hello")
	}
}

func TestOpen_InvalidText(t *testing.T) {
	if _, err := protocol.Open([]byte{0xc3, 0x28}, 3); !errors.Is(err, protocol.ErrInvalidText) {
		t.Errorf("Open() error = %v, want %v", err, protocol.ErrInvalidText)
	}
}
