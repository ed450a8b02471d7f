package protocol_test

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/omochice/shift-chat/pkg/protocol"
)

func TestParseFraming(t *testing.T) {
	tests := []struct {
		name    string
		want    protocol.Framing
		wantErr bool
	}{
		{"raw", protocol.FramingRaw, false},
		{"delimited", protocol.FramingDelimited, false},
		{"lines", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := protocol.ParseFraming(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFraming(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFraming(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestNewFramer_Defaults(t *testing.T) {
	raw, err := protocol.NewFramer(protocol.FramingRaw, 0, 0)
	if err != nil {
		t.Fatalf("NewFramer(raw) error = %v", err)
	}
	if got := raw.(protocol.RawFramer).BufferSize; got != protocol.DefaultReadBuffer {
		t.Errorf("raw BufferSize = %d, want %d", got, protocol.DefaultReadBuffer)
	}

	delimited, err := protocol.NewFramer(protocol.FramingDelimited, 0, 0)
	if err != nil {
		t.Fatalf("NewFramer(delimited) error = %v", err)
	}
	if got := delimited.(protocol.DelimitedFramer).MaxSize; got != protocol.DefaultMaxFrameSize {
		t.Errorf("delimited MaxSize = %d, want %d", got, protocol.DefaultMaxFrameSize)
	}

	if _, err := protocol.NewFramer("bogus", 0, 0); !errors.Is(err, protocol.ErrUnknownFraming) {
		t.Errorf("NewFramer(bogus) error = %v, want %v", err, protocol.ErrUnknownFraming)
	}
}

func TestRawFramer_ReadFrame(t *testing.T) {
	f := protocol.RawFramer{BufferSize: 4}
	r := bufio.NewReader(strings.NewReader("abcdef"))

	first, err := f.ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if string(first) != "abcd" {
		t.Errorf("first frame = %q, want %q", first, "abcd")
	}

	second, err := f.ReadFrame(r)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if string(second) != "ef" {
		t.Errorf("second frame = %q, want %q", second, "ef")
	}

	if _, err := f.ReadFrame(r); err != io.EOF {
		t.Errorf("ReadFrame() at end error = %v, want io.EOF", err)
	}
}

func TestRawFramer_WriteFrameIsVerbatim(t *testing.T) {
	var buf bytes.Buffer
	f := protocol.RawFramer{BufferSize: protocol.DefaultReadBuffer}

	if err := f.WriteFrame(&buf, []byte("Khoor")); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if buf.String() != "Khoor" {
		t.Errorf("wire bytes = %q, want %q", buf.String(), "Khoor")
	}
}

func TestDelimitedFramer_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := protocol.DelimitedFramer{MaxSize: 1024}

	frames := []string{"Dolfh", "", strings.Repeat("z", 300), "[Dolfh]: khoor"}
	for _, frame := range frames {
		if err := f.WriteFrame(&buf, []byte(frame)); err != nil {
			t.Fatalf("WriteFrame(%q) error = %v", frame, err)
		}
	}

	r := bufio.NewReader(&buf)
	for _, want := range frames {
		got, err := f.ReadFrame(r)
		if err != nil {
			t.Fatalf("ReadFrame() error = %v", err)
		}
		if string(got) != want {
			t.Errorf("ReadFrame() = %q, want %q", got, want)
		}
	}

	if _, err := f.ReadFrame(r); err != io.EOF {
		t.Errorf("ReadFrame() at end error = %v, want io.EOF", err)
	}
}

func TestDelimitedFramer_Errors(t *testing.T) {
	f := protocol.DelimitedFramer{MaxSize: 8}

	t.Run("write too large", func(t *testing.T) {
		err := f.WriteFrame(io.Discard, make([]byte, 9))
		if !errors.Is(err, protocol.ErrFrameTooLarge) {
			t.Errorf("WriteFrame() error = %v, want %v", err, protocol.ErrFrameTooLarge)
		}
	})

	t.Run("read too large", func(t *testing.T) {
		var buf bytes.Buffer
		big := protocol.DelimitedFramer{MaxSize: 64}
		if err := big.WriteFrame(&buf, make([]byte, 32)); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
		_, err := f.ReadFrame(bufio.NewReader(&buf))
		if !errors.Is(err, protocol.ErrFrameTooLarge) {
			t.Errorf("ReadFrame() error = %v, want %v", err, protocol.ErrFrameTooLarge)
		}
	})

	t.Run("truncated body", func(t *testing.T) {
		r := bufio.NewReader(bytes.NewReader([]byte{5, 'a', 'b'}))
		if _, err := f.ReadFrame(r); err != io.ErrUnexpectedEOF {
			t.Errorf("ReadFrame() error = %v, want io.ErrUnexpectedEOF", err)
		}
	})

	t.Run("truncated header", func(t *testing.T) {
		r := bufio.NewReader(bytes.NewReader([]byte{0x80}))
		if _, err := f.ReadFrame(r); err != io.ErrUnexpectedEOF {
			t.Errorf("ReadFrame() error = %v, want io.ErrUnexpectedEOF", err)
		}
	})

	t.Run("overlong header", func(t *testing.T) {
		r := bufio.NewReader(bytes.NewReader(bytes.Repeat([]byte{0xff}, 12)))
		if _, err := f.ReadFrame(r); err == nil {
			t.Error("ReadFrame() error = nil, want header error")
		}
	})
}
