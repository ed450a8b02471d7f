package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Framing names a frame codec.
type Framing string

const (
	// FramingRaw treats whatever a single read returns as one frame. There is
	// no delimiter, so frames written back to back may arrive spliced or split.
	FramingRaw Framing = "raw"

	// FramingDelimited prefixes each frame with its length as a protobuf
	// varint. Peers must agree on it; it is not compatible with raw peers.
	FramingDelimited Framing = "delimited"
)

const (
	// DefaultReadBuffer is the largest raw frame a single read returns.
	DefaultReadBuffer = 1024

	// DefaultMaxFrameSize bounds a delimited frame.
	DefaultMaxFrameSize = 64 * 1024
)

var (
	// ErrFrameTooLarge is returned when a delimited frame exceeds the limit.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// ErrUnknownFraming is returned by ParseFraming for unknown names.
	ErrUnknownFraming = errors.New("unknown framing")
)

// ParseFraming converts a configured name into a Framing.
func ParseFraming(name string) (Framing, error) {
	switch Framing(name) {
	case FramingRaw, FramingDelimited:
		return Framing(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFraming, name)
	}
}

// Framer reads and writes frames on a byte stream.
type Framer interface {
	// ReadFrame returns the next frame. It returns io.EOF once the stream
	// is closed between frames.
	ReadFrame(r *bufio.Reader) ([]byte, error)

	// WriteFrame writes p as one frame.
	WriteFrame(w io.Writer, p []byte) error
}

// NewFramer returns the codec for f. Zero sizes select the defaults.
func NewFramer(f Framing, readBuffer, maxFrameSize int) (Framer, error) {
	switch f {
	case FramingRaw, "":
		if readBuffer <= 0 {
			readBuffer = DefaultReadBuffer
		}
		return RawFramer{BufferSize: readBuffer}, nil
	case FramingDelimited:
		if maxFrameSize <= 0 {
			maxFrameSize = DefaultMaxFrameSize
		}
		return DelimitedFramer{MaxSize: maxFrameSize}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFraming, f)
	}
}

// RawFramer returns the bytes of one read call as a frame.
type RawFramer struct {
	BufferSize int
}

// ReadFrame implements Framer.
func (f RawFramer) ReadFrame(r *bufio.Reader) ([]byte, error) {
	buf := make([]byte, f.BufferSize)
	n, err := r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return nil, err
}

// WriteFrame implements Framer.
func (f RawFramer) WriteFrame(w io.Writer, p []byte) error {
	_, err := w.Write(p)
	return err
}

// DelimitedFramer prefixes every frame with a varint length.
type DelimitedFramer struct {
	MaxSize int
}

// ReadFrame implements Framer.
func (f DelimitedFramer) ReadFrame(r *bufio.Reader) ([]byte, error) {
	header := make([]byte, 0, binary.MaxVarintLen64)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if len(header) > 0 && err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		header = append(header, b)
		if b < 0x80 || len(header) == binary.MaxVarintLen64 {
			break
		}
	}

	size, n := protowire.ConsumeVarint(header)
	if n < 0 {
		return nil, fmt.Errorf("frame header: %w", protowire.ParseError(n))
	}
	if size > uint64(f.MaxSize) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, f.MaxSize)
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(r, frame); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return frame, nil
}

// WriteFrame implements Framer.
func (f DelimitedFramer) WriteFrame(w io.Writer, p []byte) error {
	if len(p) > f.MaxSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(p), f.MaxSize)
	}
	buf := protowire.AppendBytes(make([]byte, 0, protowire.SizeBytes(len(p))), p)
	_, err := w.Write(buf)
	return err
}
