// Package protocol defines the texts exchanged between chat peers and the
// codecs that cut a byte stream into frames.
package protocol

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/omochice/shift-chat/pkg/cipher"
)

var (
	// ErrEmptyNickname is returned for a nickname that is blank after trimming.
	ErrEmptyNickname = errors.New("nickname cannot be empty")

	// ErrInvalidText is returned when a frame that must carry text is not
	// valid UTF-8.
	ErrInvalidText = errors.New("frame is not valid UTF-8 text")
)

const (
	// ShutdownNotice is sent to every registered peer before the server
	// closes its connections.
	ShutdownNotice = "[SERVER] Server is shutting down. You will be disconnected."

	// NicknameRejected is sent to a peer whose nickname is blank.
	NicknameRejected = "[SERVER] Nickname cannot be empty. Disconnecting."

	// QuitCommand ends a client session locally. It is never transmitted.
	QuitCommand = "/quit"
)

// Joined returns the announcement broadcast when nickname enters the chat.
func Joined(nickname string) string {
	return fmt.Sprintf("[SERVER] '%s' has joined the chat!", nickname)
}

// Left returns the announcement broadcast when nickname leaves the chat.
func Left(nickname string) string {
	return fmt.Sprintf("[SERVER] '%s' has left the chat.", nickname)
}

// ChatLine formats one line typed by nickname.
func ChatLine(nickname, message string) string {
	return fmt.Sprintf("[%s]: %s", nickname, message)
}

// ParseNickname validates an identification frame and returns the trimmed
// nickname.
func ParseNickname(frame []byte) (string, error) {
	if !utf8.Valid(frame) {
		return "", ErrInvalidText
	}
	nickname := strings.TrimSpace(string(frame))
	if nickname == "" {
		return "", ErrEmptyNickname
	}
	return nickname, nil
}

// IsQuit reports whether a line typed by the user is the quit command.
func IsQuit(line string) bool {
	return strings.EqualFold(strings.TrimSpace(line), QuitCommand)
}

// Seal obscures plaintext with key and returns the bytes to put on the wire.
func Seal(plaintext string, key int) []byte {
	return []byte(cipher.Obscure(plaintext, key))
}

// Open reveals a received frame with key.
func Open(frame []byte, key int) (string, error) {
	if !utf8.Valid(frame) {
		return "", ErrInvalidText
	}
	return cipher.Reveal(string(frame), key), nil
}
