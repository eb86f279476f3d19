package protocol

import (
	"errors"
	"strings"
)

// Command encoding errors.
var (
	ErrEmptyCommand    = errors.New("protocol: command is empty")
	ErrCommandTooLarge = errors.New("protocol: command exceeds size limit")
)

// EncodeCommand encodes a user submission as an outbound frame.
// Both vocabularies send the raw text with no envelope.
func EncodeCommand(text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyCommand
	}
	if len(text) > MaxCommandSize {
		return nil, ErrCommandTooLarge
	}
	return []byte(text), nil
}
