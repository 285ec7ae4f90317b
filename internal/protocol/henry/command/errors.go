// Package command is the typed façade over internal/protocol/henry/message:
// one Go type per documented Henry command family, each able to build
// itself into a Message and to be recovered from one.
package command

import (
	"errors"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
)

var (
	// ErrWrongCommand is returned by the *FromMessage decoders when the message's Command
	// token doesn't match the type being decoded.
	ErrWrongCommand = errors.New("command: unexpected command token")

	// ErrMalformedPayload is returned when a message has the right
	// command token but a payload shape the type can't interpret.
	ErrMalformedPayload = errors.New("command: malformed payload for this command")

	// ErrUnknownKey is returned by EC when the payload names a
	// configuration key outside the documented set.
	ErrUnknownKey = errors.New("command: unknown configuration key")

	// ErrRowCountMismatch is returned by batch CRUD commands when the
	// declared row count doesn't match the number of rows present.
	ErrRowCountMismatch = errors.New("command: declared row count does not match payload rows")

	// ErrClearAllRequiresZeroCount is returned when mode L (clear-all)
	// is requested with a non-zero declared row count.
	ErrClearAllRequiresZeroCount = errors.New("command: clear-all mode requires a row count of 0")
)

// errorOpcode is the negative op code used for command errors on
// incoming commands: the connection stays open and the host sees the
// same command token back with this sentinel opcode rather than a
// generic transport-level close.
const errorOpcode = "99"

// ErrorResponse builds the error-response frame for a command that
// failed to apply: same command token, sentinel negative opcode, and the
// failure reason as the sole payload field so management tooling can
// surface it without re-deriving it from logs.
func ErrorResponse(deviceID int, commandToken string, cause error) message.Message {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     commandToken,
		Opcode:      errorOpcode,
		Payload: []message.Record{
			{message.NewField(reason)},
		},
	}
}
