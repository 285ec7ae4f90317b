// Package online implements the online validator: turning a captured credential into a
// Decision by round-tripping an AccessRequest/AccessResponse with the
// remote validation peer over the transport layer, falling back to the offline validator
// when the peer is unreachable or unintelligible and the device is
// configured to do so.
package online

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/frame"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
	"github.com/henryproto/turnstile-emu/internal/transport"
)

// Transport is the slice of transport.Conn the validator needs, kept
// narrow so tests can supply an in-memory double instead of a real TCP
// connection.
type Transport interface {
	Send(ctx context.Context, deviceID int, body []byte) error
	Recv(ctx context.Context) (*frame.Decoded, error)
}

// Offline is implemented by the offline validator; Validator delegates to it when the
// online round-trip fails and fallback is enabled.
type Offline interface {
	Validate(ctx context.Context, credential string, direction command.Direction, readerType command.ReaderType) (command.AccessResponse, error)
}

// NowFunc lets tests substitute a fixed clock.
type NowFunc func() time.Time

// Validator is the online validator.
type Validator struct {
	Transport       Transport
	DeviceID        int
	Timeout         time.Duration
	FallbackOffline bool
	Offline         Offline
	Now             NowFunc
}

// Validate performs one AccessRequest/AccessResponse round-trip, bounded
// by v.Timeout, tolerating exactly one unsolicited interleaved message
// before giving up.
func (v *Validator) Validate(ctx context.Context, credential string, direction command.Direction, readerType command.ReaderType) (command.AccessResponse, error) {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}

	ctx, cancel := context.WithTimeout(ctx, v.Timeout)
	defer cancel()

	req := command.AccessRequest{
		Credential: credential,
		Timestamp:  now().Format("02/01/2006 15:04:05"),
		Direction:  direction,
		ReaderType: readerType,
	}
	body := message.Build(req.ToMessage(v.DeviceID))

	if err := v.Transport.Send(ctx, v.DeviceID, body); err != nil {
		return v.handleFailure(ctx, credential, direction, readerType, err)
	}

	const maxSkips = 1
	for attempt := 0; attempt <= maxSkips; attempt++ {
		decoded, err := v.Transport.Recv(ctx)
		if err != nil {
			return v.handleFailure(ctx, credential, direction, readerType, err)
		}
		msg, err := message.Parse(decoded.Body)
		if err != nil {
			return v.handleFailure(ctx, credential, direction, readerType, err)
		}
		resp, err := command.AccessResponseFromMessage(msg)
		if err != nil || decoded.DeviceID != v.DeviceID {
			continue // unsolicited interleaved message: skip, try once more
		}
		return resp, nil
	}
	return v.handleFailure(ctx, credential, direction, readerType, ErrMalformed)
}

func (v *Validator) handleFailure(ctx context.Context, credential string, direction command.Direction, readerType command.ReaderType, cause error) (command.AccessResponse, error) {
	if v.FallbackOffline && v.Offline != nil {
		return v.Offline.Validate(ctx, credential, direction, readerType)
	}
	if isTimeoutLike(cause) {
		return command.AccessResponse{}, fmt.Errorf("%w: %v", ErrTimeout, cause)
	}
	return command.AccessResponse{}, fmt.Errorf("%w: %v", ErrMalformed, cause)
}

func isTimeoutLike(err error) bool {
	return errors.Is(err, transport.ErrReadTimeout) ||
		errors.Is(err, transport.ErrConnectTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
