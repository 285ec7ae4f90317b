package online

import "errors"

var (
	// ErrTimeout is returned when the round-trip with the peer doesn't
	// complete within the configured window and no offline fallback is
	// configured.
	ErrTimeout = errors.New("online: validation timeout")

	// ErrMalformed is returned when the peer responds with bytes that
	// don't decode to an AccessResponse for the outstanding request, and
	// no offline fallback is configured.
	ErrMalformed = errors.New("online: malformed response")
)
