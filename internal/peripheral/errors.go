package peripheral

import "errors"

var (
	// ErrNotStarted is returned by Recv when Start hasn't been called yet.
	ErrNotStarted = errors.New("peripheral: not started")

	// ErrAlreadyStarted is returned by Start when called twice.
	ErrAlreadyStarted = errors.New("peripheral: already started")

	// ErrUnconfiguredVariant is returned when a tagged variant's active
	// arm has no concrete driver set for its tag.
	ErrUnconfiguredVariant = errors.New("peripheral: tagged variant has no driver for its selected kind")

	// ErrBackpressure names the full-channel condition. The dispatcher's
	// publish callback has no return value and drops the event silently,
	// so nothing in this package returns it.
	ErrBackpressure = errors.New("peripheral: event channel full, dropping event")
)
