package management

import "errors"

var (
	// ErrUnknownCommand is returned when no handler is registered for a
	// message's command token.
	ErrUnknownCommand = errors.New("management: no handler for command")

	// ErrUnknownTable is returned when a batch-write token names a
	// catalog table the Catalog implementation doesn't provide.
	ErrUnknownTable = errors.New("management: unknown catalog table")

	// ErrUnknownStatusParam is returned when an RQ query names a
	// parameter the catalog doesn't report.
	ErrUnknownStatusParam = errors.New("management: unknown status parameter")
)
