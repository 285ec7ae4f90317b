package transport

import "errors"

var (
	// ErrConnectTimeout is returned by Dial when the peer doesn't accept
	// the connection within the given timeout.
	ErrConnectTimeout = errors.New("transport: connect timeout")

	// ErrRefused is returned by Dial when the peer actively refuses the
	// connection.
	ErrRefused = errors.New("transport: connection refused")

	// ErrReadTimeout is returned by Conn.Recv when no complete frame
	// arrives within the configured timeout.
	ErrReadTimeout = errors.New("transport: read timeout")

	// ErrClosed is returned by Conn.Recv when the peer closes the
	// connection.
	ErrClosed = errors.New("transport: connection closed")
)
