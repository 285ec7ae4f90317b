// Package transport is the TCP carrier for Henry frames: a persistent,
// bidirectional connection per turnstile, framed with
// internal/protocol/henry/frame and driven by an accept loop using
// deadline-per-operation I/O, one goroutine per connection, and graceful
// shutdown via context.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/frame"
)

// DefaultIOTimeout bounds a single read or write on a Conn. The Henry
// link is a long-lived connection, not a request/reply RPC, so this
// applies per Send/Recv call rather than to the connection's whole
// lifetime.
const DefaultIOTimeout = 5 * time.Second

// readBufferCap is large enough to hold several frames' worth of bytes
// before DecodeStream needs another read; Henry frames are small
// (LEN4 maxes out at 0xFFFF) so this comfortably covers bursts.
const readBufferCap = 16 * 1024

// Conn wraps one accepted TCP connection, framing reads and writes
// through the Henry codec.
type Conn struct {
	raw     net.Conn
	timeout time.Duration
	buf     []byte
	rd      *bufio.Reader
}

// NewConn wraps raw with the given per-operation I/O timeout.
func NewConn(raw net.Conn, timeout time.Duration) *Conn {
	if timeout <= 0 {
		timeout = DefaultIOTimeout
	}
	return &Conn{
		raw:     raw,
		timeout: timeout,
		buf:     make([]byte, 0, readBufferCap),
		rd:      bufio.NewReaderSize(raw, readBufferCap),
	}
}

// RemoteAddr returns the peer address, for logging.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}

// Send encodes and writes one frame.
func (c *Conn) Send(ctx context.Context, deviceID int, body []byte) error {
	out, err := frame.Encode(deviceID, body)
	if err != nil {
		return fmt.Errorf("transport: encode: %w", err)
	}
	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.raw.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}
	if _, err := c.raw.Write(out); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Recv blocks until the next complete frame is decoded, resyncing past
// any malformed bytes the way frame.DecodeStream specifies. It returns
// an error wrapping ErrClosed when the peer closes the connection cleanly.
func (c *Conn) Recv(ctx context.Context) (*frame.Decoded, error) {
	for {
		if len(c.buf) > 0 {
			consumed, decoded, err := frame.DecodeStream(c.buf)
			c.buf = c.buf[consumed:]
			if err != nil {
				// Resync: one bad byte was already dropped by consumed;
				// keep scanning the remaining buffer before reading more.
				continue
			}
			if decoded != nil {
				return decoded, nil
			}
		}

		deadline := time.Now().Add(c.timeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		if err := c.raw.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("transport: set read deadline: %w", err)
		}

		chunk := make([]byte, readBufferCap)
		n, err := c.rd.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: %v", ErrClosed, err)
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, fmt.Errorf("%w: %v", ErrReadTimeout, err)
			}
			return nil, fmt.Errorf("transport: read: %w", err)
		}
	}
}

// Dial connects to addr within timeout, wrapping net errors into the
// ErrConnectTimeout/ErrRefused sentinels.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, fmt.Errorf("%w: %v", ErrConnectTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrRefused, err)
	}
	return NewConn(raw, timeout), nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}
