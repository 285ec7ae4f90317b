// Package frame implements the byte-level Henry protocol framing: the
// STX/ETX envelope, the hex-ASCII length field, the two-digit device ID,
// and the trailing XOR checksum. It knows nothing about message grammar —
// callers above it work with (device ID, payload bytes) pairs.
package frame

import "errors"

// Error kinds returned by Encode and Decode. Compare with errors.Is.
var (
	ErrIDOutOfRange    = errors.New("frame: device id out of range [1,99]")
	ErrBodyTooLong     = errors.New("frame: body exceeds 0xFFFF bytes")
	ErrNonASCII        = errors.New("frame: body contains a non-ASCII byte")
	ErrMissingSTX      = errors.New("frame: missing STX marker")
	ErrMissingETX      = errors.New("frame: missing ETX marker")
	ErrLengthMismatch  = errors.New("frame: length field does not match payload size")
	ErrChecksumMismatch = errors.New("frame: checksum does not match")
	ErrMalformedLength = errors.New("frame: length field is not 4 uppercase hex digits")
	ErrMalformedID     = errors.New("frame: device id field is not 2 decimal digits")
)
