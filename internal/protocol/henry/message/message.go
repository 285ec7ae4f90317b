// Package message implements the Henry protocol's grammar layer: parsing
// and building a frame body (the payload the frame codec hands back) into a
// field-structured Message. It knows nothing about byte-level framing and
// nothing about what any particular command family's fields mean — that is
// the command catalog's job (internal/protocol/henry/command).
package message

import "errors"

// ErrUnexpectedSeparator is returned when a single field value mixes '{'
// and '}' — the grammar allows a sub-fielded value to use one or the
// other consistently, never both.
var ErrUnexpectedSeparator = errors.New("message: field mixes '{' and '}' sub-field separators")

// Field is one grammar-level field value. Most fields are a single part;
// a sub-fielded value (biometric template cells, multi-card lists) carries
// several parts joined on the wire by a single consistent separator, '{'
// or '}'.
type Field struct {
	Parts []string
	Sep   byte // '{', '}', or 0 when there is only one part
}

// NewField builds a plain, non-sub-fielded field.
func NewField(value string) Field {
	return Field{Parts: []string{value}}
}

// Value returns the field's value as it appeared on the wire (a single
// part verbatim, or sub-parts rejoined with Sep).
func (f Field) Value() string {
	if len(f.Parts) <= 1 {
		if len(f.Parts) == 0 {
			return ""
		}
		return f.Parts[0]
	}
	out := f.Parts[0]
	for _, p := range f.Parts[1:] {
		out += string(f.Sep) + p
	}
	return out
}

// Record is an ordered list of fields separated on the wire by '['.
type Record []Field

// Value returns the record's single field value, for the common case of a
// record with exactly one field (e.g. REON's per-record credential/date
// fields). Returns "" for an empty record.
func (r Record) Value() string {
	if len(r) == 0 {
		return ""
	}
	return r[0].Value()
}

// Message is the parsed grammar-layer view of a frame body.
type Message struct {
	// DeviceID and HasDeviceID capture the message-level id2 prefix,
	// which is distinct from (and may disagree with, or be absent
	// relative to) the frame-level device id from the frame codec —
	// some responses omit it entirely.
	DeviceID    int
	HasDeviceID bool

	// Command is the command token, e.g. "REON", "EC", "RR".
	Command string

	// Opcode is the operation code, e.g. "000+0", "00+6", "00+30".
	Opcode string

	// Payload is the ordered list of records making up the command body.
	Payload []Record
}

// Field returns the field at [recordIdx][fieldIdx], or the zero Field if
// out of range. Convenience accessor for the command catalog, which maps
// positional records/fields onto named struct fields.
func (m Message) Field(recordIdx, fieldIdx int) Field {
	if recordIdx < 0 || recordIdx >= len(m.Payload) {
		return Field{}
	}
	rec := m.Payload[recordIdx]
	if fieldIdx < 0 || fieldIdx >= len(rec) {
		return Field{}
	}
	return rec[fieldIdx]
}

// RecordValue is shorthand for Field(recordIdx, 0).Value(), the common
// case of a single-field record.
func (m Message) RecordValue(recordIdx int) string {
	return m.Field(recordIdx, 0).Value()
}
