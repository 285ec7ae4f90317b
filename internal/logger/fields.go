package logger

import (
	"log/slog"
	"time"
)

// Structured log field keys for the turnstile domain. Grouped the way
// the wire protocol, the state machine, and the catalog each think about
// their own events, matching the original file's per-subsystem grouping
// convention.

// Protocol/transport fields.
const (
	KeyCommand      = "command"       // Henry command token (REON, EC, RR, ...)
	KeyOpcode       = "opcode"        // wire opcode string
	KeyDeviceID     = "device_id"     // configured device.id
	KeyConnectionID = "connection_id" // remote address of the accepted connection
	KeyTraceID      = "trace_id"
	KeySpanID       = "span_id"
	KeyDurationMs   = "duration_ms"
	KeyErr          = "error"
)

// Access-decision fields.
const (
	KeyCredential  = "credential"   // captured card UID / keypad code / template ID
	KeyReaderType  = "reader_type"  // keypad/rfid/biometric
	KeyDirection   = "direction"    // entry/exit
	KeyGrantKind   = "grant_kind"   // both/manual/entry/exit/deny
	KeyDisplayHold = "display_hold" // seconds the grant message is held
	KeyDenyReason  = "deny_reason"
	KeyUserID      = "user_id"
)

// State machine fields.
const (
	KeyState       = "state"
	KeyPrevState   = "prev_state"
	KeyEventKind   = "event_kind"
	KeyHoldSeconds = "hold_seconds"
)

// Management/catalog fields.
const (
	KeyConfigKey   = "config_key"
	KeySequence    = "sequence" // event-log record sequence number
	KeyBatchRows   = "batch_rows"
	KeyStatusParam = "status_param"
	KeyUncollected = "uncollected_count"
)

// TraceID returns a trace_id attribute.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a span_id attribute.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// Command returns a command attribute.
func Command(token string) slog.Attr { return slog.String(KeyCommand, token) }

// Opcode returns an opcode attribute.
func Opcode(opcode string) slog.Attr { return slog.String(KeyOpcode, opcode) }

// DeviceID returns a device_id attribute.
func DeviceID(id int) slog.Attr { return slog.Int(KeyDeviceID, id) }

// ConnectionID returns a connection_id attribute.
func ConnectionID(id string) slog.Attr { return slog.String(KeyConnectionID, id) }

// Err returns an error attribute, or a no-op attribute for a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyErr, err.Error())
}

// DurationMs returns a duration_ms attribute measured since start.
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

// Credential returns a credential attribute.
func Credential(value string) slog.Attr { return slog.String(KeyCredential, value) }

// ReaderType returns a reader_type attribute.
func ReaderType(kind string) slog.Attr { return slog.String(KeyReaderType, kind) }

// Direction returns a direction attribute.
func Direction(dir string) slog.Attr { return slog.String(KeyDirection, dir) }

// GrantKind returns a grant_kind attribute.
func GrantKind(kind string) slog.Attr { return slog.String(KeyGrantKind, kind) }

// DenyReason returns a deny_reason attribute.
func DenyReason(reason string) slog.Attr { return slog.String(KeyDenyReason, reason) }

// UserID returns a user_id attribute.
func UserID(id string) slog.Attr { return slog.String(KeyUserID, id) }

// State returns a state attribute.
func State(s string) slog.Attr { return slog.String(KeyState, s) }

// PrevState returns a prev_state attribute.
func PrevState(s string) slog.Attr { return slog.String(KeyPrevState, s) }

// EventKind returns an event_kind attribute.
func EventKind(k string) slog.Attr { return slog.String(KeyEventKind, k) }

// ConfigKey returns a config_key attribute.
func ConfigKey(key string) slog.Attr { return slog.String(KeyConfigKey, key) }

// Sequence returns a sequence attribute.
func Sequence(n int) slog.Attr { return slog.Int(KeySequence, n) }

// BatchRows returns a batch_rows attribute.
func BatchRows(n int) slog.Attr { return slog.Int(KeyBatchRows, n) }

// StatusParam returns a status_param attribute.
func StatusParam(param string) slog.Attr { return slog.String(KeyStatusParam, param) }

// Uncollected returns an uncollected_count attribute.
func Uncollected(n int) slog.Attr { return slog.Int(KeyUncollected, n) }
