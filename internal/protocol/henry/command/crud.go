package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
)

// CRUDMode is the per-row operation flag carried in the first field of
// every row in a batch write.
type CRUDMode byte

const (
	ModeInsert   CRUDMode = 'I'
	ModeAlter    CRUDMode = 'A'
	ModeErase    CRUDMode = 'E'
	ModeClearAll CRUDMode = 'L'
)

// CRUDRow is one row of a batch write: a mode flag, a primary key/id, and
// whatever data columns the family defines, each possibly sub-fielded.
type CRUDRow struct {
	Mode    CRUDMode
	Key     string
	Columns []message.Field
}

// BatchWrite is the generic shape shared by every Henry "write a table of
// rows" command family: EU/RU (users), ECAR/RCAR (cards), ED/RD
// (templates), EGA/RGA (access groups), ECGA/RCGA (group membership),
// EACI/RACI (access control by interval), EPER/RPER (periods), EHOR/RHOR
// (schedules), EFER/RFER (holidays) and EMSG/RMSG (display messages) all
// build and parse identically once the family's command token is fixed.
type BatchWrite struct {
	Command string
	Rows    []CRUDRow
}

func (b BatchWrite) ToMessage(deviceID int) message.Message {
	payload := make([]message.Record, 0, len(b.Rows))
	for _, row := range b.Rows {
		rec := make(message.Record, 0, len(row.Columns)+2)
		rec = append(rec, message.NewField(string(row.Mode)))
		rec = append(rec, message.NewField(row.Key))
		rec = append(rec, row.Columns...)
		payload = append(payload, rec)
	}
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     b.Command,
		Opcode:      fmt.Sprintf("00+%d+", len(b.Rows)),
		Payload:     payload,
	}
}

// BatchWriteFromMessage recovers a BatchWrite from m, requiring its
// Command to equal wantCommand. It enforces the declared row count
// (ErrRowCountMismatch) and the clear-all invariant that mode L may only
// be sent alone with a declared count of zero (ErrClearAllRequiresZeroCount).
func BatchWriteFromMessage(wantCommand string, m message.Message) (BatchWrite, error) {
	if m.Command != wantCommand {
		return BatchWrite{}, fmt.Errorf("%w: got %q, want %q", ErrWrongCommand, m.Command, wantCommand)
	}
	declared, err := parseCountOpcode(m.Opcode)
	if err != nil {
		return BatchWrite{}, err
	}

	rows := effectiveRows(m.Payload)
	if declared == 0 {
		if len(rows) == 1 && rows[0].Value() == string(ModeClearAll) {
			return BatchWrite{Command: wantCommand, Rows: []CRUDRow{{Mode: ModeClearAll}}}, nil
		}
		if len(rows) != 0 {
			return BatchWrite{}, ErrRowCountMismatch
		}
	}
	if len(rows) != declared {
		return BatchWrite{}, ErrRowCountMismatch
	}

	out := make([]CRUDRow, 0, len(rows))
	for _, rec := range rows {
		if len(rec) == 0 {
			return BatchWrite{}, ErrMalformedPayload
		}
		modeStr := rec[0].Value()
		if len(modeStr) != 1 {
			return BatchWrite{}, ErrMalformedPayload
		}
		mode := CRUDMode(modeStr[0])
		if mode == ModeClearAll {
			return BatchWrite{}, ErrClearAllRequiresZeroCount
		}
		row := CRUDRow{Mode: mode}
		if len(rec) > 1 {
			row.Key = rec[1].Value()
		}
		if len(rec) > 2 {
			row.Columns = append(row.Columns, rec[2:]...)
		}
		out = append(out, row)
	}
	return BatchWrite{Command: wantCommand, Rows: out}, nil
}

// effectiveRows strips the single trailing empty record a terminal ']'
// produces, mirroring the tolerated-trailing-bracket convention at the
// grammar layer: it is punctuation, not a row.
func effectiveRows(payload []message.Record) []message.Record {
	if n := len(payload); n > 0 {
		last := payload[n-1]
		if len(last) == 1 && last[0].Value() == "" {
			return payload[:n-1]
		}
	}
	return payload
}

// ParseBatchCount exposes the "00+<n>+" declared-count opcode parser for
// callers outside this package that need to interpret a batch-shaped
// opcode without going through BatchWriteFromMessage (e.g. the
// management layer's ack handling for RR+C).
func ParseBatchCount(opcode string) (int, error) {
	return parseCountOpcode(opcode)
}

func parseCountOpcode(opcode string) (int, error) {
	const prefix, suffix = "00+", "+"
	if !strings.HasPrefix(opcode, prefix) || !strings.HasSuffix(opcode, suffix) {
		return 0, fmt.Errorf("%w: opcode %q is not a batch-write opcode", ErrMalformedPayload, opcode)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(opcode, prefix), suffix)
	n, err := strconv.Atoi(body)
	if err != nil {
		return 0, fmt.Errorf("%w: opcode %q has a non-numeric row count", ErrMalformedPayload, opcode)
	}
	return n, nil
}

// The following command tokens all ride the BatchWrite/BatchWriteFromMessage
// mechanism above; only their wire token differs.
const (
	CommandEU   = "EU"   // users - write
	CommandRU   = "RU"   // users - echo/ack
	CommandECAR = "ECAR" // cards - write
	CommandRCAR = "RCAR" // cards - echo/ack
	CommandED   = "ED"   // biometric templates - write
	CommandRD   = "RD"   // biometric templates - echo/ack
	CommandEGA  = "EGA"  // access groups - write
	CommandRGA  = "RGA"  // access groups - echo/ack
	CommandECGA = "ECGA" // group membership - write
	CommandRCGA = "RCGA" // group membership - echo/ack
	CommandEACI = "EACI" // access-by-interval rules - write
	CommandRACI = "RACI" // access-by-interval rules - echo/ack
	CommandEPER = "EPER" // time periods - write
	CommandRPER = "RPER" // time periods - echo/ack
	CommandEHOR = "EHOR" // weekly schedules - write
	CommandRHOR = "RHOR" // weekly schedules - echo/ack
	CommandEFER = "EFER" // holidays - write
	CommandRFER = "RFER" // holidays - echo/ack
	CommandEMSG = "EMSG" // display messages - write
	CommandRMSG = "RMSG" // display messages - echo/ack
)
