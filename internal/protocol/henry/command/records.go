package command

import (
	"fmt"
	"strconv"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
)

const (
	CommandRR = "RR" // host query for stored event-log records.
	CommandER = "ER" // device's answer: a batch of log entries.

	opcodeRecordsQuery = "00"
)

// RecordFilterMode selects which records an RR query returns.
type RecordFilterMode byte

const (
	// FilterByAddress returns Qty records starting at the memory
	// address in Value.
	FilterByAddress RecordFilterMode = 'M'
	// FilterByNSR returns Qty records starting at the sequential
	// record number in Value.
	FilterByNSR RecordFilterMode = 'N'
	// FilterByDate returns Qty records whose timestamp falls between
	// Value (start) and End (end, optional on some firmwares).
	FilterByDate RecordFilterMode = 'D'
	// FilterByIndex returns Qty records starting at the 1-based
	// position in Value.
	FilterByIndex RecordFilterMode = 'T'
	// FilterUncollected returns up to Qty records the host has not yet
	// collected. They are marked collected only once the host
	// acknowledges them with ER; until then the same batch is resent,
	// per connection. Value is carried but not interpreted.
	FilterUncollected RecordFilterMode = 'C'
)

// RecordsQuery is an RR message: a filter mode plus the qty/value
// payload fields that mode carries. Every mode carries Qty and Value
// (addr/nsr/index, per mode); only FilterByDate also carries End.
type RecordsQuery struct {
	Mode  RecordFilterMode
	Qty   int
	Value string
	End   string
}

func (q RecordsQuery) ToMessage(deviceID int) message.Message {
	payload := []message.Record{
		{message.NewField(string(q.Mode))},
		{message.NewField(strconv.Itoa(q.Qty))},
		{message.NewField(q.Value)},
	}
	if q.Mode == FilterByDate && q.End != "" {
		payload = append(payload, message.Record{message.NewField(q.End)})
	}
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandRR,
		Opcode:      opcodeRecordsQuery,
		Payload:     payload,
	}
}

func RecordsQueryFromMessage(m message.Message) (RecordsQuery, error) {
	if m.Command != CommandRR {
		return RecordsQuery{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	if len(m.Payload) == 0 {
		return RecordsQuery{}, ErrMalformedPayload
	}
	modeStr := m.RecordValue(0)
	if len(modeStr) != 1 {
		return RecordsQuery{}, ErrMalformedPayload
	}
	q := RecordsQuery{Mode: RecordFilterMode(modeStr[0])}
	if len(m.Payload) > 1 {
		qty, err := strconv.Atoi(m.RecordValue(1))
		if err != nil {
			return RecordsQuery{}, fmt.Errorf("%w: bad qty", ErrMalformedPayload)
		}
		q.Qty = qty
	}
	if len(m.Payload) > 2 {
		q.Value = m.RecordValue(2)
	}
	if q.Mode == FilterByDate && len(m.Payload) > 3 {
		q.End = m.RecordValue(3)
	}
	return q, nil
}

// LogEntry is one stored access-control event.
type LogEntry struct {
	Sequence  int
	Timestamp string
	EventType string
	Detail    string
}

// RecordsResponse is an ER message: the device's batch answer to an RR
// query, row-counted the same way a BatchWrite is.
type RecordsResponse struct {
	Entries []LogEntry
}

func (r RecordsResponse) ToMessage(deviceID int) message.Message {
	payload := make([]message.Record, 0, len(r.Entries))
	for _, e := range r.Entries {
		payload = append(payload, message.Record{
			message.NewField(strconv.Itoa(e.Sequence)),
			message.NewField(e.Timestamp),
			message.NewField(e.EventType),
			message.NewField(e.Detail),
		})
	}
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandER,
		Opcode:      fmt.Sprintf("00+%d+", len(r.Entries)),
		Payload:     payload,
	}
}

func RecordsResponseFromMessage(m message.Message) (RecordsResponse, error) {
	if m.Command != CommandER {
		return RecordsResponse{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	declared, err := parseCountOpcode(m.Opcode)
	if err != nil {
		return RecordsResponse{}, err
	}
	rows := effectiveRows(m.Payload)
	if len(rows) != declared {
		return RecordsResponse{}, ErrRowCountMismatch
	}
	entries := make([]LogEntry, 0, len(rows))
	for _, rec := range rows {
		if len(rec) < 4 {
			return RecordsResponse{}, ErrMalformedPayload
		}
		seq, convErr := strconv.Atoi(rec[0].Value())
		if convErr != nil {
			return RecordsResponse{}, fmt.Errorf("%w: bad sequence number", ErrMalformedPayload)
		}
		entries = append(entries, LogEntry{
			Sequence:  seq,
			Timestamp: rec[1].Value(),
			EventType: rec[2].Value(),
			Detail:    rec[3].Value(),
		})
	}
	return RecordsResponse{Entries: entries}, nil
}
