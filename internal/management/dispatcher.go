// Package management implements the handler for every Henry message
// that is not an access-event (REON) or rotation-notification message —
// config get/set, clock get/set, status queries, the batch-write table
// families, and the event-log record query/collection protocol (RR/ER).
//
// Dispatch follows the same procedure-table shape the transport layer's
// sibling protocol uses: a map from wire command token to a procedure,
// populated once in init().
package management

import (
	"context"
	"fmt"

	"github.com/henryproto/turnstile-emu/internal/catalog"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
)

// Clock is the device-clock collaborator behind EH/RH. A real device
// would answer RH from its own real-time clock once an EH has set it;
// SentinelDateTime is returned for RH before that first EH arrives.
type Clock interface {
	Set(ctx context.Context, dateTime string) error
	Get(ctx context.Context) (string, error)
}

// Handler dispatches inbound management messages to their handling logic
// and builds the response frame. One Handler is shared across
// connections; per-connection state (the RR+C pending batch) lives in a
// Session the caller passes in per call.
type Handler struct {
	Catalog  catalog.Catalog
	Clock    Clock
	DeviceID int

	// UncollectedBatchSize bounds how many records an RR fetch in mode C
	// returns when the host didn't cap it itself via Qty.
	UncollectedBatchSize int
}

// procedure is one dispatch-table entry: a human name for logging plus
// the function that handles it. A nil response with a nil error means
// "no reply frame" (used for the RR+C ack, which the device does not
// answer).
type procedure struct {
	name    string
	handler func(ctx context.Context, h *Handler, sess *Session, m message.Message) (*message.Message, error)
}

var dispatchTable map[string]procedure

func init() {
	dispatchTable = map[string]procedure{
		command.CommandEC: {name: "EC", handler: handleSetConfig},
		command.CommandRC: {name: "RC", handler: handleQueryConfig},
		command.CommandEH: {name: "EH", handler: handleSetClock},
		command.CommandRH: {name: "RH", handler: handleQueryClock},
		command.CommandRQ: {name: "RQ", handler: handleStatusQuery},
		command.CommandRR: {name: "RR", handler: handleRecordsQuery},
		command.CommandER: {name: "ER", handler: handleRecordsAck},
	}
	for token, ack := range batchFamilies {
		dispatchTable[token] = procedure{
			name:    token,
			handler: batchWriteHandler(token, ack),
		}
	}
}

// batchFamilies pairs every batch-write command token with its
// echo/ack response token; both ride command.BatchWrite's generic shape.
var batchFamilies = map[string]string{
	command.CommandEU:   command.CommandRU,
	command.CommandECAR: command.CommandRCAR,
	command.CommandED:   command.CommandRD,
	command.CommandEGA:  command.CommandRGA,
	command.CommandECGA: command.CommandRCGA,
	command.CommandEACI: command.CommandRACI,
	command.CommandEPER: command.CommandRPER,
	command.CommandEHOR: command.CommandRHOR,
	command.CommandEFER: command.CommandRFER,
	command.CommandEMSG: command.CommandRMSG,
}

// Handle dispatches m to its registered handler and returns the response
// frame to send back, or nil if the message expects no reply (an RR+C
// ack). ErrUnknownCommand is returned for any command token with no
// registered handler.
func (h *Handler) Handle(ctx context.Context, sess *Session, m message.Message) (*message.Message, error) {
	proc, ok := dispatchTable[m.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, m.Command)
	}
	return proc.handler(ctx, h, sess, m)
}

func batchWriteHandler(tableToken, ackToken string) func(context.Context, *Handler, *Session, message.Message) (*message.Message, error) {
	return func(ctx context.Context, h *Handler, _ *Session, m message.Message) (*message.Message, error) {
		batch, err := command.BatchWriteFromMessage(tableToken, m)
		if err != nil {
			return nil, err
		}
		table, ok := h.Catalog.Table(tableToken)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTable, tableToken)
		}
		if err := table.Apply(ctx, batch.Rows); err != nil {
			return nil, err
		}
		ack := command.BatchWrite{Command: ackToken, Rows: batch.Rows}
		resp := ack.ToMessage(h.DeviceID)
		return &resp, nil
	}
}

func handleSetConfig(ctx context.Context, h *Handler, _ *Session, m message.Message) (*message.Message, error) {
	set, err := command.SetConfigFromMessage(m)
	if err != nil {
		return nil, err
	}
	if !command.IsWritable(set.Key) {
		return nil, fmt.Errorf("%w: %q is not writable", command.ErrUnknownKey, set.Key)
	}
	cfg, ok := h.Catalog.(configWriter)
	if !ok {
		return nil, fmt.Errorf("%w: catalog does not support config writes", ErrUnknownCommand)
	}
	if err := cfg.SetConfigValue(ctx, set.Key, set.Value); err != nil {
		return nil, err
	}
	resp := set.ToMessage(h.DeviceID)
	return &resp, nil
}

func handleQueryConfig(ctx context.Context, h *Handler, _ *Session, m message.Message) (*message.Message, error) {
	q, err := command.QueryConfigFromMessage(m)
	if err != nil {
		return nil, err
	}
	cfg, ok := h.Catalog.(configReader)
	if !ok {
		return nil, fmt.Errorf("%w: catalog does not support config reads", ErrUnknownCommand)
	}
	value, found, err := cfg.ConfigValue(ctx, q.Key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", command.ErrUnknownKey, q.Key)
	}
	resp := command.ConfigValue{Key: q.Key, Value: value}.ToMessage(h.DeviceID)
	return &resp, nil
}

func handleSetClock(ctx context.Context, h *Handler, _ *Session, m message.Message) (*message.Message, error) {
	set, err := command.SetDateTimeFromMessage(m)
	if err != nil {
		return nil, err
	}
	if err := h.Clock.Set(ctx, set.DateTime); err != nil {
		return nil, err
	}
	resp := set.ToMessage(h.DeviceID)
	return &resp, nil
}

func handleQueryClock(ctx context.Context, h *Handler, _ *Session, m message.Message) (*message.Message, error) {
	if _, err := command.QueryDateTimeFromMessage(m); err != nil {
		return nil, err
	}
	now, err := h.Clock.Get(ctx)
	if err != nil {
		return nil, err
	}
	resp := command.DateTimeValue{DateTime: now}.ToMessage(h.DeviceID)
	return &resp, nil
}

func handleStatusQuery(ctx context.Context, h *Handler, _ *Session, m message.Message) (*message.Message, error) {
	q, err := command.StatusQueryFromMessage(m)
	if err != nil {
		return nil, err
	}
	value, found, err := h.Catalog.Value(ctx, q.Param)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatusParam, q.Param)
	}
	resp := command.StatusAnswer{Param: q.Param, Value: value}.ToMessage(h.DeviceID)
	return &resp, nil
}

// handleRecordsQuery answers RR. Mode C is the only stateful case: a
// pending, unacknowledged batch is resent verbatim rather than advancing
// to fresh records, so a dropped connection before the host's ER ack
// never loses or skips entries, keeping the uncollected log monotonic.
func handleRecordsQuery(ctx context.Context, h *Handler, sess *Session, m message.Message) (*message.Message, error) {
	q, err := command.RecordsQueryFromMessage(m)
	if err != nil {
		return nil, err
	}

	if q.Mode != command.FilterUncollected {
		entries, err := h.Catalog.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		resp := command.RecordsResponse{Entries: entries}.ToMessage(h.DeviceID)
		return &resp, nil
	}

	if sess.hasPending() {
		resp := command.RecordsResponse{Entries: sess.pendingEntries}.ToMessage(h.DeviceID)
		return &resp, nil
	}

	limit := h.UncollectedBatchSize
	if limit <= 0 {
		limit = 50
	}
	if q.Qty > 0 {
		limit = q.Qty
	}
	entries, err := h.Catalog.Uncollected(ctx, limit)
	if err != nil {
		return nil, err
	}
	sess.setPending(entries)
	resp := command.RecordsResponse{Entries: entries}.ToMessage(h.DeviceID)
	return &resp, nil
}

// handleRecordsAck processes the host's "ER+00+<n>+<indices>]"
// acknowledgment of a previously delivered uncollected batch: it marks
// those sequences collected and clears the per-session pending state so
// the next RR+C fetches fresh records instead of resending.
func handleRecordsAck(ctx context.Context, h *Handler, sess *Session, m message.Message) (*message.Message, error) {
	declared, err := command.ParseBatchCount(m.Opcode)
	if err != nil {
		return nil, err
	}
	rows := m.Payload
	if len(rows) > 0 && len(rows[len(rows)-1]) == 1 && rows[len(rows)-1].Value() == "" {
		rows = rows[:len(rows)-1]
	}
	if len(rows) != 1 || len(rows[0]) != declared {
		return nil, command.ErrMalformedPayload
	}
	sequences := make([]int, 0, declared)
	for _, field := range rows[0] {
		n, convErr := parseSequence(field.Value())
		if convErr != nil {
			return nil, convErr
		}
		sequences = append(sequences, n)
	}
	if err := h.Catalog.MarkCollected(ctx, sequences); err != nil {
		return nil, err
	}
	sess.clearPending()
	return nil, nil
}

func parseSequence(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("%w: bad sequence %q", command.ErrMalformedPayload, s)
	}
	return n, nil
}

// configReader/configWriter are narrow extensions a Catalog
// implementation may optionally satisfy to back EC/RC; a catalog that
// doesn't implement them rejects config traffic rather than panicking.
type configReader interface {
	ConfigValue(ctx context.Context, key command.ConfigKey) (string, bool, error)
}

type configWriter interface {
	SetConfigValue(ctx context.Context, key command.ConfigKey, value string) error
}
