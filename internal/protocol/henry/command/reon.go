package command

import (
	"fmt"
	"strconv"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
)

// Direction is the traversal direction associated with an access event.
type Direction int

const (
	DirectionUndefined Direction = 0
	DirectionEntry     Direction = 1
	DirectionExit      Direction = 2
)

// ReaderType tags which peripheral produced a credential.
type ReaderType int

const (
	ReaderTypeKeypad     ReaderType = 0
	ReaderTypeRFID       ReaderType = 1
	ReaderTypeBiometric  ReaderType = 5
)

// GrantKind enumerates the REON response opcodes.
type GrantKind int

const (
	GrantBoth   GrantKind = 1
	GrantManual GrantKind = 4
	GrantEntry  GrantKind = 5
	GrantExit   GrantKind = 6
	Deny        GrantKind = 30
)

const (
	CommandREON = "REON"

	opcodeAccessRequest     = "000+0"
	opcodeWaitingRotation   = "000+80"
	opcodeRotationComplete  = "000+81"
	opcodeRotationTimeout   = "000+82"
)

// AccessRequest is the typed projection of a REON "000+0" message: a
// credential capture event awaiting a decision from the peer.
type AccessRequest struct {
	Credential string
	Timestamp  string // dd/mm/yyyy HH:MM:SS
	Direction  Direction
	Reserved   byte
	ReaderType ReaderType
}

// ToMessage builds the wire Message for this request.
func (r AccessRequest) ToMessage(deviceID int) message.Message {
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandREON,
		Opcode:      opcodeAccessRequest,
		Payload: []message.Record{
			{message.NewField("")},
			{message.NewField(r.Credential)},
			{message.NewField(r.Timestamp)},
			{message.NewField(strconv.Itoa(int(r.Direction)))},
			{message.NewField(fmt.Sprintf("%d", r.Reserved))},
			{message.NewField(strconv.Itoa(int(r.ReaderType)))},
			{message.NewField("")},
		},
	}
}

// AccessRequestFromMessage recovers an AccessRequest from a decoded
// Message, failing if the command/opcode don't match.
func AccessRequestFromMessage(m message.Message) (AccessRequest, error) {
	if m.Command != CommandREON {
		return AccessRequest{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	if m.Opcode != opcodeAccessRequest {
		return AccessRequest{}, fmt.Errorf("%w: opcode %q is not an access request", ErrMalformedPayload, m.Opcode)
	}
	if len(m.Payload) < 4 {
		return AccessRequest{}, ErrMalformedPayload
	}
	req := AccessRequest{
		Credential: m.RecordValue(1),
		Timestamp:  m.RecordValue(2),
		Direction:  Direction(atoiOr(m.RecordValue(3), 0)),
	}
	if len(m.Payload) > 4 {
		req.Reserved = byte(atoiOr(m.RecordValue(4), 0))
	}
	if len(m.Payload) > 5 {
		req.ReaderType = ReaderType(atoiOr(m.RecordValue(5), 0))
	}
	return req, nil
}

// AccessResponse is the typed projection of a REON "00+N" decision
// message: the peer's grant/deny verdict for an outstanding request.
type AccessResponse struct {
	Grant           GrantKind
	DisplayHoldSecs int
	DisplayMessage  string
}

// ToMessage builds the wire Message for this response.
func (r AccessResponse) ToMessage(deviceID int) message.Message {
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandREON,
		Opcode:      fmt.Sprintf("00+%d", r.Grant),
		Payload: []message.Record{
			{message.NewField("")},
			{message.NewField(strconv.Itoa(r.DisplayHoldSecs))},
			{message.NewField(r.DisplayMessage)},
			{message.NewField("")},
		},
	}
}

// AccessResponseFromMessage recovers an AccessResponse from a Message.
func AccessResponseFromMessage(m message.Message) (AccessResponse, error) {
	if m.Command != CommandREON {
		return AccessResponse{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	grant, ok := parseAccessOpcode(m.Opcode)
	if !ok {
		return AccessResponse{}, fmt.Errorf("%w: opcode %q is not an access response", ErrMalformedPayload, m.Opcode)
	}
	if len(m.Payload) < 3 {
		return AccessResponse{}, ErrMalformedPayload
	}
	return AccessResponse{
		Grant:           grant,
		DisplayHoldSecs: clamp(atoiOr(m.RecordValue(1), 0), 1, 99),
		DisplayMessage:  m.RecordValue(2),
	}, nil
}

func parseAccessOpcode(opcode string) (GrantKind, bool) {
	const prefix = "00+"
	if len(opcode) <= len(prefix) || opcode[:len(prefix)] != prefix {
		return 0, false
	}
	n, err := strconv.Atoi(opcode[len(prefix):])
	if err != nil {
		return 0, false
	}
	switch GrantKind(n) {
	case GrantBoth, GrantManual, GrantEntry, GrantExit, Deny:
		return GrantKind(n), true
	default:
		return 0, false
	}
}

// WaitingRotation is the "000+80" event: the turnstile is granted and
// waiting for the physical rotation to occur.
type WaitingRotation struct {
	Timestamp string
}

func (w WaitingRotation) ToMessage(deviceID int) message.Message {
	return rotationEventMessage(deviceID, opcodeWaitingRotation, w.Timestamp, 0)
}

func WaitingRotationFromMessage(m message.Message) (WaitingRotation, error) {
	if err := checkRotationOpcode(m, opcodeWaitingRotation); err != nil {
		return WaitingRotation{}, err
	}
	return WaitingRotation{Timestamp: m.RecordValue(1)}, nil
}

// RotationComplete is the "000+81" event: the rotation finished in the
// given direction.
type RotationComplete struct {
	Timestamp string
	Direction Direction
}

func (r RotationComplete) ToMessage(deviceID int) message.Message {
	return rotationEventMessage(deviceID, opcodeRotationComplete, r.Timestamp, int(r.Direction))
}

func RotationCompleteFromMessage(m message.Message) (RotationComplete, error) {
	if err := checkRotationOpcode(m, opcodeRotationComplete); err != nil {
		return RotationComplete{}, err
	}
	return RotationComplete{
		Timestamp: m.RecordValue(1),
		Direction: Direction(atoiOr(m.RecordValue(2), 0)),
	}, nil
}

// RotationTimeout is the "000+82" event: the rotation was never detected
// before the rotation-wait timer expired.
type RotationTimeout struct {
	Timestamp string
}

func (r RotationTimeout) ToMessage(deviceID int) message.Message {
	return rotationEventMessage(deviceID, opcodeRotationTimeout, r.Timestamp, 0)
}

func RotationTimeoutFromMessage(m message.Message) (RotationTimeout, error) {
	if err := checkRotationOpcode(m, opcodeRotationTimeout); err != nil {
		return RotationTimeout{}, err
	}
	return RotationTimeout{Timestamp: m.RecordValue(1)}, nil
}

func rotationEventMessage(deviceID int, opcode, timestamp string, direction int) message.Message {
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandREON,
		Opcode:      opcode,
		Payload: []message.Record{
			{message.NewField("")},
			{message.NewField(timestamp)},
			{message.NewField(strconv.Itoa(direction))},
			{message.NewField("0")},
		},
	}
}

func checkRotationOpcode(m message.Message, want string) error {
	if m.Command != CommandREON {
		return fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	if m.Opcode != want {
		return fmt.Errorf("%w: opcode %q, want %q", ErrMalformedPayload, m.Opcode, want)
	}
	return nil
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
