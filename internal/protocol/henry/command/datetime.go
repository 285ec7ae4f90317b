package command

import (
	"fmt"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
)

const (
	CommandEH = "EH" // Enviar Hora: host sets the device clock.
	CommandRH = "RH" // Receber Hora: host queries, device answers with the clock.

	opcodeDateTime = "00"

	// SentinelDateTime is the device's clock value before it has ever
	// been set by a host, per the documented "00/00/00 00:00:00" sentinel.
	SentinelDateTime = "00/00/00 00:00:00"
)

// SetDateTime is an EH message carrying a new clock value, formatted
// dd/mm/yy HH:MM:SS.
type SetDateTime struct {
	DateTime string
}

func (s SetDateTime) ToMessage(deviceID int) message.Message {
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandEH,
		Opcode:      opcodeDateTime,
		Payload: []message.Record{
			{message.NewField(s.DateTime)},
		},
	}
}

func SetDateTimeFromMessage(m message.Message) (SetDateTime, error) {
	if m.Command != CommandEH {
		return SetDateTime{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	if len(m.Payload) == 0 {
		return SetDateTime{}, ErrMalformedPayload
	}
	return SetDateTime{DateTime: m.RecordValue(0)}, nil
}

// QueryDateTime is an RH message sent with no payload: a request for the
// device's current clock value.
type QueryDateTime struct{}

func (QueryDateTime) ToMessage(deviceID int) message.Message {
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandRH,
		Opcode:      opcodeDateTime,
	}
}

func QueryDateTimeFromMessage(m message.Message) (QueryDateTime, error) {
	if m.Command != CommandRH {
		return QueryDateTime{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	return QueryDateTime{}, nil
}

// DateTimeValue is the device's answer to a QueryDateTime.
type DateTimeValue struct {
	DateTime string
}

func (d DateTimeValue) ToMessage(deviceID int) message.Message {
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandRH,
		Opcode:      opcodeDateTime,
		Payload: []message.Record{
			{message.NewField(d.DateTime)},
		},
	}
}

func DateTimeValueFromMessage(m message.Message) (DateTimeValue, error) {
	if m.Command != CommandRH {
		return DateTimeValue{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	if len(m.Payload) == 0 {
		return DateTimeValue{}, ErrMalformedPayload
	}
	return DateTimeValue{DateTime: m.RecordValue(0)}, nil
}
