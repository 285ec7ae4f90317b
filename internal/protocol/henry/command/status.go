package command

import (
	"fmt"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
)

const (
	CommandRQ = "RQ" // status query/answer: a single named parameter and its value.

	opcodeStatusQuery = "00+"
)

// StatusParam names one of the documented RQ status parameters.
type StatusParam string

const (
	ParamUptime              StatusParam = "U"
	ParamCapacity            StatusParam = "C"
	ParamDoorState           StatusParam = "D"
	ParamTamperDetect        StatusParam = "TD"
	ParamReaderStatus        StatusParam = "R"
	ParamRotationCount       StatusParam = "RNC"
	ParamRotationCountOffline StatusParam = "RNCO"
	ParamTemplateCount       StatusParam = "TP"
	ParamMaxRecordsPerEvent  StatusParam = "MRPE"
	ParamSerialEEPROM        StatusParam = "SEMP"
	ParamPanelPower          StatusParam = "PP"
	ParamSensorPower         StatusParam = "SP"
	ParamQueueDepth          StatusParam = "QP"
)

// StatusQuery is an RQ message with no value: the host asking the device
// to report the current value of a status parameter.
type StatusQuery struct {
	Param StatusParam
}

func (q StatusQuery) ToMessage(deviceID int) message.Message {
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandRQ,
		Opcode:      opcodeStatusQuery,
		Payload: []message.Record{
			{message.NewField(string(q.Param))},
		},
	}
}

func StatusQueryFromMessage(m message.Message) (StatusQuery, error) {
	if m.Command != CommandRQ {
		return StatusQuery{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	if len(m.Payload) == 0 {
		return StatusQuery{}, ErrMalformedPayload
	}
	return StatusQuery{Param: StatusParam(m.RecordValue(0))}, nil
}

// StatusAnswer is the device's RQ reply: the same parameter, plus its
// current value.
type StatusAnswer struct {
	Param StatusParam
	Value string
}

func (a StatusAnswer) ToMessage(deviceID int) message.Message {
	return message.Message{
		DeviceID:    deviceID,
		HasDeviceID: true,
		Command:     CommandRQ,
		Opcode:      opcodeStatusQuery,
		Payload: []message.Record{
			{message.NewField(string(a.Param))},
			{message.NewField(a.Value)},
		},
	}
}

func StatusAnswerFromMessage(m message.Message) (StatusAnswer, error) {
	if m.Command != CommandRQ {
		return StatusAnswer{}, fmt.Errorf("%w: got %q", ErrWrongCommand, m.Command)
	}
	if len(m.Payload) < 2 {
		return StatusAnswer{}, ErrMalformedPayload
	}
	return StatusAnswer{
		Param: StatusParam(m.RecordValue(0)),
		Value: m.RecordValue(1),
	}, nil
}
