// Package turnstile implements the device's operational state machine:
// the single authoritative owner of TurnstileState. All external
// stimuli — peripheral events, validator decisions, rotation signals,
// timer firings — are serialized through one Machine.Run loop, following
// a stateType/eventType/stateAction pattern: a single-writer state var
// advanced by one switch case per event kind, with side effects
// routed through a Sink rather than performed inline.
package turnstile

import "github.com/henryproto/turnstile-emu/internal/protocol/henry/command"

// State enumerates the turnstile's operational states.
type State int

const (
	StateIdle State = iota
	StateReading
	StateValidating
	StateGrantedEntry
	StateGrantedExit
	StateWaitingRotation
	StateRotating
	StateRotationCompleted
	StateRotationTimeout
	StateDenied
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateReading:
		return "Reading"
	case StateValidating:
		return "Validating"
	case StateGrantedEntry:
		return "GrantedEntry"
	case StateGrantedExit:
		return "GrantedExit"
	case StateWaitingRotation:
		return "WaitingRotation"
	case StateRotating:
		return "Rotating"
	case StateRotationCompleted:
		return "RotationCompleted"
	case StateRotationTimeout:
		return "RotationTimeout"
	case StateDenied:
		return "Denied"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// EventKind discriminates the payload carried by an Event.
type EventKind int

const (
	EvCredentialCaptured EventKind = iota
	EvCredentialComplete
	EvCancelOrTimeout
	EvDecisionGrant
	EvDecisionDeny
	EvValidationTimeout
	EvDisplayHoldExpired
	EvRotationStarted
	EvRotationTimerExpired
	EvRotationComplete
	EvReturnTimerExpired
	EvFault
	EvFaultCleared
)

// Event is the tagged union of every stimulus the Machine accepts.
type Event struct {
	Kind EventKind

	Credential string
	Direction  command.Direction
	Grant      command.GrantKind
	HoldSeconds int
	Message    string
	Err        error
}
