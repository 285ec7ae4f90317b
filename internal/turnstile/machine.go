package turnstile

import (
	"context"
	"sync"
	"time"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
)

// Config holds the turnstile's timing contracts.
type Config struct {
	// OnlineTimeout is TIMEOUT_ON: 500-10000ms, default 3000.
	OnlineTimeout time.Duration

	// RotationWaitTimeout bounds WaitingRotation before RotationTimeout
	// fires. Device policy, default 5s.
	RotationWaitTimeout time.Duration

	// ReturnToIdle is the fixed 5s return timer
	// armed on entering Denied, RotationCompleted, RotationTimeout or
	// Error.
	ReturnToIdle time.Duration

	// RotationSimulateDelay is not used by Machine directly — it
	// documents the delay a mock rotation sensor (owned by the device
	// orchestration layer, not this package) waits before posting
	// EvRotationStarted while the Machine sits in WaitingRotation.
	// Default 2s.
	RotationSimulateDelay time.Duration
}

// DefaultConfig returns the documented default timing contracts.
func DefaultConfig() Config {
	return Config{
		OnlineTimeout:         3000 * time.Millisecond,
		RotationWaitTimeout:   5 * time.Second,
		ReturnToIdle:          5 * time.Second,
		RotationSimulateDelay: 2 * time.Second,
	}
}

// Machine is the single authoritative owner of TurnstileState. Every
// Event is processed strictly in arrival order by Run's loop; timers post
// back onto the same channel so their firings are serialized exactly
// like any other event, never touching state from another goroutine.
type Machine struct {
	cfg  Config
	sink Sink

	events chan Event

	mu    sync.RWMutex
	state State

	credential string
	direction  command.Direction

	timer *time.Timer
}

// NewMachine builds a Machine in StateIdle.
func NewMachine(cfg Config, sink Sink) *Machine {
	return &Machine{
		cfg:    cfg,
		sink:   sink,
		events: make(chan Event, 32),
		state:  StateIdle,
	}
}

// Events returns the channel external producers (peripheral dispatcher,
// validators, rotation sensors) post Events onto.
func (m *Machine) Events() chan<- Event { return m.events }

// Current returns the machine's current state. Safe to call
// concurrently with Run.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Run processes events until ctx is cancelled, cancelling any pending
// timer on exit.
func (m *Machine) Run(ctx context.Context) {
	defer m.cancelTimer()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-m.events:
			m.handle(evt)
		}
	}
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// cancelTimer stops any armed timer; entering any state cancels the
// previous state's timer.
func (m *Machine) cancelTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) arm(d time.Duration, kind EventKind) {
	m.cancelTimer()
	m.timer = time.AfterFunc(d, func() {
		m.events <- Event{Kind: kind}
	})
}

func (m *Machine) handle(evt Event) {
	state := m.Current()

	switch evt.Kind {
	case EvCredentialCaptured:
		if state != StateIdle {
			m.sink.Log("peripheral_event_dropped", "credential captured outside Idle: "+state.String())
			return
		}
		m.cancelTimer()
		m.credential = evt.Credential
		m.direction = evt.Direction
		m.setState(StateReading)

	case EvCredentialComplete:
		if state != StateReading {
			return
		}
		m.setState(StateValidating)
		m.arm(m.cfg.OnlineTimeout, EvValidationTimeout)
		m.sink.InvokeValidator(m.credential, m.direction)

	case EvCancelOrTimeout:
		if state != StateReading {
			return
		}
		m.cancelTimer()
		m.credential = ""
		m.setState(StateIdle)

	case EvDecisionGrant:
		if state != StateValidating {
			return
		}
		direction := resolveGrantDirection(evt.Grant, m.direction)
		if direction == command.DirectionExit {
			m.setState(StateGrantedExit)
		} else {
			m.setState(StateGrantedEntry)
		}
		m.direction = direction
		m.sink.Display(evt.Message)
		m.arm(clampHold(evt.HoldSeconds), EvDisplayHoldExpired)

	case EvDecisionDeny:
		if state != StateValidating {
			return
		}
		m.setState(StateDenied)
		m.sink.Display(evt.Message)
		m.arm(m.cfg.ReturnToIdle, EvReturnTimerExpired)

	case EvValidationTimeout:
		if state != StateValidating {
			return
		}
		m.cancelTimer()
		m.credential = ""
		m.setState(StateIdle)
		m.sink.Log("validation_timeout", "")

	case EvDisplayHoldExpired:
		if state != StateGrantedEntry && state != StateGrantedExit {
			return
		}
		m.setState(StateWaitingRotation)
		m.sink.EmitWaitingRotation()
		m.arm(m.cfg.RotationWaitTimeout, EvRotationTimerExpired)

	case EvRotationStarted:
		if state != StateWaitingRotation {
			m.sink.Log("peripheral_event_dropped", "rotation started outside WaitingRotation: "+state.String())
			return
		}
		m.cancelTimer()
		m.setState(StateRotating)

	case EvRotationTimerExpired:
		if state != StateWaitingRotation {
			return
		}
		m.setState(StateRotationTimeout)
		m.sink.EmitRotationTimeout()
		m.arm(m.cfg.ReturnToIdle, EvReturnTimerExpired)

	case EvRotationComplete:
		if state != StateRotating {
			return
		}
		m.setState(StateRotationCompleted)
		m.sink.EmitRotationComplete(m.direction)
		m.arm(m.cfg.ReturnToIdle, EvReturnTimerExpired)

	case EvReturnTimerExpired:
		switch state {
		case StateDenied, StateRotationCompleted, StateRotationTimeout, StateError:
			m.cancelTimer()
			m.credential = ""
			m.setState(StateIdle)
			m.sink.Display("")
		}

	case EvFault:
		m.cancelTimer()
		m.setState(StateError)
		m.sink.Log("fault", errString(evt.Err))
		m.arm(m.cfg.ReturnToIdle, EvReturnTimerExpired)
	}
}

// resolveGrantDirection maps a GrantKind onto the concrete direction the
// state machine transitions to. GrantBoth and GrantManual defer to the
// direction captured when the credential was read.
func resolveGrantDirection(grant command.GrantKind, captured command.Direction) command.Direction {
	switch grant {
	case command.GrantEntry:
		return command.DirectionEntry
	case command.GrantExit:
		return command.DirectionExit
	default:
		return captured
	}
}

func clampHold(seconds int) time.Duration {
	if seconds < 1 {
		seconds = 1
	}
	if seconds > 99 {
		seconds = 99
	}
	return time.Duration(seconds) * time.Second
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
