package turnstile

import "github.com/henryproto/turnstile-emu/internal/protocol/henry/command"

// Sink is the Machine's side-effect boundary: everything a transition
// does to the outside world (display rendering, wire events, logging)
// goes through it, so the Machine itself stays a pure state/timer
// scheduler that's simple to test without a real display or connection.
type Sink interface {
	// Display renders msg on the simulated display.
	Display(msg string)

	// EmitWaitingRotation sends the "000+80" wire event.
	EmitWaitingRotation()

	// EmitRotationComplete sends the "000+81" wire event.
	EmitRotationComplete(direction command.Direction)

	// EmitRotationTimeout sends the "000+82" wire event.
	EmitRotationTimeout()

	// InvokeValidator starts an asynchronous validation round-trip for
	// credential/direction. The validator must eventually deliver its
	// result back into the Machine as an EvDecisionGrant, EvDecisionDeny
	// or EvValidationTimeout event.
	InvokeValidator(credential string, direction command.Direction)

	// Log records a state-machine-internal event for observability.
	Log(event, detail string)
}
