package turnstile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
)

type fakeSink struct {
	mu        sync.Mutex
	displays  []string
	waiting   int
	completed []command.Direction
	timeouts  int
	validated []string
}

func (f *fakeSink) Display(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.displays = append(f.displays, msg)
}
func (f *fakeSink) EmitWaitingRotation() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waiting++
}
func (f *fakeSink) EmitRotationComplete(d command.Direction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, d)
}
func (f *fakeSink) EmitRotationTimeout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts++
}
func (f *fakeSink) InvokeValidator(credential string, direction command.Direction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, credential)
}
func (f *fakeSink) Log(event, detail string) {}

func fastConfig() Config {
	return Config{
		OnlineTimeout:       50 * time.Millisecond,
		RotationWaitTimeout: 50 * time.Millisecond,
		ReturnToIdle:        20 * time.Millisecond,
	}
}

func waitForState(t *testing.T, m *Machine, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Current() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s, got %s", want, m.Current())
}

func TestHappyPathEntryGrant(t *testing.T) {
	sink := &fakeSink{}
	m := NewMachine(fastConfig(), sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Events() <- Event{Kind: EvCredentialCaptured, Credential: "card-1", Direction: command.DirectionEntry}
	waitForState(t, m, StateReading)

	m.Events() <- Event{Kind: EvCredentialComplete}
	waitForState(t, m, StateValidating)

	m.Events() <- Event{Kind: EvDecisionGrant, Grant: command.GrantEntry, HoldSeconds: 1, Message: "Acesso liberado"}
	waitForState(t, m, StateGrantedEntry)

	waitForState(t, m, StateWaitingRotation)
	m.Events() <- Event{Kind: EvRotationStarted}
	waitForState(t, m, StateRotating)

	m.Events() <- Event{Kind: EvRotationComplete}
	waitForState(t, m, StateRotationCompleted)

	waitForState(t, m, StateIdle)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 1, sink.waiting)
	assert.Equal(t, []command.Direction{command.DirectionEntry}, sink.completed)
}

func TestDenyReturnsToIdle(t *testing.T) {
	sink := &fakeSink{}
	m := NewMachine(fastConfig(), sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Events() <- Event{Kind: EvCredentialCaptured, Credential: "card-2"}
	waitForState(t, m, StateReading)
	m.Events() <- Event{Kind: EvCredentialComplete}
	waitForState(t, m, StateValidating)
	m.Events() <- Event{Kind: EvDecisionDeny, Message: "Acesso negado"}
	waitForState(t, m, StateDenied)
	waitForState(t, m, StateIdle)
}

func TestRotationTimeout(t *testing.T) {
	sink := &fakeSink{}
	m := NewMachine(fastConfig(), sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Events() <- Event{Kind: EvCredentialCaptured}
	waitForState(t, m, StateReading)
	m.Events() <- Event{Kind: EvCredentialComplete}
	waitForState(t, m, StateValidating)
	m.Events() <- Event{Kind: EvDecisionGrant, Grant: command.GrantExit, HoldSeconds: 1}
	waitForState(t, m, StateGrantedExit)
	waitForState(t, m, StateWaitingRotation)
	waitForState(t, m, StateRotationTimeout)
	waitForState(t, m, StateIdle)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 1, sink.timeouts)
}

func TestValidationTimeoutReturnsToIdle(t *testing.T) {
	sink := &fakeSink{}
	m := NewMachine(fastConfig(), sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Events() <- Event{Kind: EvCredentialCaptured}
	waitForState(t, m, StateReading)
	m.Events() <- Event{Kind: EvCredentialComplete}
	waitForState(t, m, StateValidating)
	waitForState(t, m, StateIdle)
}

func TestPeripheralEventDroppedOutsideIdle(t *testing.T) {
	sink := &fakeSink{}
	m := NewMachine(fastConfig(), sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Events() <- Event{Kind: EvCredentialCaptured, Credential: "first"}
	waitForState(t, m, StateReading)
	m.Events() <- Event{Kind: EvCredentialCaptured, Credential: "second"}
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, StateReading, m.Current())
}
