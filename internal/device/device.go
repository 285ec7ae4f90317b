// Package device is the composition root that wires every collaborator
// into one running turnstile: the peripheral dispatcher feeding the
// state machine, the state machine's Sink driving wire traffic over the
// transport connection and invoking the online validator (itself
// falling back to the offline validator), and the same connection's
// inbound non-REON traffic dispatched to the management handler. It
// follows a standard composition-root shape: construct collaborators,
// wire one into another, hand the assembled graph to a long-running
// Start(ctx), with each wire grounded in its own already-justified
// package.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/henryproto/turnstile-emu/internal/catalog"
	"github.com/henryproto/turnstile-emu/internal/config"
	"github.com/henryproto/turnstile-emu/internal/logger"
	"github.com/henryproto/turnstile-emu/internal/management"
	"github.com/henryproto/turnstile-emu/internal/metrics"
	"github.com/henryproto/turnstile-emu/internal/peripheral"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/frame"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
	"github.com/henryproto/turnstile-emu/internal/transport"
	"github.com/henryproto/turnstile-emu/internal/turnstile"
	"github.com/henryproto/turnstile-emu/internal/validator/offline"
	"github.com/henryproto/turnstile-emu/internal/validator/online"
)

// responseChanCapacity buffers exactly the one interleaved unsolicited
// message the online validator's Validate tolerates skipping, plus the response itself.
const responseChanCapacity = 2

// Device is one emulated turnstile: the assembled graph of every
// component, run against a single TCP connection at a time — one
// connection per emulator instance at a time.
type Device struct {
	cfg        *config.Store
	catalogCfg *catalogConfig
	metrics    *metrics.Metrics

	dispatcher *peripheral.Dispatcher
	machine    *turnstile.Machine
	clock      *memoryClock
	mgmt       *management.Handler

	mu            sync.RWMutex
	conn          *transport.Conn
	connected     bool
	awaiting      bool
	respCh        chan *frame.Decoded
	pendingReader command.ReaderType
}

// New assembles a Device from its already-constructed collaborators.
// cfgStore and cat outlive the Device; dispatcher should have every
// configured peripheral already Register'd (but not yet Start'ed).
func New(cfgStore *config.Store, cat *catalog.Store, dispatcher *peripheral.Dispatcher, m *metrics.Metrics) *Device {
	snap := cfgStore.Snapshot()
	cc := &catalogConfig{Store: cat, cfg: cfgStore}

	d := &Device{
		cfg:        cfgStore,
		catalogCfg: cc,
		metrics:    m,
		dispatcher: dispatcher,
		clock:      newMemoryClock(),
	}

	d.machine = turnstile.NewMachine(machineConfig(snap), d)
	d.mgmt = &management.Handler{
		Catalog:              cc,
		Clock:                d.clock,
		DeviceID:             snap.Device.ID,
		UncollectedBatchSize: 50,
	}
	return d
}

func machineConfig(snap config.Config) turnstile.Config {
	cfg := turnstile.DefaultConfig()
	if snap.Mode.FallbackTimeoutMs > 0 {
		cfg.OnlineTimeout = time.Duration(snap.Mode.FallbackTimeoutMs) * time.Millisecond
	}
	if snap.Rotation.SimulateDelayMs > 0 {
		cfg.RotationSimulateDelay = time.Duration(snap.Rotation.SimulateDelayMs) * time.Millisecond
	}
	return cfg
}

// DeviceID satisfies handlers.DeviceStatus.
func (d *Device) DeviceID() int {
	return d.cfg.Snapshot().Device.ID
}

// State satisfies handlers.DeviceStatus.
func (d *Device) State() string {
	return d.machine.Current().String()
}

// ConnectedPeer satisfies handlers.DeviceStatus.
func (d *Device) ConnectedPeer() (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.connected || d.conn == nil {
		return "", false
	}
	return d.conn.RemoteAddr(), true
}

// Ping satisfies handlers.CatalogPinger by forwarding to the catalog.
func (d *Device) Ping(ctx context.Context) error {
	return d.catalogCfg.Ping(ctx)
}

// Machine exposes the turnstile state machine so the orchestrating
// cmd can start its Run loop alongside the device's own.
func (d *Device) Machine() *turnstile.Machine { return d.machine }

// Dispatcher exposes the peripheral dispatcher for the orchestrating
// cmd to Start once every driver is registered.
func (d *Device) Dispatcher() *peripheral.Dispatcher { return d.dispatcher }

// PumpPeripherals forwards every peripheral.Event into machine events
// until ctx is cancelled or the dispatcher's channel closes. Must run in
// its own goroutine after dispatcher.Start.
func (d *Device) PumpPeripherals(ctx context.Context) error {
	events, err := d.dispatcher.Recv()
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			d.handlePeripheralEvent(evt)
		}
	}
}

func (d *Device) handlePeripheralEvent(evt peripheral.Event) {
	if evt.EventKind == peripheral.EventDeviceError {
		logger.Warn("peripheral device error", "family", evt.Source.String(), "error", errString(evt.Err))
		return
	}

	readerType, credential, ok := projectCredential(evt)
	if !ok {
		return
	}
	direction := resolveDirection(d.cfg.Snapshot(), evt.Source)

	d.mu.Lock()
	d.pendingReader = readerType
	d.mu.Unlock()

	d.machine.Events() <- turnstile.Event{Kind: turnstile.EvCredentialCaptured, Credential: credential, Direction: direction}
	d.machine.Events() <- turnstile.Event{Kind: turnstile.EvCredentialComplete}
}

// projectCredential extracts the captured credential string and its
// reader type from a peripheral.Event, or ok=false for an event kind
// that carries none (already handled separately, or unrecognized).
func projectCredential(evt peripheral.Event) (command.ReaderType, string, bool) {
	switch evt.EventKind {
	case peripheral.EventKeypadInput:
		return command.ReaderTypeKeypad, evt.KeypadDigits, true
	case peripheral.EventCardRead:
		return command.ReaderTypeRFID, evt.CardUID, true
	case peripheral.EventFingerprintCaptured:
		return command.ReaderTypeBiometric, evt.TemplateID, true
	default:
		return 0, "", false
	}
}

// resolveDirection maps the peripheral kind that captured a credential
// onto a traversal direction via the configured readers.<n> table.
//
// The Henry docs describe readers.<n> purely by device kind, not by
// direction, leaving multi-reader-per-kind layouts underspecified. This
// device treats reader slot "2"/"02" of a given kind as the exit reader,
// falling back to DirectionEntry when only one slot of that kind is
// configured. Events do not say which slot produced them, so when slot
// "2"/"02" is configured alongside another slot of the same kind, every
// event of that kind resolves to DirectionExit. Recorded in DESIGN.md.
func resolveDirection(snap config.Config, kind peripheral.Kind) command.Direction {
	wantKind := kindName(kind)
	exitSlot := false
	slots := 0
	for slot, configuredKind := range snap.Readers {
		if configuredKind != wantKind {
			continue
		}
		slots++
		if slot == "2" || slot == "02" {
			exitSlot = true
		}
	}
	if slots > 1 && exitSlot {
		return command.DirectionExit
	}
	return command.DirectionEntry
}

func kindName(k peripheral.Kind) string {
	switch k {
	case peripheral.KindKeypad:
		return "keypad"
	case peripheral.KindRFID:
		return "rfid"
	case peripheral.KindBiometric:
		return "biometric"
	default:
		return ""
	}
}

// RunConnection drives one accepted or dialed connection until it
// closes: it becomes the Machine's validator transport and wire-event
// sink target, and demultiplexes inbound frames between the online
// validator (while a validation round-trip is outstanding) and the
// management handler (every other inbound frame).
func (d *Device) RunConnection(ctx context.Context, conn *transport.Conn) {
	d.mu.Lock()
	if d.connected {
		d.mu.Unlock()
		logger.Warn("rejecting host connection while another is active", "peer", conn.RemoteAddr())
		return
	}
	d.conn = conn
	d.connected = true
	d.respCh = make(chan *frame.Decoded, responseChanCapacity)
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.connected = false
		d.conn = nil
		close(d.respCh)
		d.respCh = nil
		d.mu.Unlock()
	}()

	sess := management.NewSession()
	deviceID := d.DeviceID()

	for {
		decoded, err := conn.Recv(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Info("turnstile connection read ended", "peer", conn.RemoteAddr(), "error", err.Error())
			}
			return
		}
		if decoded.DeviceID != 0 && decoded.DeviceID != deviceID {
			logger.Debug("dropping frame for a different device id", "got", decoded.DeviceID, "want", deviceID)
			continue
		}

		if d.isAwaiting() {
			d.mu.RLock()
			ch := d.respCh
			d.mu.RUnlock()
			if ch != nil {
				select {
				case ch <- decoded:
				default:
				}
			}
			continue
		}

		d.dispatchManagement(ctx, conn, sess, decoded)
	}
}

func (d *Device) dispatchManagement(ctx context.Context, conn *transport.Conn, sess *management.Session, decoded *frame.Decoded) {
	msg, err := message.Parse(decoded.Body)
	if err != nil {
		logger.Warn("management: malformed frame body", "error", err.Error())
		return
	}
	if msg.Command == command.CommandREON {
		logger.Debug("dropping unsolicited REON message outside a validation window", "opcode", msg.Opcode)
		return
	}

	d.metrics.ObserveManagementCommand(msg.Command)

	resp, err := d.mgmt.Handle(ctx, sess, msg)
	if err != nil {
		logger.Warn("management: command failed", "command", msg.Command, "error", err.Error())
		errResp := command.ErrorResponse(d.DeviceID(), msg.Command, err)
		resp = &errResp
	}
	if resp == nil {
		return
	}
	if sendErr := conn.Send(ctx, d.DeviceID(), message.Build(*resp)); sendErr != nil {
		logger.Warn("management: failed to send response", "command", msg.Command, "error", sendErr.Error())
	}
}

func (d *Device) isAwaiting() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.awaiting
}

func (d *Device) setAwaiting(v bool) {
	d.mu.Lock()
	d.awaiting = v
	d.mu.Unlock()
}

// muxTransport adapts the shared Conn plus the read loop's response
// channel to online.Transport, so the online validator's Validate can Send/Recv exactly
// as it would over a dedicated connection while the generic read loop
// keeps owning the only call to conn.Recv.
type muxTransport struct {
	conn   *transport.Conn
	respCh <-chan *frame.Decoded
}

func (t *muxTransport) Send(ctx context.Context, deviceID int, body []byte) error {
	return t.conn.Send(ctx, deviceID, body)
}

func (t *muxTransport) Recv(ctx context.Context) (*frame.Decoded, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case decoded, ok := <-t.respCh:
		if !ok {
			return nil, transport.ErrClosed
		}
		return decoded, nil
	}
}

// Display satisfies turnstile.Sink.
func (d *Device) Display(msg string) {
	logger.Info("display", "message", msg)
}

// EmitWaitingRotation satisfies turnstile.Sink: sends "000+80" and arms
// the simulated rotation.
func (d *Device) EmitWaitingRotation() {
	now := time.Now().Format("02/01/2006 15:04:05")
	d.sendRotationFrame(command.WaitingRotation{Timestamp: now}.ToMessage(d.DeviceID()))
	d.scheduleSimulatedRotation()
}

// EmitRotationComplete satisfies turnstile.Sink.
func (d *Device) EmitRotationComplete(direction command.Direction) {
	now := time.Now().Format("02/01/2006 15:04:05")
	d.sendRotationFrame(command.RotationComplete{Timestamp: now, Direction: direction}.ToMessage(d.DeviceID()))
	d.metrics.ObserveRotation("complete")
}

// EmitRotationTimeout satisfies turnstile.Sink.
func (d *Device) EmitRotationTimeout() {
	now := time.Now().Format("02/01/2006 15:04:05")
	d.sendRotationFrame(command.RotationTimeout{Timestamp: now}.ToMessage(d.DeviceID()))
	d.metrics.ObserveRotation("timeout")
}

func (d *Device) sendRotationFrame(m message.Message) {
	d.mu.RLock()
	conn := d.conn
	connected := d.connected
	d.mu.RUnlock()
	if !connected || conn == nil {
		logger.Debug("dropping rotation wire event: no connected peer", "command", m.Command, "opcode", m.Opcode)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultIOTimeout)
	defer cancel()
	if err := conn.Send(ctx, d.DeviceID(), message.Build(m)); err != nil {
		logger.Warn("failed to send wire event", "command", m.Command, "error", err.Error())
	}
}

// scheduleSimulatedRotation emulates the physical 120-degree rotation:
// after rotation.simulate_delay_ms, it posts EvRotationStarted (a no-op
// if the Machine has already left WaitingRotation, e.g. on timeout) and
// immediately follows with EvRotationComplete once seated in Rotating.
func (d *Device) scheduleSimulatedRotation() {
	delay := d.cfg.Snapshot().Rotation.SimulateDelayMs
	time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		d.machine.Events() <- turnstile.Event{Kind: turnstile.EvRotationStarted}
		d.machine.Events() <- turnstile.Event{Kind: turnstile.EvRotationComplete}
	})
}

// InvokeValidator satisfies turnstile.Sink: starts the validation
// round-trip asynchronously and posts the outcome back onto the
// Machine's own event channel so every state transition still happens
// on Machine.Run's single goroutine.
func (d *Device) InvokeValidator(credential string, direction command.Direction) {
	snap := d.cfg.Snapshot()
	readerType := d.currentReaderType()

	go func() {
		start := time.Now()
		resp, err := d.validate(context.Background(), snap, credential, direction, readerType)
		d.metrics.ObserveValidationDuration(validationPath(snap), float64(time.Since(start).Milliseconds()))

		if err != nil {
			d.machine.Events() <- turnstile.Event{Kind: turnstile.EvValidationTimeout, Err: err}
			return
		}
		d.metrics.ObserveAccessRequest(resp.Grant, readerType)
		if resp.Grant == command.Deny {
			d.machine.Events() <- turnstile.Event{Kind: turnstile.EvDecisionDeny, Message: resp.DisplayMessage, HoldSeconds: resp.DisplayHoldSecs}
			return
		}
		d.machine.Events() <- turnstile.Event{
			Kind:        turnstile.EvDecisionGrant,
			Grant:       resp.Grant,
			Message:     resp.DisplayMessage,
			HoldSeconds: resp.DisplayHoldSecs,
		}
	}()
}

func (d *Device) validate(ctx context.Context, snap config.Config, credential string, direction command.Direction, readerType command.ReaderType) (command.AccessResponse, error) {
	offlineValidator := &offline.Validator{
		Catalog:            d.catalogCfg,
		AntiPassbackWindow: time.Duration(snap.AntiPassback.Minutes) * time.Minute,
		WelcomeMessage:     snap.Device.DisplayMessage,
	}

	if !snap.Mode.Online {
		return offlineValidator.Validate(ctx, credential, direction, readerType)
	}

	d.mu.RLock()
	conn := d.conn
	respCh := d.respCh
	connected := d.connected
	d.mu.RUnlock()
	if !connected || conn == nil {
		if snap.Mode.FallbackOffline {
			return offlineValidator.Validate(ctx, credential, direction, readerType)
		}
		return command.AccessResponse{}, fmt.Errorf("%w: no connected peer", online.ErrTimeout)
	}

	d.setAwaiting(true)
	defer d.setAwaiting(false)

	v := &online.Validator{
		Transport:       &muxTransport{conn: conn, respCh: respCh},
		DeviceID:        snap.Device.ID,
		Timeout:         time.Duration(snap.Mode.FallbackTimeoutMs) * time.Millisecond,
		FallbackOffline: snap.Mode.FallbackOffline,
		Offline:         offlineValidator,
	}
	return v.Validate(ctx, credential, direction, readerType)
}

func validationPath(snap config.Config) string {
	if snap.Mode.Online {
		return "online"
	}
	return "offline"
}

// currentReaderType returns the reader type captured by the most recent
// peripheral event, set by handlePeripheralEvent just before it posts
// EvCredentialCaptured. The Machine processes events strictly in
// arrival order and only calls InvokeValidator while handling the
// EvCredentialComplete that immediately follows, so there is no
// outstanding race between the two writes.
func (d *Device) currentReaderType() command.ReaderType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pendingReader
}

// Log satisfies turnstile.Sink.
func (d *Device) Log(event, detail string) {
	logger.Debug("turnstile event", "event", event, "detail", detail)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
