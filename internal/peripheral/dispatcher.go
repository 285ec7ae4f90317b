package peripheral

import (
	"context"
	"fmt"
	"sync"
)

// DefaultChannelCapacity bounds the dispatcher's fan-in channel. A slow or
// wedged consumer backs up against this bound rather than letting driver
// goroutines buffer unboundedly.
const DefaultChannelCapacity = 100

// Driver is implemented by each peripheral's active arm (its Mock, the
// only arm each category has). Start must return once the driver's background
// goroutine, if any, has been launched; it must not block waiting for
// events.
type Driver interface {
	Kind() Kind
	Start(ctx context.Context, publish func(Event)) error
	Close() error
}

// Dispatcher registers one Driver per Kind and fans their events into a
// single bounded channel, using a dispatch-table-over-registry shape:
// one entry per device kind, looked up by key.
type Dispatcher struct {
	mu       sync.Mutex
	drivers  map[Kind]Driver
	events   chan Event
	started  bool
	cancel   context.CancelFunc
}

// NewDispatcher builds a Dispatcher with the given channel capacity (use
// DefaultChannelCapacity unless a test needs to force backpressure).
func NewDispatcher(capacity int) *Dispatcher {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &Dispatcher{
		drivers: make(map[Kind]Driver),
		events:  make(chan Event, capacity),
	}
}

// Register adds or replaces the driver for a peripheral Kind. Must be
// called before Start.
func (d *Dispatcher) Register(driver Driver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drivers[driver.Kind()] = driver
}

// Start launches every registered driver, handing each a publish callback
// that pushes onto the shared bounded channel. A full channel drops the
// event silently rather than blocking the driver; publish reports
// nothing back to the driver.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	publish := func(e Event) {
		select {
		case d.events <- e:
		default:
			// Bounded by design: drop rather than stall the driver.
		}
	}

	for kind, driver := range d.drivers {
		if err := driver.Start(runCtx, publish); err != nil {
			cancel()
			return fmt.Errorf("peripheral: starting %s driver: %w", kind, err)
		}
	}
	d.started = true
	return nil
}

// Recv returns the dispatcher's fan-in event channel. Callers range over
// it until it's closed by Close.
func (d *Dispatcher) Recv() (<-chan Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return nil, ErrNotStarted
	}
	return d.events, nil
}

// Close cancels every driver's context, closes each registered driver,
// and closes the fan-in channel.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	var firstErr error
	for _, driver := range d.drivers {
		if err := driver.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.started {
		close(d.events)
	}
	return firstErr
}
