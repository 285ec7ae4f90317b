package peripheral

import (
	"context"
	"time"
)

// RFIDVariant tags which concrete RFID reader arm is active.
type RFIDVariant int

const (
	RFIDVariantMock RFIDVariant = iota
)

// AnyRFID is the tagged-variant RFID reader driver.
type AnyRFID struct {
	Variant RFIDVariant
	Mock    *MockRFID
}

func (r *AnyRFID) Kind() Kind { return KindRFID }

func (r *AnyRFID) Start(ctx context.Context, publish func(Event)) error {
	switch r.Variant {
	case RFIDVariantMock:
		if r.Mock == nil {
			return ErrUnconfiguredVariant
		}
		return r.Mock.Start(ctx, publish)
	default:
		return ErrUnconfiguredVariant
	}
}

func (r *AnyRFID) Close() error {
	switch r.Variant {
	case RFIDVariantMock:
		if r.Mock == nil {
			return nil
		}
		return r.Mock.Close()
	default:
		return nil
	}
}

// MockRFID simulates an RFID reader by accepting card UIDs pushed
// through Present, translating each into a card-read Event.
type MockRFID struct {
	in     chan string
	cancel context.CancelFunc
}

func NewMockRFID() *MockRFID {
	return &MockRFID{in: make(chan string, 16)}
}

func (m *MockRFID) Start(ctx context.Context, publish func(Event)) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case uid := <-m.in:
				publish(Event{
					Source:    KindRFID,
					EventKind: EventCardRead,
					At:        time.Now(),
					CardUID:   uid,
				})
			}
		}
	}()
	return nil
}

// Present simulates a card tap/present.
func (m *MockRFID) Present(uid string) {
	m.in <- uid
}

func (m *MockRFID) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}
