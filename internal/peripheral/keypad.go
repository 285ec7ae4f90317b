package peripheral

import (
	"context"
	"time"
)

// KeypadVariant tags which concrete keypad arm is active.
type KeypadVariant int

const (
	KeypadVariantMock KeypadVariant = iota
)

// AnyKeypad is the tagged-variant keypad driver: exactly one of its arms
// (selected by Variant) is populated.
type AnyKeypad struct {
	Variant KeypadVariant
	Mock    *MockKeypad
}

func (k *AnyKeypad) Kind() Kind { return KindKeypad }

func (k *AnyKeypad) Start(ctx context.Context, publish func(Event)) error {
	switch k.Variant {
	case KeypadVariantMock:
		if k.Mock == nil {
			return ErrUnconfiguredVariant
		}
		return k.Mock.Start(ctx, publish)
	default:
		return ErrUnconfiguredVariant
	}
}

func (k *AnyKeypad) Close() error {
	switch k.Variant {
	case KeypadVariantMock:
		if k.Mock == nil {
			return nil
		}
		return k.Mock.Close()
	default:
		return nil
	}
}

// MockKeypad simulates a keypad by accepting digit sequences pushed
// through Press, translating each into a keypad-input Event.
type MockKeypad struct {
	in     chan string
	cancel context.CancelFunc
}

func NewMockKeypad() *MockKeypad {
	return &MockKeypad{in: make(chan string, 16)}
}

func (m *MockKeypad) Start(ctx context.Context, publish func(Event)) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case digits := <-m.in:
				publish(Event{
					Source:       KindKeypad,
					EventKind:    EventKeypadInput,
					At:           time.Now(),
					KeypadDigits: digits,
				})
			}
		}
	}()
	return nil
}

// Press simulates a keypad entry (e.g. a PIN followed by '#').
func (m *MockKeypad) Press(digits string) {
	m.in <- digits
}

func (m *MockKeypad) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}
