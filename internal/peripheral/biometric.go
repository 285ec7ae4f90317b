package peripheral

import (
	"context"
	"time"
)

// BiometricVariant tags which concrete biometric reader arm is active.
type BiometricVariant int

const (
	BiometricVariantMock BiometricVariant = iota
)

// AnyBiometric is the tagged-variant biometric reader driver.
type AnyBiometric struct {
	Variant BiometricVariant
	Mock    *MockBiometric
}

func (b *AnyBiometric) Kind() Kind { return KindBiometric }

func (b *AnyBiometric) Start(ctx context.Context, publish func(Event)) error {
	switch b.Variant {
	case BiometricVariantMock:
		if b.Mock == nil {
			return ErrUnconfiguredVariant
		}
		return b.Mock.Start(ctx, publish)
	default:
		return ErrUnconfiguredVariant
	}
}

func (b *AnyBiometric) Close() error {
	switch b.Variant {
	case BiometricVariantMock:
		if b.Mock == nil {
			return nil
		}
		return b.Mock.Close()
	default:
		return nil
	}
}

// capture is what MockBiometric.Capture pushes: an opaque template id and
// the simulated match score against the device's enrolled templates.
type capture struct {
	templateID string
	score      int
}

// MockBiometric simulates a fingerprint reader. The device never
// interprets template bytes itself — biometric matching is opaque by
// design — it only receives a template id and a match score already
// computed by the simulated sensor.
type MockBiometric struct {
	in     chan capture
	cancel context.CancelFunc
}

func NewMockBiometric() *MockBiometric {
	return &MockBiometric{in: make(chan capture, 16)}
}

func (m *MockBiometric) Start(ctx context.Context, publish func(Event)) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case c := <-m.in:
				publish(Event{
					Source:      KindBiometric,
					EventKind:   EventFingerprintCaptured,
					At:          time.Now(),
					TemplateID:  c.templateID,
					MatchScore:  c.score,
				})
			}
		}
	}()
	return nil
}

// Capture simulates a fingerprint placement resolving to templateID at
// the given match score (0-100). The score travels on the Event as
// MatchScore; no validator compares it against the configured security
// level.
func (m *MockBiometric) Capture(templateID string, score int) {
	m.in <- capture{templateID: templateID, score: score}
}

func (m *MockBiometric) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}
