// Package metrics instruments the turnstile emulator for Prometheus
// scraping: access decisions, validation latency, rotation outcomes,
// management command traffic, and the uncollected-event backlog.
package metrics

import (
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/histogram/gauge the device emits. A nil
// *Metrics is valid everywhere it's accepted and every method is a no-op,
// so callers never need a separate "metrics disabled" branch.
type Metrics struct {
	accessRequests   *prometheus.CounterVec
	validationMillis *prometheus.HistogramVec
	rotations        *prometheus.CounterVec
	managementCmds   *prometheus.CounterVec
	uncollectedDepth prometheus.Gauge
}

// New registers the turnstile metric set against reg. Pass a fresh
// *prometheus.Registry (not the global DefaultRegisterer) so tests and
// multiple in-process devices never collide on metric registration.
func New(reg *prometheus.Registry) *Metrics {
	return &Metrics{
		accessRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_access_requests_total",
				Help: "Total number of access decisions by grant kind and reader type.",
			},
			[]string{"grant", "reader_type"},
		),
		validationMillis: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "turnstile_validation_duration_milliseconds",
				Help: "Time to resolve an access decision, online or offline.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 3000, 5000},
			},
			[]string{"path"}, // "online", "offline"
		),
		rotations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_rotations_total",
				Help: "Total number of rotation outcomes by result.",
			},
			[]string{"outcome"}, // "complete", "timeout"
		),
		managementCmds: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "turnstile_management_commands_total",
				Help: "Total management commands handled by command token.",
			},
			[]string{"command"},
		),
		uncollectedDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "turnstile_uncollected_events",
				Help: "Number of event-log records not yet acknowledged by the host.",
			},
		),
	}
}

// ObserveAccessRequest records one access decision.
func (m *Metrics) ObserveAccessRequest(grant command.GrantKind, readerType command.ReaderType) {
	if m == nil {
		return
	}
	m.accessRequests.WithLabelValues(grantLabel(grant), readerTypeLabel(readerType)).Inc()
}

// ObserveValidationDuration records how long a decision took to resolve.
func (m *Metrics) ObserveValidationDuration(path string, milliseconds float64) {
	if m == nil {
		return
	}
	m.validationMillis.WithLabelValues(path).Observe(milliseconds)
}

// ObserveRotation records a rotation outcome.
func (m *Metrics) ObserveRotation(outcome string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(outcome).Inc()
}

// ObserveManagementCommand records one handled management command.
func (m *Metrics) ObserveManagementCommand(commandToken string) {
	if m == nil {
		return
	}
	m.managementCmds.WithLabelValues(commandToken).Inc()
}

// SetUncollectedDepth publishes the current uncollected-event backlog.
func (m *Metrics) SetUncollectedDepth(n int) {
	if m == nil {
		return
	}
	m.uncollectedDepth.Set(float64(n))
}

func grantLabel(g command.GrantKind) string {
	switch g {
	case command.GrantBoth:
		return "both"
	case command.GrantManual:
		return "manual"
	case command.GrantEntry:
		return "entry"
	case command.GrantExit:
		return "exit"
	case command.Deny:
		return "deny"
	default:
		return "unknown"
	}
}

func readerTypeLabel(r command.ReaderType) string {
	switch r {
	case command.ReaderTypeKeypad:
		return "keypad"
	case command.ReaderTypeRFID:
		return "rfid"
	case command.ReaderTypeBiometric:
		return "biometric"
	default:
		return "unknown"
	}
}
