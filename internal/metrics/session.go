package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionMetrics records transport calls, target retries and challenge
// dispatch. A nil *SessionMetrics records nothing.
type SessionMetrics struct {
	calls      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	retries    prometheus.Counter
	challenges *prometheus.CounterVec
	open       prometheus.Gauge
}

var (
	sessionMu     sync.Mutex
	sessionReg    *prometheus.Registry
	sessionShared *SessionMetrics
)

// NewSessionMetrics returns nil if metrics are not enabled. Callers on the
// same registry share one set of collectors.
func NewSessionMetrics() *SessionMetrics {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	sessionMu.Lock()
	defer sessionMu.Unlock()
	if sessionShared != nil && sessionReg == reg {
		return sessionShared
	}
	sessionShared = newSessionMetrics(reg)
	sessionReg = reg
	return sessionShared
}

func newSessionMetrics(reg *prometheus.Registry) *SessionMetrics {
	return &SessionMetrics{
		calls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cupsbridge_transport_calls_total",
				Help: "Total number of transport calls by operation and outcome",
			},
			[]string{"operation", "outcome"}, // outcome: "ok", "protocol", "transport", "busy"
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cupsbridge_transport_call_duration_milliseconds",
				Help:    "Duration of transport calls in milliseconds",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
			},
			[]string{"operation"},
		),
		retries: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cupsbridge_target_class_retries_total",
				Help: "Total number of requests retried against the class URI",
			},
		),
		challenges: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cupsbridge_password_challenges_total",
				Help: "Total number of password challenges by result",
			},
			[]string{"result"}, // "answered", "declined", "orphan"
		),
		open: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cupsbridge_open_sessions",
				Help: "Number of sessions in the registry",
			},
		),
	}
}

func (m *SessionMetrics) ObserveCall(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(float64(d.Microseconds()) / 1000)
}

func (m *SessionMetrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *SessionMetrics) RecordChallenge(result string) {
	if m == nil {
		return
	}
	m.challenges.WithLabelValues(result).Inc()
}

func (m *SessionMetrics) SetOpen(n int) {
	if m == nil {
		return
	}
	m.open.Set(float64(n))
}
