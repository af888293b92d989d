package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics tracks the browser session lifecycle.
// A nil *SessionMetrics is valid and records nothing.
type SessionMetrics struct {
	TransitionsTotal   *prometheus.CounterVec
	OpenDuration       prometheus.Histogram
	LiveSessions       prometheus.Gauge
	CloseFailuresTotal prometheus.Counter
	LogFailuresTotal   prometheus.Counter
}

// NewSessionMetrics creates and registers session metrics on the given registry.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Lifecycle transitions by operation and outcome.",
		}, []string{"operation", "outcome"}),
		OpenDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "open_duration_seconds",
			Help:      "Time spent launching the browser and loading the target.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "live",
			Help:      "Number of live browser sessions (0 or 1).",
		}),
		CloseFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "close_failures_total",
			Help:      "Browser sessions that reported an error while closing.",
		}),
		LogFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "event_log",
			Name:      "write_failures_total",
			Help:      "Event log entries that could not be written.",
		}),
	}

	reg.MustRegister(m.TransitionsTotal, m.OpenDuration, m.LiveSessions, m.CloseFailuresTotal, m.LogFailuresTotal)
	return m
}

// Transition counts one lifecycle operation.
func (m *SessionMetrics) Transition(operation, outcome string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveOpen records how long an open attempt took.
func (m *SessionMetrics) ObserveOpen(d time.Duration) {
	if m == nil {
		return
	}
	m.OpenDuration.Observe(d.Seconds())
}

// SetLive records whether a session is alive.
func (m *SessionMetrics) SetLive(live bool) {
	if m == nil {
		return
	}
	if live {
		m.LiveSessions.Set(1)
	} else {
		m.LiveSessions.Set(0)
	}
}

// CloseFailed counts a session close error.
func (m *SessionMetrics) CloseFailed() {
	if m == nil {
		return
	}
	m.CloseFailuresTotal.Inc()
}

// LogWriteFailed counts an event log write error.
func (m *SessionMetrics) LogWriteFailed(error) {
	if m == nil {
		return
	}
	m.LogFailuresTotal.Inc()
}
