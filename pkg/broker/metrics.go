package broker

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the broker's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	phases   *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	refresh  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// Registering twice with the same registry returns the existing
// collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authbroker",
			Name:      "login_phase_total",
			Help:      "Login attempts entering each phase, by provider.",
		}, []string{"provider", "phase"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authbroker",
			Name:      "login_failures_total",
			Help:      "Failed callbacks by provider and reason category.",
		}, []string{"provider", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "authbroker",
			Name:      "callback_duration_seconds",
			Help:      "Callback handling time including provider round trips.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"provider"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authbroker",
			Name:      "token_refresh_total",
			Help:      "Refresh token rotations by result.",
		}, []string{"result"}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	if m.phases, err = register(reg, m.phases); err != nil {
		return nil, err
	}
	if m.failures, err = register(reg, m.failures); err != nil {
		return nil, err
	}
	if m.latency, err = register(reg, m.latency); err != nil {
		return nil, err
	}
	if m.refresh, err = register(reg, m.refresh); err != nil {
		return nil, err
	}
	return m, nil
}

// register returns the already registered collector on a duplicate.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

func (m *Metrics) phase(provider string, p Phase) {
	if m == nil {
		return
	}
	m.phases.WithLabelValues(provider, string(p)).Inc()
}

func (m *Metrics) callback(provider string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(provider).Observe(time.Since(started).Seconds())
	if err != nil {
		m.failures.WithLabelValues(provider, Reason(err)).Inc()
	}
}

func (m *Metrics) refreshed(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = Reason(err)
	}
	m.refresh.WithLabelValues(result).Inc()
}
