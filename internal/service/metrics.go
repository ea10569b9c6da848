package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	outcomeSuccess      = "success"
	outcomeInvalid      = "invalid"
	outcomeUnauthorized = "unauthorized"
	outcomeError        = "error"
)

// Metrics counts auth flow outcomes. A nil *Metrics records nothing.
type Metrics struct {
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
}

// NewMetrics registers the auth flow counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_token_refreshes_total",
			Help: "Token refresh attempts by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) registration(outcome string) {
	if m != nil {
		m.registrations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) login(outcome string) {
	if m != nil {
		m.logins.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) refresh(outcome string) {
	if m != nil {
		m.refreshes.WithLabelValues(outcome).Inc()
	}
}
