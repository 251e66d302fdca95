package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// It satisfies auth.Recorder.
type Metrics struct {
	registry      *prometheus.Registry
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	logouts       prometheus.Counter
	evictions     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_registrations_total",
				Help: "Total number of registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_refreshes_total",
				Help: "Total number of refresh token exchanges by outcome",
			},
			[]string{"outcome"},
		),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_logouts_total",
			Help: "Total number of logout requests",
		}),
		evictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_cleanup_evicted_total",
				Help: "Total number of expired entries removed by cleanup, by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(m.registrations, m.logins, m.refreshes, m.logouts, m.evictions)
	return m
}

// TrackLiveRefreshTokens exposes size() as the auth_refresh_tokens_live gauge.
func (m *Metrics) TrackLiveRefreshTokens(size func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "auth_refresh_tokens_live",
			Help: "Number of refresh token records currently held, expired-but-unswept included",
		},
		func() float64 { return float64(size()) },
	))
}

func (m *Metrics) Registration(outcome string) {
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Login(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refresh(outcome string) {
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Logout() {
	m.logouts.Inc()
}

func (m *Metrics) Evicted(kind string, count int) {
	if count <= 0 {
		return
	}
	m.evictions.WithLabelValues(kind).Add(float64(count))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
