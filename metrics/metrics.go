// Package metrics provides Prometheus metrics for marketplace API and
// session operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the SDK.
type Metrics struct {
	enabled bool

	// API channel metrics
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec

	// Token refresh metrics
	tokenRefreshesTotal *prometheus.CounterVec
	authRetriesTotal    *prometheus.CounterVec

	// Session metrics
	forcedLogoutsTotal   *prometheus.CounterVec
	sessionAuthenticated prometheus.Gauge
}

// New creates and registers Prometheus metrics.
// If enabled is false, returns a no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}

	if !enabled {
		return m
	}

	m.apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estate_api_requests_total",
		Help: "Total API requests by channel, method, and outcome",
	}, []string{"channel", "method", "outcome"})

	m.apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "estate_api_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"channel"})

	m.tokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estate_token_refreshes_total",
		Help: "Total token refresh attempts by trigger and result",
	}, []string{"trigger", "result"})

	m.authRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estate_auth_retries_total",
		Help: "Total 401-triggered request replays by result",
	}, []string{"result"})

	m.forcedLogoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estate_forced_logouts_total",
		Help: "Total forced logouts by reason",
	}, []string{"reason"})

	m.sessionAuthenticated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "estate_session_authenticated",
		Help: "Whether a user is currently resolved (0 or 1)",
	})

	return m
}

// RecordAPIRequest records one completed API call.
// outcome is one of "success", "api_error", "no_response".
func (m *Metrics) RecordAPIRequest(channel, method, outcome string, durationSeconds float64) {
	if !m.enabled {
		return
	}
	m.apiRequestsTotal.WithLabelValues(channel, method, outcome).Inc()
	m.apiRequestDuration.WithLabelValues(channel).Observe(durationSeconds)
}

// RecordTokenRefresh records a refresh attempt.
// trigger is "periodic", "retry", or "login"; result is "success" or "failure".
func (m *Metrics) RecordTokenRefresh(trigger, result string) {
	if !m.enabled {
		return
	}
	m.tokenRefreshesTotal.WithLabelValues(trigger, result).Inc()
}

// RecordAuthRetry records a 401-triggered replay of a request.
func (m *Metrics) RecordAuthRetry(result string) {
	if !m.enabled {
		return
	}
	m.authRetriesTotal.WithLabelValues(result).Inc()
}

// RecordForcedLogout records a logout the client initiated on its own.
func (m *Metrics) RecordForcedLogout(reason string) {
	if !m.enabled {
		return
	}
	m.forcedLogoutsTotal.WithLabelValues(reason).Inc()
}

// SetAuthenticated sets whether an identity is currently resolved.
func (m *Metrics) SetAuthenticated(authenticated bool) {
	if !m.enabled {
		return
	}
	v := 0.0
	if authenticated {
		v = 1.0
	}
	m.sessionAuthenticated.Set(v)
}
