// Package metrics defines the prometheus collectors of the request pipeline
// and of the development auth server. All methods are safe on a nil receiver
// so metrics stay optional for callers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gymsession"

const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultDiscarded = "discarded"
)

type Metrics struct {
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	refreshWaiters  prometheus.Histogram
	retryTotal      *prometheus.CounterVec
	authFailures    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "refresh_total",
			Help:      "Refresh network calls by outcome.",
		}, []string{"result"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "refresh_duration_seconds",
			Help:      "Time a refresh cycle spent in flight.",
			Buckets:   prometheus.DefBuckets,
		}),
		refreshWaiters: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "refresh_waiters",
			Help:      "Callers resolved by a single refresh cycle.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		retryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "retry_total",
			Help:      "Requests replayed after a refresh, by final status class.",
		}, []string{"status"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "auth_failures_total",
			Help:      "Authorization failures surfaced to callers, by kind.",
		}, []string{"kind"}),
	}

	if reg != nil {
		reg.MustRegister(m.refreshTotal, m.refreshDuration, m.refreshWaiters, m.retryTotal, m.authFailures)
	}
	return m
}

func (m *Metrics) RefreshSettled(result string, waiters int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(result).Inc()
	m.refreshDuration.Observe(elapsed.Seconds())
	m.refreshWaiters.Observe(float64(waiters))
}

func (m *Metrics) Retried(status int) {
	if m == nil {
		return
	}
	m.retryTotal.WithLabelValues(statusClass(status)).Inc()
}

func (m *Metrics) AuthFailure(kind string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(kind).Inc()
}

func statusClass(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "401"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// IssuerMetrics counts tokens handed out by the development auth server.
type IssuerMetrics struct {
	issued   *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

func NewIssuerMetrics(reg prometheus.Registerer) *IssuerMetrics {
	m := &IssuerMetrics{
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authstub",
			Name:      "tokens_issued_total",
			Help:      "Access tokens issued, by grant.",
		}, []string{"grant"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authstub",
			Name:      "grants_rejected_total",
			Help:      "Rejected login and refresh grants.",
		}, []string{"grant"}),
	}

	if reg != nil {
		reg.MustRegister(m.issued, m.rejected)
	}
	return m
}

func (m *IssuerMetrics) Issued(grant string) {
	if m == nil {
		return
	}
	m.issued.WithLabelValues(grant).Inc()
}

func (m *IssuerMetrics) Rejected(grant string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(grant).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
