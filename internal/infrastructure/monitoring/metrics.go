package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/dashgate/pkg/constants"
)

// Gate outcomes recorded in dashgate_gate_decisions_total.
const (
	OutcomeAllowed      = "allowed"
	OutcomeExempt       = "exempt"
	OutcomeUnauthorized = "unauthorized"
	OutcomeThrottled    = "throttled"
	OutcomeError        = "error"
)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	GateDecisions  *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	ActiveRequests prometheus.Gauge
	SecurityEvents *prometheus.CounterVec
	AIFallbacks    *prometheus.CounterVec
	AITokens       prometheus.Counter
	BucketsEvicted prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	ns := constants.MetricsNamespace

	return &Metrics{
		GateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "gate_decisions_total",
				Help:      "Request gate outcomes by pool.",
			},
			[]string{"outcome", "pool"},
		),
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "http_request_duration_seconds",
				Help:      "Latency of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ActiveRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "http_active_requests",
				Help:      "Number of in-flight HTTP requests.",
			},
		),
		SecurityEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "security_events_total",
				Help:      "Security events by type.",
			},
			[]string{"type"},
		),
		AIFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "ai_fallbacks_total",
				Help:      "Task enhancements answered with the fallback plan.",
			},
			[]string{"reason"},
		),
		AITokens: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "ai_tokens_total",
				Help:      "Tokens consumed by completion calls.",
			},
		),
		BucketsEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "ratelimit_buckets_evicted_total",
				Help:      "In-memory rate limit buckets evicted by the janitor.",
			},
		),
	}
}

// RecordGateDecision counts one gate outcome. pool may be empty for
// outcomes decided before a pool was chosen.
func (m *Metrics) RecordGateDecision(outcome string, pool constants.RateLimitPool) {
	if m == nil {
		return
	}
	m.GateDecisions.WithLabelValues(outcome, string(pool)).Inc()
}

// ObserveRequest records a finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) ActiveRequestsInc() {
	if m != nil {
		m.ActiveRequests.Inc()
	}
}

func (m *Metrics) ActiveRequestsDec() {
	if m != nil {
		m.ActiveRequests.Dec()
	}
}

// RecordSecurityEvent counts a security event by type.
func (m *Metrics) RecordSecurityEvent(eventType constants.SecurityEventType) {
	if m != nil {
		m.SecurityEvents.WithLabelValues(string(eventType)).Inc()
	}
}

// RecordAIFallback counts a fallback answer.
func (m *Metrics) RecordAIFallback(reason string) {
	if m != nil {
		m.AIFallbacks.WithLabelValues(reason).Inc()
	}
}

// RecordAITokens adds consumed completion tokens.
func (m *Metrics) RecordAITokens(tokens int) {
	if m != nil && tokens > 0 {
		m.AITokens.Add(float64(tokens))
	}
}

// RecordBucketsEvicted adds janitor evictions.
func (m *Metrics) RecordBucketsEvicted(n int) {
	if m != nil && n > 0 {
		m.BucketsEvicted.Add(float64(n))
	}
}
