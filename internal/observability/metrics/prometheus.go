// Package metrics provides Prometheus metrics for the triage services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	AssessmentsTotal      *prometheus.CounterVec
	AssessmentFailures    prometheus.Counter
	AssessmentDuration    prometheus.Histogram
	PersistenceFailures   prometheus.Counter
	WaitlistSize          prometheus.Gauge
	HTTPRequests          *prometheus.CounterVec
	HTTPDuration          *prometheus.HistogramVec
	KafkaMessagesProduced prometheus.Counter
	KafkaMessagesConsumed prometheus.Counter
	DuplicateMessages     prometheus.Counter
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec

	reg      prometheus.Registerer
	gatherer prometheus.Gatherer
}

// New creates all metrics and registers them on reg. A *prometheus.Registry
// also backs Handler; any other registerer falls back to the default gatherer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AssessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triage_assessments_total",
			Help: "Total assessments by risk level",
		}, []string{"risk_level"}),
		AssessmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triage_assessment_failures_total",
			Help: "Total assessments that failed in a classifier",
		}),
		AssessmentDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triage_assessment_duration_seconds",
			Help:    "Assessment pipeline duration",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		PersistenceFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triage_persistence_failures_total",
			Help: "Total encounter recordings that failed",
		}),
		WaitlistSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triage_waitlist_size",
			Help: "Patients currently waiting",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		KafkaMessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Total Kafka messages consumed",
		}),
		DuplicateMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triage_duplicate_messages_total",
			Help: "Intake messages skipped by the idempotency inbox",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		reg:      reg,
		gatherer: prometheus.DefaultGatherer,
	}

	reg.MustRegister(
		m.AssessmentsTotal,
		m.AssessmentFailures,
		m.AssessmentDuration,
		m.PersistenceFailures,
		m.WaitlistSize,
		m.HTTPRequests,
		m.HTTPDuration,
		m.KafkaMessagesProduced,
		m.KafkaMessagesConsumed,
		m.DuplicateMessages,
		m.OutboxPending,
		m.CircuitBreakerState,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	return m
}

// ObserveAssessment records one completed assessment
func (m *Metrics) ObserveAssessment(riskLevel string, d time.Duration) {
	if m == nil {
		return
	}
	m.AssessmentsTotal.WithLabelValues(riskLevel).Inc()
	m.AssessmentDuration.Observe(d.Seconds())
}

// AssessmentFailed counts a failed assessment
func (m *Metrics) AssessmentFailed() {
	if m == nil {
		return
	}
	m.AssessmentFailures.Inc()
}

// PersistenceFailed counts a failed encounter recording
func (m *Metrics) PersistenceFailed(error) {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}

// SetWaitlistSize sets the waiting patient gauge
func (m *Metrics) SetWaitlistSize(n int64) {
	if m == nil {
		return
	}
	m.WaitlistSize.Set(float64(n))
}

// ObserveHTTP records a served request
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// MessageProduced counts a produced Kafka record
func (m *Metrics) MessageProduced() {
	if m == nil {
		return
	}
	m.KafkaMessagesProduced.Inc()
}

// MessageConsumed counts a consumed Kafka record
func (m *Metrics) MessageConsumed() {
	if m == nil {
		return
	}
	m.KafkaMessagesConsumed.Inc()
}

// DuplicateMessage counts an intake skipped as already processed
func (m *Metrics) DuplicateMessage() {
	if m == nil {
		return
	}
	m.DuplicateMessages.Inc()
}

// SetOutboxPending sets the pending outbox gauge
func (m *Metrics) SetOutboxPending(n int64) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(n))
}

// SetBreakerState maps a breaker state name onto the gauge
func (m *Metrics) SetBreakerState(name, state string) {
	if m == nil {
		return
	}
	var v float64
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}

// WatchWorkerPool exports worker pool gauges. stats is read at scrape time.
func (m *Metrics) WatchWorkerPool(stats func() (active, queued, capacity int64)) {
	if m == nil {
		return
	}
	gauge := func(name, help string, pick func(a, q, c int64) int64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(pick(stats()))
		})
	}
	m.reg.MustRegister(
		gauge("worker_pool_active_workers", "Workers currently processing a task",
			func(a, _, _ int64) int64 { return a }),
		gauge("worker_pool_queue_depth", "Tasks waiting for a worker",
			func(_, q, _ int64) int64 { return q }),
		gauge("worker_pool_queue_capacity", "Task queue capacity",
			func(_, _, c int64) int64 { return c }),
	)
}

// Handler returns the Prometheus HTTP handler for the registered metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
