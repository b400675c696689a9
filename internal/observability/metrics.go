package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	httpErrorsTotal        *prometheus.CounterVec
	threadsCreatedTotal    prometheus.Counter
	messagesAppendedTotal  *prometheus.CounterVec
	notificationsTotal     *prometheus.CounterVec
	readOperationsTotal    *prometheus.CounterVec
	invariantFailuresTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_http_requests_total",
			Help: "Total number of messaging API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "messaging_http_latency_seconds",
			Help:    "Latency distribution for messaging API requests.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_http_errors_total",
			Help: "Total number of error responses returned by the messaging API.",
		}, []string{"method", "route", "status"})

		threadsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messaging_threads_created_total",
			Help: "Total number of dossier threads opened.",
		})

		messagesAppendedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_messages_appended_total",
			Help: "Total number of messages appended to threads.",
		}, []string{"with_attachments"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_notifications_emitted_total",
			Help: "Total number of notifications derived from messaging events.",
		}, []string{"type"})

		readOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_read_operations_total",
			Help: "Total number of read acknowledgements applied.",
		}, []string{"scope"})

		invariantFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messaging_invariant_failures_total",
			Help: "Total number of detected thread invariant violations.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			threadsCreatedTotal,
			messagesAppendedTotal,
			notificationsTotal,
			readOperationsTotal,
			invariantFailuresTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ThreadsCreated counts opened threads.
func ThreadsCreated() prometheus.Counter {
	RegisterMetrics()
	return threadsCreatedTotal
}

// MessagesAppended counts appended messages.
func MessagesAppended() *prometheus.CounterVec {
	RegisterMetrics()
	return messagesAppendedTotal
}

// NotificationsEmitted counts derived notifications by type.
func NotificationsEmitted() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// ReadOperations counts read acknowledgements by scope.
func ReadOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return readOperationsTotal
}

// InvariantFailures counts invariant violations.
func InvariantFailures() prometheus.Counter {
	RegisterMetrics()
	return invariantFailuresTotal
}
