// Package metrics exposes parking counters and HTTP latency in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sparkpark/backend/services/parking-service/internal/models"
)

const namespace = "sparkpark"

// Recorder owns the service's collectors. It satisfies repository.Observer.
type Recorder struct {
	registry *prometheus.Registry

	sessionsStarted  prometheus.Counter
	receiptsCreated  *prometheus.CounterVec
	revenueMinor     *prometheus.CounterVec
	durationClamped  prometheus.Counter
	zoneLookupFailed prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewRecorder registers collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Parking sessions opened.",
		}),
		receiptsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_created_total",
			Help:      "Receipts issued for stopped sessions.",
		}, []string{"currency"}),
		revenueMinor: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_revenue_minor_total",
			Help:      "Sum of receipt totals in minor currency units.",
		}, []string{"currency"}),
		durationClamped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_duration_clamped_total",
			Help:      "Stops whose end preceded the stored start and were billed as zero seconds.",
		}),
		zoneLookupFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_lookup_failures_total",
			Help:      "Sessions returned or closed without their zone's reference data.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.sessionsStarted,
		r.receiptsCreated,
		r.revenueMinor,
		r.durationClamped,
		r.zoneLookupFailed,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// SessionStarted implements repository.Observer.
func (r *Recorder) SessionStarted(*models.Session) {
	r.sessionsStarted.Inc()
}

// ReceiptCreated implements repository.Observer.
func (r *Recorder) ReceiptCreated(receipt *models.Receipt) {
	r.receiptsCreated.WithLabelValues(receipt.Currency).Inc()
	r.revenueMinor.WithLabelValues(receipt.Currency).Add(float64(receipt.TotalCost))
}

// DurationClamped implements repository.Observer.
func (r *Recorder) DurationClamped(string) {
	r.durationClamped.Inc()
}

// ZoneLookupFailed implements repository.Observer.
func (r *Recorder) ZoneLookupFailed(string) {
	r.zoneLookupFailed.Inc()
}

// ObserveHTTP records one finished request. route is the matched pattern, not the raw path.
func (r *Recorder) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
