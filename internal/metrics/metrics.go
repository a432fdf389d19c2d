// Package metrics exposes Prometheus instruments for notarization and fingerprinting.
package metrics

import (
	"net/http"
	"time"

	"docnotary/blockchain/types"
	"docnotary/fingerprint"
	"docnotary/notarization"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	started      prometheus.Counter
	finished     *prometheus.CounterVec
	gasUsed      prometheus.Histogram
	fingerprints *prometheus.CounterVec
	hashDuration prometheus.Histogram
	requests     *prometheus.CounterVec
	reqDuration  *prometheus.HistogramVec
}

var _ notarization.Observer = (*Metrics)(nil)

// New creates and registers every collector
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docnotary_transactions_started_total", Help: "Notarization transactions created",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docnotary_transactions_finished_total", Help: "Notarization transactions reaching a terminal status",
		}, []string{"status", "category"}),
		gasUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "docnotary_gas_used", Help: "Gas used by confirmed notarizations",
			Buckets: prometheus.ExponentialBuckets(25000, 2, 8),
		}),
		fingerprints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docnotary_fingerprints_total", Help: "Files fingerprinted",
		}, []string{"result"}),
		hashDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "docnotary_fingerprint_duration_seconds", Help: "Time to hash one file", Buckets: prometheus.DefBuckets,
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total", Help: "HTTP requests",
		}, []string{"method", "route", "status"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "http_request_duration_seconds", Help: "Request latency", Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(m.started, m.finished, m.gasUsed,
		m.fingerprints, m.hashDuration, m.requests, m.reqDuration)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TrackStats exposes the pending, confirming and in-flight counts read from stats on every scrape
func (m *Metrics) TrackStats(stats func() notarization.Stats) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "docnotary_transactions_in_flight", Help: "Transactions pending or confirming",
		}, func() float64 {
			s := stats()
			return float64(s.Pending + s.Confirming)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "docnotary_transactions_success_rate", Help: "Confirmed share of all listed transactions, in percent",
		}, func() float64 { return stats().SuccessRate }),
	)
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TransactionStarted(tx notarization.Transaction) {
	m.started.Inc()
}

func (m *Metrics) TransactionConfirmed(tx notarization.Transaction, receipt *types.Receipt) {
	m.finished.WithLabelValues(string(notarization.StatusConfirmed), "").Inc()
	if receipt != nil {
		m.gasUsed.Observe(float64(receipt.GasUsed))
	}
}

func (m *Metrics) TransactionFailed(tx notarization.Transaction, err *notarization.TxError) {
	category := notarization.CategoryOther
	if err != nil {
		category = err.Category
	}
	m.finished.WithLabelValues(string(notarization.StatusFailed), string(category)).Inc()
}

// ObserveFingerprint records one fingerprint result; it fits ingestion.WithHashObserver
func (m *Metrics) ObserveFingerprint(r fingerprint.Result) {
	if !r.Success {
		m.fingerprints.WithLabelValues("failed").Inc()
		return
	}
	m.fingerprints.WithLabelValues("completed").Inc()
	m.hashDuration.Observe(r.ProcessingTime.Seconds())
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.reqDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
