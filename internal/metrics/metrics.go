// Package metrics records download statistics with Prometheus collectors and writes
// them in the node_exporter textfile format, so a scheduled export can be monitored.
//
// Metrics:
//   - lingq_requests_total{endpoint, status} (Counter): API requests by endpoint and HTTP status, status "error" for transport failures
//   - lingq_rate_limited_total{language} (Counter): HTTP 429 responses
//   - lingq_retries_total{language} (Counter): retried page requests
//   - lingq_cards_downloaded_total{language} (Counter): cards downloaded
//   - lingq_download_duration_seconds{language} (Gauge): time spent downloading a language
//
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Recorder struct {
	registry *prometheus.Registry

	requestsTotal       *prometheus.CounterVec
	rateLimitedTotal    *prometheus.CounterVec
	retriesTotal        *prometheus.CounterVec
	cardsTotal          *prometheus.CounterVec
	downloadDurationSec *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lingq_requests_total",
			Help: "Total number of LingQ API requests by endpoint and HTTP status",
		}, []string{"endpoint", "status"}),
		rateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lingq_rate_limited_total",
			Help: "Total number of rate limited responses by language",
		}, []string{"language"}),
		retriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lingq_retries_total",
			Help: "Total number of retried page requests by language",
		}, []string{"language"}),
		cardsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lingq_cards_downloaded_total",
			Help: "Total number of downloaded LingQs by language",
		}, []string{"language"}),
		downloadDurationSec: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lingq_download_duration_seconds",
			Help: "Time spent downloading the LingQs of a language",
		}, []string{"language"}),
	}
}

// ObserveRequest implements lingq.RequestObserver. statusCode 0 means the request failed before a response.
func (r *Recorder) ObserveRequest(endpoint string, statusCode int) {
	if r == nil {
		return
	}
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	r.requestsTotal.WithLabelValues(endpoint, status).Inc()
}

func (r *Recorder) RateLimited(language string) {
	if r == nil {
		return
	}
	r.rateLimitedTotal.WithLabelValues(language).Inc()
}

func (r *Recorder) Retried(language string) {
	if r == nil {
		return
	}
	r.retriesTotal.WithLabelValues(language).Inc()
}

func (r *Recorder) CardsDownloaded(language string, count int) {
	if r == nil {
		return
	}
	r.cardsTotal.WithLabelValues(language).Add(float64(count))
}

func (r *Recorder) DownloadFinished(language string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.downloadDurationSec.WithLabelValues(language).Set(elapsed.Seconds())
}

// Registry exposes the collectors, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("prometheus.WriteToTextfile(%s) > %w", path, err)
	}
	return nil
}
