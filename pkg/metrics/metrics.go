// Package metrics exposes Prometheus collectors for crawl runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a registry and the crawl collectors registered on it
type Recorder struct {
	registry *prometheus.Registry

	postsSearched  *prometheus.CounterVec
	postsRejected  *prometheus.CounterVec
	postsSkipped   *prometheus.CounterVec
	downloads      *prometheus.CounterVec
	downloadBytes  *prometheus.CounterVec
	apiRequests    *prometheus.CounterVec
	workersActive  prometheus.Gauge
	workersDone    *prometheus.CounterVec
	throttleDelays *prometheus.HistogramVec
}

// New creates a Recorder on a fresh registry. Process and Go runtime
// collectors are included so the endpoint is useful on its own.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		postsSearched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boorudl_posts_searched_total",
				Help: "Posts returned by the remote API, labeled by section and endpoint.",
			},
			[]string{"section", "endpoint"},
		),
		postsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boorudl_posts_rejected_total",
				Help: "Posts rejected by the filter, labeled by reason.",
			},
			[]string{"section", "endpoint", "reason"},
		),
		postsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boorudl_posts_unreadable_total",
				Help: "Posts skipped because they could not be normalized, labeled by kind.",
			},
			[]string{"endpoint", "kind"},
		),
		downloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boorudl_downloads_total",
				Help: "Download outcomes, labeled by status (downloaded, already_exists, failed).",
			},
			[]string{"section", "endpoint", "status"},
		),
		downloadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boorudl_download_bytes_total",
				Help: "Bytes written to disk.",
			},
			[]string{"endpoint"},
		),
		apiRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boorudl_http_responses_total",
				Help: "HTTP responses from remote hosts, labeled by endpoint and status code (0 for network errors).",
			},
			[]string{"endpoint", "code"},
		),
		workersActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "boorudl_active_workers",
				Help: "Number of (section, endpoint) workers currently crawling.",
			},
		),
		workersDone: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boorudl_workers_finished_total",
				Help: "Finished workers, labeled by termination reason.",
			},
			[]string{"reason"},
		),
		throttleDelays: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boorudl_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		),
	}
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an http.Handler exposing the registry
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) PostSearched(section, endpoint string) {
	r.postsSearched.WithLabelValues(section, endpoint).Inc()
}

func (r *Recorder) PostRejected(section, endpoint, reason string) {
	r.postsRejected.WithLabelValues(section, endpoint, reason).Inc()
}

func (r *Recorder) PostUnreadable(endpoint, kind string) {
	r.postsSkipped.WithLabelValues(endpoint, kind).Inc()
}

// Download records one download outcome and the bytes written
func (r *Recorder) Download(section, endpoint, status string, bytes int64) {
	r.downloads.WithLabelValues(section, endpoint, status).Inc()
	if bytes > 0 {
		r.downloadBytes.WithLabelValues(endpoint).Add(float64(bytes))
	}
}

// APIResponse records one HTTP response status
func (r *Recorder) APIResponse(endpoint string, code int) {
	r.apiRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}

func (r *Recorder) WorkerStarted() {
	r.workersActive.Inc()
}

func (r *Recorder) WorkerFinished(reason string) {
	r.workersActive.Dec()
	r.workersDone.WithLabelValues(reason).Inc()
}

// ThrottleDelay observes a rate limiter wait
func (r *Recorder) ThrottleDelay(host string, d time.Duration) {
	r.throttleDelays.WithLabelValues(host).Observe(d.Seconds())
}
