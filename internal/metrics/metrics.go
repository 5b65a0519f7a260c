// Package metrics exposes Prometheus metrics for book generation and the HTTP API.
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

const namespace = "tripbook"

// Generation outcomes.
const (
	ResultOK         = "ok"
	ResultSuperseded = "superseded"
	ResultFailed     = "failed"
)

// Recorder owns a private registry so tests and multiple servers do not collide.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	generations     *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	photosAnalyzed  prometheus.Counter
	duplicateGroups prometheus.Counter
	mapFallbacks    prometheus.Counter
	lastGeoCoverage prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates a recorder with Go runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	auto := promauto.With(reg)

	return &Recorder{
		registry: reg,
		generations: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Book plan generations by outcome",
		}, []string{"result"}),
		stageDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"stage"}),
		photosAnalyzed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "photos_analyzed_total",
			Help:      "Photos passed through quality analysis",
		}),
		duplicateGroups: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_groups_total",
			Help:      "Near-duplicate groups detected",
		}),
		mapFallbacks: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "map_fallbacks_total",
			Help:      "Plans that wanted a map but fell back to a gallery",
		}),
		lastGeoCoverage: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_geo_coverage_ratio",
			Help:      "Geo coverage of the most recently generated plan",
		}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpRequestDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Generation(result string) {
	if r == nil {
		return
	}
	r.generations.WithLabelValues(result).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) PhotosAnalyzed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.photosAnalyzed.Add(float64(n))
}

func (r *Recorder) DuplicateGroups(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.duplicateGroups.Add(float64(n))
}

func (r *Recorder) MapFallback() {
	if r == nil {
		return
	}
	r.mapFallbacks.Inc()
}

func (r *Recorder) GeoCoverage(ratio float64) {
	if r == nil {
		return
	}
	r.lastGeoCoverage.Set(ratio)
}

// ObserveHTTP records one served request. route is the matched pattern, not the raw path.
func (r *Recorder) ObserveHTTP(route, method string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}
