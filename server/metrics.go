package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spektr-org/chartdeck/pipeline"
	"github.com/spektr-org/chartdeck/render"
	"github.com/spektr-org/chartdeck/visual"
)

// ============================================================================
// METRICS — Prometheus collectors served on /metrics
// ============================================================================

type metrics struct {
	registry *prometheus.Registry

	sessions  prometheus.Gauge
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	pipelines *prometheus.CounterVec
	exports   *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chartdeck",
			Name:      "sessions_active",
			Help:      "Number of open sessions.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartdeck",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route template, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chartdeck",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		pipelines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartdeck",
			Name:      "pipeline_runs_total",
			Help:      "Visual pipeline runs by chart kind and outcome.",
		}, []string{"kind", "outcome"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chartdeck",
			Name:      "exports_total",
			Help:      "Chart exports by delivered format and whether a fallback was used.",
		}, []string{"format", "fallback"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessions, m.requests, m.latency, m.pipelines, m.exports,
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// observe records the outcome of a pipeline run.
func (m *metrics) observe(kind visual.Kind, res pipeline.Result) {
	outcome := "ok"
	switch {
	case res.Err != nil && errors.Is(res.Err, visual.ErrSchemaMismatch):
		outcome = "schema_mismatch"
	case res.Err != nil:
		outcome = "error"
	case res.Spec.NoData:
		outcome = "no_data"
	}
	m.pipelines.WithLabelValues(kind.String(), outcome).Inc()
}

func (m *metrics) exported(a *render.Artifact) {
	m.exports.WithLabelValues(string(a.Format), strconv.FormatBool(a.Fallback)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests per route template.
func (m *metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
