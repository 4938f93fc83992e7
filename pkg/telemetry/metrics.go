// Package telemetry holds the process metrics and the per-job trace writer.
// Every method is safe on a nil receiver so components can run without them.
package telemetry

import (
	"time"

	"slunch/pkg/apperr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const namespace = "slunch"

type Metrics struct {
	cacheLookups *prometheus.CounterVec
	upstream     *prometheus.HistogramVec
	deliveries   *prometheus.CounterVec
	precache     *prometheus.CounterVec
	jobRuns      *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	requests     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by record kind and result (hit, miss, stale).",
		}, []string{"kind", "result"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_call_seconds",
			Help:      "Upstream call latency by provider, endpoint and outcome.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"provider", "endpoint", "outcome"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_deliveries_total",
			Help:      "Push deliveries by pass and outcome.",
		}, []string{"pass", "outcome"}),
		precache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "precache_fetches_total",
			Help:      "Precache work items by outcome.",
		}, []string{"outcome"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job duration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"job"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
	if reg != nil {
		reg.MustRegister(m.cacheLookups, m.upstream, m.deliveries, m.precache, m.jobRuns, m.jobDuration, m.requests)
	}
	return m
}

func (m *Metrics) Cache(kind, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(kind, result).Inc()
}

// Outcome buckets an upstream error for labelling.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperr.IsNotFound(err):
		return "not_found"
	case apperr.IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}

func (m *Metrics) Upstream(provider, endpoint string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(provider, endpoint, Outcome(err)).Observe(d.Seconds())
}

// UpstreamHook adapts Upstream to the clients' CallHook signature.
func (m *Metrics) UpstreamHook(provider string) func(string, time.Duration, error) {
	return func(endpoint string, d time.Duration, err error) {
		m.Upstream(provider, endpoint, d, err)
	}
}

func (m *Metrics) Delivery(pass, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(pass, outcome).Inc()
}

func (m *Metrics) Precache(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.precache.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) Job(job, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
	if outcome != "skipped" {
		m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	}
}

func (m *Metrics) Request(method string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
