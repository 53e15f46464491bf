// Package metrics exposes the service's Prometheus instruments.
//
// Every recording method is safe to call on a nil *Metrics so components can
// run without instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "insureguard"

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	claimsScored      *prometheus.CounterVec
	scoringErrors     *prometheus.CounterVec
	scoreDuration     prometheus.Histogram
	trainingRuns      *prometheus.CounterVec
	trainingDuration  prometheus.Histogram
	modelCutoff       prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	webhookDeliveries *prometheus.CounterVec
	skippedClaims     *prometheus.CounterVec
}

// New creates the instruments on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		claimsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_scored_total",
			Help:      "Claims scored, by resulting risk category.",
		}, []string{"risk"}),
		scoringErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_errors_total",
			Help:      "Scoring failures, by error code.",
		}, []string{"code"}),
		scoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_duration_seconds",
			Help:      "Time to extract features and score one claim.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		trainingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "training_runs_total",
			Help:      "Model training runs, by outcome.",
		}, []string{"outcome"}),
		trainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "training_duration_seconds",
			Help:      "Wall time of successful training runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		modelCutoff: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_cutoff",
			Help:      "Cost-optimal probability cutoff of the live model.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intelligence_cache_hits_total",
			Help:      "Fraud intelligence results served from cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intelligence_cache_misses_total",
			Help:      "Fraud intelligence results computed afresh.",
		}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook delivery attempts, by outcome.",
		}, []string{"outcome"}),
		skippedClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_claims_total",
			Help:      "Malformed claims skipped by corpus-wide analyses, by analysis.",
		}, []string{"analysis"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.claimsScored,
		m.scoringErrors,
		m.scoreDuration,
		m.trainingRuns,
		m.trainingDuration,
		m.modelCutoff,
		m.cacheHits,
		m.cacheMisses,
		m.webhookDeliveries,
		m.skippedClaims,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveHTTP(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) ClaimScored(risk string, d time.Duration) {
	if m == nil {
		return
	}
	m.claimsScored.WithLabelValues(risk).Inc()
	m.scoreDuration.Observe(d.Seconds())
}

func (m *Metrics) ScoringFailed(code string) {
	if m == nil {
		return
	}
	m.scoringErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) TrainingFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.trainingRuns.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		m.trainingDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ModelPublished(cutoff float64) {
	if m == nil {
		return
	}
	m.modelCutoff.Set(cutoff)
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) WebhookDelivered(outcome string) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ClaimsSkipped(analysis string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.skippedClaims.WithLabelValues(analysis).Add(float64(n))
}
