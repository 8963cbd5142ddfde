// Package prometheus implements the observability hooks with Prometheus
// collectors.
//
//	m := prometheus.New(prom.DefaultRegisterer)
//	m.Install()
//	http.Handle("/metrics", promhttp.Handler())
package prometheus

import (
	"context"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/matzehuels/diagramir/pkg/observability"
)

const namespace = "diagramir"

// Metrics holds every collector. It implements all hook interfaces in
// [observability].
type Metrics struct {
	stageDuration *prom.HistogramVec
	stageErrors   *prom.CounterVec
	runs          *prom.CounterVec
	runDuration   prom.Histogram

	taxonomyLoads    *prom.CounterVec
	taxonomyRows     prom.Gauge
	taxonomyDuration prom.Histogram
	taxonomyFallback *prom.CounterVec
	taxonomyDrift    *prom.CounterVec

	classified       *prom.CounterVec
	classifyDuration prom.Histogram

	cacheOps *prom.CounterVec
	cacheSet prom.Histogram

	httpRequests *prom.CounterVec
	httpDuration *prom.HistogramVec
	httpErrors   *prom.CounterVec
}

// New registers the collectors with reg. Registering twice on the same
// registry panics.
func New(reg prom.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		stageDuration: f.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Enrichment stage duration in seconds",
			Buckets:   prom.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"stage"}),
		stageErrors: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      "Enrichment stage failures by stage",
		}, []string{"stage"}),
		runs: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_runs_total",
			Help:      "Enrichment runs by result and failed stage",
		}, []string{"result", "failed_stage"}),
		runDuration: f.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "enrich_run_duration_seconds",
			Help:      "Full enrichment run duration in seconds",
			Buckets:   prom.ExponentialBuckets(0.0005, 2, 14),
		}),

		taxonomyLoads: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "taxonomy_loads_total",
			Help:      "Taxonomy pulls by source and result",
		}, []string{"source", "result"}),
		taxonomyRows: f.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "taxonomy_rows",
			Help:      "Rows delivered by the last successful taxonomy pull",
		}),
		taxonomyDuration: f.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "taxonomy_load_duration_seconds",
			Help:      "Taxonomy pull duration in seconds",
			Buckets:   prom.ExponentialBuckets(0.01, 2, 12),
		}),
		taxonomyFallback: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "taxonomy_fallbacks_total",
			Help:      "Failed pulls by the tier that served the index",
		}, []string{"tier"}),
		taxonomyDrift: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "taxonomy_drift_total",
			Help:      "Required columns missing from a taxonomy pull",
		}, []string{"field"}),

		classified: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classified labels by resolving tier",
		}, []string{"tier"}),
		classifyDuration: f.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "classify_duration_seconds",
			Help:      "Single label classification duration in seconds",
			Buckets:   prom.ExponentialBuckets(0.00001, 2, 14),
		}),

		cacheOps: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Cache lookups and writes by key type and result",
		}, []string{"key_type", "result"}),
		cacheSet: f.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_set_bytes",
			Help:      "Size of cache writes in bytes",
			Buckets:   prom.ExponentialBuckets(256, 4, 10),
		}),

		httpRequests: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_client_requests_total",
			Help:      "Outgoing HTTP responses by host, method and status",
		}, []string{"host", "method", "status"}),
		httpDuration: f.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_client_duration_seconds",
			Help:      "Outgoing HTTP request duration in seconds",
			Buckets:   prom.DefBuckets,
		}, []string{"host"}),
		httpErrors: f.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_client_errors_total",
			Help:      "Outgoing HTTP transport failures by host",
		}, []string{"host"}),
	}
}

// Install registers m as the global hooks for every category.
func (m *Metrics) Install() {
	observability.SetPipelineHooks(m)
	observability.SetTaxonomyHooks(m)
	observability.SetClassifierHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

// =============================================================================
// Pipeline
// =============================================================================

func (m *Metrics) OnStageStart(context.Context, string, int) {}

func (m *Metrics) OnStageComplete(_ context.Context, stage string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) OnRunComplete(_ context.Context, enriched bool, failedStage string, d time.Duration) {
	m.runs.WithLabelValues(result(enriched), failedStage).Inc()
	m.runDuration.Observe(d.Seconds())
}

// =============================================================================
// Taxonomy
// =============================================================================

func (m *Metrics) OnLoad(_ context.Context, source string, rows int, d time.Duration, err error) {
	m.taxonomyLoads.WithLabelValues(source, result(err == nil)).Inc()
	m.taxonomyDuration.Observe(d.Seconds())
	if err == nil {
		m.taxonomyRows.Set(float64(rows))
	}
}

func (m *Metrics) OnFallback(_ context.Context, tier string) {
	m.taxonomyFallback.WithLabelValues(tier).Inc()
}

func (m *Metrics) OnDrift(_ context.Context, missing []string) {
	for _, f := range missing {
		m.taxonomyDrift.WithLabelValues(f).Inc()
	}
}

// =============================================================================
// Classifier
// =============================================================================

func (m *Metrics) OnClassify(_ context.Context, tier string, d time.Duration) {
	m.classified.WithLabelValues(tier).Inc()
	m.classifyDuration.Observe(d.Seconds())
}

// =============================================================================
// Cache
// =============================================================================

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheOps.WithLabelValues(keyType, "set").Inc()
	m.cacheSet.Observe(float64(size))
}

// =============================================================================
// HTTP
// =============================================================================

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, host, _ string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(host, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.httpErrors.WithLabelValues(host).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

var (
	_ observability.PipelineHooks   = (*Metrics)(nil)
	_ observability.TaxonomyHooks   = (*Metrics)(nil)
	_ observability.ClassifierHooks = (*Metrics)(nil)
	_ observability.CacheHooks      = (*Metrics)(nil)
	_ observability.HTTPHooks       = (*Metrics)(nil)
)
