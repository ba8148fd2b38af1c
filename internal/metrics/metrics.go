// Package metrics provides optional Prometheus instrumentation for the
// resolution engine, grounded on piwi3910-openfroyo's pkg/telemetry
// (a disabled Metrics value is a cheap no-op rather than a nil check
// scattered through the engine).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters and histograms the engine updates as it
// merges layers, builds the graph, and resolves identifiers. A zero
// Metrics (as returned by New(false, "")) records nothing but is safe
// to call methods on, so callers never need a nil check.
type Metrics struct {
	enabled bool

	resolveCalls    *prometheus.CounterVec
	resolveDuration *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	mergeDuration   prometheus.Histogram
	buildDuration   prometheus.Histogram
	instantiations  *prometheus.CounterVec

	registry *prometheus.Registry
}

// New builds a Metrics instance. When enabled is false, every method
// is a no-op and Registry returns nil.
func New(enabled bool, namespace string) *Metrics {
	if !enabled {
		return &Metrics{enabled: false}
	}

	reg := prometheus.NewRegistry()
	m := &Metrics{
		enabled:  true,
		registry: reg,
		resolveCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "resolve_calls_total",
			Help: "Total number of resolve() calls, including cache hits.",
		}, []string{"status"}),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "resolve_duration_seconds",
			Help:    "Duration of a single resolve() call, excluding cache hits.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "resolve_cache_hits_total",
			Help: "Resolve calls served from the resolved cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "resolve_cache_misses_total",
			Help: "Resolve calls that performed real work.",
		}),
		mergeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "merge_duration_seconds",
			Help:    "Duration of merging an ordered list of raw trees.",
			Buckets: prometheus.DefBuckets,
		}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "graph_build_duration_seconds",
			Help:    "Duration of flattening a merged tree into a graph.",
			Buckets: prometheus.DefBuckets,
		}),
		instantiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "instantiations_total",
			Help: "Total number of instantiation-site invocations.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.resolveCalls, m.resolveDuration, m.cacheHits, m.cacheMisses,
		m.mergeDuration, m.buildDuration, m.instantiations)
	return m
}

// Registry exposes the Prometheus registry for a host to serve via
// promhttp, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveCacheHit records a resolve() call served from cache.
func (m *Metrics) ObserveCacheHit() {
	if m == nil || !m.enabled {
		return
	}
	m.cacheHits.Inc()
	m.resolveCalls.WithLabelValues("cache_hit").Inc()
}

// ObserveResolve records a real (non-cached) resolve() call.
func (m *Metrics) ObserveResolve(d time.Duration, failed bool) {
	if m == nil || !m.enabled {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.cacheMisses.Inc()
	m.resolveCalls.WithLabelValues(status).Inc()
	m.resolveDuration.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveMerge records the duration of a merge() call.
func (m *Metrics) ObserveMerge(d time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.mergeDuration.Observe(d.Seconds())
}

// ObserveBuild records the duration of a graph build.
func (m *Metrics) ObserveBuild(d time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.buildDuration.Observe(d.Seconds())
}

// ObserveInstantiation records one instantiation-site invocation.
func (m *Metrics) ObserveInstantiation(failed bool) {
	if m == nil || !m.enabled {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.instantiations.WithLabelValues(status).Inc()
}
