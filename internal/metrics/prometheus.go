package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geovoyager"

// nearbyBuckets covers a linear scan from a few hundred to a few hundred
// thousand rows.
var nearbyBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

// PrometheusRecorder records events into its own Prometheus registry.
// The collectors are exported so tests can read them with prometheus/testutil.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	POICacheHits     prometheus.Counter
	POICacheMisses   prometheus.Counter
	POIsCreated      prometheus.Counter
	POIsUpdated      prometheus.Counter
	POIsDeleted      prometheus.Counter
	NearbyDuration   prometheus.Histogram
	NearbyCandidates prometheus.Counter
	NearbyMatches    prometheus.Counter
	AuthFailures     *prometheus.CounterVec
	RateLimited      prometheus.Counter
}

// NewPrometheus builds a recorder on a fresh registry that also carries the
// Go runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	m := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		POICacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poi_cache_hits_total",
			Help:      "POI reads answered by the Redis cache, tombstones included.",
		}),
		POICacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poi_cache_misses_total",
			Help:      "POI reads that fell through to PostgreSQL.",
		}),
		POIsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pois_created_total",
			Help:      "POIs created.",
		}),
		POIsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pois_updated_total",
			Help:      "POIs updated.",
		}),
		POIsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pois_deleted_total",
			Help:      "POIs deleted.",
		}),
		NearbyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nearby_query_duration_seconds",
			Help:      "Time spent loading and filtering POIs for a nearby query.",
			Buckets:   nearbyBuckets,
		}),
		NearbyCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nearby_candidates_total",
			Help:      "POIs scanned by nearby queries.",
		}),
		NearbyMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nearby_matches_total",
			Help:      "POIs returned by nearby queries.",
		}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected bearer tokens by failure kind.",
		}, []string{"kind"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.POICacheHits,
		m.POICacheMisses,
		m.POIsCreated,
		m.POIsUpdated,
		m.POIsDeleted,
		m.NearbyDuration,
		m.NearbyCandidates,
		m.NearbyMatches,
		m.AuthFailures,
		m.RateLimited,
	)

	return m
}

// Registry returns the registry backing this recorder.
func (m *PrometheusRecorder) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// IncPOICacheHit increments cache hit counter.
func (m *PrometheusRecorder) IncPOICacheHit() {
	m.POICacheHits.Inc()
}

// IncPOICacheMiss increments cache miss counter.
func (m *PrometheusRecorder) IncPOICacheMiss() {
	m.POICacheMisses.Inc()
}

// IncPOICreated increments the created counter.
func (m *PrometheusRecorder) IncPOICreated() {
	m.POIsCreated.Inc()
}

// IncPOIUpdated increments the updated counter.
func (m *PrometheusRecorder) IncPOIUpdated() {
	m.POIsUpdated.Inc()
}

// IncPOIDeleted increments the deleted counter.
func (m *PrometheusRecorder) IncPOIDeleted() {
	m.POIsDeleted.Inc()
}

// ObserveNearbyQuery records one nearby scan.
func (m *PrometheusRecorder) ObserveNearbyQuery(duration time.Duration, candidates, matches int) {
	m.NearbyDuration.Observe(duration.Seconds())
	m.NearbyCandidates.Add(float64(candidates))
	m.NearbyMatches.Add(float64(matches))
}

// IncAuthFailure counts a rejected token under its failure kind.
func (m *PrometheusRecorder) IncAuthFailure(kind string) {
	m.AuthFailures.WithLabelValues(kind).Inc()
}

// IncRateLimited increments the rate limited counter.
func (m *PrometheusRecorder) IncRateLimited() {
	m.RateLimited.Inc()
}
