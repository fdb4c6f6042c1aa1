// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// PrometheusRecorder backs /metrics; NoopRecorder is for tests and tools.
type Recorder interface {
	// POI read cache
	IncPOICacheHit()
	IncPOICacheMiss()

	// POI management
	IncPOICreated()
	IncPOIUpdated()
	IncPOIDeleted()

	// Nearby query: candidates scanned, records matched, time spent.
	ObserveNearbyQuery(duration time.Duration, candidates, matches int)

	// Request gate
	IncAuthFailure(kind string)
	IncRateLimited()
}
