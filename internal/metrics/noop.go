package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncPOICacheHit is a no-op.
func (n *NoopRecorder) IncPOICacheHit() {}

// IncPOICacheMiss is a no-op.
func (n *NoopRecorder) IncPOICacheMiss() {}

// IncPOICreated is a no-op.
func (n *NoopRecorder) IncPOICreated() {}

// IncPOIUpdated is a no-op.
func (n *NoopRecorder) IncPOIUpdated() {}

// IncPOIDeleted is a no-op.
func (n *NoopRecorder) IncPOIDeleted() {}

// ObserveNearbyQuery is a no-op.
func (n *NoopRecorder) ObserveNearbyQuery(duration time.Duration, candidates, matches int) {}

// IncAuthFailure is a no-op.
func (n *NoopRecorder) IncAuthFailure(kind string) {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited() {}
