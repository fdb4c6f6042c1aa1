package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder_Counters(t *testing.T) {
	t.Parallel()

	m := NewPrometheus()
	m.IncPOICacheHit()
	m.IncPOICacheMiss()
	m.IncPOICacheMiss()
	m.IncPOICreated()
	m.IncPOIUpdated()
	m.IncPOIDeleted()
	m.ObserveNearbyQuery(3*time.Millisecond, 10, 4)
	m.ObserveNearbyQuery(time.Millisecond, 5, 1)
	m.IncAuthFailure("Expired")
	m.IncAuthFailure("Expired")
	m.IncAuthFailure("MissingToken")
	m.IncRateLimited()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"cache hits", testutil.ToFloat64(m.POICacheHits), 1},
		{"cache misses", testutil.ToFloat64(m.POICacheMisses), 2},
		{"created", testutil.ToFloat64(m.POIsCreated), 1},
		{"updated", testutil.ToFloat64(m.POIsUpdated), 1},
		{"deleted", testutil.ToFloat64(m.POIsDeleted), 1},
		{"nearby candidates", testutil.ToFloat64(m.NearbyCandidates), 15},
		{"nearby matches", testutil.ToFloat64(m.NearbyMatches), 5},
		{"expired tokens", testutil.ToFloat64(m.AuthFailures.WithLabelValues("Expired")), 2},
		{"missing tokens", testutil.ToFloat64(m.AuthFailures.WithLabelValues("MissingToken")), 1},
		{"rate limited", testutil.ToFloat64(m.RateLimited), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(m.NearbyDuration); n != 1 {
		t.Errorf("expected one nearby histogram series, got %d", n)
	}
}

func TestPrometheusRecorder_RecordersAreIsolated(t *testing.T) {
	t.Parallel()

	a, b := NewPrometheus(), NewPrometheus()
	a.IncPOICreated()

	if got := testutil.ToFloat64(b.POIsCreated); got != 0 {
		t.Errorf("second recorder saw %v creations, want 0", got)
	}
}

func TestPrometheusRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	m := NewPrometheus()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncPOICacheHit()
			m.IncAuthFailure("InvalidSignature")
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(m.POICacheHits); got != 50 {
		t.Errorf("cache hits = %v, want 50", got)
	}
	if got := testutil.ToFloat64(m.AuthFailures.WithLabelValues("InvalidSignature")); got != 50 {
		t.Errorf("auth failures = %v, want 50", got)
	}
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	t.Parallel()

	m := NewPrometheus()
	m.IncPOICreated()
	m.IncAuthFailure(`Odd"Kind`)
	m.ObserveNearbyQuery(2*time.Millisecond, 3, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		"# HELP geovoyager_pois_created_total POIs created.",
		"# TYPE geovoyager_pois_created_total counter",
		"geovoyager_pois_created_total 1",
		"# TYPE geovoyager_nearby_query_duration_seconds histogram",
		"geovoyager_nearby_query_duration_seconds_count 1",
		`geovoyager_auth_failures_total{kind="Odd\"Kind"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestNoopRecorder_ImplementsRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NewNoop()
	r.IncPOICreated()
	r.ObserveNearbyQuery(time.Second, 1, 1)
	r.IncAuthFailure("Expired")

	var _ Recorder = NewPrometheus()
}
