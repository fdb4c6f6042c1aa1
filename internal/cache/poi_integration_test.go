//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geovoyager/geovoyager/internal/model"
	"github.com/geovoyager/geovoyager/internal/testutil"
)

func newCacheTestEnv(t *testing.T) (context.Context, *Cache) {
	t.Helper()

	redisURL := testutil.RequireEnv(t, "REDIS_URL")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	if err := testutil.FlushRedis(ctx, client); err != nil {
		t.Fatalf("Failed to flush redis: %v", err)
	}

	return ctx, NewFromClient(client, time.Minute)
}

func TestIntegrationPOICache_FillLookupInvalidate(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	poi := testutil.NewTestPOI(t, "Louvre", 48.8606, 2.3376)
	poi.ID = 11
	poi.CreatedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	lookup, err := c.LookupPOI(ctx, poi.ID)
	if err != nil {
		t.Fatalf("LookupPOI failed: %v", err)
	}
	if lookup.Hit() || lookup.Version != 0 {
		t.Fatalf("expected a miss at version 0, got %+v", lookup)
	}

	written, err := c.FillPOI(ctx, poi, lookup.Version)
	if err != nil || !written {
		t.Fatalf("FillPOI = %v, %v; want written", written, err)
	}

	got, err := c.LookupPOI(ctx, poi.ID)
	if err != nil {
		t.Fatalf("LookupPOI failed: %v", err)
	}
	if got.POI == nil || got.POI.Title != "Louvre" || !got.POI.CreatedAt.Equal(poi.CreatedAt) {
		t.Fatalf("unexpected cached poi: %+v", got.POI)
	}
	if got.POI.AudioURL == nil || *got.POI.AudioURL != *poi.AudioURL {
		t.Errorf("audio_url not preserved: %v", got.POI.AudioURL)
	}

	if err := c.InvalidatePOI(ctx, poi.ID); err != nil {
		t.Fatalf("InvalidatePOI failed: %v", err)
	}
	after, err := c.LookupPOI(ctx, poi.ID)
	if err != nil {
		t.Fatalf("LookupPOI failed: %v", err)
	}
	if after.Hit() || after.Version != 1 {
		t.Errorf("expected a miss at version 1 after invalidate, got %+v", after)
	}
}

func TestIntegrationPOICache_StaleFillRejected(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	poi := testutil.NewTestPOI(t, "Old", 1, 1)
	poi.ID = 21

	// A reader looks up, then a writer deletes before the reader fills.
	lookup, err := c.LookupPOI(ctx, poi.ID)
	if err != nil {
		t.Fatalf("LookupPOI failed: %v", err)
	}
	if err := c.TombstonePOI(ctx, poi.ID); err != nil {
		t.Fatalf("TombstonePOI failed: %v", err)
	}

	written, err := c.FillPOI(ctx, poi, lookup.Version)
	if err != nil {
		t.Fatalf("FillPOI failed: %v", err)
	}
	if written {
		t.Fatal("fill with a pre-delete version must be rejected")
	}

	got, err := c.LookupPOI(ctx, poi.ID)
	if err != nil {
		t.Fatalf("LookupPOI failed: %v", err)
	}
	if !got.NotFound || got.POI != nil {
		t.Errorf("expected tombstone, got %+v", got)
	}

	// A fill at the current version is still blocked by the tombstone.
	if written, _ := c.FillPOI(ctx, poi, got.Version); written {
		t.Error("fill must not overwrite a tombstone")
	}
}

func TestIntegrationPOICache_NegativeEntry(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	written, err := c.FillNotFound(ctx, 77, 0)
	if err != nil || !written {
		t.Fatalf("FillNotFound = %v, %v; want written", written, err)
	}
	lookup, err := c.LookupPOI(ctx, 77)
	if err != nil || !lookup.NotFound {
		t.Fatalf("expected negative entry, got %+v (err %v)", lookup, err)
	}

	// Creating the id invalidates the negative entry.
	if err := c.InvalidatePOI(ctx, 77); err != nil {
		t.Fatalf("InvalidatePOI failed: %v", err)
	}
	lookup, err = c.LookupPOI(ctx, 77)
	if err != nil {
		t.Fatalf("LookupPOI failed: %v", err)
	}
	if lookup.NotFound {
		t.Error("InvalidatePOI should clear the negative entry")
	}

	// A not-found read that started before the create cannot restore it.
	if written, _ := c.FillNotFound(ctx, 77, 0); written {
		t.Error("stale negative fill must be rejected")
	}
}

func TestIntegrationRateLimit_Subject(t *testing.T) {
	ctx, c := newCacheTestEnv(t)

	// burst of 2, effectively no refill within the test
	for i := 0; i < 2; i++ {
		res, err := c.CheckSubjectRateLimit(ctx, "user-1", "viewer", 1, 2)
		if err != nil {
			t.Fatalf("CheckSubjectRateLimit failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	res, err := c.CheckSubjectRateLimit(ctx, "user-1", "viewer", 1, 2)
	if err != nil {
		t.Fatalf("CheckSubjectRateLimit failed: %v", err)
	}
	if res.Allowed {
		t.Error("third request should be limited")
	}
	if res.RetryAfter <= 0 {
		t.Error("RetryAfter should be positive when limited")
	}

	other, err := c.CheckSubjectRateLimit(ctx, "user-2", "viewer", 1, 2)
	if err != nil {
		t.Fatalf("CheckSubjectRateLimit failed: %v", err)
	}
	if !other.Allowed {
		t.Error("a different subject has its own bucket")
	}

	editor, err := c.CheckSubjectRateLimit(ctx, "user-1", "editor", 1, 2)
	if err != nil {
		t.Fatalf("CheckSubjectRateLimit failed: %v", err)
	}
	if !editor.Allowed {
		t.Error("the same subject under another role has its own bucket")
	}
}
