package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/geovoyager/geovoyager/internal/model"
)

// Cache key layout and TTLs. All keys of one id share a hash tag so the
// fill script stays on a single cluster slot.
const (
	poiKeyPrefix      = "poi:"
	negCacheKeySuffix = ":neg"
	versionKeySuffix  = ":ver"

	// DefaultPOITTL is the TTL for cached POI records.
	DefaultPOITTL = 10 * time.Minute

	// NegativeCacheTTL is the TTL for negative cache entries and delete
	// tombstones.
	NegativeCacheTTL = 30 * time.Second

	// versionTTL bounds how long a generation counter outlives its last
	// write. A reader paused longer than this may refill a stale value.
	versionTTL = 24 * time.Hour
)

// POILookup is the cached state of one id.
type POILookup struct {
	// POI is set on a positive hit.
	POI *model.POI
	// NotFound is set when a negative entry or delete tombstone exists.
	NotFound bool
	// Version is the write generation observed by the lookup. Pass it to
	// FillPOI or FillNotFound after reading the store.
	Version int64
}

// Hit reports whether the lookup answered the read without the store.
func (l *POILookup) Hit() bool {
	return l.POI != nil || l.NotFound
}

func poiKey(id int64) string {
	return poiKeyPrefix + "{" + strconv.FormatInt(id, 10) + "}"
}

func negKey(id int64) string {
	return poiKey(id) + negCacheKeySuffix
}

func versionKey(id int64) string {
	return poiKey(id) + versionKeySuffix
}

// fillScript writes KEYS[1] only when the generation in KEYS[2] still
// equals ARGV[1] and the opposite entry KEYS[3] is absent. A missing
// generation counts as 0.
var fillScript = redis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[2]) or '0')
	if current ~= tonumber(ARGV[1]) then
		return 0
	end
	if redis.call('EXISTS', KEYS[3]) == 1 then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
	return 1
`)

// LookupPOI reads the positive entry, the negative entry and the generation
// of id in one round trip.
func (c *Cache) LookupPOI(ctx context.Context, id int64) (*POILookup, error) {
	vals, err := c.client.MGet(ctx, poiKey(id), negKey(id), versionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}

	lookup := &POILookup{}

	if raw, ok := vals[2].(string); ok {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt poi version %q: %w", raw, err)
		}
		lookup.Version = v
	}

	if vals[1] != nil {
		lookup.NotFound = true
		return lookup, nil
	}

	if raw, ok := vals[0].(string); ok {
		var poi model.POI
		if err := json.Unmarshal([]byte(raw), &poi); err != nil {
			// Corrupted entry - drop it and treat as miss
			c.client.Del(ctx, poiKey(id))
			return lookup, nil
		}
		lookup.POI = &poi
	}

	return lookup, nil
}

// FillPOI caches poi if no write happened since the lookup that returned
// version. It reports whether the entry was written.
func (c *Cache) FillPOI(ctx context.Context, poi *model.POI, version int64) (bool, error) {
	data, err := json.Marshal(poi)
	if err != nil {
		return false, fmt.Errorf("failed to encode poi: %w", err)
	}

	return c.fill(ctx,
		[]string{poiKey(poi.ID), versionKey(poi.ID), negKey(poi.ID)},
		version, data, c.poiTTL,
	)
}

// FillNotFound records that id does not exist, under the same generation
// rule as FillPOI.
func (c *Cache) FillNotFound(ctx context.Context, id int64, version int64) (bool, error) {
	return c.fill(ctx,
		[]string{negKey(id), versionKey(id), poiKey(id)},
		version, "", NegativeCacheTTL,
	)
}

func (c *Cache) fill(ctx context.Context, keys []string, version int64, value any, ttl time.Duration) (bool, error) {
	written, err := fillScript.Run(ctx, c.client, keys, version, value, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to fill poi cache: %w", err)
	}
	return written == 1, nil
}

// InvalidatePOI starts a new generation for id and drops both entries.
// Fills based on earlier lookups are rejected afterwards.
func (c *Cache) InvalidatePOI(ctx context.Context, id int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Expire(ctx, versionKey(id), versionTTL)
		pipe.Del(ctx, poiKey(id), negKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate poi cache: %w", err)
	}

	return nil
}

// TombstonePOI starts a new generation for a deleted id, drops its entry
// and leaves a negative entry so readers stop at the cache.
func (c *Cache) TombstonePOI(ctx context.Context, id int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Expire(ctx, versionKey(id), versionTTL)
		pipe.Del(ctx, poiKey(id))
		pipe.Set(ctx, negKey(id), "", NegativeCacheTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to tombstone poi: %w", err)
	}

	return nil
}
