package priceservice

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	calltrackio "github.com/sawpanic/calltrack/internal/io"
	"github.com/sawpanic/calltrack/internal/model"
)

// historicalCacheVersion is written to the persistent cache file's
// "version" field; a mismatch on load is fatal (spec.md §6).
const historicalCacheVersion = 1

// historicalCacheDoc is the on-disk shape of the daily-bucketed historical
// cache: immutable once written, atomically rewritten at checkpoint
// boundaries (spec.md §4.B caching).
type historicalCacheDoc struct {
	Version int                          `json:"version"`
	Points  map[string]model.PricePoint `json:"points"` // key: tokenKey|dayBucketUnix
}

// HistoricalCache is the persistent, daily-bucketed PricePoint cache. It is
// authoritative and never expires. Cache hits never touch the network or
// the rate limiter (spec.md §4.B).
type HistoricalCache struct {
	mu     sync.RWMutex
	path   string
	points map[string]model.PricePoint
}

// NewHistoricalCache loads (or initializes) the historical cache file.
func NewHistoricalCache(path string) (*HistoricalCache, error) {
	c := &HistoricalCache{path: path, points: map[string]model.PricePoint{}}
	if path == "" {
		return c, nil
	}
	var doc historicalCacheDoc
	ok, err := calltrackio.ReadJSONIfExists(path, &doc)
	if err != nil {
		return nil, err
	}
	if ok {
		if doc.Version != historicalCacheVersion {
			return nil, &Error{Kind: KindProviderAllFailed, Cause: errVersionMismatch(path, doc.Version)}
		}
		c.points = doc.Points
	}
	return c, nil
}

func dayBucketKey(tokenKey string, ts time.Time) string {
	bucket := ts.UTC().Truncate(24 * time.Hour)
	return tokenKey + "|" + bucket.Format(time.RFC3339)
}

// Get returns the cached price point for tokenKey at ts's daily bucket.
func (c *HistoricalCache) Get(tokenKey string, ts time.Time) (model.PricePoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.points[dayBucketKey(tokenKey, ts)]
	return p, ok
}

// Put stores a price point, keyed by its daily bucket. Existing entries are
// immutable — a Put for an already-cached bucket is a no-op, matching
// spec.md's "immutable once written".
func (c *HistoricalCache) Put(p model.PricePoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := dayBucketKey(p.TokenKey, p.TimestampBucket)
	if _, exists := c.points[key]; exists {
		return
	}
	c.points[key] = p
}

// Flush atomically rewrites the cache file with the current in-memory
// contents. The Service calls it after every forward-window fetch; points
// stored by GetAt alone reach disk at the next flush.
func (c *HistoricalCache) Flush() error {
	if c.path == "" {
		return nil
	}
	c.mu.RLock()
	snapshot := make(map[string]model.PricePoint, len(c.points))
	for k, v := range c.points {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	doc := historicalCacheDoc{Version: historicalCacheVersion, Points: snapshot}
	return calltrackio.WriteJSONAtomic(c.path, doc)
}

// HotCache is the short-TTL (5 minute) current-price cache. It is backed by
// redis when configured, otherwise an in-process map — spec.md §4.B: "a
// short in-memory TTL (5 minutes) is sufficient" for current prices.
type HotCache struct {
	ttl   time.Duration
	redis *redis.Client

	mu      sync.Mutex
	local   map[string]hotEntry
}

type hotEntry struct {
	reading PriceReading
	at      time.Time
}

// NewHotCache builds a HotCache. If redisAddr is non-empty, a redis client
// is used as the backing store (CRun0.9's redis-backed cache pattern);
// otherwise an in-process map is used.
func NewHotCache(redisAddr string, ttl time.Duration) *HotCache {
	h := &HotCache{ttl: ttl, local: map[string]hotEntry{}}
	if redisAddr != "" {
		h.redis = redis.NewClient(&redis.Options{Addr: redisAddr})
	}
	return h
}

// Get returns a cached current-price reading if present and not expired.
func (h *HotCache) Get(ctx context.Context, tokenKey string) (PriceReading, bool) {
	if h.redis != nil {
		val, err := h.redis.Get(ctx, "calltrack:price:"+tokenKey).Result()
		if err == redis.Nil {
			return PriceReading{}, false
		}
		if err != nil {
			log.Warn().Err(err).Msg("hot cache redis get failed, falling back to miss")
			return PriceReading{}, false
		}
		reading, ok := decodeHotEntry(val)
		return reading, ok
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.local[tokenKey]
	if !ok || time.Since(e.at) > h.ttl {
		return PriceReading{}, false
	}
	return e.reading, true
}

// Set stores a current-price reading with the configured TTL.
func (h *HotCache) Set(ctx context.Context, tokenKey string, reading PriceReading) {
	if h.redis != nil {
		encoded := encodeHotEntry(reading)
		if err := h.redis.Set(ctx, "calltrack:price:"+tokenKey, encoded, h.ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("hot cache redis set failed")
		}
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.local[tokenKey] = hotEntry{reading: reading, at: time.Now()}
}
