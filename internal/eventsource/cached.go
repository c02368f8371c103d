package eventsource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/cache"
	"github.com/dennisdiepolder/qcdash/internal/metrics"
	"github.com/dennisdiepolder/qcdash/internal/types"
	"github.com/rs/zerolog"
)

// CacheKeyPrefix namespaces event pages in the shared cache
const CacheKeyPrefix = "qcdash:events:"

// CachedSource serves recent identical queries from a TTL cache. Results may
// be up to ttl old; failed fetches are never cached.
type CachedSource struct {
	next   Source
	store  cache.Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedSource wraps next with store
func NewCachedSource(next Source, store cache.Store, ttl time.Duration, logger zerolog.Logger) *CachedSource {
	return &CachedSource{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "event_cache").Logger(),
	}
}

// Fetch returns cached events or queries the wrapped source
func (c *CachedSource) Fetch(ctx context.Context, q Query) ([]types.PresenceEvent, error) {
	m := metrics.Get()
	key := cacheKey(q)

	if data, ok, err := c.store.Get(ctx, key); err != nil {
		// a broken cache must not break reports
		c.logger.Warn().Err(err).Msg("cache read failed, querying source")
	} else if ok {
		var events []types.PresenceEvent
		if err := json.Unmarshal(data, &events); err == nil {
			m.RecordCacheHit()
			return events, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}
	m.RecordCacheMiss()

	events, err := c.next.Fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(events); err == nil {
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn().Err(err).Msg("cache write failed")
		}
	}
	return events, nil
}

// Invalidate drops every cached event page
func (c *CachedSource) Invalidate(ctx context.Context) error {
	return c.store.DeletePrefix(ctx, CacheKeyPrefix)
}

func cacheKey(q Query) string {
	sum := sha256.Sum256([]byte(q.Key()))
	return CacheKeyPrefix + hex.EncodeToString(sum[:])
}
