package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Store is a TTL key/value cache for fetched upstream data
type Store interface {
	// Get returns the cached value and whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix
	DeletePrefix(ctx context.Context, prefix string) error
	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
	// Close releases the backend
	Close() error
}

// NewStore returns a Redis-backed store when redisURL is set, otherwise an
// in-process memory store.
func NewStore(ctx context.Context, redisURL string, logger zerolog.Logger) (Store, error) {
	if redisURL == "" {
		logger.Info().Msg("REDIS_URL not set, using in-memory cache")
		return NewMemoryStore(DefaultMemoryCapacity), nil
	}
	return NewRedisStore(ctx, redisURL, logger)
}
