package cache

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultMemoryCapacity bounds the in-process cache. The least recently
// used entry is evicted once it is full.
const DefaultMemoryCapacity = 10000

// MemoryStore keeps cached values in process memory. Expired entries are
// swept by a background loop until Close is called.
type MemoryStore struct {
	items *ttlcache.Cache[string, []byte]
}

// NewMemoryStore creates a memory store holding at most capacity entries.
// A non-positive capacity uses DefaultMemoryCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	items := ttlcache.New[string, []byte](
		ttlcache.WithCapacity[string, []byte](uint64(capacity)),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &MemoryStore{items: items}
}

// Get returns a copy of a live entry
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := s.items.Get(key)
	if item == nil {
		return nil, false, nil
	}
	value := item.Value()
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set stores a copy of value. A non-positive ttl keeps it until evicted,
// as Redis does.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	s.items.Set(key, stored, ttl)
	return nil
}

// DeletePrefix drops every key starting with prefix
func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	for _, key := range s.items.Keys() {
		if strings.HasPrefix(key, prefix) {
			s.items.Delete(key)
		}
	}
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close stops the expiry loop
func (s *MemoryStore) Close() error {
	s.items.Stop()
	return nil
}
