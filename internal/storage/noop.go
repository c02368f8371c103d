package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/dennisdiepolder/qcdash/internal/types"
)

// Store persists activity log entries
type Store interface {
	Append(ctx context.Context, entry types.ActivityEntry) error
	ListByDate(ctx context.Context, dateKey string) ([]types.ActivityEntry, error)
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) Append(_ context.Context, _ types.ActivityEntry) error { return nil }
func (s *NoopStore) ListByDate(_ context.Context, _ string) ([]types.ActivityEntry, error) {
	return []types.ActivityEntry{}, nil
}

// MemoryStore keeps entries in process, for single node setups and tests
type MemoryStore struct {
	mu     sync.RWMutex
	byDate map[string][]types.ActivityEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byDate: make(map[string][]types.ActivityEntry)}
}

func (s *MemoryStore) Append(_ context.Context, entry types.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byDate[entry.DateKey] = append(s.byDate[entry.DateKey], entry)
	return nil
}

// ListByDate returns the day's entries newest first
func (s *MemoryStore) ListByDate(_ context.Context, dateKey string) ([]types.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ActivityEntry, len(s.byDate[dateKey]))
	copy(out, s.byDate[dateKey])
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortKey > out[j].SortKey })
	return out, nil
}
