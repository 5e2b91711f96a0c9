package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/sailtrack/internal/domain/model"
	"github.com/okian/sailtrack/pkg/metrics"
)

// MemoryStore is an in-memory Store safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	ids    []model.SnapshotID // ascending
	tables map[model.SnapshotID]model.SnapshotTable
	limit  int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{tables: make(map[model.SnapshotID]model.SnapshotTable)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, table model.SnapshotTable) (bool, error) {
	if err := table.ID.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, replaced := s.tables[table.ID]
	s.tables[table.ID] = table
	if !replaced {
		i := sort.Search(len(s.ids), func(i int) bool { return !s.ids[i].Less(table.ID) })
		s.ids = append(s.ids, model.SnapshotID{})
		copy(s.ids[i+1:], s.ids[i:])
		s.ids[i] = table.ID
	}
	s.evict()
	s.observe()
	return replaced, nil
}

// evict drops the oldest tables beyond the retention limit.
func (s *MemoryStore) evict() {
	if s.limit <= 0 || len(s.ids) <= s.limit {
		return
	}
	drop := len(s.ids) - s.limit
	for _, id := range s.ids[:drop] {
		delete(s.tables, id)
	}
	s.ids = append(s.ids[:0:0], s.ids[drop:]...)
}

func (s *MemoryStore) observe() {
	boats := make(map[string]struct{})
	for _, id := range s.ids {
		t := s.tables[id]
		for i := range t.Records {
			boats[t.Records[i].BoatCode] = struct{}{}
		}
	}
	metrics.UpdateBoatsTracked(len(boats))
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id model.SnapshotID) (model.SnapshotTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[id]
	if !ok {
		return model.SnapshotTable{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, nil
}

// Has implements Store.
func (s *MemoryStore) Has(_ context.Context, id model.SnapshotID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[id]
	return ok
}

// IDs implements Store.
func (s *MemoryStore) IDs(_ context.Context) []model.SnapshotID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SnapshotID, len(s.ids))
	copy(out, s.ids)
	return out
}

// Tables implements Store.
func (s *MemoryStore) Tables(_ context.Context) []model.SnapshotTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SnapshotTable, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.tables[id])
	}
	return out
}

// Latest implements Store.
func (s *MemoryStore) Latest(_ context.Context) (model.SnapshotTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.ids) == 0 {
		return model.SnapshotTable{}, ErrNotFound
	}
	return s.tables[s.ids[len(s.ids)-1]], nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
