package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/tierd/internal/domain/model"
)

// MemoryStore is a mutex-guarded in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]model.DriverProgression
	closed bool
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]model.DriverProgression)}
}

// Create implements Store.Create.
func (s *MemoryStore) Create(ctx context.Context, p model.DriverProgression) (out model.DriverProgression, err error) {
	defer func(start time.Time) { observe(BackendMemory, "create", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.DriverProgression{}, ErrClosed
	}
	if _, ok := s.byID[p.DriverID]; ok {
		return model.DriverProgression{}, ErrAlreadyExists
	}
	p.Version = 1
	s.byID[p.DriverID] = p.Clone()
	return p.Clone(), nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, driverID string) (out model.DriverProgression, err error) {
	defer func(start time.Time) { observe(BackendMemory, "get", start, err) }(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[driverID]
	if !ok {
		return model.DriverProgression{}, ErrNotFound
	}
	return p.Clone(), nil
}

// ActiveIDs implements Store.ActiveIDs.
func (s *MemoryStore) ActiveIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.byID))
	for id, p := range s.byID {
		if p.Active {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

// CompareAndSwap implements Store.CompareAndSwap.
func (s *MemoryStore) CompareAndSwap(ctx context.Context, p model.DriverProgression, expected int64) (out model.DriverProgression, err error) {
	defer func(start time.Time) { observe(BackendMemory, "compare_and_swap", start, err) }(time.Now())

	if err := ctx.Err(); err != nil {
		return model.DriverProgression{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[p.DriverID]
	if !ok {
		return model.DriverProgression{}, ErrNotFound
	}
	if cur.Version != expected {
		return model.DriverProgression{}, ErrVersionConflict
	}
	p.Version = expected + 1
	s.byID[p.DriverID] = p.Clone()
	return p.Clone(), nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// CountByLevel implements Store.CountByLevel.
func (s *MemoryStore) CountByLevel(ctx context.Context) (map[int]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]int)
	for _, p := range s.byID {
		if p.Active {
			out[p.CurrentLevelRank]++
		}
	}
	return out, nil
}

// RanksInUse implements Store.RanksInUse.
func (s *MemoryStore) RanksInUse(ctx context.Context) (map[int]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]int)
	for _, p := range s.byID {
		out[p.CurrentLevelRank]++
	}
	return out, nil
}

// Close implements Store.Close.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
