package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// DivergenceStore is an in-memory implementation of storage.DivergenceStore.
type DivergenceStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.DivergenceRecord // keyed by composite key
	nextID int64
}

// NewDivergenceStore creates a new in-memory divergence store.
func NewDivergenceStore() *DivergenceStore {
	return &DivergenceStore{
		data: make(map[string]*domain.DivergenceRecord),
	}
}

// divergenceKey generates a unique key for an (object, metric) pair.
func divergenceKey(objectID int, metric domain.MetricType) string {
	return fmt.Sprintf("%d|%s", objectID, metric)
}

// Upsert inserts or replaces the verdict row for (object_id, metric).
func (s *DivergenceStore) Upsert(_ context.Context, rec *domain.DivergenceRecord) error {
	if rec == nil || rec.ObjectID <= 0 || !rec.MetricType.IsValid() || !rec.Verdict.IsValid() {
		return storage.ErrInvalidInput
	}

	key := divergenceKey(rec.ObjectID, rec.MetricType)

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *rec
	if existing, ok := s.data[key]; ok {
		copy.ID = existing.ID
	} else {
		s.nextID++
		copy.ID = s.nextID
	}
	s.data[key] = &copy
	return nil
}

// Get retrieves the verdict for one (object, metric) pair.
func (s *DivergenceStore) Get(_ context.Context, objectID int, metric domain.MetricType) (*domain.DivergenceRecord, error) {
	if !metric.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[divergenceKey(objectID, metric)]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copy := *rec
	return &copy, nil
}

// ListForObject retrieves all verdict rows for an object.
func (s *DivergenceStore) ListForObject(_ context.Context, objectID int) ([]*domain.DivergenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DivergenceRecord
	for _, rec := range s.data {
		if rec.ObjectID == objectID {
			copy := *rec
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].MetricType < result[j].MetricType
	})

	return result, nil
}

var _ storage.DivergenceStore = (*DivergenceStore)(nil)
