package memory

import (
	"context"
	"sort"
	"sync"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// BaselineStore is an in-memory implementation of storage.BaselineStore.
// Rows are append-only; Latest resolves by computed_at with ID as the
// tiebreaker so repeated recomputation in one instant stays deterministic.
type BaselineStore struct {
	mu     sync.RWMutex
	rows   []*domain.Baseline
	nextID int64
}

// NewBaselineStore creates a new in-memory baseline store.
func NewBaselineStore() *BaselineStore {
	return &BaselineStore{}
}

// Insert adds a new baseline row.
func (s *BaselineStore) Insert(_ context.Context, b *domain.Baseline) error {
	if b == nil || b.ObjectID <= 0 || !b.MetricType.IsValid() || !b.Source.IsValid() || b.SampleCount < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	copy := *b
	copy.ID = s.nextID
	s.rows = append(s.rows, &copy)
	return nil
}

// Latest retrieves the most recently computed baseline for a stream.
func (s *BaselineStore) Latest(_ context.Context, objectID int, metric domain.MetricType, source domain.Source) (*domain.Baseline, error) {
	if !metric.IsValid() || !source.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Baseline
	for _, b := range s.rows {
		if b.ObjectID != objectID || b.MetricType != metric || b.Source != source {
			continue
		}
		if latest == nil || b.ComputedAt.After(latest.ComputedAt) ||
			(b.ComputedAt.Equal(latest.ComputedAt) && b.ID > latest.ID) {
			latest = b
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

// History retrieves up to limit baseline rows for a stream, newest first.
func (s *BaselineStore) History(_ context.Context, objectID int, metric domain.MetricType, source domain.Source, limit int) ([]*domain.Baseline, error) {
	if !metric.IsValid() || !source.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Baseline
	for _, b := range s.rows {
		if b.ObjectID == objectID && b.MetricType == metric && b.Source == source {
			copy := *b
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ComputedAt.Equal(result[j].ComputedAt) {
			return result[i].ComputedAt.After(result[j].ComputedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.BaselineStore = (*BaselineStore)(nil)
