package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// MetricSampleStore is an in-memory implementation of
// storage.MetricSampleStore, used in tests and single-process setups
// where no ClickHouse is available.
type MetricSampleStore struct {
	mu   sync.RWMutex
	rows []*domain.MetricSample
}

// NewMetricSampleStore creates a new in-memory metric sample store.
func NewMetricSampleStore() *MetricSampleStore {
	return &MetricSampleStore{}
}

// InsertBatch adds multiple samples.
func (s *MetricSampleStore) InsertBatch(_ context.Context, samples []*domain.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	for _, sample := range samples {
		if sample == nil || sample.ObjectID <= 0 || !sample.Source.IsValid() || !sample.MetricType.IsValid() {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sample := range samples {
		copy := *sample
		s.rows = append(s.rows, &copy)
	}
	return nil
}

// Series retrieves one stream's samples with epoch in [from, to],
// ordered by epoch ASC.
func (s *MetricSampleStore) Series(_ context.Context, objectID int, source domain.Source, metric domain.MetricType, from, to time.Time) ([]*domain.MetricSample, error) {
	if !source.IsValid() || !metric.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MetricSample
	for _, sample := range s.rows {
		if sample.ObjectID != objectID || sample.Source != source || sample.MetricType != metric {
			continue
		}
		if sample.Epoch.Before(from) || sample.Epoch.After(to) {
			continue
		}
		copy := *sample
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Epoch.Before(result[j].Epoch)
	})

	return result, nil
}

var _ storage.MetricSampleStore = (*MetricSampleStore)(nil)
