package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// TelemetryStore is an in-memory implementation of storage.TelemetryStore.
type TelemetryStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.TelemetryRecord // keyed by composite key
	nextID int64
}

// NewTelemetryStore creates a new in-memory telemetry store.
func NewTelemetryStore() *TelemetryStore {
	return &TelemetryStore{
		data: make(map[string]*domain.TelemetryRecord),
	}
}

// telemetryKey generates the idempotency key for a record.
func telemetryKey(objectID int, epoch time.Time, source domain.Source) string {
	return fmt.Sprintf("%d|%d|%s", objectID, epoch.UTC().UnixMicro(), source)
}

// Upsert adds a record if no row exists for (object_id, epoch, source).
func (s *TelemetryStore) Upsert(_ context.Context, rec *domain.TelemetryRecord) (bool, error) {
	if rec == nil || rec.ObjectID <= 0 || rec.Epoch.IsZero() || !rec.Source.IsValid() {
		return false, storage.ErrInvalidInput
	}

	key := telemetryKey(rec.ObjectID, rec.Epoch, rec.Source)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return false, nil
	}

	s.nextID++
	copy := *rec
	copy.ID = s.nextID
	s.data[key] = &copy
	return true, nil
}

// Range retrieves one object's records from a single source with epoch in
// [from, to], ordered by epoch ASC.
func (s *TelemetryStore) Range(_ context.Context, objectID int, source domain.Source, from, to time.Time) ([]*domain.TelemetryRecord, error) {
	if !source.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TelemetryRecord
	for _, rec := range s.data {
		if rec.ObjectID != objectID || rec.Source != source {
			continue
		}
		if rec.Epoch.Before(from) || rec.Epoch.After(to) {
			continue
		}
		copy := *rec
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Epoch.Before(result[j].Epoch)
	})

	return result, nil
}

// Latest retrieves the most recent record by epoch for one object from a
// single source.
func (s *TelemetryStore) Latest(_ context.Context, objectID int, source domain.Source) (*domain.TelemetryRecord, error) {
	if !source.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.TelemetryRecord
	for _, rec := range s.data {
		if rec.ObjectID != objectID || rec.Source != source {
			continue
		}
		if latest == nil || rec.Epoch.After(latest.Epoch) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	copy := *latest
	return &copy, nil
}

// ListObjectIDs retrieves the distinct objects a source has records for.
func (s *TelemetryStore) ListObjectIDs(_ context.Context, source domain.Source) ([]int, error) {
	if !source.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]struct{})
	for _, rec := range s.data {
		if rec.Source == source {
			seen[rec.ObjectID] = struct{}{}
		}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// DeleteBefore removes records with epoch before the cutoff.
func (s *TelemetryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, rec := range s.data {
		if rec.Epoch.Before(cutoff) {
			delete(s.data, key)
			removed++
		}
	}
	return removed, nil
}

var _ storage.TelemetryStore = (*TelemetryStore)(nil)
