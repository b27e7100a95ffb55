package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
// The map key is the fingerprint, which is what enforces at most one
// live row per fingerprint.
type SignalStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.Signal // keyed by fingerprint
	nextID int64
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.Signal),
	}
}

// UpsertByFingerprint writes a signal with at-most-one-live-row semantics.
func (s *SignalStore) UpsertByFingerprint(_ context.Context, sig *domain.Signal) (storage.UpsertOutcome, error) {
	if sig == nil || sig.Fingerprint == "" || !sig.AnomalyType.IsValid() ||
		!sig.Severity.IsValid() || !sig.Category.IsValid() {
		return "", storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[sig.Fingerprint]
	if !ok {
		s.nextID++
		copy := *sig
		copy.ID = s.nextID
		s.data[sig.Fingerprint] = &copy
		return storage.UpsertCreated, nil
	}

	// A live row wins over the incoming detection; only an expired row
	// is refreshed in place.
	if existing.ExpiresAt.After(sig.DetectedAt) {
		return storage.UpsertDeduplicated, nil
	}

	copy := *sig
	copy.ID = existing.ID
	copy.Processed = false
	s.data[sig.Fingerprint] = &copy
	return storage.UpsertRefreshed, nil
}

// GetByFingerprint retrieves a signal by its fingerprint.
func (s *SignalStore) GetByFingerprint(_ context.Context, fingerprint string) (*domain.Signal, error) {
	if fingerprint == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.data[fingerprint]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copy := *sig
	return &copy, nil
}

// List retrieves signals matching the filter, newest first.
func (s *SignalStore) List(_ context.Context, f storage.SignalFilter) ([]*domain.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Signal
	for _, sig := range s.data {
		if !matchesFilter(sig, f) {
			continue
		}
		copy := *sig
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].DetectedAt.Equal(result[j].DetectedAt) {
			return result[i].DetectedAt.After(result[j].DetectedAt)
		}
		return result[i].ID > result[j].ID
	})

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func matchesFilter(sig *domain.Signal, f storage.SignalFilter) bool {
	if f.ObjectID != nil && sig.ObjectID != *f.ObjectID {
		return false
	}
	if f.AnomalyType != nil && sig.AnomalyType != *f.AnomalyType {
		return false
	}
	if f.Category != nil && sig.Category != *f.Category {
		return false
	}
	if f.MinSeverity != nil && sig.Severity.Rank() < f.MinSeverity.Rank() {
		return false
	}
	if f.Source != nil && sig.Source != *f.Source {
		return false
	}
	if f.From != nil && sig.DetectedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !sig.DetectedAt.Before(*f.To) {
		return false
	}
	if f.LiveAt != nil && !sig.ExpiresAt.After(*f.LiveAt) {
		return false
	}
	return true
}

// MarkProcessed flags a signal as consumed by the downstream feed.
func (s *SignalStore) MarkProcessed(_ context.Context, fingerprint string) error {
	if fingerprint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sig, ok := s.data[fingerprint]
	if !ok {
		return storage.ErrNotFound
	}
	sig.Processed = true
	return nil
}

// DeleteWindow removes signals with detected_at in [from, to) and an
// anomaly type in types (all types when empty).
func (s *SignalStore) DeleteWindow(_ context.Context, from, to time.Time, types []domain.AnomalyType) (int64, error) {
	typeSet := make(map[domain.AnomalyType]struct{}, len(types))
	for _, t := range types {
		typeSet[t] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, sig := range s.data {
		if sig.DetectedAt.Before(from) || !sig.DetectedAt.Before(to) {
			continue
		}
		if len(typeSet) > 0 {
			if _, ok := typeSet[sig.AnomalyType]; !ok {
				continue
			}
		}
		delete(s.data, key)
		removed++
	}
	return removed, nil
}

var _ storage.SignalStore = (*SignalStore)(nil)
