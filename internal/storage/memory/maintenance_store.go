package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/storage"
)

// MaintenanceStore is an in-memory implementation of storage.MaintenanceStore.
type MaintenanceStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.MaintenanceRun // keyed by run_id
	nextID int64
}

// NewMaintenanceStore creates a new in-memory maintenance store.
func NewMaintenanceStore() *MaintenanceStore {
	return &MaintenanceStore{
		data: make(map[string]*domain.MaintenanceRun),
	}
}

// Claim registers a run as running if its run_id was never seen.
func (s *MaintenanceStore) Claim(_ context.Context, run *domain.MaintenanceRun) (bool, *domain.MaintenanceRun, error) {
	if run == nil || run.RunID == "" || !run.Status.IsValid() {
		return false, nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[run.RunID]; ok {
		copy := *existing
		copy.AnomalyTypes = append([]domain.AnomalyType(nil), existing.AnomalyTypes...)
		return false, &copy, nil
	}

	s.nextID++
	copy := *run
	copy.ID = s.nextID
	copy.AnomalyTypes = append([]domain.AnomalyType(nil), run.AnomalyTypes...)
	s.data[run.RunID] = &copy
	return true, nil, nil
}

// Complete marks a running run as completed with its final counts.
func (s *MaintenanceStore) Complete(_ context.Context, runID string, purged, backfilled int64) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.data[runID]
	if !ok {
		return storage.ErrNotFound
	}
	if run.Status != domain.MaintenanceRunning {
		return fmt.Errorf("run %s is %s: %w", runID, run.Status, storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	run.Status = domain.MaintenanceCompleted
	run.Purged = purged
	run.Backfilled = backfilled
	run.FinishedAt = &now
	return nil
}

// Fail marks a running run as failed with a reason.
func (s *MaintenanceStore) Fail(_ context.Context, runID string, reason string) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.data[runID]
	if !ok {
		return storage.ErrNotFound
	}
	if run.Status != domain.MaintenanceRunning {
		return fmt.Errorf("run %s is %s: %w", runID, run.Status, storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	run.Status = domain.MaintenanceFailed
	run.Error = reason
	run.FinishedAt = &now
	return nil
}

// Get retrieves a run by run_id.
func (s *MaintenanceStore) Get(_ context.Context, runID string) (*domain.MaintenanceRun, error) {
	if runID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	copy := *run
	copy.AnomalyTypes = append([]domain.AnomalyType(nil), run.AnomalyTypes...)
	return &copy, nil
}

var _ storage.MaintenanceStore = (*MaintenanceStore)(nil)
