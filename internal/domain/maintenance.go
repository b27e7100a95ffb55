package domain

import "time"

// MaintenanceStatus tracks the lifecycle of an auditable maintenance run.
type MaintenanceStatus string

const (
	MaintenanceRunning   MaintenanceStatus = "running"
	MaintenanceCompleted MaintenanceStatus = "completed"
	MaintenanceFailed    MaintenanceStatus = "failed"
)

// String returns the string representation of MaintenanceStatus.
func (s MaintenanceStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s MaintenanceStatus) IsValid() bool {
	return s == MaintenanceRunning || s == MaintenanceCompleted || s == MaintenanceFailed
}

// MaintenanceRun is the audit row for one purge/backfill invocation.
// RunID is deterministic over the run parameters, which is what makes
// re-running the same maintenance window a no-op instead of a second
// destructive pass.
type MaintenanceRun struct {
	ID           int64
	RunID        string // hex SHA-256 over the run parameters
	WindowStart  time.Time
	WindowEnd    time.Time
	AnomalyTypes []AnomalyType
	Reason       string
	Status       MaintenanceStatus
	Purged       int64
	Backfilled   int64
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}
