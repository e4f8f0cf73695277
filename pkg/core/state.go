package core

import "time"

// RunStatus represents the status of an upsert run.
type RunStatus string

// Run status values.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one journaled upsert invocation against one target table.
type Run struct {
	ID          string
	Target      string
	Dialect     string
	Table       string
	Strategy    string
	Status      RunStatus
	Records     int
	Succeeded   int
	Failed      int
	AppErrors   int
	Batches     int
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}
