// Package state journals upsert runs in a local SQLite database.
package state

import (
	"context"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// RunSpec describes a run before it starts.
type RunSpec struct {
	Target   string
	Dialect  string
	Table    string
	Strategy string
}

// RunCounts are the outcome totals recorded when a run ends.
type RunCounts struct {
	Records   int
	Succeeded int
	Failed    int
	AppErrors int
	Batches   int
}

// Store records runs. SQLiteStore is the only implementation; commands
// depend on the interface so they can be tested without a database.
type Store interface {
	CreateRun(ctx context.Context, in RunSpec) (*core.Run, error)
	CompleteRun(ctx context.Context, id string, status core.RunStatus, counts RunCounts, errMsg string) error
	GetRun(ctx context.Context, id string) (*core.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*core.Run, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
