// Package batch accumulates bound records into windows and executes each
// window against the database, mapping the driver's positional results
// back to one outcome per record.
package batch

import (
	"context"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// Op is how a bound record is written.
type Op int

const (
	// OpInsert executes a plain INSERT.
	OpInsert Op = iota
	// OpUpsert executes a single-statement upsert.
	OpUpsert
	// OpProbe runs an existence probe, then UPDATE or INSERT.
	OpProbe
)

// String returns the string representation of Op.
func (o Op) String() string {
	switch o {
	case OpUpsert:
		return "upsert"
	case OpProbe:
		return "probe"
	default:
		return "insert"
	}
}

// Statement is one record bound to its SQL. SQL uses ? placeholders.
// For OpProbe, SQL and Args are the insert used when the probe finds no row.
type Statement struct {
	Op   Op
	SQL  string
	Args []any

	Probe      string
	ProbeArgs  []any
	Update     string
	UpdateArgs []any
}

// Entry is a coerced record waiting in a window.
type Entry struct {
	Record core.Record
	// Values holds the coerced value of every matched column, by column name.
	Values map[string]core.TypedValue
	// Upsert is set when the record carries the full conflict key.
	Upsert bool
}

// Binder binds a whole window at flush time, once the window's active
// columns are known. It returns one statement per entry, in order.
type Binder interface {
	Bind(entries []Entry) ([]Statement, error)
}

// BinderFunc adapts a function to Binder.
type BinderFunc func(entries []Entry) ([]Statement, error)

// Bind calls f(entries).
func (f BinderFunc) Bind(entries []Entry) ([]Statement, error) { return f(entries) }

// Runner executes bound statements in order. On failure it returns a
// *core.BatchError carrying the counts of the statements that completed.
type Runner interface {
	Run(ctx context.Context, stmts []Statement) ([]int64, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, stmts []Statement) ([]int64, error)

// Run calls f(ctx, stmts).
func (f RunnerFunc) Run(ctx context.Context, stmts []Statement) ([]int64, error) { return f(ctx, stmts) }

// Strategy selects when a window is flushed.
type Strategy int

const (
	// ByRows flushes every Threshold records.
	ByRows Strategy = iota
	// ByProfile flushes once per document.
	ByProfile
)

// String returns the string representation of Strategy.
func (s Strategy) String() string {
	if s == ByProfile {
		return "by-profile"
	}
	return "by-rows"
}

// ParseStrategy parses "by-rows" or "by-profile". The empty string is ByRows.
func ParseStrategy(s string) (Strategy, bool) {
	switch s {
	case "", "by-rows", "rows":
		return ByRows, true
	case "by-profile", "profile":
		return ByProfile, true
	default:
		return ByRows, false
	}
}

// State is the executor's window state.
type State int

// Window states.
const (
	StateEmpty State = iota
	StateAccumulating
	StateFlushing
	StateFlushed
	StatePartiallyFailed
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "ACCUMULATING"
	case StateFlushing:
		return "FLUSHING"
	case StateFlushed:
		return "FLUSHED"
	case StatePartiallyFailed:
		return "PARTIALLY_FAILED"
	default:
		return "EMPTY"
	}
}

// Result is the outcome of one flush.
type Result struct {
	Batch    int // 1-based flush number
	Entries  []Entry
	Outcomes []core.Outcome // aligned with Entries
	State    State          // StateFlushed or StatePartiallyFailed
}

// Succeeded counts SUCCESS outcomes.
func (r *Result) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == core.StatusSuccess {
			n++
		}
	}
	return n
}
