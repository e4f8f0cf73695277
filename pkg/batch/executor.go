package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// Options configures an Executor.
type Options struct {
	Strategy Strategy
	// Threshold is the window size for ByRows. Ignored for ByProfile.
	Threshold int
	// Binder binds each window to SQL at flush time. Required.
	Binder Binder
	// Classifier extracts driver error codes and detects lost connections.
	Classifier core.ErrorClassifier
	Logger     *slog.Logger
	Tracer     trace.Tracer
	// OnTransition is called on every state change.
	OnTransition func(from, to State)
}

// Executor is the batch window state machine:
//
//	EMPTY -> ACCUMULATING -> FLUSHING -> FLUSHED | PARTIALLY_FAILED -> EMPTY
//
// It is not safe for concurrent use.
type Executor struct {
	runner Runner
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer

	window  []Entry
	state   State
	batches int
}

// NewExecutor creates an executor in the EMPTY state.
func NewExecutor(runner Runner, opts Options) (*Executor, error) {
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if opts.Binder == nil {
		return nil, errors.New("binder is required")
	}
	if opts.Strategy == ByRows && opts.Threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive for %s, got %d", ByRows, opts.Threshold)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("leapupsert/batch")
	}

	return &Executor{
		runner: runner,
		opts:   opts,
		logger: logger,
		tracer: tracer,
	}, nil
}

// State returns the current state.
func (e *Executor) State() State { return e.state }

// Len returns the number of records in the open window.
func (e *Executor) Len() int { return len(e.window) }

// Batches returns the number of flushes issued so far.
func (e *Executor) Batches() int { return e.batches }

// Add accepts a record. When the open window is full (ByRows) or belongs
// to another document (ByProfile) it is flushed first and its result is
// returned; the new record starts the next window.
func (e *Executor) Add(ctx context.Context, entry Entry) (*Result, error) {
	var res *Result
	if e.full(entry) {
		var err error
		res, err = e.Flush(ctx)
		if err != nil {
			return nil, err
		}
	}

	e.window = append(e.window, entry)
	if e.state == StateEmpty {
		e.transition(StateAccumulating)
	}
	return res, nil
}

func (e *Executor) full(next Entry) bool {
	if len(e.window) == 0 {
		return false
	}
	if e.opts.Strategy == ByProfile {
		return e.window[0].Record.DocumentID != next.Record.DocumentID
	}
	return len(e.window) >= e.opts.Threshold
}

// Discard drops the open window without executing it and returns the
// number of dropped records.
func (e *Executor) Discard() int {
	n := len(e.window)
	e.window = nil
	if e.state != StateEmpty {
		e.transition(StateEmpty)
	}
	if n > 0 {
		e.logger.Debug("discarded window", "records", n)
	}
	return n
}

// Flush executes the open window. It returns nil when the window is empty.
//
// Once started, a flush is not cancelled by ctx. Record-level failures are
// reported in the Result; the returned error is run-fatal (lost connection
// or a window that could not be bound) and the window is dropped.
func (e *Executor) Flush(ctx context.Context) (*Result, error) {
	if len(e.window) == 0 {
		return nil, nil
	}

	entries := e.window
	e.window = nil
	e.batches++
	batchNo := e.batches
	e.transition(StateFlushing)

	ctx, span := e.tracer.Start(context.WithoutCancel(ctx), "batch.flush")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.number", batchNo),
		attribute.Int("batch.records", len(entries)),
		attribute.String("batch.strategy", e.opts.Strategy.String()),
	)

	stmts, err := e.opts.Binder.Bind(entries)
	if err == nil && len(stmts) != len(entries) {
		err = fmt.Errorf("binder returned %d statements for %d records", len(stmts), len(entries))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bind failed")
		e.transition(StateEmpty)
		return nil, fmt.Errorf("bind batch %d: %w", batchNo, err)
	}

	counts, runErr := e.runner.Run(ctx, stmts)
	if runErr != nil {
		span.RecordError(runErr)
		info := e.classify(runErr)
		if info.Connectivity || errors.Is(runErr, core.ErrConnectivity) {
			span.SetStatus(codes.Error, "connection lost")
			e.transition(StateEmpty)
			e.logger.Error("batch aborted: connection lost", "batch", batchNo, "records", len(entries), "error", runErr.Error())
			return nil, asConnectivity(runErr)
		}
	}

	res := e.mapResult(batchNo, entries, counts, runErr)
	if res.State == StatePartiallyFailed {
		span.SetStatus(codes.Error, "partial failure")
	}
	span.SetAttributes(attribute.Int("batch.succeeded", res.Succeeded()))

	e.logger.Debug("flushed batch",
		"batch", batchNo,
		"records", len(entries),
		"succeeded", res.Succeeded(),
		"state", res.State.String())

	e.transition(res.State)
	e.transition(StateEmpty)
	return res, nil
}

// mapResult assigns one outcome per entry from the driver's positional
// counts. Without positional detail the whole window fails.
func (e *Executor) mapResult(batchNo int, entries []Entry, counts []int64, runErr error) *Result {
	res := &Result{
		Batch:    batchNo,
		Entries:  entries,
		Outcomes: make([]core.Outcome, len(entries)),
		State:    StateFlushed,
	}

	succeeded := len(entries)
	var code, message string
	if runErr != nil {
		res.State = StatePartiallyFailed
		succeeded = 0
		var batchErr *core.BatchError
		if errors.As(runErr, &batchErr) {
			succeeded = min(len(batchErr.Counts), len(entries))
			counts = batchErr.Counts
		}
		code = e.classify(runErr).Code
		message = runErr.Error()
	}

	for i, entry := range entries {
		out := core.Outcome{Record: entry.Record, Batch: batchNo}
		if i < succeeded {
			out.Status = core.StatusSuccess
			if i < len(counts) {
				out.AffectedRows = counts[i]
			}
		} else {
			out.Status = core.StatusFailure
			out.Code = code
			out.Message = message
		}
		res.Outcomes[i] = out
	}
	return res
}

func (e *Executor) classify(err error) core.ErrorInfo {
	if e.opts.Classifier == nil {
		return core.ErrorInfo{}
	}
	return e.opts.Classifier.Classify(err)
}

func (e *Executor) transition(to State) {
	from := e.state
	e.state = to
	if e.opts.OnTransition != nil && from != to {
		e.opts.OnTransition(from, to)
	}
}

func asConnectivity(err error) error {
	var connErr *core.ConnectivityError
	if errors.As(err, &connErr) {
		return connErr
	}
	var batchErr *core.BatchError
	if errors.As(err, &batchErr) {
		err = batchErr.Err
	}
	return &core.ConnectivityError{Op: "flush", Err: err}
}
