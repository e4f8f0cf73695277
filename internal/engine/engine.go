// Package engine provides the upsert engine.
// It loads a table's catalog once, coerces and routes every input record,
// feeds the batch executor and emits exactly one outcome per record in
// input order.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/leapstack-labs/leapupsert/internal/telemetry"
	"github.com/leapstack-labs/leapupsert/pkg/batch"
	"github.com/leapstack-labs/leapupsert/pkg/catalog"
	"github.com/leapstack-labs/leapupsert/pkg/coerce"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
	"github.com/leapstack-labs/leapupsert/pkg/statement"
)

// Target is the database side of a run. adapter.Adapter satisfies it.
type Target interface {
	catalog.Source
	Conn(ctx context.Context) (*sql.Conn, error)
	Dialect() *dialect.Dialect
	Classify(err error) core.ErrorInfo
}

// Engine writes streams of records into one database.
type Engine struct {
	target  Target
	dialect *dialect.Dialect
	cache   *catalog.Cache
	coercer *coerce.Coercer
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Config holds engine configuration.
type Config struct {
	// Target is a connected adapter
	Target Target
	// Cache holds table snapshots across runs (optional, loads per run if nil)
	Cache *catalog.Cache
	// Formats configures temporal parsing
	Formats coerce.Formats
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Tracer traces runs and flushes (optional, uses the global provider if nil)
	Tracer trace.Tracer
}

// Request selects the table and commit strategy of one run.
type Request struct {
	Table    core.TableRef
	Strategy batch.Strategy
	// Threshold is the window size for batch.ByRows.
	Threshold int
}

// Summary reports what a run did.
type Summary struct {
	Table     core.TableRef
	Dialect   string
	Strategy  batch.Strategy
	Key       core.KeyDescriptor
	Records   int
	Succeeded int
	Failed    int
	AppErrors int
	Batches   int
	Builds    int
	// Dropped counts records that never received an outcome because the run
	// was cancelled or hit a run-fatal error.
	Dropped  int
	Duration time.Duration
}

// New creates an engine for a connected target.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Target == nil {
		return nil, errors.New("target is required")
	}
	d := cfg.Target.Dialect()
	if d == nil {
		return nil, dialect.ErrDialectRequired
	}

	coercer, err := coerce.New(cfg.Formats)
	if err != nil {
		return nil, fmt.Errorf("invalid formats: %w", err)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.Tracer("leapupsert/engine")
	}

	logger.Debug("initializing engine", "dialect", d.Name, "upsert", d.Upsert().String())

	return &Engine{
		target:  cfg.Target,
		dialect: d,
		cache:   cfg.Cache,
		coercer: coercer,
		logger:  logger,
		tracer:  tracer,
	}, nil
}

// Describe loads the column catalog and conflict key of a table.
func (e *Engine) Describe(ctx context.Context, ref core.TableRef) (*catalog.Table, error) {
	if e.cache != nil {
		return e.cache.GetOrLoad(ctx, e.target, e.dialect, ref, e.logger)
	}
	return catalog.Load(ctx, e.target, e.dialect, ref, e.logger)
}

// Run writes every record of src into the requested table and emits one
// outcome per record to sink, in input order.
//
// Record-level failures are reported as outcomes. The returned error is
// run-fatal: a lost connection, a schema lookup failure, a sink or source
// failure, or cancellation of ctx. The summary is returned in every case
// once the run has started.
func (e *Engine) Run(ctx context.Context, req Request, src Source, sink Sink) (*Summary, error) {
	if src == nil || sink == nil {
		return nil, errors.New("source and sink are required")
	}
	if req.Strategy == batch.ByRows && req.Threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive for %s, got %d", batch.ByRows, req.Threshold)
	}

	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("table", req.Table.String()),
		attribute.String("dialect", e.dialect.Name),
		attribute.String("strategy", req.Strategy.String()),
	)

	e.logger.Info("starting upsert", "table", req.Table.String(), "dialect", e.dialect.Name, "strategy", req.Strategy.String())

	table, err := e.Describe(ctx, req.Table)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog")
		return nil, err
	}
	if table.Key.IsNone() {
		e.logger.Info("table has no usable key, inserting only", "table", table.Ref.String())
	}

	conn, err := e.target.Conn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect")
		return nil, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			e.logger.Debug("failed to release connection", "error", cerr.Error())
		}
	}()

	builder := statement.NewBuilder(e.logger)
	summary := &Summary{
		Table:    table.Ref,
		Dialect:  e.dialect.Name,
		Strategy: req.Strategy,
		Key:      table.Key,
	}
	em := newEmitter(sink, summary)

	executor, err := batch.NewExecutor(batch.NewStmtRunner(conn, e.dialect, e.logger), batch.Options{
		Strategy:   req.Strategy,
		Threshold:  req.Threshold,
		Binder:     &windowBinder{table: table, dialect: e.dialect, builder: builder},
		Classifier: core.ClassifierFunc(e.target.Classify),
		Logger:     e.logger,
		Tracer:     e.tracer,
	})
	if err != nil {
		return nil, err
	}

	r := &run{
		engine:   e,
		table:    table,
		strategy: req.Strategy,
		executor: executor,
		emitter:  em,
	}
	runErr := r.consume(ctx, src)
	if runErr != nil {
		executor.Discard()
		summary.Dropped = em.drop()
	}

	summary.Batches = executor.Batches()
	summary.Builds = builder.Builds()
	summary.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("records", summary.Records),
		attribute.Int("batches", summary.Batches),
	)

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "run aborted")
		e.logger.Error("upsert aborted", "table", table.Ref.String(), "error", runErr.Error(), "dropped", summary.Dropped)
		return summary, runErr
	}

	e.logger.Info("upsert completed",
		"table", table.Ref.String(),
		"records", summary.Records,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"app_errors", summary.AppErrors,
		"batches", summary.Batches)
	return summary, nil
}

// run is the state of one Run call.
type run struct {
	engine   *Engine
	table    *catalog.Table
	strategy batch.Strategy
	executor *batch.Executor
	emitter  *emitter
	seq      int
}

func (r *run) consume(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		for i, rec := range doc.Records {
			// Cancellation is honoured between records only.
			if err := ctx.Err(); err != nil {
				return err
			}
			rec.DocumentID = doc.ID
			rec.Index = i
			if err := r.process(ctx, rec); err != nil {
				return err
			}
		}

		if r.strategy == batch.ByProfile {
			if err := r.flush(ctx); err != nil {
				return err
			}
		}
	}
	return r.flush(ctx)
}

func (r *run) process(ctx context.Context, rec core.Record) error {
	rec.Seq = r.seq
	r.seq++
	r.emitter.enqueue(rec)

	values, appErr := r.engine.bindValues(r.table, rec)
	if appErr != "" {
		return r.emitter.resolve(ctx, applicationError(rec, appErr, r.strategy))
	}

	res, err := r.executor.Add(ctx, batch.Entry{
		Record: rec,
		Values: values,
		Upsert: hasFullKey(r.table.Key, values),
	})
	if err != nil {
		return err
	}
	return r.complete(ctx, res)
}

func (r *run) flush(ctx context.Context) error {
	res, err := r.executor.Flush(ctx)
	if err != nil {
		return err
	}
	return r.complete(ctx, res)
}

func (r *run) complete(ctx context.Context, res *batch.Result) error {
	if res == nil {
		return nil
	}
	decorate(res, r.strategy)
	for _, o := range res.Outcomes {
		if err := r.emitter.resolve(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

// bindValues coerces every field that matches a column. It returns the
// message of the first coercion failure, in field name order.
func (e *Engine) bindValues(table *catalog.Table, rec core.Record) (map[string]core.TypedValue, string) {
	values := make(map[string]core.TypedValue, len(rec.Fields))
	for _, field := range sortedFields(rec.Fields) {
		col, ok := table.Match(field)
		if !ok {
			continue
		}
		// An exact field name wins over a case-insensitive one.
		if _, seen := values[col.Name]; seen && field != col.Name {
			continue
		}
		v, err := e.coercer.Coerce(rec.Fields[field], col)
		if err != nil {
			return nil, err.Error()
		}
		values[col.Name] = v
	}
	if len(values) == 0 {
		return nil, fmt.Sprintf("no field matches a column of table %s", table.Ref.String())
	}
	return values, ""
}

// hasFullKey reports whether every key column has a non-null value.
func hasFullKey(key core.KeyDescriptor, values map[string]core.TypedValue) bool {
	if key.IsNone() {
		return false
	}
	for _, name := range key.Columns {
		v, ok := values[name]
		if !ok || v.IsNull() {
			return false
		}
	}
	return true
}
