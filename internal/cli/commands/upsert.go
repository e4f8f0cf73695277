package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapupsert/internal/cli/config"
	"github.com/leapstack-labs/leapupsert/internal/cli/output"
	"github.com/leapstack-labs/leapupsert/internal/engine"
	"github.com/leapstack-labs/leapupsert/internal/state"
	"github.com/leapstack-labs/leapupsert/pkg/batch"
	"github.com/leapstack-labs/leapupsert/pkg/coerce"
	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// UpsertOptions holds options for the upsert command.
type UpsertOptions struct {
	Table     string
	Input     string
	Outcomes  string
	Parallel  int
	NoJournal bool
}

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand() *cobra.Command {
	opts := &UpsertOptions{}
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Insert or update JSON records into a table",
		Long: `Write JSON records into a database table, updating rows whose
primary or unique key already exists.

Input is a JSON array of documents or a stream of JSON values. A document is
a single record object, an array of record objects, or an object with both an
"id" field and a "rows" array. An object with only one of the two is a single
record, so a table may have a "rows" column.

One outcome line is written per input record, in input order. With several
--target flags the same input is written to each target concurrently and
every outcome line carries its target name.`,
		Example: `  # Upsert NDJSON from stdin
  cat users.ndjson | leapupsert upsert -T public.users

  # Commit per document instead of per window of records
  leapupsert upsert -T users -i users.json --strategy by-profile

  # Write to two targets, outcomes to a file
  leapupsert upsert -T users -i users.json -t staging -t prod --outcomes out.ndjson`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpsert(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "T", "", "Target table as [catalog.][schema.]name")
	cmd.Flags().StringVarP(&opts.Input, "input", "i", "-", "Input file (- for stdin)")
	cmd.Flags().StringVar(&opts.Outcomes, "outcomes", "-", "Outcome NDJSON file (- for stdout)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "Maximum targets written concurrently (0 for all)")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false, "Do not record the run in the state database")
	addUpsertConfigFlags(cmd)
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

// addUpsertConfigFlags registers the flags that override the upsert section
// of the configuration file.
func addUpsertConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("strategy", "", "Commit strategy: by-rows or by-profile")
	cmd.Flags().Int("threshold", 0, "Records per window for by-rows")
	cmd.Flags().String("date-format", "", "DATE input pattern (e.g. yyyy-MM-dd)")
	cmd.Flags().String("time-format", "", "TIME input pattern (e.g. HH:mm:ss)")
	cmd.Flags().String("timestamp-format", "", "TIMESTAMP input pattern")
	cmd.Flags().String("timestamptz-format", "", "TIMESTAMP WITH TIME ZONE input pattern")
	cmd.Flags().String("timezone", "", "Zone for TIMESTAMP values without an offset")

	_ = cmd.RegisterFlagCompletionFunc("strategy", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{batch.ByRows.String(), batch.ByProfile.String()}, cobra.ShellCompDirectiveNoFileComp
	})
}

// TargetSummary is the per-target result of an upsert.
type TargetSummary struct {
	Target    string `json:"target"`
	RunID     string `json:"run_id,omitempty"`
	Table     string `json:"table"`
	Dialect   string `json:"dialect,omitempty"`
	Strategy  string `json:"strategy"`
	Key       string `json:"key,omitempty"`
	Records   int    `json:"records"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	AppErrors int    `json:"app_errors"`
	Batches   int    `json:"batches"`
	Dropped   int    `json:"dropped,omitempty"`
	Duration  string `json:"duration"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// upsertPlan is everything a target run needs besides the target itself.
type upsertPlan struct {
	ref       core.TableRef
	strategy  batch.Strategy
	threshold int
	formats   coerce.Formats
	store     state.Store
	sink      *targetSink
	logger    *slog.Logger
}

func runUpsert(cmd *cobra.Command, opts *UpsertOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	ctx := cmd.Context()

	targets, err := cfg.ResolveTargets(selectedTargets(cmd))
	if err != nil {
		return err
	}
	strategy, err := cfg.Upsert.ParsedStrategy()
	if err != nil {
		return err
	}
	formats, err := cfg.Upsert.Formats.Coerce()
	if err != nil {
		return err
	}

	input, closeInput, err := openInput(cmd, opts.Input)
	if err != nil {
		return err
	}
	defer closeInput()

	// several targets read the same input, so it is buffered once
	var buffered []byte
	if len(targets) > 1 {
		if buffered, err = io.ReadAll(input); err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}

	out, closeOut, err := openOutcomes(cmd, opts.Outcomes)
	if err != nil {
		return err
	}
	defer closeOut()

	plan := &upsertPlan{
		ref:       core.ParseTableRef(opts.Table),
		strategy:  strategy,
		threshold: cfg.Upsert.Threshold,
		formats:   formats,
		sink:      newTargetSink(out, len(targets) > 1),
		logger:    cmdCtx.Logger,
	}

	if !opts.NoJournal {
		store, err := openStore(ctx, cfg.StatePath, cmdCtx.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		plan.store = store
	}

	results := make([]TargetSummary, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}
	for i, nt := range targets {
		var src engine.Source
		if buffered != nil {
			src = engine.NewJSONSource(bytes.NewReader(buffered))
		} else {
			src = engine.NewJSONSource(input)
		}
		g.Go(func() error {
			// a failed target does not cancel the others
			results[i] = upsertTarget(gctx, nt, plan, src)
			return nil
		})
	}
	_ = g.Wait()

	// outcomes on stdout keep the summary on stderr
	r := cmdCtx.Renderer
	if opts.Outcomes == "-" {
		r = output.NewRenderer(cmd.ErrOrStderr(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	}
	if err := renderUpsertSummary(r, results); err != nil {
		return err
	}

	var failed int
	for _, res := range results {
		if res.Status != string(core.RunStatusCompleted) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(results))
	}
	return nil
}

// upsertTarget runs one target to completion and journals it.
func upsertTarget(ctx context.Context, nt config.NamedTarget, plan *upsertPlan, src engine.Source) TargetSummary {
	logger := plan.logger.With(slog.String("target", nt.Name))
	res := TargetSummary{
		Target:   nt.Name,
		Table:    plan.ref.String(),
		Dialect:  nt.Target.Type,
		Strategy: plan.strategy.String(),
	}

	var run *core.Run
	if plan.store != nil {
		var err error
		run, err = plan.store.CreateRun(ctx, state.RunSpec{
			Target:   nt.Name,
			Dialect:  nt.Target.Type,
			Table:    plan.ref.String(),
			Strategy: plan.strategy.String(),
		})
		if err != nil {
			logger.Warn("failed to journal run", "error", err)
		} else {
			res.RunID = run.ID
		}
	}

	summary, runErr := execTarget(ctx, nt, plan, src, logger)
	if summary != nil {
		res.Table = summary.Table.String()
		res.Dialect = summary.Dialect
		res.Key = describeKey(summary.Key)
		res.Records = summary.Records
		res.Succeeded = summary.Succeeded
		res.Failed = summary.Failed
		res.AppErrors = summary.AppErrors
		res.Batches = summary.Batches
		res.Dropped = summary.Dropped
		res.Duration = summary.Duration.Round(time.Millisecond).String()
	}

	status := core.RunStatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled):
		status = core.RunStatusCancelled
	case runErr != nil:
		status = core.RunStatusFailed
	}
	res.Status = string(status)
	if runErr != nil {
		res.Error = runErr.Error()
		logger.Error("upsert failed", "error", runErr)
	}

	if run != nil {
		counts := state.RunCounts{
			Records:   res.Records,
			Succeeded: res.Succeeded,
			Failed:    res.Failed,
			AppErrors: res.AppErrors,
			Batches:   res.Batches,
		}
		if err := plan.store.CompleteRun(context.WithoutCancel(ctx), run.ID, status, counts, res.Error); err != nil {
			logger.Warn("failed to complete run journal", "run_id", run.ID, "error", err)
		}
	}
	return res
}

func execTarget(ctx context.Context, nt config.NamedTarget, plan *upsertPlan, src engine.Source, logger *slog.Logger) (*engine.Summary, error) {
	a, err := openTarget(ctx, nt, logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()

	eng, err := engine.New(engine.Config{
		Target:  a,
		Formats: plan.formats,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return eng.Run(ctx, engine.Request{
		Table:     plan.ref,
		Strategy:  plan.strategy,
		Threshold: plan.threshold,
	}, src, plan.sink.For(nt.Name))
}

func renderUpsertSummary(r *output.Renderer, results []TargetSummary) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(results)
	}
	rows := make([][]any, 0, len(results))
	for _, res := range results {
		rows = append(rows, []any{
			res.Target, res.Table, res.Strategy, res.Key,
			res.Records, res.Succeeded, res.Failed, res.AppErrors, res.Batches,
			res.Duration, res.Status,
		})
	}
	r.Table([]string{"Target", "Table", "Strategy", "Key", "Records", "Succeeded", "Failed", "App Errors", "Batches", "Duration", "Status"}, rows)
	for _, res := range results {
		if res.Error != "" {
			r.Error(fmt.Sprintf("%s: %s", res.Target, res.Error))
		}
	}
	return nil
}

func describeKey(k core.KeyDescriptor) string {
	if k.IsNone() {
		return k.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", k.Kind, strings.Join(k.Columns, ", "))
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path) //nolint:gosec // user-supplied input path
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutcomes(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path) //nolint:gosec // user-supplied output path
	if err != nil {
		return nil, nil, fmt.Errorf("create outcomes file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// openStore opens the run journal, creating its directory.
func openStore(ctx context.Context, path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(ctx, path); err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return store, nil
}

// targetSink serializes outcome lines of concurrent target runs onto one
// writer.
type targetSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	tagged bool
}

type targetOutcome struct {
	Target string `json:"target,omitempty"`
	engine.OutcomeLine
}

func newTargetSink(w io.Writer, tagged bool) *targetSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &targetSink{enc: enc, tagged: tagged}
}

// For returns the sink of one target.
func (s *targetSink) For(target string) engine.Sink {
	if !s.tagged {
		target = ""
	}
	return engine.SinkFunc(func(_ context.Context, o core.Outcome) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.enc.Encode(targetOutcome{Target: target, OutcomeLine: engine.NewOutcomeLine(o)})
	})
}
