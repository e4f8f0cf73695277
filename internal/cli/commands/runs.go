package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapupsert/internal/cli/output"
	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show journaled upsert runs",
		Long: `List recent upsert runs recorded in the state database, newest first,
or show a single run by its ID.`,
		Example: `  leapupsert runs
  leapupsert runs --limit 50 -o json
  leapupsert runs 6f1c2a4e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd, args, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	return cmd
}

// RunInfo is the JSON output of one journaled run.
type RunInfo struct {
	ID          string     `json:"id"`
	Target      string     `json:"target"`
	Dialect     string     `json:"dialect"`
	Table       string     `json:"table"`
	Strategy    string     `json:"strategy"`
	Status      string     `json:"status"`
	Records     int        `json:"records"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	AppErrors   int        `json:"app_errors"`
	Batches     int        `json:"batches"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func toRunInfo(r *core.Run) RunInfo {
	return RunInfo{
		ID:          r.ID,
		Target:      r.Target,
		Dialect:     r.Dialect,
		Table:       r.Table,
		Strategy:    r.Strategy,
		Status:      string(r.Status),
		Records:     r.Records,
		Succeeded:   r.Succeeded,
		Failed:      r.Failed,
		AppErrors:   r.AppErrors,
		Batches:     r.Batches,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
	}
}

func runRuns(cmd *cobra.Command, args []string, limit int) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer
	ctx := cmd.Context()

	if _, err := os.Stat(cmdCtx.Cfg.StatePath); os.IsNotExist(err) {
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON([]RunInfo{})
		}
		r.Println("No runs recorded yet.")
		return nil
	}

	store, err := openStore(ctx, cmdCtx.Cfg.StatePath, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if len(args) == 1 {
		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		return renderRun(r, toRunInfo(run))
	}

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	infos := make([]RunInfo, 0, len(runs))
	for _, run := range runs {
		infos = append(infos, toRunInfo(run))
	}
	return renderRuns(r, infos)
}

func renderRuns(r *output.Renderer, runs []RunInfo) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runs)
	}
	if len(runs) == 0 {
		r.Println("No runs recorded yet.")
		return nil
	}
	rows := make([][]any, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []any{
			shortID(run.ID), run.Target, run.Table, run.Strategy, run.Status,
			run.Records, run.Succeeded, run.Failed, run.AppErrors,
			run.StartedAt.Local().Format(time.DateTime),
		})
	}
	r.Table([]string{"ID", "Target", "Table", "Strategy", "Status", "Records", "Succeeded", "Failed", "App Errors", "Started"}, rows)
	return nil
}

func renderRun(r *output.Renderer, run RunInfo) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(run)
	}
	r.Header(2, "Run "+run.ID)
	completed := "-"
	if run.CompletedAt != nil {
		completed = run.CompletedAt.Local().Format(time.DateTime)
	}
	pairs := [][2]string{
		{"Target", run.Target},
		{"Dialect", run.Dialect},
		{"Table", run.Table},
		{"Strategy", run.Strategy},
		{"Status", run.Status},
		{"Records", strconv.Itoa(run.Records)},
		{"Succeeded", strconv.Itoa(run.Succeeded)},
		{"Failed", strconv.Itoa(run.Failed)},
		{"App Errors", strconv.Itoa(run.AppErrors)},
		{"Batches", strconv.Itoa(run.Batches)},
		{"Started", run.StartedAt.Local().Format(time.DateTime)},
		{"Completed", completed},
	}
	for _, kv := range pairs {
		r.Println(output.FormatKeyValue(kv[0], kv[1]))
	}
	if run.Error != "" {
		r.Println(output.FormatKeyValue("Error", fmt.Sprintf("%q", run.Error)))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
