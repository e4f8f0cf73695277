package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapupsert/internal/cli/config"
	"github.com/leapstack-labs/leapupsert/internal/cli/output"
	"github.com/leapstack-labs/leapupsert/internal/engine"
	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// DoctorOptions holds options for the doctor command.
type DoctorOptions struct {
	Table string
}

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	opts := &DoctorOptions{}
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, state and target connectivity",
		Long: `Check that leapupsert is ready to write.

The doctor command verifies:
- The run journal can be opened and is migrated
- Each selected target connects and has a known dialect
- With --table, the table is visible and has a usable conflict key

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format
  - JSON: Machine-readable format`,
		Example: `  # Check the default target
  leapupsert doctor

  # Check two targets and a table on each
  leapupsert doctor -t staging -t prod --table public.users`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "T", "", "Table to check on every target")

	return cmd
}

// Check statuses.
const (
	CheckPass = "pass"
	CheckWarn = "warn"
	CheckFail = "fail"
)

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	ConfigFile string         `json:"config_file,omitempty"`
	StatePath  string         `json:"state_path"`
	Groups     []CheckGroup   `json:"groups"`
	Counts     map[string]int `json:"counts"`
}

// CheckGroup is the checks of one subject: the journal or a target.
type CheckGroup struct {
	Name   string        `json:"name"`
	Checks []HealthCheck `json:"checks"`
}

// HealthCheck represents a single check result.
type HealthCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (g *CheckGroup) add(name, status, detail string) {
	g.Checks = append(g.Checks, HealthCheck{Name: name, Status: status, Detail: detail})
}

func runDoctor(cmd *cobra.Command, opts *DoctorOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	out := &DoctorOutput{
		ConfigFile: cmdCtx.ConfigFile,
		StatePath:  cfg.StatePath,
		Counts:     map[string]int{CheckPass: 0, CheckWarn: 0, CheckFail: 0},
	}
	out.Groups = append(out.Groups, checkJournal(ctx, cfg.StatePath, cmdCtx.Logger))

	targets, err := cfg.ResolveTargets(selectedTargets(cmd))
	if err != nil {
		g := CheckGroup{Name: "targets"}
		g.add("config", CheckFail, err.Error())
		out.Groups = append(out.Groups, g)
	}
	for _, nt := range targets {
		out.Groups = append(out.Groups, checkTarget(ctx, nt, opts.Table, cmdCtx.Logger))
	}

	for _, g := range out.Groups {
		for _, c := range g.Checks {
			out.Counts[c.Status]++
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		err = r.JSON(out)
	case output.ModeMarkdown:
		renderDoctorMarkdown(r, out)
	default:
		renderDoctorText(r, out)
	}
	if err != nil {
		return err
	}
	if n := out.Counts[CheckFail]; n > 0 {
		return fmt.Errorf("%d checks failed", n)
	}
	return nil
}

func checkJournal(ctx context.Context, path string, logger *slog.Logger) CheckGroup {
	g := CheckGroup{Name: "journal"}
	store, err := openStore(ctx, path, logger)
	if err != nil {
		g.add("open", CheckFail, err.Error())
		return g
	}
	defer func() { _ = store.Close() }()
	g.add("open", CheckPass, path)

	version, err := store.MigrationVersion(ctx)
	if err != nil {
		g.add("migrations", CheckFail, err.Error())
		return g
	}
	g.add("migrations", CheckPass, fmt.Sprintf("version %d", version))
	return g
}

func checkTarget(ctx context.Context, nt config.NamedTarget, table string, logger *slog.Logger) CheckGroup {
	g := CheckGroup{Name: "target " + nt.Name}

	if !adapter.IsRegistered(nt.Target.Type) {
		g.add("adapter", CheckFail, fmt.Sprintf("no adapter for %q", nt.Target.Type))
		return g
	}
	a, err := openTarget(ctx, nt, logger)
	if err != nil {
		g.add("connect", CheckFail, err.Error())
		return g
	}
	defer func() { _ = a.Close() }()

	conn, err := a.Conn(ctx)
	if err == nil {
		err = conn.PingContext(ctx)
		_ = conn.Close()
	}
	if err != nil {
		g.add("connect", CheckFail, err.Error())
		return g
	}
	g.add("connect", CheckPass, nt.Target.Type)

	d := a.Dialect()
	g.add("dialect", CheckPass, fmt.Sprintf("%s, %s upsert", d.Name, d.Upsert()))

	if table == "" {
		return g
	}
	eng, err := engine.New(engine.Config{Target: a, Logger: logger})
	if err != nil {
		g.add("table", CheckFail, err.Error())
		return g
	}
	t, err := eng.Describe(ctx, core.ParseTableRef(table))
	if err != nil {
		g.add("table", CheckFail, err.Error())
		return g
	}
	g.add("table", CheckPass, fmt.Sprintf("%s, %d columns", t.Ref, len(t.Columns)))
	if t.Key.IsNone() {
		g.add("key", CheckWarn, "no primary key or NOT NULL unique key: records are plain inserts")
	} else {
		g.add("key", CheckPass, describeKey(t.Key))
	}
	return g
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()
	titleCaser := cases.Title(language.English)

	r.Println("")
	r.Println(styles.Header1.Render("leapupsert doctor"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	if out.ConfigFile != "" {
		r.Println(styles.Muted.Render("   config: " + out.ConfigFile))
	}
	r.Println("")

	for _, g := range out.Groups {
		r.Println(styles.Bold.Render("   " + titleCaser.String(g.Name)))
		r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		for _, c := range g.Checks {
			icon := styles.Success.Render("✓")
			switch c.Status {
			case CheckWarn:
				icon = styles.Warning.Render("!")
			case CheckFail:
				icon = styles.Error.Render("✗")
			}
			line := fmt.Sprintf("   %s %s", icon, c.Name)
			if c.Detail != "" {
				line += styles.Muted.Render(": " + c.Detail)
			}
			r.Println(line)
		}
		r.Println("")
	}

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Printf("   %d passed, %d warnings, %d failed\n", out.Counts[CheckPass], out.Counts[CheckWarn], out.Counts[CheckFail])
	r.Println("")
}

func renderDoctorMarkdown(r *output.Renderer, out *DoctorOutput) {
	titleCaser := cases.Title(language.English)

	r.Println("# leapupsert doctor")
	r.Println("")
	if out.ConfigFile != "" {
		r.Println(output.FormatKeyValue("Config", out.ConfigFile))
	}
	r.Println(output.FormatKeyValue("State", out.StatePath))
	r.Println("")

	for _, g := range out.Groups {
		r.Println("## " + titleCaser.String(g.Name))
		r.Println("")
		for _, c := range g.Checks {
			r.Printf("- **[%s]** %s", strings.ToUpper(c.Status), c.Name)
			if c.Detail != "" {
				r.Printf(": %s", c.Detail)
			}
			r.Println("")
		}
		r.Println("")
	}

	r.Printf("**%d passed, %d warnings, %d failed**\n", out.Counts[CheckPass], out.Counts[CheckWarn], out.Counts[CheckFail])
}
