package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapupsert/internal/cli/output"
	"github.com/leapstack-labs/leapupsert/internal/engine"
	"github.com/leapstack-labs/leapupsert/pkg/catalog"
	"github.com/leapstack-labs/leapupsert/pkg/core"
)

// NewDescribeCommand creates the describe command.
func NewDescribeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns and conflict key of a table",
		Long: `Load a table's column metadata the way the upsert command sees it:
the resolved table reference, each column's mapped type, and the key used
to detect conflicting rows.

A key of NONE means every record is written as a plain INSERT.`,
		Example: `  leapupsert describe public.users
  leapupsert describe sales.orders -t prod -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(cmd, args[0])
		},
	}
	return cmd
}

// TableDescription is the JSON output of the describe command.
type TableDescription struct {
	Target  string              `json:"target"`
	Table   string              `json:"table"`
	Key     KeyDescription      `json:"key"`
	Columns []ColumnDescription `json:"columns"`
}

// KeyDescription describes a conflict key.
type KeyDescription struct {
	Kind    string   `json:"kind"`
	Name    string   `json:"name,omitempty"`
	Columns []string `json:"columns,omitempty"`
}

// ColumnDescription describes one column.
type ColumnDescription struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Declared string `json:"declared"`
	Nullable bool   `json:"nullable"`
	Position int    `json:"position"`
	Key      bool   `json:"key,omitempty"`
}

func runDescribe(cmd *cobra.Command, table string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	targets, err := cmdCtx.Cfg.ResolveTargets(selectedTargets(cmd))
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ref := core.ParseTableRef(table)

	tables := make([]*catalog.Table, 0, len(targets))
	descriptions := make([]TableDescription, 0, len(targets))
	for _, nt := range targets {
		a, err := openTarget(ctx, nt, cmdCtx.Logger)
		if err != nil {
			return err
		}
		eng, err := engine.New(engine.Config{Target: a, Logger: cmdCtx.Logger})
		if err != nil {
			_ = a.Close()
			return err
		}
		t, err := eng.Describe(ctx, ref)
		_ = a.Close()
		if err != nil {
			return fmt.Errorf("target %q: %w", nt.Name, err)
		}
		tables = append(tables, t)
		descriptions = append(descriptions, describeTable(nt.Name, t))
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(descriptions)
	}
	for i, d := range descriptions {
		if i > 0 {
			r.Println("")
		}
		r.Header(2, fmt.Sprintf("%s (%s)", d.Table, d.Target))
		rows := make([][]any, 0, len(d.Columns))
		for _, c := range d.Columns {
			key := ""
			if c.Key {
				key = "*"
			}
			rows = append(rows, []any{c.Position, c.Name, c.Type, c.Declared, c.Nullable, key})
		}
		r.Table([]string{"#", "Name", "Type", "Declared", "Nullable", "Key"}, rows)
		if tables[i].Key.IsNone() {
			r.Warning(fmt.Sprintf("%s has no usable key: records are inserted without conflict handling", d.Table))
			continue
		}
		r.Println("key: " + describeKey(tables[i].Key))
	}
	return nil
}

func describeTable(target string, t *catalog.Table) TableDescription {
	d := TableDescription{
		Target: target,
		Table:  t.Ref.String(),
		Key: KeyDescription{
			Kind:    t.Key.Kind.String(),
			Name:    t.Key.Name,
			Columns: t.Key.Columns,
		},
		Columns: make([]ColumnDescription, 0, len(t.Columns)),
	}
	for _, c := range t.Columns {
		d.Columns = append(d.Columns, ColumnDescription{
			Name:     c.Name,
			Type:     c.Type.String(),
			Declared: c.DeclaredType,
			Nullable: c.Nullable,
			Position: c.Position,
			Key:      t.Key.Contains(c.Name),
		})
	}
	return d
}
