package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapupsert/internal/cli/config"
	"github.com/leapstack-labs/leapupsert/internal/cli/output"
	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dialects",
		Short: "List supported SQL dialects",
		Long: `List the registered SQL dialects with the upsert statement each one
generates, how it resolves catalog and schema, and whether a database adapter
is available for it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), outputMode(cmd))
			return renderDialects(r, listDialects())
		},
	}
}

// DialectInfo describes one registered dialect.
type DialectInfo struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Upsert        string `json:"upsert"`
	Namespace     string `json:"namespace"`
	Placeholder   string `json:"placeholder"`
	DefaultSchema string `json:"default_schema,omitempty"`
	Adapter       bool   `json:"adapter"`
}

func listDialects() []DialectInfo {
	names := dialect.List()
	infos := make([]DialectInfo, 0, len(names))
	for _, name := range names {
		d, ok := dialect.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, DialectInfo{
			Name:          d.Name,
			Kind:          d.Kind.String(),
			Upsert:        d.Upsert().String(),
			Namespace:     d.Namespace.String(),
			Placeholder:   d.Placeholder.String(),
			DefaultSchema: d.DefaultSchema,
			Adapter:       adapter.IsRegistered(d.Name),
		})
	}
	return infos
}

func renderDialects(r *output.Renderer, infos []DialectInfo) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(infos)
	}
	rows := make([][]any, 0, len(infos))
	for _, d := range infos {
		adapterState := "-"
		if d.Adapter {
			adapterState = "yes"
		}
		rows = append(rows, []any{d.Name, d.Kind, d.Upsert, d.Namespace, d.Placeholder, d.DefaultSchema, adapterState})
	}
	r.Table([]string{"Dialect", "Kind", "Upsert", "Namespace", "Placeholder", "Default Schema", "Adapter"}, rows)
	return nil
}

// outputMode returns the configured output mode, falling back to the
// --output flag when the configuration was not loaded.
func outputMode(cmd *cobra.Command) output.OutputMode {
	if loaded, ok := config.FromContext(cmd.Context()); ok {
		return output.Mode(loaded.Config.OutputFormat)
	}
	if f := cmd.Flags().Lookup("output"); f != nil {
		return output.Mode(f.Value.String())
	}
	return output.ModeAuto
}
