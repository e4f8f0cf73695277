package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapupsert/internal/cli/config"
	"github.com/leapstack-labs/leapupsert/internal/cli/output"
	"github.com/leapstack-labs/leapupsert/pkg/adapter"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg        *config.Config
	ConfigFile string
	Logger     *slog.Logger
	Renderer   *output.Renderer
}

// NewCommandContext returns the configuration loaded by the root command,
// loading it from the command's flags when the command runs standalone.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	loaded, ok := config.FromContext(cmd.Context())
	if !ok {
		var err error
		loaded, err = config.Load(configFlag(cmd), cmd.Flags())
		if err != nil {
			return nil, err
		}
	}
	return &CommandContext{
		Cfg:        loaded.Config,
		ConfigFile: loaded.File,
		Logger:     config.GetLogger(cmd.Context()),
		Renderer:   output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(loaded.Config.OutputFormat)),
	}, nil
}

func configFlag(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("config"); f != nil {
		return f.Value.String()
	}
	return ""
}

// selectedTargets returns the --target values of cmd.
func selectedTargets(cmd *cobra.Command) []string {
	names, err := cmd.Flags().GetStringSlice("target")
	if err != nil {
		return nil
	}
	return names
}

// openTarget creates and connects the adapter for a resolved target.
func openTarget(ctx context.Context, nt config.NamedTarget, logger *slog.Logger) (adapter.Adapter, error) {
	cfg := nt.Target.AdapterConfig()
	a, err := adapter.NewAdapter(cfg, logger.With(slog.String("target", nt.Name)))
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("connect target %q: %w", nt.Name, err)
	}
	return a, nil
}
