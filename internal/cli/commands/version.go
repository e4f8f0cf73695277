package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapupsert/internal/cli/output"
)

// VersionInfo is the JSON output of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display leapupsert version and build information.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := VersionInfo{
				Version:   version,
				Commit:    commit,
				BuildDate: buildDate,
				GoVersion: runtime.Version(),
				Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), outputMode(cmd))
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}
			r.Printf("leapupsert v%s\n", info.Version)
			r.Printf("commit %s, built %s, %s %s\n", info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return nil
		},
	}
}
