package cli

import (
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions, info VersionInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Format == "json" {
				return printJSON(rootOpts.io, info)
			}
			rootOpts.io.Printf("ledgersync\n")
			rootOpts.io.Printf("Version:    %s\n", info.Version)
			rootOpts.io.Printf("Build Date: %s\n", info.BuildDate)
			rootOpts.io.Printf("Git Commit: %s\n", info.GitCommit)
			return nil
		},
	}
}
