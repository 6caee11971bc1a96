// Package otlivecli implements the otlive command line.
package otlivecli

import (
	"fmt"

	"github.com/spf13/cobra"

	"otterlive/internal/version"
)

func NewRootCommand() *cobra.Command {
	opts := newDefaultOptions()
	cmd := &cobra.Command{
		Use:           "otlive",
		Short:         "Real-time full-text index over local folders",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.Version = version.String()
	cmd.InitDefaultVersionFlag()
	if f := cmd.Flags().Lookup("version"); f != nil {
		f.Shorthand = "v"
	}

	withOptionsContext(cmd, opts)
	bindFlags(cmd, opts)

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		opts := optionsFrom(cmd)
		if opts == nil {
			return fmt.Errorf("options missing")
		}
		return opts.Prepare(cmd)
	}

	cmd.AddCommand(newIndexCommand())
	cmd.AddCommand(newSearchCommand())
	cmd.AddCommand(newWatchCommand())
	cmd.AddCommand(newStatsCommand())
	return cmd
}
