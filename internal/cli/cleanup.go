package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/callscript/internal/cache"
)

// CleanupResult describes what cleanup removed.
type CleanupResult struct {
	Removed string `json:"removed"`
}

func (r CleanupResult) String() string {
	return "removed " + r.Removed
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove the local metadata cache",
		Long: `Remove every cached scenario, rule and application record.

The next upload re-adopts scenarios that already exist on the platform. The
config tree and the deploy journal are kept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(rootOpts, cmd)
		},
	}

	return cmd
}

func runCleanup(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	proj, err := loadProject(opts)
	if err != nil {
		return err
	}

	c := cache.Open(proj.Path(proj.ConfigDir), proj.Path(proj.MetadataDir))
	if err := c.Cleanup(); err != nil {
		return WrapExitError(ExitFailure, "failed to remove metadata cache", err)
	}
	return formatter.Success(CleanupResult{Removed: c.MetadataDir()})
}
