package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/callscript/internal/project"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Project is the project file path; empty means search the working directory.
	Project string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the callscript CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "callscript",
		Short: "callscript - deploy call scenarios and routing rules",
		Long: `Deploy call-handling scenarios, routing rules and applications to the
telephony platform.

Local sources are built, compared with a local metadata cache and pushed
only when they changed. Remote edits made since the last sync are reported
as conflicts unless --force is given.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Project, "project", "p", "", "project file (default: callscript.yaml in the working directory)")

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewUploadCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// newLogger builds the diagnostic logger. Logs go to w, never to the
// command's output stream.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadProject loads the project named by --project, or the first project
// file found in the working directory.
func loadProject(opts *RootOptions) (*project.Project, error) {
	path := opts.Project
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to get working directory", err)
		}
		path, err = project.Find(wd)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to find project file", err)
		}
	}
	p, err := project.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load project", err)
	}
	return p, nil
}

// newFormatter returns the output formatter for cmd.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
