package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/callscript/internal/build"
	"github.com/roach88/callscript/internal/cache"
	"github.com/roach88/callscript/internal/deploy"
	"github.com/roach88/callscript/internal/platform"
	"github.com/roach88/callscript/internal/project"
	"github.com/roach88/callscript/internal/store"
)

// JournalFile is the journal database name inside the metadata directory.
const JournalFile = "journal.db"

// UploadOptions holds flags for the upload command.
type UploadOptions struct {
	*RootOptions
	ApplicationName string
	ApplicationID   int64
	RuleName        string
	RuleID          int64
	Force           bool
	DryRun          bool

	// Client allows overriding the platform client (for testing).
	// If nil, an HTTP client is built from the project file.
	Client platform.Client

	// JournalOptions are passed to store.Open (for testing).
	JournalOptions []store.Option
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	return newUploadCommand(&UploadOptions{RootOptions: rootOpts})
}

func newUploadCommand(opts *UploadOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Build and deploy an application's scenarios and rules",
		Long: `Build the scenarios referenced by an application's rules and deploy
them, together with the rules, to the platform.

The application is created when it does not exist. Scenarios whose built
script is unchanged since the last sync are skipped. A scenario edited on
the platform since the last sync is a conflict; --force overwrites it.

Example:
  callscript upload -a ivr
  callscript upload -a ivr --rule-name inbound --dry-run
  callscript upload --application-id 42 --force --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ApplicationName, "application-name", "a", "", "application name (short label or fully qualified)")
	cmd.Flags().Int64Var(&opts.ApplicationID, "application-id", 0, "application id (takes precedence over the name)")
	cmd.Flags().StringVar(&opts.RuleName, "rule-name", "", "deploy only this rule and its scenarios")
	cmd.Flags().Int64Var(&opts.RuleID, "rule-id", 0, "deploy only the rule with this id")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite scenarios changed on the platform since the last sync")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would change without modifying anything")

	return cmd
}

func runUpload(opts *UploadOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	proj, err := loadProject(opts.RootOptions)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Project %s (account %s)", proj.Root, proj.AccountName)

	client := opts.Client
	if client == nil {
		if proj.APIKey == "" {
			return NewExitError(ExitCommandError, project.EnvAPIKey+" is not set")
		}
		popts := proj.PlatformOptions()
		popts.Logger = logger
		client = platform.NewHTTPClient(popts)
	}

	stateDir := proj.Path(proj.MetadataDir)
	journal, closeJournal := openJournal(stateDir, logger, opts.JournalOptions...)
	defer closeJournal()

	orch := deploy.New(deploy.Config{
		Client: client,
		Cache:  cache.Open(proj.Path(proj.ConfigDir), stateDir),
		Builder: &build.FileBuilder{
			SourceDir:         proj.Path(proj.SourceDir),
			DistDir:           proj.Path(proj.DistDir),
			TypeScriptCommand: proj.TypeScriptCommand,
			Logger:            logger,
		},
		AccountName:    proj.AccountName,
		PlatformDomain: proj.PlatformDomain,
		Journal:        journal,
		Logger:         logger,
	})

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := orch.Upload(ctx, deploy.Request{
		ApplicationName: opts.ApplicationName,
		ApplicationID:   opts.ApplicationID,
		RuleName:        opts.RuleName,
		RuleID:          opts.RuleID,
		Force:           opts.Force,
		DryRun:          opts.DryRun,
	})
	if err != nil {
		var partial any
		if sum != nil && sum.Application.Name != "" {
			partial = sum
		}
		if outErr := formatter.Partial(partial, errorCode(err), err.Error()); outErr != nil {
			return outErr
		}
		return WrapExitError(exitCodeFor(err), "upload failed", err)
	}
	return formatter.Success(sum)
}

// openJournal opens the deploy journal in stateDir. A journal that cannot be
// opened is logged and skipped; the upload runs without one.
func openJournal(stateDir string, logger *slog.Logger, opts ...store.Option) (deploy.Journal, func()) {
	noop := func() {}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		logger.Warn("journal disabled", "error", err)
		return nil, noop
	}
	st, err := store.Open(filepath.Join(stateDir, JournalFile), opts...)
	if err != nil {
		logger.Warn("journal disabled", "error", err)
		return nil, noop
	}
	return st, func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing journal", "error", err)
		}
	}
}
