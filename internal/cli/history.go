package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/callscript/internal/model"
	"github.com/roach88/callscript/internal/reconcile"
	"github.com/roach88/callscript/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit       int
	RunID       string
	Scenario    string
	Rule        string
	Application string
}

// RunList is the text/JSON view of journal runs.
type RunList struct {
	Runs []store.Run `json:"runs"`
}

func (l RunList) String() string {
	if len(l.Runs) == 0 {
		return "no runs recorded"
	}
	var b strings.Builder
	for i, run := range l.Runs {
		if i > 0 {
			b.WriteByte('\n')
		}
		writeRun(&b, run)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func writeRun(b *strings.Builder, run store.Run) {
	fmt.Fprintf(b, "#%d %s %s %s %s", run.Seq, run.ID, run.StartedAt.UTC().Format(time.RFC3339), run.Status, run.Application)
	if run.Rule != "" {
		fmt.Fprintf(b, " rule=%s", run.Rule)
	}
	if run.Force {
		b.WriteString(" [force]")
	}
	if run.DryRun {
		b.WriteString(" [dry run]")
	}
	b.WriteByte('\n')
	for _, o := range run.Outcomes {
		fmt.Fprintf(b, "  %s %s: %s", o.Kind, o.Name, o.Action)
		if o.RemoteID != 0 {
			fmt.Fprintf(b, " (%d)", o.RemoteID)
		}
		if o.Detail != "" {
			fmt.Fprintf(b, " [%s]", o.Detail)
		}
		b.WriteByte('\n')
	}
	if run.Error != "" {
		fmt.Fprintf(b, "  error: %s\n", run.Error)
	}
}

// ArtifactHistory is the text/JSON view of one artifact's outcomes.
type ArtifactHistory struct {
	Kind    string                `json:"kind"`
	Name    string                `json:"name"`
	Entries []store.ArtifactEntry `json:"entries"`
}

func (h ArtifactHistory) String() string {
	if len(h.Entries) == 0 {
		return fmt.Sprintf("no history for %s %s", h.Kind, h.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", h.Kind, h.Name)
	for _, e := range h.Entries {
		fmt.Fprintf(&b, "  %s %s %s", e.StartedAt.UTC().Format(time.RFC3339), e.RunID, e.Action)
		if e.RemoteID != 0 {
			fmt.Fprintf(&b, " (%d)", e.RemoteID)
		}
		if e.ContentHash != "" {
			fmt.Fprintf(&b, " %s", shortHash(e.ContentHash))
		}
		if e.DryRun {
			b.WriteString(" [dry run]")
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past uploads from the deploy journal",
		Long: `List journaled uploads, newest first, with what each did.

With --scenario, --rule or --application only the outcomes recorded for that
artifact are shown. With --run a single upload is shown.

Example:
  callscript history --limit 5
  callscript history --scenario greet
  callscript history --run 01890a5d-ac96-774b-bcce-b302099a8057 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show a single run")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "show the history of one scenario")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "show the history of one rule")
	cmd.Flags().StringVar(&opts.Application, "application", "", "show the history of one application")
	cmd.MarkFlagsMutuallyExclusive("run", "scenario", "rule", "application")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	proj, err := loadProject(opts.RootOptions)
	if err != nil {
		return err
	}

	kind, name := artifactFilter(opts, proj.AccountName, proj.PlatformDomain)

	path := filepath.Join(proj.Path(proj.MetadataDir), JournalFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		// Nothing uploaded yet; do not create an empty journal.
		if opts.RunID != "" {
			return outputHistoryError(formatter, fmt.Errorf("%w: %s", store.ErrRunNotFound, opts.RunID))
		}
		if kind != "" {
			return formatter.Success(ArtifactHistory{Kind: kind, Name: name})
		}
		return formatter.Success(RunList{})
	}
	formatter.VerboseLog("Reading journal %s", path)

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	switch {
	case opts.RunID != "":
		run, err := st.GetRun(ctx, opts.RunID)
		if err != nil {
			return outputHistoryError(formatter, err)
		}
		return formatter.Success(RunList{Runs: []store.Run{run}})
	case kind != "":
		entries, err := st.History(ctx, kind, name)
		if err != nil {
			return outputHistoryError(formatter, err)
		}
		return formatter.Success(ArtifactHistory{Kind: kind, Name: name, Entries: entries})
	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return outputHistoryError(formatter, err)
		}
		return formatter.Success(RunList{Runs: runs})
	}
}

// artifactFilter returns the outcome kind and name selected by flags.
// Application names are recorded in canonical form.
func artifactFilter(opts *HistoryOptions, accountName, domain string) (string, string) {
	switch {
	case opts.Scenario != "":
		return store.KindScenario, opts.Scenario
	case opts.Rule != "":
		return store.KindRule, opts.Rule
	case opts.Application != "":
		return store.KindApplication, model.CanonicalApplicationName(opts.Application, accountName, domain)
	}
	return "", ""
}

func outputHistoryError(formatter *OutputFormatter, err error) error {
	code := ErrCodeJournal
	exit := ExitCommandError
	if errors.Is(err, store.ErrRunNotFound) {
		code = string(reconcile.ErrCodeNotFound)
		exit = ExitFailure
	}
	if outErr := formatter.Error(code, err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, "history failed", err)
}
