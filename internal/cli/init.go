package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/callscript/internal/cache"
	"github.com/roach88/callscript/internal/project"
)

// InitResult describes what init set up.
type InitResult struct {
	ProjectFile    string `json:"project_file"`
	ProjectCreated bool   `json:"project_created"`
	ConfigDir      string `json:"config_dir"`
	MetadataDir    string `json:"metadata_dir"`
}

func (r InitResult) String() string {
	var b strings.Builder
	if r.ProjectCreated {
		fmt.Fprintf(&b, "created %s\n", r.ProjectFile)
	} else {
		fmt.Fprintf(&b, "using %s\n", r.ProjectFile)
	}
	fmt.Fprintf(&b, "config tree: %s\n", r.ConfigDir)
	fmt.Fprintf(&b, "metadata tree: %s", r.MetadataDir)
	return b.String()
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a project file and the local config and metadata trees",
		Long: `Create the config and metadata trees for a project.

When the directory has no project file a starter callscript.yaml is written;
an existing project file is loaded and its directories are used. Running init
again is harmless.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runInit(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	abs, err := filepath.Abs(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid directory", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create project directory", err)
	}

	result := InitResult{}
	proj := project.Default()
	proj.Root = abs

	path := opts.Project
	if path == "" {
		path, err = project.Find(abs)
	}
	switch {
	case err == nil:
		loaded, err := project.Load(path)
		var perr *project.Error
		switch {
		case errors.As(err, &perr):
			// An unedited starter file does not validate yet.
			formatter.VerboseLog("Project file not valid yet, using default directories: %v", err)
			proj.Root = filepath.Dir(path)
		case err != nil:
			return WrapExitError(ExitCommandError, "failed to load project", err)
		default:
			proj = *loaded
		}
		result.ProjectFile = path
	case errors.Is(err, fs.ErrNotExist):
		path = filepath.Join(abs, project.FileNames[0])
		if err := os.WriteFile(path, []byte(project.Template), 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write project file", err)
		}
		formatter.VerboseLog("Wrote starter project file %s", path)
		result.ProjectFile = path
		result.ProjectCreated = true
	default:
		return WrapExitError(ExitCommandError, "failed to find project file", err)
	}

	result.ConfigDir = proj.Path(proj.ConfigDir)
	result.MetadataDir = proj.Path(proj.MetadataDir)
	if err := cache.Open(result.ConfigDir, result.MetadataDir).Init(); err != nil {
		return WrapExitError(ExitCommandError, "failed to create cache directories", err)
	}
	return formatter.Success(result)
}
