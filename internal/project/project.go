// Package project loads the callscript project file.
//
// A project file is either callscript.yaml or callscript.toml. Absent keys keep
// their defaults, unknown keys are rejected, and the decoded result is checked
// against an embedded CUE schema.
package project

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/callscript/internal/model"
	"github.com/roach88/callscript/internal/platform"
)

// EnvAPIKey names the environment variable holding the platform API key.
const EnvAPIKey = "CALLSCRIPT_API_KEY"

// FileNames lists the project file names in lookup order.
var FileNames = []string{"callscript.yaml", "callscript.yml", "callscript.toml"}

//go:embed schema.cue
var schemaSource string

// Project is the decoded project file.
type Project struct {
	AccountID         int64    `json:"account_id" yaml:"account_id" toml:"account_id"`
	AccountName       string   `json:"account_name" yaml:"account_name" toml:"account_name"`
	PlatformDomain    string   `json:"platform_domain" yaml:"platform_domain" toml:"platform_domain"`
	APIURL            string   `json:"api_url" yaml:"api_url" toml:"api_url"`
	ConfigDir         string   `json:"config_dir" yaml:"config_dir" toml:"config_dir"`
	MetadataDir       string   `json:"metadata_dir" yaml:"metadata_dir" toml:"metadata_dir"`
	SourceDir         string   `json:"source_dir" yaml:"source_dir" toml:"source_dir"`
	DistDir           string   `json:"dist_dir" yaml:"dist_dir" toml:"dist_dir"`
	TypeScriptCommand []string `json:"typescript_command,omitempty" yaml:"typescript_command,omitempty" toml:"typescript_command,omitempty"`
	Timeout           string   `json:"timeout" yaml:"timeout" toml:"timeout"`
	Retries           int      `json:"retries" yaml:"retries" toml:"retries"`

	// APIKey is read from EnvAPIKey and never stored in the file.
	APIKey string `json:"-" yaml:"-" toml:"-"`
	// Root is the directory containing the project file.
	Root string `json:"-" yaml:"-" toml:"-"`
}

// Default returns a project with every optional field set.
func Default() Project {
	return Project{
		PlatformDomain: model.DefaultPlatformDomain,
		APIURL:         platform.DefaultAPIURL,
		ConfigDir:      "voxfiles",
		MetadataDir:    ".callscript",
		SourceDir:      "src",
		DistDir:        "dist",
		Timeout:        "30s",
		Retries:        3,
	}
}

// Error reports an invalid project file.
type Error struct {
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Find returns the first project file present in dir.
func Find(dir string) (string, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no project file (%s) in %s: %w", FileNames[0], dir, fs.ErrNotExist)
}

// Load decodes and validates the project file at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}

	p := Default()
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return nil, &Error{Path: path, Message: err.Error(), Err: err}
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, &Error{Path: path, Message: err.Error(), Err: err}
		}
	default:
		return nil, &Error{Path: path, Message: fmt.Sprintf("unsupported project file extension %q", ext)}
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	p.Root = abs
	p.APIKey = os.Getenv(EnvAPIKey)

	if err := p.Validate(); err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return &p, nil
}

// Validate checks the project against the embedded schema.
func (p *Project) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile project schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Project")).Unify(ctx.Encode(p))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return schemaError(err)
	}
	if _, err := time.ParseDuration(p.Timeout); err != nil {
		return &Error{Message: fmt.Sprintf("timeout: %v", err), Err: err}
	}
	return nil
}

// schemaError keeps the first CUE error, which names the offending field.
func schemaError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error(), Err: err}
	}
	return &Error{Message: errs[0].Error(), Err: err}
}

// TimeoutDuration returns the parsed per-request timeout.
func (p *Project) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Path resolves a project-relative directory against Root.
func (p *Project) Path(dir string) string {
	if filepath.IsAbs(dir) || p.Root == "" {
		return dir
	}
	return filepath.Join(p.Root, dir)
}

// PlatformOptions returns the HTTP client options for this project.
func (p *Project) PlatformOptions() platform.Options {
	return platform.Options{
		BaseURL:   p.APIURL,
		AccountID: strconv.FormatInt(p.AccountID, 10),
		APIKey:    p.APIKey,
		Timeout:   p.TimeoutDuration(),
		Retries:   p.Retries,
	}
}

// Template is the starter project file written by init.
const Template = `# callscript project file
account_id: 0          # platform account id
account_name: ""       # platform account name, used to qualify application names
# platform_domain: voximplant.com
# api_url: https://api.voximplant.com/platform_api
# config_dir: voxfiles
# metadata_dir: .callscript
# source_dir: src
# dist_dir: dist
# typescript_command: ["npx", "esbuild", "--bundle", "--format=esm"]
# timeout: 30s
# retries: 3
`
