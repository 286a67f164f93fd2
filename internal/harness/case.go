package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/callscript/internal/model"
)

// Case is a deploy conformance case.
type Case struct {
	// Name uniquely identifies this case and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this case validates.
	Description string `yaml:"description"`

	// Account is the account name used to qualify the application.
	// Defaults to "acme".
	Account string `yaml:"account,omitempty"`

	// Application is the application name passed to every upload.
	Application string `yaml:"application"`

	// Remote is the platform state before the first step.
	Remote Remote `yaml:"remote,omitempty"`

	// Rules is the initial rules config of the application.
	Rules []RuleDecl `yaml:"rules"`

	// Sources maps scenario names to their built scripts.
	Sources map[string]string `yaml:"sources"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Remote seeds the fake platform. Seeding order is applications, scenarios,
// rules, which fixes the ids they receive.
type Remote struct {
	Applications []string         `yaml:"applications,omitempty"`
	Scenarios    []RemoteScenario `yaml:"scenarios,omitempty"`
	Rules        []RemoteRule     `yaml:"rules,omitempty"`
}

// RemoteScenario is a scenario that already exists on the platform.
type RemoteScenario struct {
	Name   string `yaml:"name"`
	Script string `yaml:"script"`
}

// RemoteRule is a rule that already exists on the platform.
type RemoteRule struct {
	Application string   `yaml:"application"`
	Name        string   `yaml:"name"`
	Pattern     string   `yaml:"pattern"`
	Scenarios   []string `yaml:"scenarios,omitempty"`
}

// RuleDecl is a rule in the local rules config.
type RuleDecl struct {
	Name      string   `yaml:"name"`
	Pattern   string   `yaml:"pattern"`
	Scenarios []string `yaml:"scenarios"`
}

// Step is one action of a case. Exactly one action field must be set.
type Step struct {
	Upload       *Upload    `yaml:"upload,omitempty"`
	EditLocal    *Edit      `yaml:"edit_local,omitempty"`
	EditRemote   *Edit      `yaml:"edit_remote,omitempty"`
	DeleteRemote string     `yaml:"delete_remote,omitempty"`
	SetRules     []RuleDecl `yaml:"set_rules,omitempty"`

	// Expect is checked after an upload step.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Upload runs the orchestrator.
type Upload struct {
	Rule   string `yaml:"rule,omitempty"`
	Force  bool   `yaml:"force,omitempty"`
	DryRun bool   `yaml:"dry_run,omitempty"`
}

// Edit replaces a scenario's script locally or remotely.
type Edit struct {
	Scenario string `yaml:"scenario"`
	Script   string `yaml:"script"`
}

// Expect describes the outcome of an upload step.
type Expect struct {
	// Error is the expected error code, e.g. CONFLICT. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Mutations, when present, is the exact list of mutating calls.
	Mutations *[]string `yaml:"mutations,omitempty"`

	// Scenarios and Rules map names to the expected action.
	Scenarios map[string]string `yaml:"scenarios,omitempty"`
	Rules     map[string]string `yaml:"rules,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Scenario string   `yaml:"scenario,omitempty"`
	Script   string   `yaml:"script,omitempty"`
	Rule     string   `yaml:"rule,omitempty"`
	Rules    []string `yaml:"rules,omitempty"`
	Names    []string `yaml:"scenarios,omitempty"`
	Statuses []string `yaml:"statuses,omitempty"`
}

// Assertion type constants.
const (
	AssertRemoteScript = "remote_script"
	AssertCacheInSync  = "cache_in_sync"
	AssertRuleOrder    = "rule_order"
	AssertRuleBindings = "rule_bindings"
	AssertJournal      = "journal"
)

func toRules(decls []RuleDecl) []model.Rule {
	rules := make([]model.Rule, len(decls))
	for i, d := range decls {
		rules[i] = model.Rule{Name: d.Name, Pattern: d.Pattern, Scenarios: d.Scenarios}
	}
	return rules
}

// LoadCase reads and parses a case YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var c Case
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateCase(&c); err != nil {
		return nil, fmt.Errorf("invalid case: %w", err)
	}
	return &c, nil
}

// validateCase checks that required fields are present and valid.
func validateCase(c *Case) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Description == "" {
		return fmt.Errorf("description is required")
	}
	if c.Application == "" {
		return fmt.Errorf("application is required")
	}
	if len(c.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range c.Steps {
		actions := 0
		if step.Upload != nil {
			actions++
		}
		if step.EditLocal != nil {
			actions++
		}
		if step.EditRemote != nil {
			actions++
		}
		if step.DeleteRemote != "" {
			actions++
		}
		if step.SetRules != nil {
			actions++
		}
		if actions != 1 {
			return fmt.Errorf("step %d: exactly one action is required, got %d", i+1, actions)
		}
		if step.Expect != nil && step.Upload == nil {
			return fmt.Errorf("step %d: expect is only valid on upload steps", i+1)
		}
	}

	for i, a := range c.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i+1, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertRemoteScript, AssertCacheInSync:
		if a.Scenario == "" {
			return fmt.Errorf("%s requires scenario", a.Type)
		}
	case AssertRuleBindings:
		if a.Rule == "" {
			return fmt.Errorf("%s requires rule", a.Type)
		}
	case AssertRuleOrder, AssertJournal:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
