package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/callscript/internal/model"
)

// Layout of the config and metadata trees.
const (
	applicationsDir       = "applications"
	scenariosDir          = "scenarios"
	rulesDir              = "rules"
	metadataDir           = "metadata"
	applicationConfigFile = "application.config.json"
	rulesConfigFile       = "rules.config.json"
)

// ApplicationConfig is the content of application.config.json.
type ApplicationConfig struct {
	Name string `json:"name"`
}

// Cache gives access to a project's config and metadata trees.
type Cache struct {
	configDir   string
	metadataDir string

	scenarios    *jsonStore[model.ScenarioMetadata]
	applications *jsonStore[model.ApplicationMetadata]
}

// Open returns a cache rooted at the given directories. Nothing is created
// on disk until a record is written or Init is called.
func Open(configDir, stateDir string) *Cache {
	meta := filepath.Join(stateDir, metadataDir)
	return &Cache{
		configDir:    configDir,
		metadataDir:  meta,
		scenarios:    newJSONStore[model.ScenarioMetadata](filepath.Join(meta, scenariosDir)),
		applications: newJSONStore[model.ApplicationMetadata](filepath.Join(meta, applicationsDir)),
	}
}

// Scenarios is the store of per-scenario sync records.
func (c *Cache) Scenarios() ArtifactStore[model.ScenarioMetadata] {
	return c.scenarios
}

// Applications is the store of resolved application identities.
func (c *Cache) Applications() ArtifactStore[model.ApplicationMetadata] {
	return c.applications
}

// Rules is the store of rule sync records for one application.
func (c *Cache) Rules(app string) ArtifactStore[model.RuleMetadata] {
	return newJSONStore[model.RuleMetadata](filepath.Join(c.metadataDir, rulesDir, app))
}

// MetadataDir is the root of the metadata tree.
func (c *Cache) MetadataDir() string {
	return c.metadataDir
}

// Init creates the config and metadata trees. It is safe to call repeatedly.
func (c *Cache) Init() error {
	dirs := []string{
		filepath.Join(c.configDir, applicationsDir),
		filepath.Join(c.metadataDir, scenariosDir),
		filepath.Join(c.metadataDir, applicationsDir),
		filepath.Join(c.metadataDir, rulesDir),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Cleanup removes the whole metadata tree. The config tree is left alone.
func (c *Cache) Cleanup() error {
	if err := os.RemoveAll(c.metadataDir); err != nil {
		return fmt.Errorf("remove %s: %w", c.metadataDir, err)
	}
	return nil
}

func (c *Cache) applicationDir(app string) string {
	return filepath.Join(c.configDir, applicationsDir, app)
}

// ReadApplicationConfig reads application.config.json for app.
func (c *Cache) ReadApplicationConfig(app string) (ApplicationConfig, bool, error) {
	var cfg ApplicationConfig
	if err := checkName(app); err != nil {
		return cfg, false, err
	}
	found, err := readJSON(filepath.Join(c.applicationDir(app), applicationConfigFile), &cfg)
	if err != nil || !found {
		return ApplicationConfig{}, false, err
	}
	return cfg, true, nil
}

// WriteApplicationConfig writes application.config.json for app.
func (c *Cache) WriteApplicationConfig(app string, cfg ApplicationConfig) error {
	if err := checkName(app); err != nil {
		return err
	}
	return writeJSON(filepath.Join(c.applicationDir(app), applicationConfigFile), cfg)
}

// ReadRulesConfig reads the declared rules of app in file order.
func (c *Cache) ReadRulesConfig(app string) ([]model.Rule, bool, error) {
	if err := checkName(app); err != nil {
		return nil, false, err
	}
	var rules []model.Rule
	found, err := readJSON(filepath.Join(c.applicationDir(app), rulesConfigFile), &rules)
	if err != nil || !found {
		return nil, false, err
	}
	return rules, true, nil
}

// WriteRulesConfig replaces the declared rules of app.
func (c *Cache) WriteRulesConfig(app string, rules []model.Rule) error {
	if err := checkName(app); err != nil {
		return err
	}
	if rules == nil {
		rules = []model.Rule{}
	}
	return writeJSON(filepath.Join(c.applicationDir(app), rulesConfigFile), rules)
}

// ListApplications returns the names of applications in the config tree.
func (c *Cache) ListApplications() ([]string, error) {
	dir := filepath.Join(c.configDir, applicationsDir)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
