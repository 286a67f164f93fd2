package project

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAMLKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "callscript.yaml", `
account_id: 42
account_name: acme
source_dir: scripts
`)
	t.Setenv(EnvAPIKey, "secret")

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(42), p.AccountID)
	assert.Equal(t, "acme", p.AccountName)
	assert.Equal(t, "scripts", p.SourceDir)
	assert.Equal(t, "voximplant.com", p.PlatformDomain)
	assert.Equal(t, "voxfiles", p.ConfigDir)
	assert.Equal(t, ".callscript", p.MetadataDir)
	assert.Equal(t, 3, p.Retries)
	assert.Equal(t, 30*time.Second, p.TimeoutDuration())
	assert.Equal(t, "secret", p.APIKey)
	assert.Equal(t, filepath.Join(p.Root, "scripts"), p.Path(p.SourceDir))
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "callscript.toml", `
account_id = 7
account_name = "acme"
typescript_command = ["npx", "esbuild"]
timeout = "5s"
retries = 0
`)

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.AccountID)
	assert.Equal(t, []string{"npx", "esbuild"}, p.TypeScriptCommand)
	assert.Equal(t, 5*time.Second, p.TimeoutDuration())
	assert.Equal(t, 0, p.Retries)

	opts := p.PlatformOptions()
	assert.Equal(t, "7", opts.AccountID)
	assert.Equal(t, 0, opts.Retries)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()

	yamlPath := writeFile(t, dir, "callscript.yaml", "account_id: 1\naccount_name: a\napi_key: nope\n")
	_, err := Load(yamlPath)
	require.Error(t, err)

	tomlPath := writeFile(t, dir, "callscript.toml", "account_id = 1\naccount_name = \"a\"\napi_key = \"nope\"\n")
	_, err = Load(tomlPath)
	require.Error(t, err)
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing account id", "account_name: acme\n", "account_id"},
		{"empty account name", "account_id: 1\n", "account_name"},
		{"bad api url", "account_id: 1\naccount_name: acme\napi_url: ftp://x\n", "api_url"},
		{"negative retries", "account_id: 1\naccount_name: acme\nretries: -1\n", "retries"},
		{"bad timeout", "account_id: 1\naccount_name: acme\ntimeout: soon\n", "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "callscript.yaml", tt.content)
			_, err := Load(path)
			require.Error(t, err)

			var perr *Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, path, perr.Path)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "callscript.json", "{}")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestFind(t *testing.T) {
	dir := t.TempDir()

	_, err := Find(dir)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	writeFile(t, dir, "callscript.toml", "")
	path, err := Find(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "callscript.toml"), path)

	writeFile(t, dir, "callscript.yaml", "")
	path, err = Find(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "callscript.yaml"), path)
}

func TestPath_AbsoluteUnchanged(t *testing.T) {
	p := Default()
	p.Root = "/project"
	assert.Equal(t, "/elsewhere", p.Path("/elsewhere"))
	assert.Equal(t, filepath.Join("/project", "voxfiles"), p.Path(p.ConfigDir))
}
