package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/callscript/internal/reconcile"
)

func TestUploadFirstRun(t *testing.T) {
	p := newTestProject(t)

	out, _, err := p.upload(t, "text", "-a", "main")
	require.NoError(t, err)
	assert.Equal(t, "application main.acme.voximplant.com (101): created\n"+
		"scenario greet: created (102)\n"+
		"rule inbound: created (103)\n", out)

	dist, err := os.ReadFile(filepath.Join(p.dir, "dist", "greet.js"))
	require.NoError(t, err)
	assert.Equal(t, "greet-v1", string(dist))
	assert.Equal(t, []byte("greet-v1"), p.fake.Script(102))

	assert.FileExists(t, filepath.Join(p.dir, ".callscript", "metadata", "scenarios", "greet.json"))
	assert.FileExists(t, filepath.Join(p.dir, ".callscript", JournalFile))
}

func TestUploadUnchangedMakesNoMutations(t *testing.T) {
	p := newTestProject(t)
	_, _, err := p.upload(t, "text", "-a", "main")
	require.NoError(t, err)
	p.fake.ResetCalls()

	out, _, err := p.upload(t, "text", "-a", "main")
	require.NoError(t, err)
	assert.Contains(t, out, "application main.acme.voximplant.com (101): found")
	assert.Contains(t, out, "scenario greet: skipped (102)")
	assert.Contains(t, out, "rule inbound: skipped (103)")
	assert.Empty(t, p.fake.Mutations())
}

func TestUploadConflictThenForce(t *testing.T) {
	p := newTestProject(t)
	_, _, err := p.upload(t, "text", "-a", "main")
	require.NoError(t, err)

	p.fake.EditScript(102, []byte("edited in the console"))
	p.writeSource(t, "greet", "greet-v2")

	out, _, err := p.upload(t, "text", "-a", "main")
	require.Error(t, err)
	assert.True(t, reconcile.IsConflict(err))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "application main.acme.voximplant.com (101): found")
	assert.Contains(t, out, "Error [CONFLICT]")
	assert.Equal(t, []byte("edited in the console"), p.fake.Script(102))

	out, _, err = p.upload(t, "text", "-a", "main", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "scenario greet: updated (102) [remote changes overwritten]")
	assert.Equal(t, []byte("greet-v2"), p.fake.Script(102))
}

func TestUploadJSON(t *testing.T) {
	p := newTestProject(t)

	out, _, err := p.upload(t, "json", "-a", "main")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			RunID       string `json:"run_id"`
			Application struct {
				Name string `json:"name"`
				ID   int64  `json:"id"`
			} `json:"application"`
			Scenarios []struct {
				Name   string `json:"name"`
				Action string `json:"action"`
			} `json:"scenarios"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.Data.RunID)
	assert.Equal(t, "main.acme.voximplant.com", resp.Data.Application.Name)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "created", resp.Data.Scenarios[0].Action)
}

func TestUploadJSONError(t *testing.T) {
	p := newTestProject(t)

	out, _, err := p.upload(t, "json", "-a", "other")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(reconcile.ErrCodeNotFound), resp.Error.Code)
}

func TestUploadDryRun(t *testing.T) {
	p := newTestProject(t)

	out, _, err := p.upload(t, "text", "-a", "main", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "application main.acme.voximplant.com: would be created")
	assert.Contains(t, out, "scenario greet: would be created")
	assert.Contains(t, out, "dry run: no changes made")
	assert.Empty(t, p.fake.Mutations())
	assert.NoFileExists(t, filepath.Join(p.dir, ".callscript", "metadata", "scenarios", "greet.json"))
}

func TestUploadMissingSource(t *testing.T) {
	p := newTestProject(t)
	require.NoError(t, os.Remove(filepath.Join(p.dir, "src", "greet.js")))

	out, _, err := p.upload(t, "text", "-a", "main")
	require.Error(t, err)
	assert.True(t, reconcile.IsCompilationError(err))
	assert.Contains(t, out, "Error [COMPILATION_ERROR]")
}

func TestUploadNoApplication(t *testing.T) {
	p := newTestProject(t)

	_, _, err := p.upload(t, "text")
	require.Error(t, err)
	assert.True(t, reconcile.IsNotFound(err))
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Empty(t, p.fake.Calls())
}

func TestUploadMissingProject(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewUploadCommand(&RootOptions{Format: "text", Project: filepath.Join(t.TempDir(), "callscript.yaml")})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"-a", "main"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load project")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUploadRequiresAPIKey(t *testing.T) {
	p := newTestProject(t)

	buf := &bytes.Buffer{}
	cmd := NewUploadCommand(p.rootOptions("text"))
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"-a", "main"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CALLSCRIPT_API_KEY")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUploadInvalidProject(t *testing.T) {
	p := newTestProject(t)
	require.NoError(t, os.WriteFile(p.file, []byte("account_id: -1\naccount_name: acme\n"), 0o644))

	_, _, err := p.upload(t, "text", "-a", "main")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Empty(t, p.fake.Calls())
}
