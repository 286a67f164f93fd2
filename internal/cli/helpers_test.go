package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/callscript/internal/cache"
	"github.com/roach88/callscript/internal/model"
	"github.com/roach88/callscript/internal/project"
	"github.com/roach88/callscript/internal/store"
	"github.com/roach88/callscript/internal/testutil"
)

const testProjectFile = `account_id: 7
account_name: acme
`

// testProject is a project directory with one application "main" whose
// single rule routes to scenario greet.
type testProject struct {
	dir     string
	file    string
	fake    *testutil.FakePlatform
	journal []store.Option
}

func newTestProject(t *testing.T) *testProject {
	t.Helper()
	t.Setenv(project.EnvAPIKey, "")

	dir := t.TempDir()
	file := filepath.Join(dir, "callscript.yaml")
	require.NoError(t, os.WriteFile(file, []byte(testProjectFile), 0o644))

	c := cache.Open(filepath.Join(dir, "voxfiles"), filepath.Join(dir, ".callscript"))
	require.NoError(t, c.WriteRulesConfig("main", []model.Rule{
		{Name: "inbound", Pattern: ".*", Scenarios: []string{"greet"}},
	}))

	p := &testProject{
		dir:  dir,
		file: file,
		fake: testutil.NewFakePlatform(),
		journal: []store.Option{
			store.WithIDGenerator(testutil.NewSequentialRunIDs("run")),
			store.WithClock(testutil.NewStepClock().Now),
		},
	}
	p.writeSource(t, "greet", "greet-v1")
	return p
}

func (p *testProject) writeSource(t *testing.T, name, script string) {
	t.Helper()
	src := filepath.Join(p.dir, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, name+".js"), []byte(script), 0o644))
}

func (p *testProject) rootOptions(format string) *RootOptions {
	return &RootOptions{Format: format, Project: p.file}
}

// upload runs the upload command against the fake platform and returns
// stdout and stderr.
func (p *testProject) upload(t *testing.T, format string, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := newUploadCommand(&UploadOptions{
		RootOptions:    p.rootOptions(format),
		Client:         p.fake,
		JournalOptions: p.journal,
	})
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func (p *testProject) history(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewHistoryCommand(p.rootOptions(format))
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.Execute()
	return out.String(), err
}
