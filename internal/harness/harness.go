package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/callscript/internal/cache"
	"github.com/roach88/callscript/internal/deploy"
	"github.com/roach88/callscript/internal/model"
	"github.com/roach88/callscript/internal/reconcile"
	"github.com/roach88/callscript/internal/store"
	"github.com/roach88/callscript/internal/testutil"
)

const defaultAccount = "acme"

// Harness holds the collaborators of one case run.
type Harness struct {
	c        *Case
	platform *testutil.FakePlatform
	cache    *cache.Cache
	builder  *testutil.MapBuilder
	journal  *store.Store
	orch     *deploy.Orchestrator
	app      string
}

// Run executes a case and returns the result.
//
// Each case runs in a fresh temp dir with a fresh fake platform.
// Execution flow:
// 1. Seed the platform and write the local rules config
// 2. Execute steps, checking expectations after each upload
// 3. Evaluate final-state assertions
func Run(c *Case) (*Result, error) {
	dir, err := os.MkdirTemp("", "callscript-case-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	journal, err := store.Open(filepath.Join(dir, "journal.db"),
		store.WithIDGenerator(testutil.NewSequentialRunIDs(c.Name)),
		store.WithClock(testutil.NewStepClock().Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer journal.Close()

	fake := testutil.NewFakePlatform()
	if err := seed(fake, c.Remote); err != nil {
		return nil, err
	}

	ch := cache.Open(filepath.Join(dir, "voxfiles"), filepath.Join(dir, ".callscript"))
	if err := ch.WriteRulesConfig(c.Application, toRules(c.Rules)); err != nil {
		return nil, fmt.Errorf("failed to write rules config: %w", err)
	}

	account := c.Account
	if account == "" {
		account = defaultAccount
	}
	builder := testutil.NewMapBuilder(c.Sources)

	h := &Harness{
		c:        c,
		platform: fake,
		cache:    ch,
		builder:  builder,
		journal:  journal,
		app:      model.CanonicalApplicationName(c.Application, account, model.DefaultPlatformDomain),
		orch: deploy.New(deploy.Config{
			Client:      fake,
			Cache:       ch,
			Builder:     builder,
			AccountName: account,
			Journal:     journal,
			Logger:      testutil.DiscardLogger(),
		}),
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range c.Steps {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	for _, msg := range h.evaluate(ctx, c.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func seed(fake *testutil.FakePlatform, remote Remote) error {
	for _, app := range remote.Applications {
		fake.SeedApplication(app)
	}
	for _, sc := range remote.Scenarios {
		fake.SeedScenario(sc.Name, []byte(sc.Script))
	}
	for _, rule := range remote.Rules {
		appID, ok := fake.ApplicationID(rule.Application)
		if !ok {
			return fmt.Errorf("seed rule %q: unknown application %q", rule.Name, rule.Application)
		}
		ids := make([]int64, 0, len(rule.Scenarios))
		for _, name := range rule.Scenarios {
			id, ok := fake.ScenarioID(name)
			if !ok {
				return fmt.Errorf("seed rule %q: unknown scenario %q", rule.Name, name)
			}
			ids = append(ids, id)
		}
		fake.SeedRule(appID, rule.Name, rule.Pattern, ids...)
	}
	return nil
}

func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) error {
	switch {
	case step.Upload != nil:
		h.upload(ctx, n, *step.Upload, step.Expect, result)
	case step.EditLocal != nil:
		h.builder.Set(step.EditLocal.Scenario, step.EditLocal.Script)
	case step.EditRemote != nil:
		id, ok := h.platform.ScenarioID(step.EditRemote.Scenario)
		if !ok {
			return fmt.Errorf("edit_remote: unknown scenario %q", step.EditRemote.Scenario)
		}
		h.platform.EditScript(id, []byte(step.EditRemote.Script))
	case step.DeleteRemote != "":
		id, ok := h.platform.ScenarioID(step.DeleteRemote)
		if !ok {
			return fmt.Errorf("delete_remote: unknown scenario %q", step.DeleteRemote)
		}
		h.platform.DeleteScenario(id)
	case step.SetRules != nil:
		if err := h.cache.WriteRulesConfig(h.c.Application, toRules(step.SetRules)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) upload(ctx context.Context, n int, up Upload, expect *Expect, result *Result) {
	h.platform.ResetCalls()
	sum, err := h.orch.Upload(ctx, deploy.Request{
		ApplicationName: h.c.Application,
		RuleName:        up.Rule,
		Force:           up.Force,
		DryRun:          up.DryRun,
	})

	sr := StepResult{Step: n, Mutations: []string{}}
	for _, call := range h.platform.Calls() {
		mutation := testutil.IsMutation(call)
		result.Trace = append(result.Trace, TraceEvent{Step: n, Call: call, Mutation: mutation})
		if mutation {
			sr.Mutations = append(sr.Mutations, call)
		}
	}
	if err != nil {
		sr.Error = errorCode(err)
	}
	if sum != nil {
		sr.Summary = sum.String()
	}
	result.Uploads = append(result.Uploads, sr)

	if expect == nil {
		if err != nil {
			result.AddError(fmt.Sprintf("step %d: unexpected error: %v", n, err))
		}
		return
	}
	h.checkExpect(n, expect, sr, sum, err, result)
}

func (h *Harness) checkExpect(n int, expect *Expect, sr StepResult, sum *deploy.Summary, err error, result *Result) {
	if sr.Error != expect.Error {
		result.AddError(fmt.Sprintf("step %d: error = %q, expected %q (%v)", n, sr.Error, expect.Error, err))
	}
	if expect.Mutations != nil && !equalStrings(sr.Mutations, *expect.Mutations) {
		result.AddError(fmt.Sprintf("step %d: mutations = %v, expected %v", n, sr.Mutations, *expect.Mutations))
	}

	actual := make(map[string]string)
	if sum != nil {
		for _, sc := range sum.Scenarios {
			actual[sc.Name] = string(sc.Action)
		}
	}
	for _, name := range sortedKeys(expect.Scenarios) {
		if actual[name] != expect.Scenarios[name] {
			result.AddError(fmt.Sprintf("step %d: scenario %s action = %q, expected %q", n, name, actual[name], expect.Scenarios[name]))
		}
	}

	actualRules := make(map[string]string)
	if sum != nil {
		for _, rule := range sum.Rules {
			actualRules[rule.Name] = string(rule.Action)
		}
	}
	for _, name := range sortedKeys(expect.Rules) {
		if actualRules[name] != expect.Rules[name] {
			result.AddError(fmt.Sprintf("step %d: rule %s action = %q, expected %q", n, name, actualRules[name], expect.Rules[name]))
		}
	}
}

func errorCode(err error) string {
	var re *reconcile.Error
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return "ERROR"
}

func equalStrings(a, b []string) bool {
	return strings.Join(a, "\n") == strings.Join(b, "\n") && len(a) == len(b)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
