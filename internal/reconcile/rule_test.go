package reconcile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/callscript/internal/cache"
	"github.com/roach88/callscript/internal/model"
	"github.com/roach88/callscript/internal/testutil"
)

const testApp = "ivr.acme.voximplant.com"

type ruleFixture struct {
	fake  *testutil.FakePlatform
	cache *cache.Cache
	app   model.Application
	rec   *RuleReconciler
}

func newRuleFixture(t *testing.T) *ruleFixture {
	t.Helper()
	root := t.TempDir()
	c := cache.Open(filepath.Join(root, "voxfiles"), filepath.Join(root, ".callscript"))
	fake := testutil.NewFakePlatform()
	app := model.Application{Name: testApp, ID: fake.SeedApplication(testApp)}
	return &ruleFixture{
		fake:  fake,
		cache: c,
		app:   app,
		rec:   NewRuleReconciler(fake, c.Scenarios(), c.Rules(testApp), testutil.DiscardLogger()),
	}
}

// synced seeds a scenario on the fake platform and caches it as synced.
func (f *ruleFixture) synced(t *testing.T, name string) int64 {
	t.Helper()
	script := []byte("// " + name)
	id := f.fake.SeedScenario(name, script)
	require.NoError(t, f.cache.Scenarios().Write(name, model.ScenarioMetadata{Name: name, RemoteID: id, ContentHash: model.ContentHash(script)}))
	return id
}

func TestRuleReconcile_CreatesMissingRules(t *testing.T) {
	f := newRuleFixture(t)
	greet := f.synced(t, "greet")
	route := f.synced(t, "route")

	report, err := f.rec.Reconcile(context.Background(), f.app, []model.Rule{
		{Name: "inbound", Pattern: ".*", Scenarios: []string{"greet", "route"}},
		{Name: "outbound", Pattern: "\\+1.*", Scenarios: []string{"route"}},
	})
	require.NoError(t, err)

	require.Len(t, report.Rules, 2)
	assert.Equal(t, ActionCreated, report.Rules[0].Action)
	assert.Equal(t, ActionCreated, report.Rules[1].Action)
	assert.False(t, report.Reordered, "rules created in declared order need no reorder")
	assert.Empty(t, f.fake.CallsTo("ReorderRules"))

	inbound, ok := f.fake.Rule(f.app.ID, "inbound")
	require.True(t, ok)
	assert.Equal(t, []int64{greet, route}, inbound.ScenarioIDs())
	assert.Equal(t, []int64{report.Rules[0].RemoteID, report.Rules[1].RemoteID}, report.Order)

	rec, found, err := f.cache.Rules(testApp).Read("inbound")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.RuleMetadata{
		Name:      "inbound",
		RemoteID:  inbound.ID,
		Pattern:   ".*",
		Scenarios: []model.ScenarioRef{{Name: "greet", ID: greet}, {Name: "route", ID: route}},
	}, rec)
}

func TestRuleReconcile_UnchangedRulesAreLeftAlone(t *testing.T) {
	f := newRuleFixture(t)
	greet := f.synced(t, "greet")
	f.fake.SeedRule(f.app.ID, "inbound", ".*", greet)

	report, err := f.rec.Reconcile(context.Background(), f.app, []model.Rule{
		{Name: "inbound", Pattern: ".*", Scenarios: []string{"greet"}},
	})
	require.NoError(t, err)

	assert.Equal(t, ActionSkipped, report.Rules[0].Action)
	assert.Empty(t, f.fake.Mutations())
}

func TestRuleReconcile_PatternOnlyUpdate(t *testing.T) {
	f := newRuleFixture(t)
	greet := f.synced(t, "greet")
	ruleID := f.fake.SeedRule(f.app.ID, "inbound", ".*", greet)

	report, err := f.rec.Reconcile(context.Background(), f.app, []model.Rule{
		{Name: "inbound", Pattern: "^100$", Scenarios: []string{"greet"}},
	})
	require.NoError(t, err)

	out := report.Rules[0]
	assert.Equal(t, ActionUpdated, out.Action)
	assert.True(t, out.PatternUpdated)
	assert.False(t, out.Rebound)
	assert.Equal(t, []string{"UpdateRulePattern 103 ^100$"}, f.fake.Mutations())
	assert.Equal(t, int64(103), ruleID)
}

func TestRuleReconcile_RebindsInDeclaredOrder(t *testing.T) {
	f := newRuleFixture(t)
	greet := f.synced(t, "greet")
	route := f.synced(t, "route")
	ruleID := f.fake.SeedRule(f.app.ID, "inbound", ".*", route, greet)

	report, err := f.rec.Reconcile(context.Background(), f.app, []model.Rule{
		{Name: "inbound", Pattern: ".*", Scenarios: []string{"greet", "route"}},
	})
	require.NoError(t, err)

	assert.True(t, report.Rules[0].Rebound)
	assert.False(t, report.Rules[0].PatternUpdated)
	assert.Equal(t, []string{
		"BindScenarioToRule 104 103 false",
		"BindScenarioToRule 104 102 false",
		"BindScenarioToRule 104 102 true",
		"BindScenarioToRule 104 103 true",
	}, f.fake.Mutations())

	rule, _ := f.fake.Rule(f.app.ID, "inbound")
	assert.Equal(t, ruleID, rule.ID)
	assert.Equal(t, []int64{greet, route}, rule.ScenarioIDs())
}

func TestRuleReconcile_ReorderWhenOrderDiffers(t *testing.T) {
	f := newRuleFixture(t)
	greet := f.synced(t, "greet")
	ruleB := f.fake.SeedRule(f.app.ID, "ruleB", ".*", greet)
	ruleA := f.fake.SeedRule(f.app.ID, "ruleA", ".*", greet)

	report, err := f.rec.Reconcile(context.Background(), f.app, []model.Rule{
		{Name: "ruleA", Pattern: ".*", Scenarios: []string{"greet"}},
		{Name: "ruleB", Pattern: ".*", Scenarios: []string{"greet"}},
	})
	require.NoError(t, err)

	assert.True(t, report.Reordered)
	assert.Equal(t, []int64{ruleA, ruleB}, report.Order)
	assert.Equal(t, []string{"ReorderRules 101 104;103"}, f.fake.Mutations())
	assert.Equal(t, []int64{ruleA, ruleB}, f.fake.RuleOrder(f.app.ID))
}

func TestRuleReconcile_NoReorderWhenOrderMatches(t *testing.T) {
	f := newRuleFixture(t)
	greet := f.synced(t, "greet")
	f.fake.SeedRule(f.app.ID, "ruleA", ".*", greet)
	f.fake.SeedRule(f.app.ID, "ruleB", ".*", greet)

	report, err := f.rec.Reconcile(context.Background(), f.app, []model.Rule{
		{Name: "ruleA", Pattern: ".*", Scenarios: []string{"greet"}},
		{Name: "ruleB", Pattern: ".*", Scenarios: []string{"greet"}},
	})
	require.NoError(t, err)

	assert.False(t, report.Reordered)
	assert.Empty(t, f.fake.CallsTo("ReorderRules"))
}

func TestRuleReconcile_UndeclaredRemoteRulesIgnoredForOrder(t *testing.T) {
	f := newRuleFixture(t)
	greet := f.synced(t, "greet")
	f.fake.SeedRule(f.app.ID, "ruleA", ".*", greet)
	f.fake.SeedRule(f.app.ID, "manual", ".*", greet)
	f.fake.SeedRule(f.app.ID, "ruleB", ".*", greet)

	report, err := f.rec.Reconcile(context.Background(), f.app, []model.Rule{
		{Name: "ruleA", Pattern: ".*", Scenarios: []string{"greet"}},
		{Name: "ruleB", Pattern: ".*", Scenarios: []string{"greet"}},
	})
	require.NoError(t, err)
	assert.False(t, report.Reordered)
}

func TestRuleReconcile_NewRuleAppendedThenReordered(t *testing.T) {
	f := newRuleFixture(t)
	greet := f.synced(t, "greet")
	existing := f.fake.SeedRule(f.app.ID, "fallback", ".*", greet)

	report, err := f.rec.Reconcile(context.Background(), f.app, []model.Rule{
		{Name: "vip", Pattern: "^1000$", Scenarios: []string{"greet"}},
		{Name: "fallback", Pattern: ".*", Scenarios: []string{"greet"}},
	})
	require.NoError(t, err)

	created := report.Rules[0].RemoteID
	assert.True(t, report.Reordered)
	assert.Equal(t, []int64{created, existing}, f.fake.RuleOrder(f.app.ID))
	assert.Len(t, f.fake.CallsTo("ReorderRules"), 1)
}

func TestRuleReconcile_UnsyncedScenarioIsNotFound(t *testing.T) {
	f := newRuleFixture(t)

	_, err := f.rec.Reconcile(context.Background(), f.app, []model.Rule{
		{Name: "inbound", Pattern: ".*", Scenarios: []string{"greet"}},
	})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Empty(t, f.fake.Mutations())
}

func TestRuleReconcile_DuplicateRuleNames(t *testing.T) {
	f := newRuleFixture(t)

	_, err := f.rec.Reconcile(context.Background(), f.app, []model.Rule{
		{Name: "inbound", Pattern: ".*"},
		{Name: "inbound", Pattern: ".*"},
	})
	require.Error(t, err)
	assert.True(t, IsDuplicateName(err))
	assert.Empty(t, f.fake.Calls())
}

func TestRuleReconcile_UnresolvedApplication(t *testing.T) {
	f := newRuleFixture(t)

	_, err := f.rec.Reconcile(context.Background(), model.Application{Name: "new.acme.voximplant.com"}, nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
