package harness

import (
	"context"
	"fmt"

	"github.com/roach88/callscript/internal/model"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// evaluate runs every assertion and returns the failure messages.
func (h *Harness) evaluate(ctx context.Context, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertRemoteScript:
			err = h.assertRemoteScript(a)
		case AssertCacheInSync:
			err = h.assertCacheInSync(a)
		case AssertRuleOrder:
			err = h.assertRuleOrder(a)
		case AssertRuleBindings:
			err = h.assertRuleBindings(a)
		case AssertJournal:
			err = h.assertJournal(ctx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func (h *Harness) assertRemoteScript(a Assertion) error {
	id, ok := h.platform.ScenarioID(a.Scenario)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("scenario %s on the platform", a.Scenario), Actual: "absent"}
	}
	if got := string(h.platform.Script(id)); got != a.Script {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("%s = %q", a.Scenario, a.Script), Actual: fmt.Sprintf("%q", got)}
	}
	return nil
}

// assertCacheInSync checks that the cached record points at the remote
// scenario and hashes its current content.
func (h *Harness) assertCacheInSync(a Assertion) error {
	rec, found, err := h.cache.Scenarios().Read(a.Scenario)
	if err != nil || !found {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("cache entry for %s", a.Scenario), Actual: fmt.Sprintf("found=%t err=%v", found, err)}
	}
	id, ok := h.platform.ScenarioID(a.Scenario)
	if !ok || id != rec.RemoteID {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("remote id %d", rec.RemoteID), Actual: fmt.Sprintf("%d (present=%t)", id, ok)}
	}
	if hash := model.ContentHash(h.platform.Script(id)); hash != rec.ContentHash {
		return &AssertionError{Type: a.Type, Expected: "cached hash " + rec.ContentHash, Actual: "remote hash " + hash}
	}
	return nil
}

func (h *Harness) assertRuleOrder(a Assertion) error {
	var names []string
	if appID, ok := h.platform.ApplicationID(h.app); ok {
		names = h.platform.RuleNames(appID)
	}
	if !equalStrings(names, a.Rules) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Rules), Actual: fmt.Sprint(names)}
	}
	return nil
}

func (h *Harness) assertRuleBindings(a Assertion) error {
	appID, _ := h.platform.ApplicationID(h.app)
	rule, ok := h.platform.Rule(appID, a.Rule)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("rule %s on the platform", a.Rule), Actual: "absent"}
	}
	var names []string
	for _, ref := range rule.Scenarios {
		names = append(names, ref.Name)
	}
	if !equalStrings(names, a.Names) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Names), Actual: fmt.Sprint(names)}
	}
	return nil
}

func (h *Harness) assertJournal(ctx context.Context, a Assertion) error {
	runs, err := h.journal.ListRuns(ctx, 0)
	if err != nil {
		return err
	}
	// ListRuns is newest first.
	statuses := make([]string, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		statuses = append(statuses, string(runs[i].Status))
	}
	if !equalStrings(statuses, a.Statuses) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprint(a.Statuses), Actual: fmt.Sprint(statuses)}
	}
	return nil
}
