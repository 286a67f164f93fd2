package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/callscript/internal/cache"
	"github.com/roach88/callscript/internal/model"
	"github.com/roach88/callscript/internal/platform"
)

// RuleOutcome is the result of reconciling one rule.
type RuleOutcome struct {
	Name           string `json:"name"`
	Action         Action `json:"action"`
	RemoteID       int64  `json:"remote_id"`
	PatternUpdated bool   `json:"pattern_updated,omitempty"`
	Rebound        bool   `json:"rebound,omitempty"`
}

// RuleReport summarises a rule reconciliation pass.
type RuleReport struct {
	Rules     []RuleOutcome `json:"rules"`
	Reordered bool          `json:"reordered"`
	Order     []int64       `json:"order,omitempty"`
}

// RuleReconciler syncs the declared rules of one application.
type RuleReconciler struct {
	client    platform.Client
	scenarios cache.ArtifactStore[model.ScenarioMetadata]
	rules     cache.ArtifactStore[model.RuleMetadata]
	logger    *slog.Logger
}

// NewRuleReconciler creates a reconciler. scenarios supplies the remote ids
// written by scenario reconciliation; rules receives the rule records.
func NewRuleReconciler(client platform.Client, scenarios cache.ArtifactStore[model.ScenarioMetadata], rules cache.ArtifactStore[model.RuleMetadata], logger *slog.Logger) *RuleReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleReconciler{client: client, scenarios: scenarios, rules: rules, logger: logger}
}

// Reconcile creates or updates each rule in declared order, then issues a
// single reorder call if the remote rule order differs from the declared one.
// Rules always converge on the declared state; there is no drift check.
func (r *RuleReconciler) Reconcile(ctx context.Context, app model.Application, rules []model.Rule) (RuleReport, error) {
	var report RuleReport
	if !app.Resolved() {
		return report, NewNotFoundError("application", app.Name, 0)
	}
	if err := CheckDuplicateRules(rules); err != nil {
		return report, err
	}

	existing, err := r.client.ListRules(ctx, app.ID)
	if err != nil {
		return report, WrapPlatformError("list rules", "rule", "", err)
	}
	byName := make(map[string]model.RemoteRule, len(existing))
	for _, rule := range existing {
		byName[rule.Name] = rule
	}

	for _, rule := range rules {
		out, err := r.reconcileRule(ctx, app, rule, byName)
		if err != nil {
			return report, err
		}
		report.Rules = append(report.Rules, out)
	}

	order, reordered, err := r.repairOrder(ctx, app, rules)
	if err != nil {
		return report, err
	}
	report.Order = order
	report.Reordered = reordered
	return report, nil
}

func (r *RuleReconciler) reconcileRule(ctx context.Context, app model.Application, rule model.Rule, byName map[string]model.RemoteRule) (RuleOutcome, error) {
	out := RuleOutcome{Name: rule.Name, Action: ActionSkipped}

	refs, err := r.scenarioRefs(rule)
	if err != nil {
		return out, err
	}
	ids := make([]int64, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}

	remote, exists := byName[rule.Name]
	if !exists {
		id, err := r.client.CreateRule(ctx, app.ID, rule.Name, ids, rule.Pattern)
		if err != nil {
			return out, WrapPlatformError("create rule", "rule", rule.Name, err)
		}
		out.Action = ActionCreated
		out.RemoteID = id
		r.logger.Info("rule created", "rule", rule.Name, "id", id)
	} else {
		out.RemoteID = remote.ID
		if remote.Pattern != rule.Pattern {
			if err := r.client.UpdateRulePattern(ctx, remote.ID, rule.Pattern); err != nil {
				return out, WrapPlatformError("update rule", "rule", rule.Name, err)
			}
			out.PatternUpdated = true
		}
		if platform.JoinIDs(remote.ScenarioIDs()) != platform.JoinIDs(ids) {
			if err := r.rebind(ctx, remote, ids); err != nil {
				return out, err
			}
			out.Rebound = true
		}
		if out.PatternUpdated || out.Rebound {
			out.Action = ActionUpdated
			r.logger.Info("rule updated", "rule", rule.Name, "id", remote.ID,
				"pattern_updated", out.PatternUpdated, "rebound", out.Rebound)
		}
	}

	rec := model.RuleMetadata{Name: rule.Name, RemoteID: out.RemoteID, Pattern: rule.Pattern, Scenarios: refs}
	if err := r.rules.Write(rule.Name, rec); err != nil {
		return out, fmt.Errorf("rule %q: save metadata: %w", rule.Name, err)
	}
	return out, nil
}

// scenarioRefs maps the rule's scenario names to the ids cached by scenario
// reconciliation.
func (r *RuleReconciler) scenarioRefs(rule model.Rule) ([]model.ScenarioRef, error) {
	refs := make([]model.ScenarioRef, 0, len(rule.Scenarios))
	for _, name := range rule.Scenarios {
		rec, found, err := r.scenarios.Read(name)
		if err != nil {
			r.logger.Warn("cached scenario metadata unreadable", "scenario", name, "error", err)
		}
		if !found {
			return nil, NewNotFoundError("scenario", name, 0)
		}
		refs = append(refs, model.ScenarioRef{Name: name, ID: rec.RemoteID})
	}
	return refs, nil
}

// rebind unbinds every scenario currently bound to the rule and binds the
// declared ones in order.
func (r *RuleReconciler) rebind(ctx context.Context, remote model.RemoteRule, ids []int64) error {
	for _, s := range remote.Scenarios {
		if err := r.client.BindScenarioToRule(ctx, remote.ID, s.ID, false); err != nil {
			return WrapPlatformError("unbind scenario", "rule", remote.Name, err)
		}
	}
	for _, id := range ids {
		if err := r.client.BindScenarioToRule(ctx, remote.ID, id, true); err != nil {
			return WrapPlatformError("bind scenario", "rule", remote.Name, err)
		}
	}
	return nil
}

// repairOrder compares the declared rule order with the platform's and
// reorders when they differ. Remote rules that are not declared locally are
// left out of the comparison.
func (r *RuleReconciler) repairOrder(ctx context.Context, app model.Application, rules []model.Rule) ([]int64, bool, error) {
	fresh, err := r.client.ListRules(ctx, app.ID)
	if err != nil {
		return nil, false, WrapPlatformError("list rules", "rule", "", err)
	}
	idByName := make(map[string]int64, len(fresh))
	for _, rule := range fresh {
		idByName[rule.Name] = rule.ID
	}

	desired := make([]int64, 0, len(rules))
	wanted := make(map[int64]bool, len(rules))
	for _, rule := range rules {
		id, ok := idByName[rule.Name]
		if !ok {
			continue
		}
		desired = append(desired, id)
		wanted[id] = true
	}

	current := make([]int64, 0, len(desired))
	for _, rule := range fresh {
		if wanted[rule.ID] {
			current = append(current, rule.ID)
		}
	}

	if platform.JoinIDs(desired) == platform.JoinIDs(current) {
		return desired, false, nil
	}
	if err := r.client.ReorderRules(ctx, app.ID, desired); err != nil {
		return desired, false, WrapPlatformError("reorder rules", "rule", "", err)
	}
	r.logger.Info("rules reordered", "application", app.Name, "order", platform.JoinIDs(desired))
	return desired, true, nil
}

// CheckDuplicateRules rejects rules declared more than once under the same name.
func CheckDuplicateRules(rules []model.Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, rule := range rules {
		if seen[rule.Name] {
			return NewDuplicateNameError("rule", rule.Name, rule.Name)
		}
		seen[rule.Name] = true
	}
	return nil
}
