// Package deploy sequences a full upload: application resolution, build,
// scenario reconciliation, rule reconciliation and rule order repair.
package deploy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/callscript/internal/build"
	"github.com/roach88/callscript/internal/cache"
	"github.com/roach88/callscript/internal/model"
	"github.com/roach88/callscript/internal/platform"
	"github.com/roach88/callscript/internal/reconcile"
	"github.com/roach88/callscript/internal/store"
)

// Journal records upload runs. *store.Store implements it.
type Journal interface {
	BeginRun(ctx context.Context, p store.RunParams) (store.Run, error)
	RecordOutcome(ctx context.Context, runID string, o store.Outcome) error
	FinishRun(ctx context.Context, runID string, runErr error) error
}

// Config wires an Orchestrator.
type Config struct {
	Client         platform.Client
	Cache          *cache.Cache
	Builder        build.Builder
	AccountName    string
	PlatformDomain string

	// Journal is optional.
	Journal Journal
	Logger  *slog.Logger
}

// Orchestrator runs uploads for one project.
type Orchestrator struct {
	client   platform.Client
	cache    *cache.Cache
	builder  build.Builder
	resolver *reconcile.Resolver
	journal  Journal
	logger   *slog.Logger
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	domain := cfg.PlatformDomain
	if domain == "" {
		domain = model.DefaultPlatformDomain
	}
	return &Orchestrator{
		client:   cfg.Client,
		cache:    cfg.Cache,
		builder:  cfg.Builder,
		resolver: reconcile.NewResolver(cfg.Client, cfg.AccountName, domain, logger),
		journal:  cfg.Journal,
		logger:   logger,
	}
}

// Request selects what to upload.
type Request struct {
	ApplicationName string
	ApplicationID   int64
	RuleName        string
	RuleID          int64
	Force           bool
	DryRun          bool
}

func (r Request) ruleTargeted() bool {
	return r.RuleName != "" || r.RuleID != 0
}

// Upload deploys the declared rules of an application and the scenarios they
// reference. On failure the returned summary holds whatever was committed
// before the failing step.
//
// Duplicate names are rejected before any remote mutation. A request that
// names the application only by id first lists applications to learn its
// name, since the rules config is keyed by name; that read is the one remote
// call that can precede the duplicate check.
func (o *Orchestrator) Upload(ctx context.Context, req Request) (*Summary, error) {
	sum := &Summary{DryRun: req.DryRun}

	runID := o.beginRun(ctx, req)
	sum.RunID = runID

	err := o.upload(ctx, req, sum)
	o.finishRun(ctx, runID, sum, err)
	if err != nil {
		return sum, err
	}
	return sum, nil
}

func (o *Orchestrator) upload(ctx context.Context, req Request, sum *Summary) error {
	logger := o.logger.With("dry_run", req.DryRun)

	// An id-only request needs the remote name before config can be found.
	var app model.Application
	name := req.ApplicationName
	if req.ApplicationID != 0 {
		resolved, err := o.resolver.ResolveApplication(ctx, "", req.ApplicationID)
		if err != nil {
			return err
		}
		app = resolved
		name = resolved.Name
	} else if name == "" {
		return reconcile.NewNotFoundError("application", "", 0)
	}

	rules, err := o.declaredRules(name)
	if err != nil {
		return err
	}
	if err := reconcile.CheckDuplicateRules(rules); err != nil {
		return err
	}
	names := scenarioNames(rules)
	if err := reconcile.CheckDuplicateNames(placeholders(names)); err != nil {
		return err
	}

	if !app.Resolved() {
		app, err = o.resolver.ResolveApplication(ctx, name, 0)
		if err != nil {
			return err
		}
	}
	sum.Application = app
	if !app.Resolved() {
		if req.DryRun {
			logger.Info("application would be created", "application", app.Name)
			sum.ApplicationCreated = true
		} else {
			id, err := o.client.CreateApplication(ctx, app.Name)
			if err != nil {
				return reconcile.WrapPlatformError("create application", "application", app.Name, err)
			}
			app.ID = id
			sum.Application = app
			sum.ApplicationCreated = true
			logger.Info("application created", "application", app.Name, "id", id)
		}
	}
	if !req.DryRun {
		meta := model.ApplicationMetadata{Name: app.Name, RemoteID: app.ID}
		if err := o.cache.Applications().Write(app.Name, meta); err != nil {
			return err
		}
	}

	if req.ruleTargeted() {
		rule, ok, err := o.targetRule(ctx, app, req, rules)
		if err != nil {
			return err
		}
		if ok {
			rules = []model.Rule{rule}
			names = scenarioNames(rules)
		}
	}

	scenarios, err := o.builder.Compile(ctx, names)
	if err != nil {
		return reconcile.NewCompilationError(err)
	}

	rec := reconcile.NewScenarioReconciler(o.client, o.cache.Scenarios(), logger)
	if req.DryRun {
		sum.Scenarios, err = rec.PlanAll(ctx, scenarios, req.Force)
		return err
	}
	sum.Scenarios, err = rec.ReconcileAll(ctx, scenarios, req.Force)
	if err != nil {
		return err
	}

	ruleRec := reconcile.NewRuleReconciler(o.client, o.cache.Scenarios(), o.cache.Rules(app.Name), logger)
	report, err := ruleRec.Reconcile(ctx, app, rules)
	sum.Rules = report.Rules
	sum.Reordered = report.Reordered
	if report.Reordered {
		sum.Order = report.Order
	}
	return err
}

// declaredRules reads the rules config keyed by canonical name, falling back
// to the short label.
func (o *Orchestrator) declaredRules(name string) ([]model.Rule, error) {
	canonical := o.resolver.CanonicalName(name)
	keys := []string{canonical}
	if short := model.ShortApplicationName(canonical); short != canonical {
		keys = append(keys, short)
	}

	for _, key := range keys {
		rules, found, err := o.cache.ReadRulesConfig(key)
		var formatErr *cache.FormatError
		if errors.As(err, &formatErr) {
			return nil, reconcile.NewFormatError("rules config", key, err)
		}
		if err != nil {
			return nil, err
		}
		if found {
			o.logger.Debug("rules config loaded", "application", key, "rules", len(rules))
			return rules, nil
		}
	}
	return nil, reconcile.NewNotFoundError("rules config", canonical, 0)
}

// targetRule narrows the declared rules to the one the request names. A dry
// run that cannot match a declared rule returns ok=false and plans them all.
func (o *Orchestrator) targetRule(ctx context.Context, app model.Application, req Request, rules []model.Rule) (model.Rule, bool, error) {
	remote, found, err := o.resolver.ResolveRule(ctx, app, req.RuleName, req.RuleID, req.DryRun)
	if err != nil {
		return model.Rule{}, false, err
	}
	name := req.RuleName
	if found {
		name = remote.Name
	}
	if name != "" {
		for _, rule := range rules {
			if rule.Name == name {
				return rule, true, nil
			}
		}
	}
	if req.DryRun {
		o.logger.Warn("targeted rule not declared, planning all rules", "rule", name, "id", req.RuleID)
		return model.Rule{}, false, nil
	}
	return model.Rule{}, false, reconcile.NewNotFoundError("rule config", name, req.RuleID)
}

// scenarioNames is the union of the rules' scenario lists in declared order.
func scenarioNames(rules []model.Rule) []string {
	seen := make(map[string]bool)
	var names []string
	for _, rule := range rules {
		for _, name := range rule.Scenarios {
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func placeholders(names []string) []model.Scenario {
	out := make([]model.Scenario, len(names))
	for i, name := range names {
		out[i] = model.Scenario{Name: name}
	}
	return out
}
