package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/callscript/internal/cache"
	"github.com/roach88/callscript/internal/model"
	"github.com/roach88/callscript/internal/platform"
)

// Action is what reconciliation did (or would do) to a remote artifact.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
)

// Outcome is the result of reconciling one scenario.
type Outcome struct {
	Name        string `json:"name"`
	Action      Action `json:"action"`
	RemoteID    int64  `json:"remote_id,omitempty"`
	ContentHash string `json:"content_hash"`

	// Adopted is set when the cache entry was created from existing remote state.
	Adopted bool `json:"adopted,omitempty"`

	// Drifted is set when a forced update overwrote out-of-band remote changes.
	Drifted bool `json:"drifted,omitempty"`

	// DryRun is set when the action was only planned.
	DryRun bool `json:"dry_run,omitempty"`
}

// ScenarioReconciler syncs scenarios between the build output, the metadata
// cache and the platform.
type ScenarioReconciler struct {
	client platform.Client
	store  cache.ArtifactStore[model.ScenarioMetadata]
	logger *slog.Logger
}

// NewScenarioReconciler creates a reconciler over the given client and store.
func NewScenarioReconciler(client platform.Client, store cache.ArtifactStore[model.ScenarioMetadata], logger *slog.Logger) *ScenarioReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScenarioReconciler{client: client, store: store, logger: logger}
}

// CheckDuplicateNames rejects a batch in which two scenario names are equal
// after case folding.
func CheckDuplicateNames(scenarios []model.Scenario) error {
	seen := make(map[string]string, len(scenarios))
	for _, sc := range scenarios {
		key := model.FoldName(sc.Name)
		if first, ok := seen[key]; ok {
			return NewDuplicateNameError("scenario", first, sc.Name)
		}
		seen[key] = sc.Name
	}
	return nil
}

// ReconcileAll reconciles scenarios in order and stops at the first error.
// The outcomes of scenarios processed before the failure are returned with it.
// Duplicate names are rejected before any remote call.
func (r *ScenarioReconciler) ReconcileAll(ctx context.Context, scenarios []model.Scenario, force bool) ([]Outcome, error) {
	return r.all(ctx, scenarios, force, false)
}

// PlanAll is ReconcileAll without remote mutations or cache writes.
func (r *ScenarioReconciler) PlanAll(ctx context.Context, scenarios []model.Scenario, force bool) ([]Outcome, error) {
	return r.all(ctx, scenarios, force, true)
}

func (r *ScenarioReconciler) all(ctx context.Context, scenarios []model.Scenario, force, dryRun bool) ([]Outcome, error) {
	if err := CheckDuplicateNames(scenarios); err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, 0, len(scenarios))
	for _, sc := range scenarios {
		out, err := r.run(ctx, sc, force, dryRun)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// Reconcile brings one remote scenario in line with the local build.
//
// It returns a Conflict error, without touching the platform, when the
// local script changed and the remote content also changed since the last
// sync, unless force is set.
func (r *ScenarioReconciler) Reconcile(ctx context.Context, sc model.Scenario, force bool) (Outcome, error) {
	return r.run(ctx, sc, force, false)
}

// Plan reports what Reconcile would do using read-only lookups.
func (r *ScenarioReconciler) Plan(ctx context.Context, sc model.Scenario, force bool) (Outcome, error) {
	return r.run(ctx, sc, force, true)
}

func (r *ScenarioReconciler) run(ctx context.Context, sc model.Scenario, force, dryRun bool) (Outcome, error) {
	out := Outcome{Name: sc.Name, DryRun: dryRun}
	localHash := model.ContentHash(sc.Script)

	// Adoption is visible to the second pass through the store, or through
	// pending when nothing may be written.
	var pending *model.ScenarioMetadata

	for attempt := 0; ; attempt++ {
		cached, haveCache := r.readCached(sc.Name, pending)

		remote, err := r.client.FindScenarioByName(ctx, sc.Name, false)
		if err != nil {
			return out, WrapPlatformError("find scenario", "scenario", sc.Name, err)
		}

		if haveCache && (remote == nil || remote.ID != cached.RemoteID) {
			r.logger.Warn("cached scenario id no longer matches the platform, ignoring cache",
				"scenario", sc.Name, "cached_id", cached.RemoteID)
			haveCache = false
		}

		switch {
		case !haveCache && remote == nil:
			return r.create(ctx, sc, localHash, dryRun, out)

		case !haveCache:
			if attempt > 0 {
				return out, fmt.Errorf("scenario %q: metadata missing after adoption", sc.Name)
			}
			rec, err := r.adopt(ctx, sc.Name, remote.ID, dryRun)
			if err != nil {
				return out, err
			}
			if dryRun {
				pending = &rec
			}
			out.Adopted = true

		default:
			return r.update(ctx, sc, cached, localHash, force, dryRun, out)
		}
	}
}

// readCached returns the cached record for name. Unreadable records are
// logged and treated as absent.
func (r *ScenarioReconciler) readCached(name string, pending *model.ScenarioMetadata) (model.ScenarioMetadata, bool) {
	if pending != nil {
		return *pending, true
	}
	rec, found, err := r.store.Read(name)
	if err != nil {
		r.logger.Warn("cached scenario metadata unreadable, treating as absent", "scenario", name, "error", err)
		return model.ScenarioMetadata{}, false
	}
	return rec, found
}

func (r *ScenarioReconciler) create(ctx context.Context, sc model.Scenario, localHash string, dryRun bool, out Outcome) (Outcome, error) {
	out.Action = ActionCreated
	out.ContentHash = localHash
	if dryRun {
		r.logger.Info("would create scenario", "scenario", sc.Name)
		return out, nil
	}

	id, err := r.client.CreateScenario(ctx, sc.Name, sc.Script)
	if err != nil {
		return out, WrapPlatformError("create scenario", "scenario", sc.Name, err)
	}
	out.RemoteID = id
	if err := r.store.Write(sc.Name, model.ScenarioMetadata{Name: sc.Name, RemoteID: id, ContentHash: localHash}); err != nil {
		return out, fmt.Errorf("scenario %q created as %d but metadata not saved: %w", sc.Name, id, err)
	}
	r.logger.Info("scenario created", "scenario", sc.Name, "id", id)
	return out, nil
}

// adopt records the current remote content as the sync baseline without
// modifying the platform. Content is always fetched by id so that the
// baseline hash matches the later drift check.
func (r *ScenarioReconciler) adopt(ctx context.Context, name string, id int64, dryRun bool) (model.ScenarioMetadata, error) {
	remote, err := r.client.FindScenarioByID(ctx, id, true)
	if err != nil {
		return model.ScenarioMetadata{}, WrapPlatformError("fetch scenario", "scenario", name, err)
	}
	rec := model.ScenarioMetadata{Name: name, RemoteID: id, ContentHash: model.ContentHash(remote.Script)}
	if dryRun {
		return rec, nil
	}
	if err := r.store.Write(name, rec); err != nil {
		return rec, fmt.Errorf("adopt scenario %q: %w", name, err)
	}
	r.logger.Info("scenario adopted from platform", "scenario", name, "id", id)
	return rec, nil
}

func (r *ScenarioReconciler) update(ctx context.Context, sc model.Scenario, cached model.ScenarioMetadata, localHash string, force, dryRun bool, out Outcome) (Outcome, error) {
	out.RemoteID = cached.RemoteID

	if localHash == cached.ContentHash {
		out.Action = ActionSkipped
		out.ContentHash = cached.ContentHash
		r.logger.Debug("scenario unchanged", "scenario", sc.Name)
		return out, nil
	}

	current, err := r.client.FindScenarioByID(ctx, cached.RemoteID, true)
	if err != nil {
		return out, WrapPlatformError("fetch scenario", "scenario", sc.Name, err)
	}
	if model.ContentHash(current.Script) != cached.ContentHash {
		if !force {
			return out, NewConflictError(sc.Name, cached.RemoteID)
		}
		out.Drifted = true
		r.logger.Warn("overwriting remote changes made since last sync", "scenario", sc.Name, "id", cached.RemoteID)
	}

	out.Action = ActionUpdated
	out.ContentHash = localHash
	if dryRun {
		r.logger.Info("would update scenario", "scenario", sc.Name, "id", cached.RemoteID)
		return out, nil
	}

	if err := r.client.UpdateScenario(ctx, cached.RemoteID, sc.Name, sc.Script); err != nil {
		return out, WrapPlatformError("update scenario", "scenario", sc.Name, err)
	}
	if err := r.store.Write(sc.Name, model.ScenarioMetadata{Name: sc.Name, RemoteID: cached.RemoteID, ContentHash: localHash}); err != nil {
		return out, fmt.Errorf("scenario %q updated but metadata not saved: %w", sc.Name, err)
	}
	r.logger.Info("scenario updated", "scenario", sc.Name, "id", cached.RemoteID)
	return out, nil
}
