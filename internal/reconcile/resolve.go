package reconcile

import (
	"context"
	"log/slog"

	"github.com/roach88/callscript/internal/model"
	"github.com/roach88/callscript/internal/platform"
)

// Resolver maps user-supplied names and ids to remote identities.
type Resolver struct {
	client         platform.Client
	accountName    string
	platformDomain string
	logger         *slog.Logger
}

// NewResolver creates a resolver for the given account.
func NewResolver(client platform.Client, accountName, platformDomain string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client:         client,
		accountName:    accountName,
		platformDomain: platformDomain,
		logger:         logger,
	}
}

// CanonicalName qualifies a short application label for this account.
func (r *Resolver) CanonicalName(name string) string {
	return model.CanonicalApplicationName(name, r.accountName, r.platformDomain)
}

// ResolveApplication resolves an application by id or name.
//
// An id takes precedence and must exist remotely. A name is canonicalised
// and looked up; when no remote application has that name the result carries
// the canonical name and a zero ID, which is not an error.
func (r *Resolver) ResolveApplication(ctx context.Context, name string, id int64) (model.Application, error) {
	if id == 0 && name == "" {
		return model.Application{}, NewNotFoundError("application", "", 0)
	}

	apps, err := r.client.ListApplications(ctx)
	if err != nil {
		return model.Application{}, WrapPlatformError("list applications", "application", name, err)
	}

	if id != 0 {
		for _, app := range apps {
			if app.ID == id {
				r.logger.Debug("application resolved by id", "id", id, "name", app.Name)
				return app, nil
			}
		}
		return model.Application{}, NewNotFoundError("application", "", id)
	}

	candidate := r.CanonicalName(name)
	for _, app := range apps {
		if app.Name == candidate {
			r.logger.Debug("application resolved by name", "name", candidate, "id", app.ID)
			return app, nil
		}
	}
	r.logger.Debug("application not found remotely", "name", candidate)
	return model.Application{Name: candidate}, nil
}

// ResolveRule resolves a rule of app by id or name.
//
// Unlike applications, a rule must exist: an unknown id or name is a
// NotFound error. With tolerant set (build-only runs) a missing rule returns
// found=false and no error instead.
func (r *Resolver) ResolveRule(ctx context.Context, app model.Application, name string, id int64, tolerant bool) (model.RemoteRule, bool, error) {
	missing := func() (model.RemoteRule, bool, error) {
		if tolerant {
			r.logger.Warn("rule not found remotely", "application", app.Name, "rule", name, "id", id)
			return model.RemoteRule{Name: name}, false, nil
		}
		return model.RemoteRule{}, false, NewNotFoundError("rule", name, id)
	}

	if id == 0 && name == "" {
		return model.RemoteRule{}, false, NewNotFoundError("rule", "", 0)
	}
	if !app.Resolved() {
		return missing()
	}

	rules, err := r.client.ListRules(ctx, app.ID)
	if err != nil {
		return model.RemoteRule{}, false, WrapPlatformError("list rules", "rule", name, err)
	}
	for _, rule := range rules {
		if (id != 0 && rule.ID == id) || (id == 0 && rule.Name == name) {
			return rule, true, nil
		}
	}
	return missing()
}
