// Package platform is the client side of the telephony-scripting platform's
// management API.
//
// Client is the narrow interface the reconcilers depend on. HTTPClient
// implements it against the platform's form-encoded JSON API; tests use the
// in-memory fake in internal/testutil.
package platform

import (
	"context"
	"fmt"

	"github.com/roach88/callscript/internal/model"
)

// Client is the set of remote operations used during a deploy.
//
// Lookups that may legitimately find nothing (FindScenarioByName) return a
// nil result and a nil error. Every other failure reported by the platform is
// returned as *APIError.
type Client interface {
	ListApplications(ctx context.Context) ([]model.Application, error)
	CreateApplication(ctx context.Context, name string) (int64, error)

	ListRules(ctx context.Context, appID int64) ([]model.RemoteRule, error)
	CreateRule(ctx context.Context, appID int64, name string, scenarioIDs []int64, pattern string) (int64, error)
	UpdateRulePattern(ctx context.Context, ruleID int64, pattern string) error
	ReorderRules(ctx context.Context, appID int64, ruleIDs []int64) error

	FindScenarioByName(ctx context.Context, name string, withContent bool) (*model.RemoteScenario, error)
	FindScenarioByID(ctx context.Context, id int64, withContent bool) (*model.RemoteScenario, error)
	CreateScenario(ctx context.Context, name string, script []byte) (int64, error)
	UpdateScenario(ctx context.Context, id int64, name string, script []byte) error
	BindScenarioToRule(ctx context.Context, ruleID, scenarioID int64, bind bool) error
}

// Platform error codes referenced by callers.
const (
	CodeInternal         = 1   // transport or decoding failure on our side
	CodeScenarioNotFound = 404 // scenario id does not exist
)

// APIError is an error code returned by the platform.
type APIError struct {
	Method  string
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: platform error %d: %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: platform error %d", e.Method, e.Code)
}
