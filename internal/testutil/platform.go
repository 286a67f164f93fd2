package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/callscript/internal/model"
	"github.com/roach88/callscript/internal/platform"
)

// mutatingMethods are the platform calls that change remote state.
var mutatingMethods = map[string]bool{
	"CreateApplication":  true,
	"CreateRule":         true,
	"UpdateRulePattern":  true,
	"ReorderRules":       true,
	"CreateScenario":     true,
	"UpdateScenario":     true,
	"BindScenarioToRule": true,
}

// FakePlatform is an in-memory platform.Client.
//
// Every call is appended to Calls as "Method arg..." so tests can assert on
// the exact sequence of remote operations. Ids are allocated from a single
// counter, the first being 101, which keeps them stable across runs.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FakePlatform struct {
	mu sync.Mutex

	nextID       int64
	applications []model.Application
	rules        map[int64][]*model.RemoteRule
	scenarios    map[int64]*model.RemoteScenario
	calls        []string

	// Fail makes the named method return the given error.
	Fail map[string]error
}

// NewFakePlatform creates an empty fake platform.
func NewFakePlatform() *FakePlatform {
	return &FakePlatform{
		nextID:    100,
		rules:     make(map[int64][]*model.RemoteRule),
		scenarios: make(map[int64]*model.RemoteScenario),
		Fail:      make(map[string]error),
	}
}

var _ platform.Client = (*FakePlatform)(nil)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (p *FakePlatform) allocID() int64 {
	p.nextID++
	return p.nextID
}

// record logs a call and returns the configured failure for it, if any.
func (p *FakePlatform) record(method string, args ...any) error {
	parts := []string{method}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	p.calls = append(p.calls, strings.Join(parts, " "))
	return p.Fail[method]
}

// Calls returns every call made so far.
func (p *FakePlatform) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// CallsTo returns the calls made to one method.
func (p *FakePlatform) CallsTo(method string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.calls {
		if c == method || strings.HasPrefix(c, method+" ") {
			out = append(out, c)
		}
	}
	return out
}

// Mutations returns the calls that changed remote state.
func (p *FakePlatform) Mutations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, c := range p.calls {
		if IsMutation(c) {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (p *FakePlatform) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

// SeedApplication registers an application without logging a call.
func (p *FakePlatform) SeedApplication(name string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.allocID()
	p.applications = append(p.applications, model.Application{Name: name, ID: id})
	return id
}

// SeedScenario registers a scenario without logging a call.
func (p *FakePlatform) SeedScenario(name string, script []byte) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.allocID()
	p.scenarios[id] = &model.RemoteScenario{ID: id, Name: name, Script: append([]byte(nil), script...)}
	return id
}

// SeedRule registers a rule without logging a call.
func (p *FakePlatform) SeedRule(appID int64, name, pattern string, scenarioIDs ...int64) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addRule(appID, name, pattern, scenarioIDs)
}

// EditScript changes a scenario's content out of band.
func (p *FakePlatform) EditScript(id int64, script []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scenarios[id].Script = append([]byte(nil), script...)
}

// DeleteScenario removes a scenario out of band.
func (p *FakePlatform) DeleteScenario(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.scenarios, id)
}

// Script returns the current content of a scenario.
func (p *FakePlatform) Script(id int64) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sc, ok := p.scenarios[id]; ok {
		return append([]byte(nil), sc.Script...)
	}
	return nil
}

// Rule returns a copy of a rule by name.
func (p *FakePlatform) Rule(appID int64, name string) (model.RemoteRule, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.rules[appID] {
		if r.Name == name {
			return copyRule(r), true
		}
	}
	return model.RemoteRule{}, false
}

// RuleOrder returns the rule ids of an application in platform order.
func (p *FakePlatform) RuleOrder(appID int64) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int64, 0, len(p.rules[appID]))
	for _, r := range p.rules[appID] {
		ids = append(ids, r.ID)
	}
	return ids
}

// ApplicationID returns the id of an application by name.
func (p *FakePlatform) ApplicationID(name string) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, app := range p.applications {
		if app.Name == name {
			return app.ID, true
		}
	}
	return 0, false
}

// ScenarioID returns the id of a scenario by name.
func (p *FakePlatform) ScenarioID(name string) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, sc := range p.scenarios {
		if sc.Name == name {
			return id, true
		}
	}
	return 0, false
}

// RuleNames returns the rule names of an application in platform order.
func (p *FakePlatform) RuleNames(appID int64) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.rules[appID]))
	for _, r := range p.rules[appID] {
		names = append(names, r.Name)
	}
	return names
}

// IsMutation reports whether a logged call changed remote state.
func IsMutation(call string) bool {
	method, _, _ := strings.Cut(call, " ")
	return mutatingMethods[method]
}

func (p *FakePlatform) addRule(appID int64, name, pattern string, scenarioIDs []int64) int64 {
	id := p.allocID()
	rule := &model.RemoteRule{ID: id, Name: name, Pattern: pattern}
	for _, sid := range scenarioIDs {
		rule.Scenarios = append(rule.Scenarios, model.ScenarioRef{Name: p.scenarioName(sid), ID: sid})
	}
	p.rules[appID] = append(p.rules[appID], rule)
	return id
}

func (p *FakePlatform) scenarioName(id int64) string {
	if sc, ok := p.scenarios[id]; ok {
		return sc.Name
	}
	return ""
}

func copyRule(r *model.RemoteRule) model.RemoteRule {
	out := *r
	out.Scenarios = append([]model.ScenarioRef(nil), r.Scenarios...)
	return out
}

func notFound(method string, what string, id int64) error {
	return &platform.APIError{Method: method, Code: platform.CodeScenarioNotFound, Message: fmt.Sprintf("%s %d not found", what, id)}
}

func (p *FakePlatform) ListApplications(ctx context.Context) ([]model.Application, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("ListApplications"); err != nil {
		return nil, err
	}
	return append([]model.Application(nil), p.applications...), nil
}

func (p *FakePlatform) CreateApplication(ctx context.Context, name string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("CreateApplication", name); err != nil {
		return 0, err
	}
	id := p.allocID()
	p.applications = append(p.applications, model.Application{Name: name, ID: id})
	return id, nil
}

func (p *FakePlatform) ListRules(ctx context.Context, appID int64) ([]model.RemoteRule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("ListRules", appID); err != nil {
		return nil, err
	}
	out := make([]model.RemoteRule, 0, len(p.rules[appID]))
	for _, r := range p.rules[appID] {
		out = append(out, copyRule(r))
	}
	return out, nil
}

func (p *FakePlatform) CreateRule(ctx context.Context, appID int64, name string, scenarioIDs []int64, pattern string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("CreateRule", appID, name, platform.JoinIDs(scenarioIDs), pattern); err != nil {
		return 0, err
	}
	return p.addRule(appID, name, pattern, scenarioIDs), nil
}

func (p *FakePlatform) findRule(ruleID int64) *model.RemoteRule {
	for _, rules := range p.rules {
		for _, r := range rules {
			if r.ID == ruleID {
				return r
			}
		}
	}
	return nil
}

func (p *FakePlatform) UpdateRulePattern(ctx context.Context, ruleID int64, pattern string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("UpdateRulePattern", ruleID, pattern); err != nil {
		return err
	}
	r := p.findRule(ruleID)
	if r == nil {
		return notFound("UpdateRulePattern", "rule", ruleID)
	}
	r.Pattern = pattern
	return nil
}

// ReorderRules moves the listed rules to the front in the given order;
// unlisted rules keep their relative order after them.
func (p *FakePlatform) ReorderRules(ctx context.Context, appID int64, ruleIDs []int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("ReorderRules", appID, platform.JoinIDs(ruleIDs)); err != nil {
		return err
	}
	rank := make(map[int64]int, len(ruleIDs))
	for i, id := range ruleIDs {
		rank[id] = i
	}
	rules := p.rules[appID]
	sort.SliceStable(rules, func(i, j int) bool {
		ri, iok := rank[rules[i].ID]
		rj, jok := rank[rules[j].ID]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return false
		}
	})
	return nil
}

func (p *FakePlatform) FindScenarioByName(ctx context.Context, name string, withContent bool) (*model.RemoteScenario, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("FindScenarioByName", name, withContent); err != nil {
		return nil, err
	}
	for _, sc := range p.scenarios {
		if sc.Name == name {
			return scenarioView(sc, withContent), nil
		}
	}
	return nil, nil
}

func (p *FakePlatform) FindScenarioByID(ctx context.Context, id int64, withContent bool) (*model.RemoteScenario, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("FindScenarioByID", id, withContent); err != nil {
		return nil, err
	}
	sc, ok := p.scenarios[id]
	if !ok {
		return nil, notFound("FindScenarioByID", "scenario", id)
	}
	return scenarioView(sc, withContent), nil
}

func scenarioView(sc *model.RemoteScenario, withContent bool) *model.RemoteScenario {
	out := &model.RemoteScenario{ID: sc.ID, Name: sc.Name}
	if withContent {
		out.Script = append([]byte(nil), sc.Script...)
	}
	return out
}

func (p *FakePlatform) CreateScenario(ctx context.Context, name string, script []byte) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("CreateScenario", name); err != nil {
		return 0, err
	}
	id := p.allocID()
	p.scenarios[id] = &model.RemoteScenario{ID: id, Name: name, Script: append([]byte(nil), script...)}
	return id, nil
}

func (p *FakePlatform) UpdateScenario(ctx context.Context, id int64, name string, script []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("UpdateScenario", id, name); err != nil {
		return err
	}
	sc, ok := p.scenarios[id]
	if !ok {
		return notFound("UpdateScenario", "scenario", id)
	}
	sc.Name = name
	sc.Script = append([]byte(nil), script...)
	return nil
}

// BindScenarioToRule appends a scenario to the rule when binding and removes
// it when unbinding. Binding an already bound scenario is a no-op.
func (p *FakePlatform) BindScenarioToRule(ctx context.Context, ruleID, scenarioID int64, bind bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("BindScenarioToRule", ruleID, scenarioID, bind); err != nil {
		return err
	}
	r := p.findRule(ruleID)
	if r == nil {
		return notFound("BindScenarioToRule", "rule", ruleID)
	}
	idx := -1
	for i, s := range r.Scenarios {
		if s.ID == scenarioID {
			idx = i
		}
	}
	switch {
	case bind && idx < 0:
		r.Scenarios = append(r.Scenarios, model.ScenarioRef{Name: p.scenarioName(scenarioID), ID: scenarioID})
	case !bind && idx >= 0:
		r.Scenarios = append(r.Scenarios[:idx], r.Scenarios[idx+1:]...)
	}
	return nil
}
