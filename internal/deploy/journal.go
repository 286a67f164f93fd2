package deploy

import (
	"context"
	"strconv"
	"strings"

	"github.com/roach88/callscript/internal/platform"
	"github.com/roach88/callscript/internal/reconcile"
	"github.com/roach88/callscript/internal/store"
)

// Journal failures are logged and never fail the upload.

func (o *Orchestrator) beginRun(ctx context.Context, req Request) string {
	if o.journal == nil {
		return ""
	}
	app := req.ApplicationName
	if app == "" && req.ApplicationID != 0 {
		app = "#" + strconv.FormatInt(req.ApplicationID, 10)
	}
	rule := req.RuleName
	if rule == "" && req.RuleID != 0 {
		rule = "#" + strconv.FormatInt(req.RuleID, 10)
	}
	run, err := o.journal.BeginRun(ctx, store.RunParams{
		Application: app,
		Rule:        rule,
		Force:       req.Force,
		DryRun:      req.DryRun,
	})
	if err != nil {
		o.logger.Warn("journal unavailable, run not recorded", "error", err)
		return ""
	}
	return run.ID
}

func (o *Orchestrator) finishRun(ctx context.Context, runID string, sum *Summary, runErr error) {
	if o.journal == nil || runID == "" {
		return
	}
	for _, out := range journalOutcomes(sum) {
		if err := o.journal.RecordOutcome(ctx, runID, out); err != nil {
			o.logger.Warn("journal write failed", "run", runID, "error", err)
			return
		}
	}
	if err := o.journal.FinishRun(ctx, runID, runErr); err != nil {
		o.logger.Warn("journal write failed", "run", runID, "error", err)
	}
}

func journalOutcomes(sum *Summary) []store.Outcome {
	var out []store.Outcome
	if sum.Application.Name != "" {
		action := string(reconcile.ActionSkipped)
		if sum.ApplicationCreated {
			action = string(reconcile.ActionCreated)
		}
		out = append(out, store.Outcome{
			Kind:     store.KindApplication,
			Name:     sum.Application.Name,
			Action:   action,
			RemoteID: sum.Application.ID,
		})
	}
	for _, sc := range sum.Scenarios {
		var notes []string
		if sc.Adopted {
			notes = append(notes, "adopted")
		}
		if sc.Drifted {
			notes = append(notes, "drifted")
		}
		out = append(out, store.Outcome{
			Kind:        store.KindScenario,
			Name:        sc.Name,
			Action:      string(sc.Action),
			RemoteID:    sc.RemoteID,
			ContentHash: sc.ContentHash,
			Detail:      strings.Join(notes, ","),
		})
	}
	for _, rule := range sum.Rules {
		var notes []string
		if rule.PatternUpdated {
			notes = append(notes, "pattern")
		}
		if rule.Rebound {
			notes = append(notes, "rebound")
		}
		out = append(out, store.Outcome{
			Kind:     store.KindRule,
			Name:     rule.Name,
			Action:   string(rule.Action),
			RemoteID: rule.RemoteID,
			Detail:   strings.Join(notes, ","),
		})
	}
	if sum.Reordered {
		out = append(out, store.Outcome{
			Kind:   store.KindOrder,
			Name:   sum.Application.Name,
			Action: string(reconcile.ActionUpdated),
			Detail: platform.JoinIDs(sum.Order),
		})
	}
	return out
}
