package deploy

import (
	"fmt"
	"strings"

	"github.com/roach88/callscript/internal/model"
	"github.com/roach88/callscript/internal/platform"
	"github.com/roach88/callscript/internal/reconcile"
)

// Summary lists what an upload did, or would do in a dry run.
type Summary struct {
	RunID              string                  `json:"run_id,omitempty"`
	DryRun             bool                    `json:"dry_run"`
	Application        model.Application       `json:"application"`
	ApplicationCreated bool                    `json:"application_created,omitempty"`
	Scenarios          []reconcile.Outcome     `json:"scenarios"`
	Rules              []reconcile.RuleOutcome `json:"rules"`
	Reordered          bool                    `json:"reordered"`
	Order              []int64                 `json:"order,omitempty"`
}

// String renders the summary for terminal output.
func (s *Summary) String() string {
	var b strings.Builder

	appVerb := "found"
	if s.ApplicationCreated {
		appVerb = s.verb("created")
	}
	if s.Application.Resolved() {
		fmt.Fprintf(&b, "application %s (%d): %s\n", s.Application.Name, s.Application.ID, appVerb)
	} else {
		fmt.Fprintf(&b, "application %s: %s\n", s.Application.Name, appVerb)
	}

	for _, sc := range s.Scenarios {
		fmt.Fprintf(&b, "scenario %s: %s", sc.Name, s.verb(string(sc.Action)))
		if sc.RemoteID != 0 {
			fmt.Fprintf(&b, " (%d)", sc.RemoteID)
		}
		var notes []string
		if sc.Adopted {
			notes = append(notes, "adopted")
		}
		if sc.Drifted {
			notes = append(notes, "remote changes overwritten")
		}
		if len(notes) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(notes, ", "))
		}
		b.WriteByte('\n')
	}

	for _, rule := range s.Rules {
		fmt.Fprintf(&b, "rule %s: %s (%d)", rule.Name, rule.Action, rule.RemoteID)
		var notes []string
		if rule.PatternUpdated {
			notes = append(notes, "pattern")
		}
		if rule.Rebound {
			notes = append(notes, "scenarios rebound")
		}
		if len(notes) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(notes, ", "))
		}
		b.WriteByte('\n')
	}

	if s.Reordered {
		fmt.Fprintf(&b, "rules reordered: %s\n", platform.JoinIDs(s.Order))
	}
	if s.DryRun {
		b.WriteString("dry run: no changes made\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (s *Summary) verb(action string) string {
	if s.DryRun && action != string(reconcile.ActionSkipped) {
		return "would be " + action
	}
	return action
}
