package model

// Application is an application registration on the platform.
// ID is zero until the application has been resolved remotely.
type Application struct {
	Name string `json:"name"`
	ID   int64  `json:"id,omitempty"`
}

// Resolved reports whether the application has a remote identity.
func (a Application) Resolved() bool {
	return a.ID != 0
}

// Scenario is a locally built call-handling script.
type Scenario struct {
	Name   string `json:"name"`
	Script []byte `json:"-"`
}

// RemoteScenario is a scenario as the platform reports it.
// Script is only populated when the scenario was fetched with content.
type RemoteScenario struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Script []byte `json:"-"`
}

// Rule is a routing rule declared in the application's rules config.
// The order of Scenarios is significant.
type Rule struct {
	Name      string   `json:"name"`
	Pattern   string   `json:"pattern"`
	Scenarios []string `json:"scenarios"`
}

// ScenarioRef names a scenario bound to a rule.
type ScenarioRef struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

// RemoteRule is a rule as the platform reports it.
type RemoteRule struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Pattern   string        `json:"pattern"`
	Scenarios []ScenarioRef `json:"scenarios"`
}

// ScenarioIDs returns the ids of the bound scenarios in binding order.
func (r RemoteRule) ScenarioIDs() []int64 {
	ids := make([]int64, len(r.Scenarios))
	for i, s := range r.Scenarios {
		ids[i] = s.ID
	}
	return ids
}

// ScenarioMetadata is the cached sync state of one scenario.
// ContentHash is the hash of the script last confirmed in sync with the platform.
type ScenarioMetadata struct {
	Name        string `json:"name"`
	RemoteID    int64  `json:"remote_id"`
	ContentHash string `json:"content_hash"`
}

// RuleMetadata is the cached sync state of one rule.
type RuleMetadata struct {
	Name      string        `json:"name"`
	RemoteID  int64         `json:"remote_id"`
	Pattern   string        `json:"pattern"`
	Scenarios []ScenarioRef `json:"scenarios"`
}

// ApplicationMetadata is the cached identity of an application.
type ApplicationMetadata struct {
	Name     string `json:"name"`
	RemoteID int64  `json:"remote_id"`
}
