package harness

// TraceEvent is one platform call made during a step.
type TraceEvent struct {
	Step     int    `json:"step"`
	Call     string `json:"call"`
	Mutation bool   `json:"mutation,omitempty"`
}

// StepResult is the outcome of one upload step.
type StepResult struct {
	Step      int      `json:"step"`
	Error     string   `json:"error,omitempty"`
	Mutations []string `json:"mutations"`
	Summary   string   `json:"summary"`
}

// Result is the outcome of a case run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every platform call in order.
	Trace []TraceEvent `json:"trace"`

	// Uploads holds one entry per upload step.
	Uploads []StepResult `json:"uploads"`

	// Errors contains failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Uploads: []StepResult{},
		Errors:  []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
