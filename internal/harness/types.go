package harness

// TraceEvent is one observed event during scenario execution. Events are
// appended in the order the controller produced them.
type TraceEvent struct {
	// Type is "phase", "reveal", "complete", "undo", or "error".
	Type string `json:"type"`

	Phase     string `json:"phase,omitempty"`
	Winner    string `json:"winner,omitempty"`
	WinnerID  string `json:"winnerId,omitempty"`
	HistoryID string `json:"historyId,omitempty"`
	Code      string `json:"code,omitempty"`
}

// State summarizes the persisted collections after the last step.
type State struct {
	// Lists maps list ID to remaining entry count.
	Lists map[string]int `json:"lists"`
	// Prizes maps prize ID to remaining quantity.
	Prizes  map[string]int `json:"prizes"`
	Winners int            `json:"winners"`
	History int            `json:"history"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step matched its Expect clause.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors lists expectation mismatches. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	State State `json:"state"`
}

// AddError records an expectation mismatch and fails the result.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Snapshot is the golden-file form of a scenario run.
type Snapshot struct {
	Scenario string       `json:"scenario"`
	Trace    []TraceEvent `json:"trace"`
	State    State        `json:"state"`
}
