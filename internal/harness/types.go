package harness

import (
	"github.com/roach88/cartsync/internal/connection"
	"github.com/roach88/cartsync/internal/engine"
)

// Outcomes recorded in the trace besides checkout rejection codes.
const (
	OutcomeOK        = "ok"
	OutcomeMalformed = "malformed"
	OutcomeReset     = "reset"
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeSent      = "sent"
	OutcomeDropped   = "dropped"
)

// TraceEvent records one step and the state it left behind.
type TraceEvent struct {
	Step    int    `json:"step"`
	AtMS    int64  `json:"at_ms"`
	Seq     int64  `json:"seq"`
	Action  string `json:"action"`
	Outcome string `json:"outcome"`

	// Expired lists lines dropped by this update once their window passed.
	Expired []string `json:"expired,omitempty"`

	Cart       []string `json:"cart"`
	Total      string   `json:"total"`
	Connection string   `json:"connection"`
	Phase      string   `json:"phase"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Final is the view after the last step.
	Final engine.View `json:"-"`

	// Frames are the gate counters after the last step.
	Frames connection.GateStats `json:"frames"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
