package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cartsync/internal/checkout"
	"github.com/roach88/cartsync/internal/connection"
)

// Scenario is a timed sequence of session inputs with expectations.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// RetentionWindowMS overrides the reconciler window when positive.
	RetentionWindowMS int64 `yaml:"retention_window_ms,omitempty"`

	Steps []Step `yaml:"steps"`

	// Assertions run against the full trace after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one input at an instant relative to Epoch.
type Step struct {
	AtMS int64 `yaml:"at_ms"`

	// Update is an update payload written as YAML; it is sent as JSON.
	Update map[string]interface{} `yaml:"update,omitempty"`

	// Raw is an update payload sent byte for byte.
	Raw *string `yaml:"raw,omitempty"`

	Signal *SignalStep `yaml:"signal,omitempty"`

	// Command is a checkout command name such as open_invoice.
	Command string `yaml:"command,omitempty"`

	// Frame is an image offered to the outbound gate.
	Frame string `yaml:"frame,omitempty"`

	// Expect is checked against the state right after this step.
	Expect *Expect `yaml:"expect,omitempty"`
}

// SignalStep is a connection lifecycle signal.
type SignalStep struct {
	Type    string `yaml:"type"`
	Message string `yaml:"message,omitempty"`
	Attempt int    `yaml:"attempt,omitempty"`
}

// Expect lists the observations a step must produce. Empty fields are
// not checked.
type Expect struct {
	Outcome string `yaml:"outcome,omitempty"`

	// Cart is the full list of lines in display order ("name xQTY").
	// An empty list asserts an empty cart; omitting it skips the check.
	Cart []string `yaml:"cart,omitempty"`

	Total      string         `yaml:"total,omitempty"`
	Connection string         `yaml:"connection,omitempty"`
	Phase      string         `yaml:"phase,omitempty"`
	Invoice    *ExpectInvoice `yaml:"invoice,omitempty"`

	// NoInvoice asserts no invoice is open.
	NoInvoice bool `yaml:"no_invoice,omitempty"`

	PaymentID string        `yaml:"payment_id,omitempty"`
	Frames    *ExpectFrames `yaml:"frames,omitempty"`
}

type ExpectInvoice struct {
	Number string   `yaml:"number,omitempty"`
	Total  string   `yaml:"total,omitempty"`
	Items  []string `yaml:"items,omitempty"`
}

// ExpectFrames compares gate counters since the scenario started.
type ExpectFrames struct {
	Sent    uint64 `yaml:"sent"`
	Dropped uint64 `yaml:"dropped"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Assertion validates the trace or the final view.
type Assertion struct {
	Type string `yaml:"type"`

	// Action is a trace action such as "update" or "command:open_invoice".
	Action string `yaml:"action,omitempty"`

	// Outcome narrows trace_contains and trace_count to one outcome.
	Outcome string `yaml:"outcome,omitempty"`

	Count   int      `yaml:"count,omitempty"`
	Actions []string `yaml:"actions,omitempty"`

	// Expect is used by final_state.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Step kinds, as used in trace actions.
const (
	KindUpdate  = "update"
	KindSignal  = "signal"
	KindCommand = "command"
	KindFrame   = "frame"
)

// Kind returns which input the step carries, or "" when it carries none
// or more than one.
func (s Step) Kind() string {
	var kinds []string
	if s.Update != nil || s.Raw != nil {
		kinds = append(kinds, KindUpdate)
	}
	if s.Update != nil && s.Raw != nil {
		return ""
	}
	if s.Signal != nil {
		kinds = append(kinds, KindSignal)
	}
	if s.Command != "" {
		kinds = append(kinds, KindCommand)
	}
	if s.Frame != "" {
		kinds = append(kinds, KindFrame)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes a scenario, rejecting unknown fields.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}
	if s.RetentionWindowMS < 0 {
		return errors.New("retention_window_ms must not be negative")
	}

	var last int64
	for i, step := range s.Steps {
		n := i + 1
		if step.AtMS < last {
			return fmt.Errorf("step %d: at_ms %d is before the previous step (%d)", n, step.AtMS, last)
		}
		last = step.AtMS

		switch step.Kind() {
		case "":
			return fmt.Errorf("step %d: exactly one of update, raw, signal, command or frame is required", n)
		case KindSignal:
			if _, err := connection.ParseSignalKind(step.Signal.Type); err != nil {
				return fmt.Errorf("step %d: %w", n, err)
			}
		case KindCommand:
			if _, err := checkout.ParseOp(step.Command); err != nil {
				return fmt.Errorf("step %d: %w", n, err)
			}
		}
		if step.Expect != nil && step.Expect.Phase != "" {
			if _, err := checkout.ParsePhase(step.Expect.Phase); err != nil {
				return fmt.Errorf("step %d: %w", n, err)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i+1, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return errors.New("trace_contains requires action")
		}
	case AssertTraceOrder:
		if len(a.Actions) < 2 {
			return errors.New("trace_order requires at least two actions")
		}
	case AssertTraceCount:
		if a.Action == "" {
			return errors.New("trace_count requires action")
		}
		if a.Count < 0 {
			return errors.New("trace_count count must not be negative")
		}
	case AssertFinalState:
		if a.Expect == nil {
			return errors.New("final_state requires expect")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
