package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios drive a registered target by action name and assert on the
// resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Target names the registered feature the scenario drives.
	Target string `yaml:"target"`

	// FlowPrefix prefixes the deterministic flow tokens (prefix-1, prefix-2, ...).
	// Defaults to the scenario name.
	FlowPrefix string `yaml:"flow_prefix,omitempty"`

	// Timeout is the default fulfillment timeout for steps with expectations,
	// as a Go duration string ("500ms", "2s").
	Timeout string `yaml:"timeout,omitempty"`

	// Steps are dispatched in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// Step dispatches one action and optionally waits for expected actions.
type Step struct {
	// Dispatch is the action name (e.g., "Increment").
	Dispatch string `yaml:"dispatch"`

	// Args contains the action fields as a map.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect lists actions that must be reduced (in any order) before the
	// next step starts. The dispatched action itself counts.
	Expect []ActionSpec `yaml:"expect,omitempty"`

	// Timeout overrides the scenario timeout for this step.
	Timeout string `yaml:"timeout,omitempty"`
}

// ActionSpec identifies an action by name and a subset of its fields.
type ActionSpec struct {
	Action string         `yaml:"action" json:"action"`
	Args   map[string]any `yaml:"args,omitempty" json:"args,omitempty"`
}

// ActionName makes pending expectations print by name.
func (a ActionSpec) ActionName() string {
	return a.Action
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check action appears in trace with args
	// - "trace_order": Check actions appear in order
	// - "trace_count": Check action appears exactly N times
	// - "final_state": Check JSON paths of the final state
	Type string `yaml:"type"`

	// Action is the action name (used by trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected action fields (used by trace_contains).
	// Subset match - only specified fields are validated.
	Args map[string]any `yaml:"args,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (used by trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Expect maps gjson paths into the final state to expected values
	// (used by final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// DefaultStepTimeout is used for steps with expectations when neither the
// step nor the scenario sets a timeout.
const DefaultStepTimeout = 3 * time.Second

// LoadScenario reads, validates and parses a scenario YAML file.
// Returns an error if the file doesn't exist, fails the schema, contains
// unknown fields (typos), or is semantically invalid.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(path, data)
}

// ParseScenario is LoadScenario for in-memory data. name is used in error
// positions.
func ParseScenario(name string, data []byte) (*Scenario, error) {
	if err := ValidateScenario(name, data); err != nil {
		return nil, err
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
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

// StepTimeout resolves the fulfillment timeout for step i.
func (s *Scenario) StepTimeout(i int) time.Duration {
	if d, err := time.ParseDuration(s.Steps[i].Timeout); err == nil && d > 0 {
		return d
	}
	if d, err := time.ParseDuration(s.Timeout); err == nil && d > 0 {
		return d
	}
	return DefaultStepTimeout
}

// validateScenario checks what the schema cannot express.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Target == "" {
		return fmt.Errorf("target is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Timeout != "" {
		if _, err := time.ParseDuration(s.Timeout); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
	}

	for i, step := range s.Steps {
		if step.Dispatch == "" {
			return fmt.Errorf("steps[%d]: dispatch is required", i)
		}
		if step.Timeout != "" {
			if _, err := time.ParseDuration(step.Timeout); err != nil {
				return fmt.Errorf("steps[%d].timeout: %w", i, err)
			}
		}
		for j, exp := range step.Expect {
			if exp.Action == "" {
				return fmt.Errorf("steps[%d].expect[%d]: action is required", i, j)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
