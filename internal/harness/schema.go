package harness

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// scenarioSchema is the structural contract for scenario files. Definitions
// are closed, so unknown fields are rejected here with a position.
const scenarioSchema = `
#Scenario: {
	name:         =~"^[A-Za-z0-9_.-]+$"
	description:  string
	target:       string & !=""
	flow_prefix?: string
	timeout?:     string
	steps: [#Step, ...#Step]
	assertions?: [...#Assertion]
}

#Step: {
	dispatch: string & !=""
	args?: {...}
	expect?: [...#ActionSpec]
	timeout?: string
}

#ActionSpec: {
	action: string & !=""
	args?: {...}
}

#Assertion: {
	type:   "trace_contains"
	action: string & !=""
	args?: {...}
} | {
	type: "trace_order"
	actions: [string, ...string]
} | {
	type:   "trace_count"
	action: string & !=""
	count:  int & >=0
} | {
	type: "final_state"
	expect: {[string]: _}
}
`

// SchemaError reports a scenario that does not match the schema.
type SchemaError struct {
	Pos     token.Pos // Position in the scenario file, if known
	Message string
	Count   int // Total number of schema violations
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	msg := e.Message
	if e.Count > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, e.Count-1)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), msg)
	}
	return msg
}

// ValidateScenario checks scenario YAML against the scenario schema.
// name is used as the file name in error positions.
func ValidateScenario(name string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(scenarioSchema, cue.Filename("scenario.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return formatCUEError(err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Message: err.Error(), Count: 1}
	}

	first := errs[0]
	se := &SchemaError{Message: first.Error(), Count: len(errs)}

	// Prefer a position inside the scenario file over one in the schema.
	for _, pos := range cueerrors.Positions(first) {
		if pos.Filename() != "scenario.cue" {
			se.Pos = pos
			break
		}
	}
	return se
}
