// Package harness provides test tooling for stores.
//
// There are two layers. Harness wraps a single store, records every action
// it reduces and answers "did these actions happen" with Fulfillment. On
// top of it, scenarios drive registered targets from YAML files and assert
// on the resulting trace and final state.
//
// # Fulfillment
//
//	h := harness.Wrap(s)
//	err := h.Fulfillment(ctx,
//	    []counter.Action{counter.Load{}, counter.LoadSucceeded{Data: "hello"}},
//	    func() { h.Dispatch(counter.Load{}) },
//	    harness.WithTimeout(time.Second))
//
// Expected actions form an unordered multiset. On timeout the error is an
// *UnfulfilledError listing what never arrived.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: counter_load
//	description: "Load resolves through middleware"
//	target: counter
//	flow_prefix: load
//	timeout: 2s
//	steps:
//	  - dispatch: Increment
//	  - dispatch: Load
//	    args: { key: greeting }
//	    expect:
//	      - action: Load
//	      - action: LoadSucceeded
//	        args: { data: hello }
//	assertions:
//	  - type: trace_order
//	    actions: [Increment, Load, LoadSucceeded]
//	  - type: final_state
//	    expect: { count: 1, data: hello }
//
// Files are checked against a CUE schema (ValidateScenario) before they are
// decoded, so structural mistakes are reported with a file position.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_contains: Verifies an action appears in the trace with matching args
//   - trace_order: Verifies actions appear in specified order
//   - trace_count: Verifies an action appears exactly N times
//   - final_state: Verifies gjson paths of the final state JSON
//
// # Golden Files
//
// Flow tokens are numbered per scenario, so traces are reproducible and are
// compared byte-for-byte against testdata/golden/<name>.golden.
package harness
