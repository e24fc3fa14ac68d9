package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/storekit/internal/store"
	"github.com/roach88/storekit/internal/testutil"
)

// RunOptions tune a scenario run.
type RunOptions struct {
	// Logger receives run progress. Default: discard.
	Logger *slog.Logger

	// Timeout overrides DefaultStepTimeout for steps and scenarios that set none.
	Timeout time.Duration

	// SettleTimeout bounds the final wait for in-flight middleware.
	// Default: 5s.
	SettleTimeout time.Duration

	// MaxSteps is passed to the target's store. Zero keeps the store default.
	MaxSteps int

	// Grace is passed to the target's harness. Zero keeps DefaultGrace.
	Grace time.Duration

	// StoreOptions are appended to every target's store options.
	StoreOptions []store.Option
}

// ErrUnknownTarget is returned by Run when the scenario names a target that
// is not registered.
var ErrUnknownTarget = errors.New("unknown target")

// Run executes a scenario against a fresh target and returns the result.
//
// Flow tokens are deterministic (flow_prefix-1, flow_prefix-2, ...), so the
// trace of a scenario whose steps wait on their expectations is
// reproducible and can be compared against a golden file.
//
// Execution flow:
// 1. Build the target named by the scenario
// 2. Dispatch each step, waiting for its expectations
// 3. Wait for the target to settle
// 4. Capture trace and final state, evaluate assertions
//
// Step failures (unfulfilled expectations) are recorded in the result and
// the run continues. Errors that make the scenario meaningless (unknown
// target, undecodable action) are returned.
func Run(ctx context.Context, scenario *Scenario, registry *Registry, opts RunOptions) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	factory, ok := registry.Lookup(scenario.Target)
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownTarget, scenario.Target, registry.Names())
	}

	prefix := scenario.FlowPrefix
	if prefix == "" {
		prefix = scenario.Name
	}

	target, err := factory(TargetConfig{
		Logger:   logger,
		FlowGen:  testutil.NewSequentialFlowGenerator(prefix),
		MaxSteps: opts.MaxSteps,
		Grace:    opts.Grace,
		Options:  opts.StoreOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("build target %s: %w", scenario.Target, err)
	}
	defer target.Close()

	result := NewResult()

	for i, step := range scenario.Steps {
		timeout := scenario.StepTimeout(i)
		if opts.Timeout > 0 && step.Timeout == "" && scenario.Timeout == "" {
			timeout = opts.Timeout
		}

		err := target.Step(ctx, step, timeout)
		if err == nil {
			logger.Debug("step completed", "scenario", scenario.Name, "step", i, "dispatch", step.Dispatch)
			continue
		}

		if _, unfulfilled := AsUnfulfilled[ActionSpec](err); unfulfilled {
			result.AddError(fmt.Sprintf("steps[%d] %s: %v", i, step.Dispatch, err))
			logger.Info("step unfulfilled", "scenario", scenario.Name, "step", i, "error", err)
			continue
		}
		return nil, fmt.Errorf("steps[%d]: %w", i, err)
	}

	settleTimeout := opts.SettleTimeout
	if settleTimeout <= 0 {
		settleTimeout = 5 * time.Second
	}
	settleCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if err := target.Settle(settleCtx); err != nil {
		result.AddError(fmt.Sprintf("target did not settle: %v", err))
	}

	trace, err := target.Trace()
	if err != nil {
		return nil, fmt.Errorf("capture trace: %w", err)
	}
	result.Trace = trace

	state, err := target.State()
	if err != nil {
		return nil, fmt.Errorf("capture state: %w", err)
	}
	result.State = state

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"reductions", len(result.Trace))

	return result, nil
}
