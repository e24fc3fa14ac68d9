package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/storekit/internal/harness"
	"github.com/roach88/storekit/internal/journal"
	"github.com/roach88/storekit/internal/store"
	"github.com/roach88/storekit/internal/telemetry"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal string // append every reduction to this SQLite journal
	Metrics bool   // print Prometheus metrics after the run
}

// RunResult is the run command's JSON payload.
type RunResult struct {
	Scenario string         `json:"scenario"`
	Target   string         `json:"target"`
	Result   harness.Result `json:"result"`
	Journal  string         `json:"journal,omitempty"`
	Metrics  string         `json:"metrics,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario and print its trace",
		Long: `Run a single scenario against its target store and print the trace,
final state and any failures.

With --journal every reduction and dropped action is appended to a SQLite
journal that "storekit trace" can read. With --metrics the store's
Prometheus metrics are printed after the run.

Examples:
  storekit run ./scenarios/counter-load.yaml
  storekit run ./scenarios/settings-language.yaml --journal ./journal.db
  storekit run ./scenarios/counter-load.yaml --metrics --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "append reductions to a SQLite journal (default STOREKIT_JOURNAL)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics after the run")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	formatter := opts.formatter(cmd)
	logger := opts.log(cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return WrapExitError(ExitCommandError, "scenario not found", err)
		}
		return WrapExitError(ExitCommandError, "invalid scenario", err)
	}

	runOpts := harness.RunOptions{
		Logger:   logger,
		Timeout:  cfg.FulfillTimeout,
		MaxSteps: cfg.MaxSteps,
		Grace:    cfg.Grace,
	}

	journalPath := opts.Journal
	if journalPath == "" {
		journalPath = cfg.Journal
	}
	var j *journal.Journal
	if journalPath != "" {
		j, err = journal.Open(journalPath, journal.WithLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		runOpts.StoreOptions = append(runOpts.StoreOptions, store.WithObserver(j.Observer(scenario.Target)))
	}

	var metrics *telemetry.Metrics
	if opts.Metrics {
		metrics, err = telemetry.NewMetrics(nil)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create metrics", err)
		}
		runOpts.StoreOptions = append(runOpts.StoreOptions, store.WithObserver(metrics.Observer(scenario.Target)))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := harness.Run(ctx, scenario, opts.targets(), runOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}

	if j != nil {
		if err := j.Flush(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to flush journal", err)
		}
	}

	payload := RunResult{
		Scenario: scenario.Name,
		Target:   scenario.Target,
		Result:   *result,
		Journal:  journalPath,
	}
	if metrics != nil {
		var buf bytes.Buffer
		if err := metrics.WriteText(&buf); err != nil {
			return WrapExitError(ExitCommandError, "failed to render metrics", err)
		}
		payload.Metrics = buf.String()
	}

	if formatter.JSON() {
		if !result.Pass {
			msg := fmt.Sprintf("scenario %s failed", scenario.Name)
			if err := formatter.Failure(ErrCodeScenarioFailed, msg, payload); err != nil {
				return err
			}
			return NewExitError(ExitFailure, msg)
		}
		return formatter.Success(payload)
	}

	return outputRunText(cmd.OutOrStdout(), payload)
}

func outputRunText(w io.Writer, payload RunResult) error {
	result := payload.Result

	fmt.Fprintf(w, "Scenario: %s (target %s)\n\n", payload.Scenario, payload.Target)
	fmt.Fprintln(w, "Trace:")
	for _, e := range result.Trace {
		args := ""
		if len(e.Args) > 0 {
			data, err := json.Marshal(e.Args)
			if err == nil {
				args = " " + string(data)
			}
		}
		changed := ""
		if !e.Changed {
			changed = " (unchanged)"
		}
		fmt.Fprintf(w, "  [%d] %s#%d %s%s%s\n", e.Seq, e.Flow, e.Step, e.Action, args, changed)
	}

	if len(result.State) > 0 {
		fmt.Fprintf(w, "\nFinal state: %s\n", result.State)
	}
	if payload.Journal != "" {
		fmt.Fprintf(w, "Journal: %s\n", payload.Journal)
	}
	if payload.Metrics != "" {
		fmt.Fprintf(w, "\nMetrics:\n%s", payload.Metrics)
	}

	if !result.Pass {
		fmt.Fprintln(w, "\nFailures:")
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", payload.Scenario))
	}

	fmt.Fprintln(w, "\n✓ Scenario passed")
	return nil
}
