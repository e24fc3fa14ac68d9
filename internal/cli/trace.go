package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/storekit/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	FlowToken string
	Store     string
	Limit     int
}

// TraceResult holds the trace output. Exactly one of Flows and Entries is
// set.
type TraceResult struct {
	Journal string                `json:"journal"`
	Flow    string                `json:"flow,omitempty"`
	Flows   []journal.FlowSummary `json:"flows,omitempty"`
	Entries []journal.Entry       `json:"entries,omitempty"`
	Stats   TraceStats            `json:"stats"`
}

// TraceStats holds summary statistics for a flow.
type TraceStats struct {
	Reductions int `json:"reductions"`
	Changed    int `json:"changed"`
	Drops      int `json:"drops"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <journal.db>",
		Short: "Inspect a reduction journal",
		Long: `Inspect a journal written by "storekit run --journal".

Without --flow, lists the journaled flows with their root action and step
count. With --flow, shows that flow's causal chain: every reduction in
commit order, then any dropped actions.

Examples:
  storekit trace ./journal.db
  storekit trace ./journal.db --store counter --limit 10
  storekit trace ./journal.db --flow counter-load-2 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "flow token to show")
	cmd.Flags().StringVar(&opts.Store, "store", "", "only flows of this store")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most the N most recent flows")

	return cmd
}

func runTrace(opts *TraceOptions, path string, cmd *cobra.Command) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	}

	j, err := journal.Open(path, journal.WithLogger(opts.log(cmd.ErrOrStderr())))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result := TraceResult{Journal: path, Flow: opts.FlowToken}
	if opts.FlowToken != "" {
		err = traceFlow(ctx, j, &result)
	} else {
		err = listFlows(ctx, j, opts, &result)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	formatter := opts.formatter(cmd)
	if formatter.JSON() {
		return formatter.Success(result)
	}
	if opts.FlowToken != "" {
		return outputFlowText(cmd.OutOrStdout(), result, opts.Verbose)
	}
	return outputFlowsText(cmd.OutOrStdout(), result)
}

func traceFlow(ctx context.Context, j *journal.Journal, result *TraceResult) error {
	entries, err := j.ReadFlow(ctx, result.Flow)
	if err != nil {
		return err
	}
	result.Entries = entries
	for _, e := range entries {
		switch e.Kind {
		case journal.KindReduce:
			result.Stats.Reductions++
			if e.Changed {
				result.Stats.Changed++
			}
		case journal.KindDrop:
			result.Stats.Drops++
		}
	}
	return nil
}

func listFlows(ctx context.Context, j *journal.Journal, opts *TraceOptions, result *TraceResult) error {
	flows, err := j.Flows(ctx)
	if err != nil {
		return err
	}
	if opts.Store != "" {
		kept := flows[:0]
		for _, f := range flows {
			if f.Store == opts.Store {
				kept = append(kept, f)
			}
		}
		flows = kept
	}
	if opts.Limit > 0 && len(flows) > opts.Limit {
		flows = flows[len(flows)-opts.Limit:]
	}
	result.Flows = flows
	for _, f := range flows {
		result.Stats.Reductions += f.Steps
		result.Stats.Drops += f.Drops
	}
	return nil
}

func outputFlowText(w io.Writer, result TraceResult, verbose bool) error {
	if len(result.Entries) == 0 {
		fmt.Fprintf(w, "No entries found for flow: %s\n", result.Flow)
		return nil
	}

	fmt.Fprintf(w, "Flow: %s (store %s)\n\n", result.Flow, result.Entries[0].Store)
	for _, e := range result.Entries {
		switch e.Kind {
		case journal.KindDrop:
			fmt.Fprintf(w, "  ✗ dropped %s: %s\n", e.Action, e.Error)
		default:
			mark := "·"
			if e.Changed {
				mark = "●"
			}
			fmt.Fprintf(w, "  %s [%d] step %d %s %s\n", mark, e.Seq, e.Step, e.Action, formatPayload(e.Payload, verbose))
		}
	}

	fmt.Fprintf(w, "\n%d reduction(s), %d changed state, %d dropped\n",
		result.Stats.Reductions, result.Stats.Changed, result.Stats.Drops)
	return nil
}

func outputFlowsText(w io.Writer, result TraceResult) error {
	if len(result.Flows) == 0 {
		fmt.Fprintln(w, "No flows recorded.")
		return nil
	}
	for _, f := range result.Flows {
		drops := ""
		if f.Drops > 0 {
			drops = fmt.Sprintf(", %d dropped", f.Drops)
		}
		fmt.Fprintf(w, "%s  %-10s %-24s %d step(s)%s\n", f.Flow, f.Store, f.Root, f.Steps, drops)
	}
	return nil
}

// formatPayload shortens a JSON payload for one-line display.
func formatPayload(payload []byte, verbose bool) string {
	s := strings.TrimSpace(string(payload))
	if s == "" || s == "{}" || s == "null" {
		return ""
	}
	if !verbose && len(s) > 60 {
		return s[:57] + "..."
	}
	return s
}
