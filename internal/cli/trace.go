package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terrane-dev/terrane/internal/engine"
	"github.com/terrane-dev/terrane/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	List    bool
}

// TraceRow is one transition in the rendered trace.
type TraceRow struct {
	Seq    int64  `json:"seq"`
	Node   string `json:"node"`
	From   string `json:"from"`
	To     string `json:"to"`
	Action string `json:"action,omitempty"`
	Class  string `json:"error_class,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Trace is the rendered timeline of one run.
type Trace struct {
	Run         journal.RunSummary `json:"run"`
	Transitions []TraceRow         `json:"transitions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show the recorded transition timeline of a run",
		Long: `Read the run journal and print every status transition of a run in
logical-clock order. With --list, list recorded runs instead.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(opts, runID, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Journal, "journal", "terrane.db", "run journal database path")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")
	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	j, err := journal.Open(opts.Journal)
	if err != nil {
		_ = formatter.Error("E101", err.Error(), nil)
		return WrapExitError(ExitCommandError, "journal open failed", err)
	}
	defer j.Close()

	if opts.List || runID == "" {
		runs, err := j.Runs(cmd.Context())
		if err != nil {
			_ = formatter.Error("E101", err.Error(), nil)
			return WrapExitError(ExitCommandError, "journal read failed", err)
		}
		if formatter.Format == "json" {
			return formatter.JSON(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(formatter.Writer, "no recorded runs")
			return nil
		}
		tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "RUN\tPROJECT\tSTATUS\tSTARTED\tFINISHED\n")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Project, r.Status, r.StartedAt, r.FinishedAt)
		}
		tw.Flush()
		return nil
	}

	run, err := j.Run(cmd.Context(), runID)
	if err != nil {
		_ = formatter.Error("E103", err.Error(), nil)
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	transitions, err := j.Transitions(cmd.Context(), runID)
	if err != nil {
		_ = formatter.Error("E101", err.Error(), nil)
		return WrapExitError(ExitCommandError, "journal read failed", err)
	}

	trace := Trace{Run: run}
	for _, t := range transitions {
		trace.Transitions = append(trace.Transitions, TraceRow{
			Seq:    t.Seq,
			Node:   string(t.NodeID),
			From:   string(t.From),
			To:     string(t.To),
			Action: actionLabel(t),
			Class:  string(t.Class),
			Detail: t.Detail,
		})
	}

	if formatter.Format == "json" {
		return formatter.JSON(trace)
	}
	fmt.Fprint(formatter.Writer, renderTrace(trace))
	return nil
}

func actionLabel(t engine.Transition) string {
	if t.To != engine.StatusConverged {
		return ""
	}
	return string(t.Action)
}

func renderTrace(trace Trace) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s): %s\n\n", trace.Run.ID, trace.Run.Project, trace.Run.Status)
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SEQ\tNODE\tTRANSITION\tACTION\tDETAIL\n")
	for _, t := range trace.Transitions {
		detail := t.Detail
		if t.Class != "" && detail == "" {
			detail = t.Class
		}
		fmt.Fprintf(tw, "%d\t%s\t%s -> %s\t%s\t%s\n", t.Seq, t.Node, t.From, t.To, t.Action, detail)
	}
	tw.Flush()
	return b.String()
}
