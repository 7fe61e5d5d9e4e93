package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/cloud/fake"
	"github.com/terrane-dev/terrane/internal/config"
	"github.com/terrane-dev/terrane/internal/engine"
	"github.com/terrane-dev/terrane/internal/graph"
	"github.com/terrane-dev/terrane/internal/journal"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	DryRun      bool
	Journal     string
	Parallelism int
}

// ApplyNode is one per-resource row of the apply report.
type ApplyNode struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Action string `json:"action,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// ApplyResult is the rendered outcome of one run.
type ApplyResult struct {
	RunID   string            `json:"run_id"`
	Status  string            `json:"status"`
	Nodes   []ApplyNode       `json:"nodes"`
	Outputs map[string]string `json:"outputs,omitempty"`
}

// ControlPlaneFactory supplies the control plane apply converges against.
// The binary ships only the in-memory simulation; embedders that link the
// cli package can install a real platform adapter here.
var ControlPlaneFactory = func() cloud.ControlPlane { return fake.New() }

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <topology>",
		Short: "Converge a topology against the control plane",
		Long: `Build the dependency graph of a topology and drive every resource to
its declared state, wavefront by wavefront. Transitions are recorded in
the run journal unless --dry-run is given.

--dry-run converges against a throwaway in-memory control plane and
reports the create/update/no-op decision per resource without mutating
anything or touching the journal.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report decisions without mutating or journaling")
	cmd.Flags().StringVar(&opts.Journal, "journal", "terrane.db", "run journal database path")
	cmd.Flags().IntVar(&opts.Parallelism, "parallelism", engine.DefaultParallelism, "max nodes converged concurrently per wavefront")
	return cmd
}

func runApply(opts *ApplyOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	topo, err := config.Load(path)
	if err != nil {
		_ = formatter.Error("E100", err.Error(), nil)
		return WrapExitError(ExitCommandError, "load failed", err)
	}

	g, cfgErrs := graph.Build(topo)
	if len(cfgErrs) > 0 {
		for _, ce := range cfgErrs {
			fmt.Fprintf(formatter.ErrWriter, "%s\n", ce.Error())
		}
		return NewExitError(ExitFailure, fmt.Sprintf("topology invalid: %d error(s)", len(cfgErrs)))
	}

	cp := ControlPlaneFactory()
	if opts.DryRun {
		cp = fake.New()
	}

	engineOpts := []engine.Option{engine.WithParallelism(opts.Parallelism)}

	runID := engine.UUIDGenerator{}.Generate()
	engineOpts = append(engineOpts, engine.WithRunIDGenerator(engine.FixedGenerator{ID: runID}))

	var j *journal.Journal
	if !opts.DryRun {
		j, err = journal.Open(opts.Journal)
		if err != nil {
			_ = formatter.Error("E101", err.Error(), nil)
			return WrapExitError(ExitCommandError, "journal open failed", err)
		}
		defer j.Close()
		if err := j.StartRun(cmd.Context(), runID, topo.Project); err != nil {
			_ = formatter.Error("E101", err.Error(), nil)
			return WrapExitError(ExitCommandError, "journal write failed", err)
		}
		engineOpts = append(engineOpts, engine.WithRecorder(j))
	}

	res, err := engine.New(cp, engineOpts...).Converge(cmd.Context(), g)
	if err != nil {
		_ = formatter.Error("E102", err.Error(), nil)
		return WrapExitError(ExitCommandError, "converge failed", err)
	}
	if j != nil {
		if err := j.FinishRun(cmd.Context(), runID, res.Status); err != nil {
			formatter.VerboseLog("journal finish failed: %v", err)
		}
	}

	report := buildApplyResult(res)
	if formatter.Format == "json" {
		_ = formatter.JSON(report)
	} else {
		fmt.Fprint(formatter.Writer, renderApply(report, opts.DryRun))
	}

	if res.Status != engine.StatusAllConverged {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s: %s", res.RunID, res.Status))
	}
	return nil
}

func buildApplyResult(res *engine.Result) ApplyResult {
	out := ApplyResult{
		RunID:   res.RunID,
		Status:  string(res.Status),
		Outputs: res.Outputs,
	}
	for id, nr := range res.Nodes {
		row := ApplyNode{ID: string(id), Status: string(nr.Status)}
		if nr.Status == engine.StatusConverged {
			row.Action = string(nr.Action)
		}
		switch {
		case nr.Err != nil:
			row.Detail = nr.Err.Error()
		case nr.BlockedBy != "":
			row.Detail = "blocked by " + string(nr.BlockedBy)
		}
		out.Nodes = append(out.Nodes, row)
	}
	sort.Slice(out.Nodes, func(i, k int) bool { return out.Nodes[i].ID < out.Nodes[k].ID })
	return out
}

func renderApply(r ApplyResult, dryRun bool) string {
	var b strings.Builder
	verb := "Applied"
	if dryRun {
		verb = "Dry run"
	}
	fmt.Fprintf(&b, "%s run %s: %s\n\n", verb, r.RunID, r.Status)

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, n := range r.Nodes {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", n.ID, n.Status, n.Action, n.Detail)
	}
	tw.Flush()

	if len(r.Outputs) > 0 {
		fmt.Fprintf(&b, "\nOutputs:\n")
		keys := make([]string, 0, len(r.Outputs))
		for k := range r.Outputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s = %s\n", k, r.Outputs[k])
		}
	}
	return b.String()
}
