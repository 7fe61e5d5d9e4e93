package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terrane-dev/terrane/internal/config"
	"github.com/terrane-dev/terrane/internal/graph"
	"github.com/terrane-dev/terrane/internal/model"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	DOT bool
}

// PlanNode is one resource in the rendered plan.
type PlanNode struct {
	ID        string   `json:"id"`
	Kind      string   `json:"kind"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// Plan is the rendered execution plan.
type Plan struct {
	Project    string       `json:"project"`
	Resources  int          `json:"resources"`
	Wavefronts [][]PlanNode `json:"wavefronts"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <topology>",
		Short: "Show the wavefront execution plan for a topology",
		Long: `Build the dependency graph of a topology and print the wavefronts
the engine would release, in order. Performs no remote calls.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.DOT, "dot", false, "emit the dependency graph in DOT format")
	return cmd
}

func runPlan(opts *PlanOptions, path string, cmd *cobra.Command) error {
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

	if opts.DOT {
		fmt.Fprint(formatter.Writer, g.DOT())
		return nil
	}

	plan := buildPlan(topo, g)
	if formatter.Format == "json" {
		return formatter.JSON(plan)
	}
	fmt.Fprint(formatter.Writer, RenderPlan(plan))
	return nil
}

func buildPlan(topo *model.Topology, g *graph.Graph) Plan {
	plan := Plan{Project: topo.Project, Resources: topo.Len()}
	for _, front := range g.Wavefronts() {
		nodes := make([]PlanNode, 0, len(front))
		for _, id := range front {
			n := topo.Node(id)
			pn := PlanNode{ID: string(id), Kind: string(n.Kind)}
			for _, dep := range g.Dependencies(id) {
				pn.DependsOn = append(pn.DependsOn, string(dep))
			}
			nodes = append(nodes, pn)
		}
		plan.Wavefronts = append(plan.Wavefronts, nodes)
	}
	return plan
}

// RenderPlan renders the text form of a plan. Deterministic: node order
// within a wavefront is the graph's ID order.
func RenderPlan(plan Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan for project %s: %d resources in %d wavefronts\n",
		plan.Project, plan.Resources, len(plan.Wavefronts))
	for i, front := range plan.Wavefronts {
		fmt.Fprintf(&b, "\nwavefront %d:\n", i)
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, n := range front {
			deps := ""
			if len(n.DependsOn) > 0 {
				deps = "<- " + strings.Join(n.DependsOn, ", ")
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", n.ID, n.Kind, deps)
		}
		tw.Flush()
	}
	return b.String()
}
