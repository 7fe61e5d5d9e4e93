package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terrane-dev/terrane/internal/config"
	"github.com/terrane-dev/terrane/internal/graph"
)

// ValidationIssue is one rendered configuration error.
type ValidationIssue struct {
	Code    string   `json:"code"`
	Node    string   `json:"node,omitempty"`
	Message string   `json:"message"`
	Nodes   []string `json:"nodes,omitempty"` // involved path for cycles
}

// ValidationResult holds validation output.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Nodes  int               `json:"nodes"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <topology>",
		Short: "Validate a topology without touching any remote state",
		Long: `Validate a declared topology: manifest shape, attribute typing,
reference resolution, cycle freedom and grant narrowness. Performs no
remote calls.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
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
	formatter.VerboseLog("loaded %d resource(s) from %s", topo.Len(), path)

	_, cfgErrs := graph.Build(topo)
	if len(cfgErrs) == 0 {
		if formatter.Format == "json" {
			return formatter.JSON(ValidationResult{Valid: true, Nodes: topo.Len()})
		}
		fmt.Fprintf(formatter.Writer, "✓ topology valid (%d resources)\n", topo.Len())
		return nil
	}

	issues := make([]ValidationIssue, 0, len(cfgErrs))
	for _, ce := range cfgErrs {
		issue := ValidationIssue{Code: ce.Code, Node: string(ce.NodeID), Message: ce.Message}
		for _, n := range ce.Nodes {
			issue.Nodes = append(issue.Nodes, string(n))
		}
		issues = append(issues, issue)
	}

	if formatter.Format == "json" {
		_ = formatter.JSON(ValidationResult{Valid: false, Nodes: topo.Len(), Issues: issues})
	} else {
		fmt.Fprintln(formatter.Writer, "✗ validation failed")
		fmt.Fprintln(formatter.Writer)
		for _, ce := range cfgErrs {
			fmt.Fprintf(formatter.Writer, "  %s\n", ce.Error())
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(cfgErrs)))
}
