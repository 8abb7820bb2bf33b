package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilnworks/kiln/internal/stage"
	"github.com/kilnworks/kiln/internal/stone"
)

// PlanResult is the JSON payload of the plan command.
type PlanResult struct {
	Stages      []PlanStage      `json:"stages"`
	Connections []PlanConnection `json:"inter_stage_connections"`
}

// PlanStage is one stage of the execution plan in solve order.
type PlanStage struct {
	ID        string   `json:"id"`
	Mechanism string   `json:"mechanism"`
	Directive string   `json:"directive"`
	Nodes     []string `json:"nodes"` // flow order
}

// PlanConnection is one virtualized cross-stage connection.
type PlanConnection struct {
	ID          string `json:"id"`
	SourceNode  string `json:"source_node"`
	TargetNode  string `json:"target_node"`
	SourceStage string `json:"source_stage"`
	TargetStage string `json:"target_stage"`
	Switched    bool   `json:"mechanism_switch"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <config>",
		Short: "Show the stage execution plan without solving",
		Long: `Build and print the stage execution plan: stage solve order, per-stage
flow order, and the inter-stage connections that will be virtualized
during the solve.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runPlan(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := stone.Load(path)
	if err != nil {
		_ = formatter.Error("LOAD_ERROR", err.Error(), nil)
		return WrapExitError(ExitFailure, "plan", err)
	}

	plan, err := stage.BuildStageGraph(cfg)
	if err != nil {
		var stageErr *stage.ConfigError
		if errors.As(err, &stageErr) {
			_ = formatter.Error(string(stageErr.Code), stageErr.Message, stageErr.Stages)
			return WrapExitError(ExitFailure, "plan", err)
		}
		_ = formatter.Error("PLAN_ERROR", err.Error(), nil)
		return WrapExitError(ExitFailure, "plan", err)
	}

	result := planResult(plan)
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "Execution plan: %d stage(s)\n\n", len(result.Stages))
	for i, st := range result.Stages {
		fmt.Fprintf(formatter.Writer, "%d. %s  (mechanism=%s, %s)\n", i+1, st.ID, st.Mechanism, st.Directive)
		for _, n := range st.Nodes {
			fmt.Fprintf(formatter.Writer, "     %s\n", n)
		}
	}
	if len(result.Connections) > 0 {
		fmt.Fprintf(formatter.Writer, "\nInter-stage connections:\n")
		for _, c := range result.Connections {
			marker := ""
			if c.Switched {
				marker = "  [mechanism switch]"
			}
			fmt.Fprintf(formatter.Writer, "  %s: %s (%s) -> %s (%s)%s\n",
				c.ID, c.SourceNode, c.SourceStage, c.TargetNode, c.TargetStage, marker)
		}
	}
	return nil
}

func planResult(plan *stage.ExecutionPlan) PlanResult {
	result := PlanResult{}
	for _, st := range plan.OrderedStages {
		result.Stages = append(result.Stages, PlanStage{
			ID:        st.ID,
			Mechanism: st.Mechanism,
			Directive: st.Directive.Kind.String(),
			Nodes:     st.FlowOrder(),
		})
	}
	for _, ic := range plan.InterConnections {
		result.Connections = append(result.Connections, PlanConnection{
			ID:          ic.ID,
			SourceNode:  ic.SourceNode,
			TargetNode:  ic.TargetNode,
			SourceStage: ic.SourceStage,
			TargetStage: ic.TargetStage,
			Switched:    ic.MechanismSwitch != nil,
		})
	}
	return result
}
