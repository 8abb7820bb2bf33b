// Package stage partitions a STONE network into stages and produces the
// deterministic order they are solved in.
//
// A stage is one group of reactor nodes sharing a kinetic mechanism and a
// solve directive. Connections inside a stage are solved as live flow
// devices; connections crossing stages are virtual and only transfer state
// between solves.
package stage

import "github.com/kilnworks/kiln/internal/stone"

// DirectiveKind enumerates how a stage's sub-network is solved.
type DirectiveKind int

const (
	// SteadyState advances the sub-network to steady state.
	SteadyState DirectiveKind = iota
	// AdvanceFixedDuration advances the sub-network for Directive.Duration
	// seconds.
	AdvanceFixedDuration
)

func (k DirectiveKind) String() string {
	switch k {
	case SteadyState:
		return "advance_to_steady_state"
	case AdvanceFixedDuration:
		return "advance"
	}
	return "unknown"
}

// Directive is a stage's solve instruction.
type Directive struct {
	Kind DirectiveKind
	// Duration is the advance time [s], meaningful only for
	// AdvanceFixedDuration.
	Duration float64
}

// directiveFromGroup maps the group's solve field onto a Directive. The
// schema has already restricted the field to the known spellings.
func directiveFromGroup(g stone.Group) Directive {
	if g.Solve == "advance" {
		return Directive{Kind: AdvanceFixedDuration, Duration: g.AdvanceTime}
	}
	return Directive{Kind: SteadyState}
}

// InterStageConnection is a connection whose endpoints belong to different
// stages. It is never built as a live flow device: during the solve only
// the upstream outlet state crosses it. The original connection kind and
// properties are retained so the visualization network can restore the
// full topology afterwards.
type InterStageConnection struct {
	ID         string
	SourceNode string
	TargetNode string

	SourceStage string
	TargetStage string

	Kind       string
	Properties map[string]any

	// MechanismSwitch tolerances from the config, when declared.
	MechanismSwitch *stone.SwitchTolerances
}

// Stage is a named group of reactor nodes solved as one isolated
// sub-network.
type Stage struct {
	ID        string
	Mechanism string
	Directive Directive

	// NodeIDs lists the member nodes in config declaration order.
	NodeIDs []string

	// IntraConnections are connections with both endpoints in this stage.
	IntraConnections []stone.Connection

	// InterIn and InterOut reference the inter-stage connections entering
	// and leaving this stage.
	InterIn  []*InterStageConnection
	InterOut []*InterStageConnection
}

// ExecutionPlan is the immutable output of BuildStageGraph: stages in
// topological order plus the global inter-stage connection list.
type ExecutionPlan struct {
	OrderedStages    []*Stage
	InterConnections []*InterStageConnection

	// NodeToStage maps every grouped node id to its stage id. Nodes
	// without a group do not appear.
	NodeToStage map[string]string
}

// Stage returns the stage with the given id, or nil.
func (p *ExecutionPlan) Stage(id string) *Stage {
	for _, st := range p.OrderedStages {
		if st.ID == id {
			return st
		}
	}
	return nil
}
