// Package solver executes a stage execution plan: it drives the injected
// chemistry capability stage by stage, hands thermodynamic state across
// stage boundaries, and assembles the Lagrangian trajectory.
//
// The Capability interface is the single seam to the chemistry engine.
// Everything else in this package is orchestration and owns no kinetics.
package solver

import (
	"context"
	"math"

	"github.com/kilnworks/kiln/internal/mech"
	"github.com/kilnworks/kiln/internal/stage"
	"github.com/kilnworks/kiln/internal/stone"
)

// SolveRequest is one stage's isolated sub-network: its own nodes, its
// intra-stage connections only, the stage mechanism, and the inlet states
// seeded from upstream stages.
type SolveRequest struct {
	StageID   string
	Mechanism mech.Mechanism
	Directive stage.Directive

	// Nodes are the stage's member nodes in config order.
	Nodes []stone.Node

	// Connections are intra-stage only. Inter-stage connections are
	// virtual and never reach the capability.
	Connections []stone.Connection

	// InletStates overrides the declared initial state of the keyed nodes.
	// Keys are node ids; the table is filtered to this stage's nodes.
	InletStates map[string]mech.State
}

// NodeResult is one node's final state after a stage solve.
type NodeResult struct {
	State mech.State

	// Residence is the node's residence time [s]; NaN when the engine
	// cannot estimate it.
	Residence float64
}

// Capability solves one isolated sub-network according to its directive
// and returns final per-node states. The call is synchronous and may
// iterate internally; the orchestrator treats it as one opaque blocking
// operation per stage.
//
// Implementations must return a result for every node they solved; nodes
// missing from the result map (reservoirs, for instance) are skipped when
// the trajectory segment is collected.
type Capability interface {
	Solve(ctx context.Context, req SolveRequest) (map[string]NodeResult, error)
}

// Inert is a chemistry-free Capability: every node's final state is its
// seeded inlet state when one exists, otherwise the state declared in its
// properties. No reactions, no flow coupling. It exists for topology dry
// runs and for exercising the orchestration without a kinetics engine.
type Inert struct{}

// Solve implements Capability.
func (Inert) Solve(_ context.Context, req SolveRequest) (map[string]NodeResult, error) {
	results := make(map[string]NodeResult, len(req.Nodes))
	for _, node := range req.Nodes {
		st, ok := req.InletStates[node.ID]
		if !ok {
			declared, err := DeclaredState(node)
			if err != nil {
				return nil, err
			}
			st = declared
		}
		results[node.ID] = NodeResult{
			State:     st.Clone(),
			Residence: declaredResidence(node),
		}
	}
	return results, nil
}

// DeclaredState builds a node's initial thermodynamic state from its
// properties: temperature [K] (default 300), pressure [Pa] (default
// 101325), and a Cantera-style composition string. With no molar-mass
// data available outside the chemistry engine, mass fractions mirror mole
// fractions.
func DeclaredState(node stone.Node) (mech.State, error) {
	temperature, ok := stone.FloatProperty(node.Properties, "temperature")
	if !ok {
		temperature = 300
	}
	pressure, ok := stone.FloatProperty(node.Properties, "pressure")
	if !ok {
		pressure = 101325
	}
	comp := mech.Composition{}
	if s, ok := stone.StringProperty(node.Properties, "composition"); ok {
		parsed, err := mech.ParseComposition(s)
		if err != nil {
			return mech.State{}, err
		}
		comp = parsed.Normalized()
	}
	return mech.State{
		Temperature: temperature,
		Pressure:    pressure,
		X:           comp,
		Y:           comp.Clone(),
	}, nil
}

func declaredResidence(node stone.Node) float64 {
	if v, ok := stone.FloatProperty(node.Properties, "residence_time"); ok {
		return v
	}
	return math.NaN()
}
