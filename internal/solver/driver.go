package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kilnworks/kiln/internal/mech"
	"github.com/kilnworks/kiln/internal/observability"
	"github.com/kilnworks/kiln/internal/stage"
	"github.com/kilnworks/kiln/internal/stone"
	"github.com/kilnworks/kiln/internal/trajectory"
)

// ProgressFunc is called after each completed stage.
type ProgressFunc func(stageID string, done, total int)

// Options carries the injected collaborators of a staged solve. Only
// Capability and Resolver are required; a nil Switcher is acceptable as
// long as no mechanism switch is ever needed.
type Options struct {
	Capability Capability
	Resolver   mech.Resolver
	Switcher   Switcher

	Logger   *slog.Logger
	Metrics  *observability.SolverMetrics
	Progress ProgressFunc

	// AssembleViz builds the inspection-only cross-stage network after
	// all stages converge.
	AssembleViz bool
}

// pendingInlet is one entry of the cross-stage hand-off table: the state
// waiting to seed a downstream node, plus the switch losses that produced
// it. Written by the upstream stage, consumed exactly once by the
// downstream one.
type pendingInlet struct {
	state  mech.State
	losses Losses
}

// SolveStaged executes the plan stage by stage.
//
// On failure the returned error names the failing stage and the returned
// trajectory holds every segment completed before it — a partial
// trajectory is a valid, inspectable result of a failed run.
func SolveStaged(ctx context.Context, plan *stage.ExecutionPlan, cfg *stone.Config, opts Options) (*trajectory.Lagrangian, error) {
	if opts.Capability == nil {
		return nil, errors.New("solver: no solve capability injected")
	}
	if opts.Resolver == nil {
		return nil, errors.New("solver: no mechanism resolver injected")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	traj := trajectory.New()
	pending := make(map[string]pendingInlet)
	finalResults := make(map[string]NodeResult)
	total := len(plan.OrderedStages)

	for i, st := range plan.OrderedStages {
		logger.Info("solving stage",
			"stage", st.ID, "index", i+1, "total", total, "reactors", len(st.NodeIDs))

		m, err := opts.Resolver.Resolve(st.Mechanism)
		if err != nil {
			return traj, stageFailure(opts.Metrics, st.ID, err)
		}

		nodeSet := make(map[string]bool, len(st.NodeIDs))
		for _, nid := range st.NodeIDs {
			nodeSet[nid] = true
		}
		var stageNodes []stone.Node
		for _, n := range cfg.Nodes {
			if nodeSet[n.ID] {
				stageNodes = append(stageNodes, n)
			}
		}

		// Consume pending inlet states for this stage's nodes: read-once,
		// so no state is ever shared between stages. Switch losses ride
		// along and land on the segment they fed.
		inlet := make(map[string]mech.State)
		var segmentLosses map[string]float64
		for _, nid := range st.NodeIDs {
			p, ok := pending[nid]
			if !ok {
				continue
			}
			inlet[nid] = p.state
			delete(pending, nid)
			if len(p.losses) > 0 {
				if segmentLosses == nil {
					segmentLosses = make(map[string]float64)
				}
				for sp, x := range p.losses {
					segmentLosses[sp] += x
				}
			}
		}

		start := time.Now()
		results, err := opts.Capability.Solve(ctx, SolveRequest{
			StageID:     st.ID,
			Mechanism:   m,
			Directive:   st.Directive,
			Nodes:       stageNodes,
			Connections: st.IntraConnections,
			InletStates: inlet,
		})
		if opts.Metrics != nil {
			opts.Metrics.StageDuration.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			return traj, stageFailure(opts.Metrics, st.ID, err)
		}

		states := collectStates(st, results)
		traj.AddSegment(st.ID, m, states, segmentLosses)
		for nid, r := range results {
			finalResults[nid] = r
		}
		if opts.Metrics != nil {
			opts.Metrics.StagesSolved.Inc()
			opts.Metrics.TrajectoryPoints.Add(float64(len(states)))
		}

		// Extract outlet states for every outgoing inter-stage connection
		// and park them for the downstream stage.
		for _, ic := range st.InterOut {
			res, ok := results[ic.SourceNode]
			if !ok {
				logger.Warn("inter-stage source has no solved state",
					"connection", ic.ID, "node", ic.SourceNode)
				continue
			}
			target := plan.Stage(ic.TargetStage)
			if target == nil {
				return traj, stageFailure(opts.Metrics, st.ID,
					fmt.Errorf("connection %q targets unknown stage %q", ic.ID, ic.TargetStage))
			}
			tm, err := opts.Resolver.Resolve(target.Mechanism)
			if err != nil {
				return traj, stageFailure(opts.Metrics, st.ID, err)
			}

			outlet := res.State.Clone()
			var losses Losses
			if !m.SameSpeciesSet(tm) {
				if opts.Switcher == nil {
					return traj, &PluginMissingError{
						ConnectionID:    ic.ID,
						SourceMechanism: m.Name,
						TargetMechanism: tm.Name,
					}
				}
				tol := stone.DefaultSwitchTolerances
				if ic.MechanismSwitch != nil {
					tol = *ic.MechanismSwitch
				}
				switched, switchLosses, err := opts.Switcher.Switch(outlet, tm, tol)
				if err != nil {
					return traj, stageFailure(opts.Metrics, st.ID, err)
				}
				outlet = switched
				losses = switchLosses
				if opts.Metrics != nil {
					opts.Metrics.MappingLossTotal.Add(losses.Total())
				}
			}
			pending[ic.TargetNode] = pendingInlet{state: outlet, losses: losses}
		}

		if opts.Progress != nil {
			opts.Progress(st.ID, i+1, total)
		}
	}

	if opts.AssembleViz {
		traj.VizNetwork = assembleViz(plan, cfg, finalResults)
		logger.Info("staged solve complete, visualization network assembled",
			"nodes", len(traj.VizNetwork.Nodes), "connections", len(traj.VizNetwork.Connections))
	} else {
		logger.Info("staged solve complete", "stages", total, "points", traj.Len())
	}
	return traj, nil
}

// collectStates gathers per-node final states in flow order, accumulating
// residence time into the segment-local axis. Unknown residence times
// advance the axis by nothing, matching a chain where only some cells
// carry timing information.
func collectStates(st *stage.Stage, results map[string]NodeResult) []trajectory.StateRecord {
	var records []trajectory.StateRecord
	cumulative := 0.0
	for _, nid := range st.FlowOrder() {
		res, ok := results[nid]
		if !ok {
			continue
		}
		if !math.IsNaN(res.Residence) {
			cumulative += res.Residence
		}
		records = append(records, trajectory.StateRecord{
			NodeID:      nid,
			Time:        cumulative,
			Temperature: res.State.Temperature,
			Pressure:    res.State.Pressure,
			X:           res.State.X.Clone(),
			Y:           res.State.Y.Clone(),
		})
	}
	return records
}

// assembleViz restores the full topology against the converged states:
// every solved node and every connection between grouped nodes, the
// inter-stage ones flagged. Inspection only, never solved.
func assembleViz(plan *stage.ExecutionPlan, cfg *stone.Config, finalResults map[string]NodeResult) *trajectory.VizNetwork {
	viz := &trajectory.VizNetwork{}
	for _, st := range plan.OrderedStages {
		for _, nid := range st.FlowOrder() {
			res, ok := finalResults[nid]
			if !ok {
				continue
			}
			viz.Nodes = append(viz.Nodes, trajectory.VizNode{
				ID:      nid,
				StageID: st.ID,
				State:   res.State.Clone(),
			})
		}
	}
	for _, conn := range cfg.Connections {
		srcStage, srcOK := plan.NodeToStage[conn.Source]
		tgtStage, tgtOK := plan.NodeToStage[conn.Target]
		if !srcOK || !tgtOK {
			continue
		}
		viz.Connections = append(viz.Connections, trajectory.VizConnection{
			ID:         conn.ID,
			Kind:       conn.Type,
			Source:     conn.Source,
			Target:     conn.Target,
			InterStage: srcStage != tgtStage,
			Properties: conn.Properties,
		})
	}
	return viz
}

func stageFailure(m *observability.SolverMetrics, stageID string, err error) error {
	if m != nil {
		m.StageFailures.Inc()
	}
	return &SolveError{StageID: stageID, Err: err}
}
