package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnworks/kiln/internal/stone"
)

func node(id, group string) stone.Node {
	return stone.Node{ID: id, Type: "IdealGasReactor", Group: group, Properties: map[string]any{}}
}

func conn(id, source, target string) stone.Connection {
	return stone.Connection{ID: id, Type: "MassFlowController", Source: source, Target: target, Properties: map[string]any{}}
}

func twoStageConfig() *stone.Config {
	return &stone.Config{
		Phases: stone.Phases{Gas: stone.GasPhase{Mechanism: "full"}},
		Groups: map[string]stone.Group{
			"stage_a": {Mechanism: "full"},
			"stage_b": {Mechanism: "reduced"},
		},
		Nodes: []stone.Node{
			node("r_a", "stage_a"),
			node("r_b", "stage_b"),
		},
		Connections: []stone.Connection{
			conn("a_to_b", "r_a", "r_b"),
		},
	}
}

// TestBuildStageGraph_TwoStageOrder verifies the basic upstream-first
// ordering and the node-to-stage map.
func TestBuildStageGraph_TwoStageOrder(t *testing.T) {
	plan, err := BuildStageGraph(twoStageConfig())
	require.NoError(t, err)

	require.Len(t, plan.OrderedStages, 2)
	assert.Equal(t, "stage_a", plan.OrderedStages[0].ID)
	assert.Equal(t, "stage_b", plan.OrderedStages[1].ID)

	assert.Equal(t, "stage_a", plan.NodeToStage["r_a"])
	assert.Equal(t, "stage_b", plan.NodeToStage["r_b"])
}

// TestBuildStageGraph_InterConnectionPartition verifies a_to_b is
// classified inter-stage and cross-referenced into both stages.
func TestBuildStageGraph_InterConnectionPartition(t *testing.T) {
	plan, err := BuildStageGraph(twoStageConfig())
	require.NoError(t, err)

	require.Len(t, plan.InterConnections, 1)
	ic := plan.InterConnections[0]
	assert.Equal(t, "a_to_b", ic.ID)
	assert.Equal(t, "stage_a", ic.SourceStage)
	assert.Equal(t, "stage_b", ic.TargetStage)

	a := plan.Stage("stage_a")
	b := plan.Stage("stage_b")
	assert.Empty(t, a.IntraConnections)
	assert.Empty(t, b.IntraConnections)
	require.Len(t, a.InterOut, 1)
	require.Len(t, b.InterIn, 1)
	assert.Same(t, a.InterOut[0], b.InterIn[0])
}

// TestBuildStageGraph_IntraConnection verifies same-stage connections stay
// inside their stage.
func TestBuildStageGraph_IntraConnection(t *testing.T) {
	cfg := twoStageConfig()
	cfg.Nodes = append(cfg.Nodes, node("r_a2", "stage_a"))
	cfg.Connections = append(cfg.Connections, conn("a_internal", "r_a", "r_a2"))

	plan, err := BuildStageGraph(cfg)
	require.NoError(t, err)

	a := plan.Stage("stage_a")
	require.Len(t, a.IntraConnections, 1)
	assert.Equal(t, "a_internal", a.IntraConnections[0].ID)
	assert.Len(t, plan.InterConnections, 1)
}

// TestBuildStageGraph_UngroupedNodesPassThrough verifies ungrouped nodes
// and their connections are excluded from staging without error.
func TestBuildStageGraph_UngroupedNodesPassThrough(t *testing.T) {
	cfg := twoStageConfig()
	cfg.Nodes = append(cfg.Nodes, node("feed", ""))
	cfg.Connections = append(cfg.Connections, conn("feed_to_a", "feed", "r_a"))

	plan, err := BuildStageGraph(cfg)
	require.NoError(t, err)

	_, mapped := plan.NodeToStage["feed"]
	assert.False(t, mapped)
	assert.Len(t, plan.InterConnections, 1, "feed_to_a is neither intra nor inter")
	assert.Empty(t, plan.Stage("stage_a").IntraConnections)
}

// TestBuildStageGraph_UnknownGroup verifies the UNKNOWN_GROUP error fires
// before any ordering work.
func TestBuildStageGraph_UnknownGroup(t *testing.T) {
	cfg := twoStageConfig()
	cfg.Nodes = append(cfg.Nodes, node("lost", "nonexistent"))

	_, err := BuildStageGraph(cfg)
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeUnknownGroup, ce.Code)
	assert.Contains(t, ce.Message, "nonexistent")
}

// TestBuildStageGraph_CycleDetected verifies reciprocal inter-stage
// connections raise a STAGE_CYCLE error naming the unplaced stages.
func TestBuildStageGraph_CycleDetected(t *testing.T) {
	cfg := twoStageConfig()
	cfg.Connections = append(cfg.Connections, conn("b_to_a", "r_b", "r_a"))

	_, err := BuildStageGraph(cfg)
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"stage_a", "stage_b"}, ce.Stages)
}

// TestBuildStageGraph_SingleStageDegenerate verifies the one-stage,
// no-inter-connection case.
func TestBuildStageGraph_SingleStageDegenerate(t *testing.T) {
	cfg := &stone.Config{
		Groups: map[string]stone.Group{"only": {Mechanism: "full"}},
		Nodes:  []stone.Node{node("r1", "only")},
	}
	plan, err := BuildStageGraph(cfg)
	require.NoError(t, err)
	require.Len(t, plan.OrderedStages, 1)
	assert.Empty(t, plan.InterConnections)
}

// TestBuildStageGraph_DefaultMechanism verifies groups inherit the gas
// phase mechanism when they declare none.
func TestBuildStageGraph_DefaultMechanism(t *testing.T) {
	cfg := twoStageConfig()
	cfg.Groups["stage_a"] = stone.Group{}

	plan, err := BuildStageGraph(cfg)
	require.NoError(t, err)
	assert.Equal(t, "full", plan.Stage("stage_a").Mechanism)
}

// TestBuildStageGraph_Deterministic verifies repeated builds and permuted
// declaration orders give the same stage order. Sibling stages with no
// dependency between them must come out lexicographically.
func TestBuildStageGraph_Deterministic(t *testing.T) {
	build := func(groupOrder []string) []string {
		cfg := &stone.Config{
			Groups: map[string]stone.Group{},
			Nodes: []stone.Node{
				node("n_root", "root"),
				node("n_left", "left"),
				node("n_right", "right"),
				node("n_sink", "sink"),
			},
			Connections: []stone.Connection{
				conn("c1", "n_root", "n_left"),
				conn("c2", "n_root", "n_right"),
				conn("c3", "n_left", "n_sink"),
				conn("c4", "n_right", "n_sink"),
			},
		}
		for _, gid := range groupOrder {
			cfg.Groups[gid] = stone.Group{Mechanism: "full"}
		}
		plan, err := BuildStageGraph(cfg)
		require.NoError(t, err)
		ids := make([]string, 0, len(plan.OrderedStages))
		for _, st := range plan.OrderedStages {
			ids = append(ids, st.ID)
		}
		return ids
	}

	want := []string{"root", "left", "right", "sink"}
	assert.Equal(t, want, build([]string{"root", "left", "right", "sink"}))
	assert.Equal(t, want, build([]string{"sink", "right", "left", "root"}))
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, build([]string{"left", "sink", "root", "right"}))
	}
}

// TestBuildStageGraph_ParallelEdgesDeduplicated verifies two connections
// between the same stage pair count as one dependency edge.
func TestBuildStageGraph_ParallelEdgesDeduplicated(t *testing.T) {
	cfg := twoStageConfig()
	cfg.Nodes = append(cfg.Nodes, node("r_a2", "stage_a"))
	cfg.Connections = append(cfg.Connections, conn("a_to_b_2", "r_a2", "r_b"))

	plan, err := BuildStageGraph(cfg)
	require.NoError(t, err)
	require.Len(t, plan.OrderedStages, 2)
	assert.Equal(t, "stage_a", plan.OrderedStages[0].ID)
	assert.Len(t, plan.InterConnections, 2)
}

// TestFlowOrder_Chain verifies flow order follows intra-stage connections.
func TestFlowOrder_Chain(t *testing.T) {
	st := &Stage{
		ID:      "s",
		NodeIDs: []string{"c", "a", "b"},
		IntraConnections: []stone.Connection{
			conn("1", "a", "b"),
			conn("2", "b", "c"),
		},
	}
	assert.Equal(t, []string{"a", "b", "c"}, st.FlowOrder())
}

// TestFlowOrder_TieBreak verifies unrelated nodes come out in id order.
func TestFlowOrder_TieBreak(t *testing.T) {
	st := &Stage{ID: "s", NodeIDs: []string{"z", "m", "a"}}
	assert.Equal(t, []string{"a", "m", "z"}, st.FlowOrder())
}

// TestFlowOrder_IntraCycleTolerated verifies an intra-stage cycle is not
// an error: its members are appended in id order after the sorted prefix.
func TestFlowOrder_IntraCycleTolerated(t *testing.T) {
	st := &Stage{
		ID:      "s",
		NodeIDs: []string{"inlet", "loop_b", "loop_a"},
		IntraConnections: []stone.Connection{
			conn("1", "inlet", "loop_a"),
			conn("2", "loop_a", "loop_b"),
			conn("3", "loop_b", "loop_a"),
		},
	}
	assert.Equal(t, []string{"inlet", "loop_a", "loop_b"}, st.FlowOrder())
}

// TestDirectiveFromGroup verifies the directive mapping and its default.
func TestDirectiveFromGroup(t *testing.T) {
	d := directiveFromGroup(stone.Group{Solve: "advance", AdvanceTime: 0.5})
	assert.Equal(t, AdvanceFixedDuration, d.Kind)
	assert.Equal(t, 0.5, d.Duration)

	d = directiveFromGroup(stone.Group{})
	assert.Equal(t, SteadyState, d.Kind)
}
