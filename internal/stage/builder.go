package stage

import (
	"fmt"
	"sort"

	"github.com/kilnworks/kiln/internal/stone"
)

// BuildStageGraph partitions a normalized config into stages and returns
// them in a deterministic topological order.
//
// Nodes without a group reference stay out of staged execution entirely;
// connections touching an ungrouped endpoint are likewise left alone.
func BuildStageGraph(cfg *stone.Config) (*ExecutionPlan, error) {
	defaultMechanism := cfg.Phases.Gas.Mechanism

	stages := make(map[string]*Stage, len(cfg.Groups))
	for gid, g := range cfg.Groups {
		mechanism := g.Mechanism
		if mechanism == "" {
			mechanism = defaultMechanism
		}
		stages[gid] = &Stage{
			ID:        gid,
			Mechanism: mechanism,
			Directive: directiveFromGroup(g),
		}
	}

	nodeToStage := make(map[string]string)
	for _, node := range cfg.Nodes {
		if node.Group == "" {
			continue
		}
		st, ok := stages[node.Group]
		if !ok {
			return nil, &ConfigError{
				Code: ErrCodeUnknownGroup,
				Message: fmt.Sprintf("node %q references unknown group %q (declared groups: %s)",
					node.ID, node.Group, groupList(stages)),
			}
		}
		st.NodeIDs = append(st.NodeIDs, node.ID)
		nodeToStage[node.ID] = node.Group
	}

	var interConns []*InterStageConnection
	for _, conn := range cfg.Connections {
		srcStage, srcOK := nodeToStage[conn.Source]
		tgtStage, tgtOK := nodeToStage[conn.Target]

		switch {
		case srcOK && tgtOK && srcStage != tgtStage:
			ic := &InterStageConnection{
				ID:              conn.ID,
				SourceNode:      conn.Source,
				TargetNode:      conn.Target,
				SourceStage:     srcStage,
				TargetStage:     tgtStage,
				Kind:            conn.Type,
				Properties:      conn.Properties,
				MechanismSwitch: conn.MechanismSwitch,
			}
			interConns = append(interConns, ic)
			stages[srcStage].InterOut = append(stages[srcStage].InterOut, ic)
			stages[tgtStage].InterIn = append(stages[tgtStage].InterIn, ic)

		case srcOK && tgtOK:
			stages[srcStage].IntraConnections = append(stages[srcStage].IntraConnections, conn)

			// Connections with an ungrouped endpoint stay in the flat
			// network, untouched by staging.
		}
	}

	ordered, err := topologicalSort(stages)
	if err != nil {
		return nil, err
	}

	return &ExecutionPlan{
		OrderedStages:    ordered,
		InterConnections: interConns,
		NodeToStage:      nodeToStage,
	}, nil
}

// topologicalSort runs Kahn's algorithm over the stage dependency graph.
// Ready stages are popped in ascending lexicographic id order so the
// result is stable across runs and input orderings. Parallel edges between
// the same stage pair count once.
func topologicalSort(stages map[string]*Stage) ([]*Stage, error) {
	inDegree := make(map[string]int, len(stages))
	adjacency := make(map[string][]string, len(stages))
	for sid := range stages {
		inDegree[sid] = 0
	}

	for sid, st := range stages {
		for _, ic := range st.InterOut {
			if containsString(adjacency[sid], ic.TargetStage) {
				continue
			}
			adjacency[sid] = append(adjacency[sid], ic.TargetStage)
			inDegree[ic.TargetStage]++
		}
	}

	var queue []string
	for sid, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, sid)
		}
	}
	sort.Strings(queue)

	result := make([]*Stage, 0, len(stages))
	for len(queue) > 0 {
		sid := queue[0]
		queue = queue[1:]
		result = append(result, stages[sid])
		for _, downstream := range adjacency[sid] {
			inDegree[downstream]--
			if inDegree[downstream] == 0 {
				queue = append(queue, downstream)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(stages) {
		var unplaced []string
		for sid, deg := range inDegree {
			if deg > 0 {
				unplaced = append(unplaced, sid)
			}
		}
		sort.Strings(unplaced)
		return nil, &ConfigError{
			Code:    ErrCodeStageCycle,
			Message: "stage dependency graph has cycles; remove cyclic inter-stage connections or solve as a single network",
			Stages:  unplaced,
		}
	}
	return result, nil
}

// FlowOrder returns the within-stage visiting order: a topological sort of
// the stage's nodes over its intra-stage connections, with the same
// lexicographic tie-break as the stage ordering. Nodes left unplaced by
// the sort — isolated nodes or members of an intra-stage cycle — are
// appended at the end in ascending id order. Intra-stage cycles are not an
// error here: recycle loops inside one stage are the solver's business.
func (s *Stage) FlowOrder() []string {
	nodeSet := make(map[string]bool, len(s.NodeIDs))
	inDegree := make(map[string]int, len(s.NodeIDs))
	adjacency := make(map[string][]string)
	for _, nid := range s.NodeIDs {
		nodeSet[nid] = true
		inDegree[nid] = 0
	}

	for _, conn := range s.IntraConnections {
		if nodeSet[conn.Source] && nodeSet[conn.Target] {
			adjacency[conn.Source] = append(adjacency[conn.Source], conn.Target)
			inDegree[conn.Target]++
		}
	}

	var queue []string
	for _, nid := range s.NodeIDs {
		if inDegree[nid] == 0 {
			queue = append(queue, nid)
		}
	}
	sort.Strings(queue)

	placed := make(map[string]bool, len(s.NodeIDs))
	order := make([]string, 0, len(s.NodeIDs))
	for len(queue) > 0 {
		nid := queue[0]
		queue = queue[1:]
		order = append(order, nid)
		placed[nid] = true
		for _, downstream := range adjacency[nid] {
			inDegree[downstream]--
			if inDegree[downstream] == 0 {
				queue = append(queue, downstream)
				sort.Strings(queue)
			}
		}
	}

	var leftover []string
	for _, nid := range s.NodeIDs {
		if !placed[nid] {
			leftover = append(leftover, nid)
		}
	}
	sort.Strings(leftover)
	return append(order, leftover...)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func groupList(stages map[string]*Stage) string {
	ids := make([]string, 0, len(stages))
	for sid := range stages {
		ids = append(ids, sid)
	}
	sort.Strings(ids)
	return fmt.Sprintf("%v", ids)
}
