package graph

import (
	"fmt"
	"time"

	"github.com/msageha/foresight/internal/model"
)

// criticalPath computes the source→sink path with the maximal summed
// estimated duration via longest-path DP over the topological order. Ties are
// broken by first found.
func criticalPath(g *DependencyGraph, topoOrder []int) []string {
	n := len(g.Nodes)
	if n == 0 {
		return nil
	}

	dist := make([]time.Duration, n)
	pred := make([]int, n)
	for i := range pred {
		pred[i] = -1
	}

	for _, i := range topoOrder {
		dist[i] = g.Nodes[i].EstimatedDuration
		best := time.Duration(-1)
		for _, dep := range g.dependsOn[i] {
			if dist[dep] > best {
				best = dist[dep]
				pred[i] = dep
			}
		}
		if pred[i] >= 0 {
			dist[i] += best
		}
	}

	// Sinks: nodes nothing depends on. Pick the one with max distance.
	sink := -1
	var sinkDist time.Duration
	for i := 0; i < n; i++ {
		if len(g.dependedBy[i]) != 0 {
			continue
		}
		if sink == -1 || dist[i] > sinkDist {
			sink = i
			sinkDist = dist[i]
		}
	}
	if sink == -1 {
		return nil
	}

	// Walk back to the source, then reverse into execution order.
	var reversed []int
	for cur := sink; cur != -1; cur = pred[cur] {
		reversed = append(reversed, cur)
	}
	path := make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, g.Nodes[reversed[i]].ID)
	}
	return path
}

// parallelGroups walks the execution sequence, starting a new group whenever
// the next operation has an edge to or from a member of the current group, or
// is itself non-parallelizable. Inter-group dependencies record which group
// each edge's source waits on.
func parallelGroups(g *DependencyGraph) []ParallelGroup {
	if len(g.ExecutionSequence) == 0 {
		return nil
	}

	groupOf := make(map[string]int)
	var groups []ParallelGroup

	current := ParallelGroup{Index: 0}
	flush := func() {
		if len(current.NodeIDs) > 0 {
			groups = append(groups, current)
			current = ParallelGroup{Index: len(groups)}
		}
	}

	for _, id := range g.ExecutionSequence {
		idx, ok := g.indexByID[id]
		if !ok {
			continue
		}
		node := g.Nodes[idx]

		conflicts := !node.Parallelizable
		if !conflicts {
			for _, member := range current.NodeIDs {
				if g.HasEdgeBetween(id, member) {
					conflicts = true
					break
				}
			}
		}
		if conflicts {
			flush()
		}

		current.NodeIDs = append(current.NodeIDs, id)
		groupOf[id] = current.Index
		if d := node.EstimatedDuration; d > current.EstimatedWall {
			current.EstimatedWall = d
		}
	}
	flush()

	for _, e := range g.Edges {
		from, okF := groupOf[e.From]
		to, okT := groupOf[e.To]
		if !okF || !okT || from == to {
			continue
		}
		if !containsInt(groups[from].DependsOnGroups, to) {
			groups[from].DependsOnGroups = append(groups[from].DependsOnGroups, to)
		}
	}

	return groups
}

// bottlenecks returns nodes with more than three outgoing dependency edges:
// operations that cannot start until many others finish.
func bottlenecks(g *DependencyGraph) []string {
	var out []string
	for i, node := range g.Nodes {
		if len(g.dependsOn[i]) > 3 {
			out = append(out, node.ID)
		}
	}
	return out
}

func riskSummary(g *DependencyGraph) RiskSummary {
	var summary RiskSummary

	hasDelete := false
	for _, node := range g.Nodes {
		switch node.RiskLevel {
		case model.RiskHigh:
			summary.HighRiskCount++
		case model.RiskCritical:
			summary.CriticalRiskCount++
		}
		if node.Operation.Kind == model.OpDelete {
			hasDelete = true
		}
	}

	for _, e := range g.Edges {
		if !e.Required {
			continue
		}
		from, okF := g.NodeByID(e.From)
		to, okT := g.NodeByID(e.To)
		if okF && okT && from.RiskLevel.AtLeast(model.RiskHigh) && to.RiskLevel.AtLeast(model.RiskHigh) {
			summary.CriticalDependencies = append(summary.CriticalDependencies,
				fmt.Sprintf("%s -> %s", e.From, e.To))
		}
	}

	if summary.CriticalRiskCount > 0 {
		summary.Mitigations = append(summary.Mitigations,
			"review critical-risk operations manually before execution")
	}
	if hasDelete {
		summary.Mitigations = append(summary.Mitigations,
			"verify backups exist for files targeted by delete operations")
	}
	if len(summary.CriticalDependencies) > 0 {
		summary.Mitigations = append(summary.Mitigations,
			"execute chained high-risk operations one at a time")
	}

	return summary
}

func containsInt(slice []int, item int) bool {
	for _, i := range slice {
		if i == item {
			return true
		}
	}
	return false
}
