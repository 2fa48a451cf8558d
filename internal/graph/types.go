// Package graph builds dependency graphs over proposed file operations and
// derives execution sequences, critical paths, and parallel groups from them.
package graph

import (
	"time"

	"github.com/msageha/foresight/internal/model"
)

type DependencyType string

const (
	DepFileExistence      DependencyType = "file_existence"
	DepContentDependency  DependencyType = "content_dependency"
	DepImportDependency   DependencyType = "import_dependency"
	DepOrderingConstraint DependencyType = "ordering_constraint"
	DepPredicted          DependencyType = "predicted"
	DepUserSpecified      DependencyType = "user_specified"
)

// DependencyEdge is directed From → To meaning "From must not execute before
// To". Strength 1.0 is a hard requirement; lower values are advisory.
type DependencyEdge struct {
	From     string         `yaml:"from"`
	To       string         `yaml:"to"`
	Type     DependencyType `yaml:"type"`
	Strength float64        `yaml:"strength"`
	Required bool           `yaml:"required"`
}

// AnomalyKind classifies structural anomalies the builder reports instead of
// failing.
type AnomalyKind string

const (
	AnomalyCycle AnomalyKind = "cycle"
)

// Anomaly is a detected-and-reported structural problem. The builder degrades
// deterministically rather than erroring.
type Anomaly struct {
	Kind        AnomalyKind `yaml:"kind"`
	Description string      `yaml:"description"`
	NodeIDs     []string    `yaml:"node_ids"`
}

// ParallelGroup is a maximal run of the execution sequence whose members have
// no edges among each other and may execute concurrently.
type ParallelGroup struct {
	Index           int           `yaml:"index"`
	NodeIDs         []string      `yaml:"node_ids"`
	DependsOnGroups []int         `yaml:"depends_on_groups"`
	EstimatedWall   time.Duration `yaml:"estimated_wall"`
}

// RiskSummary aggregates per-node risk for display and mitigation hints.
type RiskSummary struct {
	HighRiskCount        int      `yaml:"high_risk_count"`
	CriticalRiskCount    int      `yaml:"critical_risk_count"`
	CriticalDependencies []string `yaml:"critical_dependencies"`
	Mitigations          []string `yaml:"mitigations"`
}

// DependencyGraph holds the node arena (indexed by proposal position) and all
// analysis results. Nodes are referenced by integer index internally; the
// string ids exist for callers and logs.
type DependencyGraph struct {
	Nodes []model.OperationNode `yaml:"nodes"`
	Edges []DependencyEdge      `yaml:"edges"`

	ExecutionSequence []string        `yaml:"execution_sequence"`
	CriticalPath      []string        `yaml:"critical_path"`
	ParallelGroups    []ParallelGroup `yaml:"parallel_groups"`
	Bottlenecks       []string        `yaml:"bottlenecks"`
	RiskSummary       RiskSummary     `yaml:"risk_summary"`
	Anomalies         []Anomaly       `yaml:"anomalies"`

	// index lookups, rebuilt by the builder; not serialized
	indexByID map[string]int
	// dependsOn[i] lists node indexes i must wait for (edge From=i → To=j).
	dependsOn [][]int
	// dependedBy is the reverse adjacency.
	dependedBy [][]int
}

// NodeByID returns the node with the given id.
func (g *DependencyGraph) NodeByID(id string) (model.OperationNode, bool) {
	i, ok := g.indexByID[id]
	if !ok {
		return model.OperationNode{}, false
	}
	return g.Nodes[i], true
}

// HasEdgeBetween reports whether any edge connects a and b in either
// direction.
func (g *DependencyGraph) HasEdgeBetween(a, b string) bool {
	for _, e := range g.Edges {
		if (e.From == a && e.To == b) || (e.From == b && e.To == a) {
			return true
		}
	}
	return false
}

// RequiredEdges returns only the hard edges.
func (g *DependencyGraph) RequiredEdges() []DependencyEdge {
	var out []DependencyEdge
	for _, e := range g.Edges {
		if e.Required {
			out = append(out, e)
		}
	}
	return out
}
