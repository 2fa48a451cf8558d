package graph

import (
	"fmt"
	"io"
	"log"
	"sort"

	"github.com/msageha/foresight/internal/model"
)

// Options controls the optional edge-inference passes.
type Options struct {
	EnableImplicit      bool
	EnablePredicted     bool
	PredictionThreshold float64
}

// DefaultOptions enables both inference passes with the standard threshold.
func DefaultOptions() Options {
	return Options{
		EnableImplicit:      true,
		EnablePredicted:     true,
		PredictionThreshold: 0.6,
	}
}

// Builder constructs dependency graphs. It is a pure function of its inputs:
// no I/O, safe to call from any goroutine.
type Builder struct {
	opts   Options
	logger *log.Logger
}

func NewBuilder(opts Options, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.PredictionThreshold <= 0 {
		opts.PredictionThreshold = 0.6
	}
	return &Builder{opts: opts, logger: logger}
}

// Build turns an ordered proposal list into an analyzed dependency graph.
// declaredDeps maps a proposal index to the indexes it depends on (parser or
// user declared). Build never returns an error: malformed declarations are
// logged and skipped, and cycles degrade to a deterministic fallback order
// reported as an anomaly.
func (b *Builder) Build(ops []model.FileOperation, declaredDeps map[int][]int) *DependencyGraph {
	g := &DependencyGraph{
		Nodes:     make([]model.OperationNode, 0, len(ops)),
		indexByID: make(map[string]int, len(ops)),
	}

	for i, op := range ops {
		if err := op.Validate(); err != nil {
			b.logger.Printf("graph: operation %d is malformed (%v); keeping it with best-effort metadata", i, err)
		}
		node := model.NewOperationNode(i, op)
		g.indexByID[node.ID] = i
		g.Nodes = append(g.Nodes, node)
	}

	b.addDeclaredEdges(g, ops, declaredDeps)
	b.addStructuralEdges(g, ops)
	if b.opts.EnableImplicit {
		b.addImportEdges(g, ops)
	}
	if b.opts.EnablePredicted {
		b.addPredictedEdges(g, ops)
	}

	b.finalize(g)
	return g
}

// addDeclaredEdges adds user/parser-declared dependencies: strength 1.0,
// required.
func (b *Builder) addDeclaredEdges(g *DependencyGraph, ops []model.FileOperation, declared map[int][]int) {
	for from, targets := range declared {
		if from < 0 || from >= len(ops) {
			b.logger.Printf("graph: declared dependency from out-of-range index %d; skipped", from)
			continue
		}
		for _, to := range targets {
			if to < 0 || to >= len(ops) {
				b.logger.Printf("graph: declared dependency %d -> %d out of range; skipped", from, to)
				continue
			}
			if to == from {
				b.logger.Printf("graph: declared self-dependency on index %d; skipped", from)
				continue
			}
			b.addEdge(g, DependencyEdge{
				From:     model.NodeID(from),
				To:       model.NodeID(to),
				Type:     DepUserSpecified,
				Strength: 1.0,
				Required: true,
			})
		}
	}
}

// addStructuralEdges applies the file-overlap rules: writes after a create at
// the same path depend on the create; a rename's source depends on its
// create; anything later than a delete at a path is ordered after the delete
// (deletes are terminal for a path).
func (b *Builder) addStructuralEdges(g *DependencyGraph, ops []model.FileOperation) {
	for i, op := range ops {
		for j := 0; j < i; j++ {
			prior := ops[j]

			switch prior.Kind {
			case model.OpCreate:
				dependsOnCreate := false
				switch op.Kind {
				case model.OpUpdate, model.OpAppend:
					dependsOnCreate = op.Path == prior.Path
				case model.OpRename:
					dependsOnCreate = op.From == prior.Path
				}
				if dependsOnCreate {
					b.addEdge(g, DependencyEdge{
						From:     model.NodeID(i),
						To:       model.NodeID(j),
						Type:     DepFileExistence,
						Strength: 1.0,
						Required: true,
					})
				}
			case model.OpDelete:
				if op.Touches(prior.Path) {
					b.addEdge(g, DependencyEdge{
						From:     model.NodeID(i),
						To:       model.NodeID(j),
						Type:     DepOrderingConstraint,
						Strength: 1.0,
						Required: true,
					})
				}
			}
		}
	}
}

// addEdge appends the edge unless the identical From→To pair already exists.
// The first edge between a pair wins; explicit passes run before inferred
// ones, so a required edge is never downgraded.
func (b *Builder) addEdge(g *DependencyGraph, e DependencyEdge) {
	for _, existing := range g.Edges {
		if existing.From == e.From && existing.To == e.To {
			return
		}
	}
	g.Edges = append(g.Edges, e)
}

// finalize builds adjacency, detects cycles, and computes the analysis
// artifacts.
func (b *Builder) finalize(g *DependencyGraph) {
	n := len(g.Nodes)
	g.dependsOn = make([][]int, n)
	g.dependedBy = make([][]int, n)
	for _, e := range g.Edges {
		from, okF := g.indexByID[e.From]
		to, okT := g.indexByID[e.To]
		if !okF || !okT {
			continue
		}
		g.dependsOn[from] = append(g.dependsOn[from], to)
		g.dependedBy[to] = append(g.dependedBy[to], from)
	}

	// Parallelizable iff the node has no edge in either direction.
	for i := range g.Nodes {
		g.Nodes[i].Parallelizable = len(g.dependsOn[i]) == 0 && len(g.dependedBy[i]) == 0
	}

	order, acyclic := topoSort(n, g.dependsOn, g.dependedBy)
	if acyclic {
		g.ExecutionSequence = indexesToIDs(g, order)
		g.CriticalPath = criticalPath(g, order)
	} else {
		cycle := findCyclePath(n, g.dependsOn)
		ids := indexesToIDs(g, cycle)
		g.Anomalies = append(g.Anomalies, Anomaly{
			Kind:        AnomalyCycle,
			Description: fmt.Sprintf("dependency cycle detected: %s; falling back to deterministic order", joinArrow(ids)),
			NodeIDs:     ids,
		})
		b.logger.Printf("graph: %s", g.Anomalies[len(g.Anomalies)-1].Description)

		// Deterministic fallback: lexicographic by node id. A best-effort
		// order is preferable to blocking the pipeline.
		fallback := make([]string, n)
		for i, node := range g.Nodes {
			fallback[i] = node.ID
		}
		sort.Strings(fallback)
		g.ExecutionSequence = fallback
	}

	g.ParallelGroups = parallelGroups(g)
	g.Bottlenecks = bottlenecks(g)
	g.RiskSummary = riskSummary(g)
}

func indexesToIDs(g *DependencyGraph, idx []int) []string {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, g.Nodes[i].ID)
	}
	return out
}

func joinArrow(ids []string) string {
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += " -> "
		}
		s += id
	}
	return s
}
