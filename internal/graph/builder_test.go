package graph

import (
	"testing"

	"github.com/msageha/foresight/internal/model"
)

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func TestBuild_CreateThenUpdate(t *testing.T) {
	ops := []model.FileOperation{
		model.NewCreate("a.rs", "fn main() {}"),
		model.NewUpdate("a.rs", nil, "fn main() { run() }"),
	}

	g := NewBuilder(DefaultOptions(), nil).Build(ops, nil)

	if len(g.Edges) != 1 {
		t.Fatalf("expected exactly one edge, got %d: %v", len(g.Edges), g.Edges)
	}
	e := g.Edges[0]
	if e.From != "op_1" || e.To != "op_0" {
		t.Errorf("expected edge op_1 -> op_0, got %s -> %s", e.From, e.To)
	}
	if e.Type != DepFileExistence || !e.Required {
		t.Errorf("expected required file_existence edge, got %+v", e)
	}

	want := []string{"op_0", "op_1"}
	for i, id := range want {
		if g.ExecutionSequence[i] != id {
			t.Fatalf("expected sequence %v, got %v", want, g.ExecutionSequence)
		}
	}
	if len(g.Anomalies) != 0 {
		t.Errorf("expected no anomalies, got %v", g.Anomalies)
	}
}

func TestBuild_SequenceRespectsRequiredEdges(t *testing.T) {
	ops := []model.FileOperation{
		model.NewCreate("src/a.go", "package a"),
		model.NewCreate("src/b.go", "package b"),
		model.NewUpdate("src/a.go", nil, "package a // v2"),
		model.NewDelete("src/b.go"),
		model.NewCreate("src/b.go", "package b // recreated"),
	}

	g := NewBuilder(Options{}, nil).Build(ops, map[int][]int{4: {2}})

	for _, e := range g.RequiredEdges() {
		from := indexOf(g.ExecutionSequence, e.From)
		to := indexOf(g.ExecutionSequence, e.To)
		if from < 0 || to < 0 {
			t.Fatalf("edge endpoints missing from sequence %v: %+v", g.ExecutionSequence, e)
		}
		if to >= from {
			t.Errorf("required edge %s -> %s violated by sequence %v", e.From, e.To, g.ExecutionSequence)
		}
	}
}

func TestBuild_TieBreakKeepsProposalOrder(t *testing.T) {
	ops := []model.FileOperation{
		model.NewCreate("x/one.txt", "1"),
		model.NewCreate("y/two.txt", "2"),
		model.NewCreate("z/three.txt", "3"),
	}

	g := NewBuilder(DefaultOptions(), nil).Build(ops, nil)

	want := []string{"op_0", "op_1", "op_2"}
	for i, id := range want {
		if g.ExecutionSequence[i] != id {
			t.Fatalf("expected proposal order %v, got %v", want, g.ExecutionSequence)
		}
	}
	for _, node := range g.Nodes {
		if !node.Parallelizable {
			t.Errorf("expected %s parallelizable with no edges", node.ID)
		}
	}
}

func TestBuild_DeleteIsTerminalForPath(t *testing.T) {
	ops := []model.FileOperation{
		model.NewDelete("x.txt"),
		model.NewCreate("x.txt", "again"),
	}

	g := NewBuilder(Options{}, nil).Build(ops, nil)

	if len(g.Edges) != 1 {
		t.Fatalf("expected one edge, got %v", g.Edges)
	}
	e := g.Edges[0]
	if e.From != "op_1" || e.To != "op_0" || e.Type != DepOrderingConstraint || !e.Required {
		t.Errorf("expected required ordering_constraint op_1 -> op_0, got %+v", e)
	}
}

func TestBuild_DeclaredCycleFallsBack(t *testing.T) {
	ops := []model.FileOperation{
		model.NewCreate("a.txt", "a"),
		model.NewCreate("b.txt", "b"),
	}
	declared := map[int][]int{0: {1}, 1: {0}}

	g := NewBuilder(Options{}, nil).Build(ops, declared)

	if len(g.Anomalies) != 1 || g.Anomalies[0].Kind != AnomalyCycle {
		t.Fatalf("expected one cycle anomaly, got %v", g.Anomalies)
	}
	want := []string{"op_0", "op_1"}
	for i, id := range want {
		if g.ExecutionSequence[i] != id {
			t.Fatalf("expected lexicographic fallback %v, got %v", want, g.ExecutionSequence)
		}
	}
}

func TestBuild_SelfAndOutOfRangeDeclarationsSkipped(t *testing.T) {
	ops := []model.FileOperation{
		model.NewCreate("a.txt", "a"),
	}
	declared := map[int][]int{0: {0, 5, -1}}

	g := NewBuilder(Options{}, nil).Build(ops, declared)

	if len(g.Edges) != 0 {
		t.Errorf("expected malformed declarations skipped, got edges %v", g.Edges)
	}
	if len(g.ExecutionSequence) != 1 {
		t.Errorf("expected the operation still scheduled, got %v", g.ExecutionSequence)
	}
}

func TestBuild_ParallelGroupsHaveNoInternalEdges(t *testing.T) {
	ops := []model.FileOperation{
		model.NewCreate("src/a.go", "package a"),
		model.NewCreate("lib/b.go", "package b"),
		model.NewUpdate("src/a.go", nil, "package a // v2"),
		model.NewCreate("docs/readme.md", "hello"),
		model.NewDelete("lib/b.go"),
	}

	g := NewBuilder(Options{}, nil).Build(ops, nil)

	seen := 0
	for _, group := range g.ParallelGroups {
		seen += len(group.NodeIDs)
		for i := 0; i < len(group.NodeIDs); i++ {
			for j := i + 1; j < len(group.NodeIDs); j++ {
				if g.HasEdgeBetween(group.NodeIDs[i], group.NodeIDs[j]) {
					t.Errorf("group %d contains connected pair %s, %s",
						group.Index, group.NodeIDs[i], group.NodeIDs[j])
				}
			}
		}
	}
	if seen != len(ops) {
		t.Errorf("expected every operation in exactly one group, covered %d of %d", seen, len(ops))
	}
}

func TestBuild_SingleDisconnectedOperationIsOwnGroup(t *testing.T) {
	g := NewBuilder(Options{}, nil).Build([]model.FileOperation{
		model.NewCreate("only.txt", "x"),
	}, nil)

	if len(g.ParallelGroups) != 1 || len(g.ParallelGroups[0].NodeIDs) != 1 {
		t.Fatalf("expected one group of size one, got %v", g.ParallelGroups)
	}
}

func TestBuild_CriticalPathIsLongest(t *testing.T) {
	big := make([]byte, 200*1024)
	for i := range big {
		big[i] = 'x'
	}
	ops := []model.FileOperation{
		model.NewCreate("data/big.txt", string(big)),
		model.NewAppend("data/big.txt", "tail"),
		model.NewCreate("misc/small.txt", "s"),
	}

	g := NewBuilder(Options{}, nil).Build(ops, nil)

	want := []string{"op_0", "op_1"}
	if len(g.CriticalPath) != len(want) {
		t.Fatalf("expected critical path %v, got %v", want, g.CriticalPath)
	}
	for i, id := range want {
		if g.CriticalPath[i] != id {
			t.Fatalf("expected critical path %v, got %v", want, g.CriticalPath)
		}
	}
}

func TestBuild_BottleneckDetection(t *testing.T) {
	ops := []model.FileOperation{
		model.NewCreate("a/1.txt", "1"),
		model.NewCreate("b/2.txt", "2"),
		model.NewCreate("c/3.txt", "3"),
		model.NewCreate("d/4.txt", "4"),
		model.NewCreate("e/final.txt", "done"),
	}
	declared := map[int][]int{4: {0, 1, 2, 3}}

	g := NewBuilder(Options{}, nil).Build(ops, declared)

	if len(g.Bottlenecks) != 1 || g.Bottlenecks[0] != "op_4" {
		t.Errorf("expected op_4 flagged as bottleneck, got %v", g.Bottlenecks)
	}
}

func TestBuild_ImplicitImportEdge(t *testing.T) {
	ops := []model.FileOperation{
		model.NewCreate("util.go", "package util"),
		model.NewCreate("main.go", "package main\n\nimport \"myapp/util\"\n"),
	}

	g := NewBuilder(Options{EnableImplicit: true}, nil).Build(ops, nil)

	found := false
	for _, e := range g.Edges {
		if e.From == "op_1" && e.To == "op_0" && e.Type == DepImportDependency {
			found = true
			if e.Required || e.Strength != 0.8 {
				t.Errorf("import edges must be advisory at 0.8, got %+v", e)
			}
		}
	}
	if !found {
		t.Errorf("expected import edge op_1 -> op_0, got %v", g.Edges)
	}
}

func TestBuild_PredictedTestDependsOnImpl(t *testing.T) {
	ops := []model.FileOperation{
		model.NewCreate("pkg/foo.go", ""),
		model.NewCreate("pkg/foo_test.go", ""),
	}

	g := NewBuilder(Options{EnablePredicted: true, PredictionThreshold: 0.6}, nil).Build(ops, nil)

	found := false
	for _, e := range g.Edges {
		if e.From == "op_1" && e.To == "op_0" && e.Type == DepPredicted {
			found = true
			if e.Strength <= 0.6 || e.Required {
				t.Errorf("predicted edge must be advisory above threshold, got %+v", e)
			}
		}
	}
	if !found {
		t.Errorf("expected predicted edge op_1 -> op_0, got %v", g.Edges)
	}
}

func TestBuild_PredictionBelowThresholdAddsNothing(t *testing.T) {
	// Same directory alone scores 0.5, under the default 0.6 threshold.
	ops := []model.FileOperation{
		model.NewCreate("pkg/a.go", ""),
		model.NewCreate("pkg/b.go", ""),
	}

	g := NewBuilder(Options{EnablePredicted: true, PredictionThreshold: 0.6}, nil).Build(ops, nil)

	if len(g.Edges) != 0 {
		t.Errorf("expected no edges, got %v", g.Edges)
	}
}

func TestBuild_RiskSummaryCountsAndMitigations(t *testing.T) {
	ops := []model.FileOperation{
		model.NewDelete("src/old.go"),
		model.NewCreate("config/.env.example", "KEY="),
	}

	g := NewBuilder(Options{}, nil).Build(ops, nil)

	if g.RiskSummary.HighRiskCount != 1 {
		t.Errorf("expected one high-risk node, got %d", g.RiskSummary.HighRiskCount)
	}
	if g.RiskSummary.CriticalRiskCount != 1 {
		t.Errorf("expected one critical-risk node, got %d", g.RiskSummary.CriticalRiskCount)
	}
	if len(g.RiskSummary.Mitigations) == 0 {
		t.Errorf("expected mitigation suggestions for delete + critical nodes")
	}
}
