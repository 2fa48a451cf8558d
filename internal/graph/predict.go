package graph

import (
	"path/filepath"
	"strings"

	"github.com/msageha/foresight/internal/model"
)

// Pattern-model probabilities. The strongest matching signal wins; an edge is
// added only when the probability clears the configured threshold, so the
// same-directory signal alone never produces an edge at the default 0.6.
const (
	probTestDependsOnImpl = 0.85
	probConfigAffects     = 0.7
	probSameDirectory     = 0.5
)

// addPredictedEdges adds advisory edges from a heuristic pattern model. The
// later operation of an ordered pair is predicted to depend on the earlier
// one. Never duplicates an existing edge (addEdge keeps the first).
func (b *Builder) addPredictedEdges(g *DependencyGraph, ops []model.FileOperation) {
	for i := 1; i < len(ops); i++ {
		for j := 0; j < i; j++ {
			p := dependencyProbability(ops[i], ops[j])
			if p <= b.opts.PredictionThreshold {
				continue
			}
			if g.HasEdgeBetween(model.NodeID(i), model.NodeID(j)) {
				continue
			}
			b.addEdge(g, DependencyEdge{
				From:     model.NodeID(i),
				To:       model.NodeID(j),
				Type:     DepPredicted,
				Strength: p,
				Required: false,
			})
		}
	}
}

// dependencyProbability estimates how likely `later` depends on `earlier`.
func dependencyProbability(later, earlier model.FileOperation) float64 {
	laterPath := later.TargetPath()
	earlierPath := earlier.TargetPath()

	if model.IsTestPath(laterPath) && !model.IsTestPath(earlierPath) &&
		testMatchesImpl(laterPath, earlierPath) {
		return probTestDependsOnImpl
	}

	if model.IsConfigPath(earlierPath) && !model.IsConfigPath(laterPath) &&
		sameSubtree(laterPath, earlierPath) {
		return probConfigAffects
	}

	if filepath.Dir(laterPath) == filepath.Dir(earlierPath) {
		return probSameDirectory
	}

	return 0
}

// testMatchesImpl reports whether a test file name lines up with an
// implementation file name (foo_test.go ↔ foo.go, test_foo.py ↔ foo.py,
// foo.test.ts ↔ foo.ts).
func testMatchesImpl(testPath, implPath string) bool {
	testBase := strings.TrimSuffix(filepath.Base(testPath), filepath.Ext(testPath))
	implBase := strings.TrimSuffix(filepath.Base(implPath), filepath.Ext(implPath))

	stripped := testBase
	stripped = strings.TrimSuffix(stripped, "_test")
	stripped = strings.TrimPrefix(stripped, "test_")
	stripped = strings.TrimSuffix(stripped, ".test")
	stripped = strings.TrimSuffix(stripped, ".spec")

	return stripped == implBase
}

// sameSubtree reports whether path sits at or below the config file's
// directory.
func sameSubtree(path, configPath string) bool {
	configDir := filepath.Dir(configPath)
	if configDir == "." {
		return true
	}
	return strings.HasPrefix(path, configDir+"/")
}
