package rollback

import (
	"testing"

	"github.com/msageha/foresight/internal/model"
)

type fakeProber struct {
	targets map[string]bool
	backups map[string]bool
}

func (p fakeProber) TargetExists(path string) bool { return p.targets[path] }
func (p fakeProber) BackupExists(path string) bool { return p.backups[path] }

func TestAnalyzeFeasibility_EmptyPlanScoresOne(t *testing.T) {
	analysis := AnalyzeFeasibility(&Plan{PlanID: "pln_0000000000_00000000"}, fakeProber{})
	if analysis.Score != 1.0 {
		t.Fatalf("expected exactly 1.0 for an empty plan, got %v", analysis.Score)
	}
	if analysis.Recommendation != "proceed" {
		t.Errorf("expected proceed, got %q", analysis.Recommendation)
	}
}

func TestAnalyzeFeasibility_AllInfeasibleScoresZero(t *testing.T) {
	plan, err := NewPlanner(nil, nil).PlanRollback([]model.FileOperation{
		model.NewCreate("a.txt", "a"),
		model.NewCreate("b.txt", "b"),
	}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Neither created file exists anymore, so neither delete is feasible.
	analysis := AnalyzeFeasibility(plan, fakeProber{})
	if analysis.Score != 0.0 {
		t.Fatalf("expected exactly 0.0, got %v", analysis.Score)
	}
	if analysis.Recommendation != "review required" {
		t.Errorf("expected review required, got %q", analysis.Recommendation)
	}
	for _, op := range analysis.Operations {
		if op.Feasible || op.Reason == "" {
			t.Errorf("expected infeasible with a reason, got %+v", op)
		}
	}
}

func TestAnalyzeFeasibility_Bands(t *testing.T) {
	mk := func(n, feasible int) FeasibilityAnalysis {
		plan := &Plan{}
		prober := fakeProber{targets: map[string]bool{}}
		for i := 0; i < n; i++ {
			path := string(rune('a'+i)) + ".txt"
			plan.Operations = append(plan.Operations, Operation{
				OperationID: model.NodeID(i),
				Action:      Action{Kind: ActionDeleteCreatedFile, Path: path},
			})
			if i < feasible {
				prober.targets[path] = true
			}
		}
		return AnalyzeFeasibility(plan, prober)
	}

	if got := mk(10, 9).Recommendation; got != "proceed" {
		t.Errorf("0.9 should proceed, got %q", got)
	}
	if got := mk(10, 7).Recommendation; got != "proceed with caution" {
		t.Errorf("0.7 should proceed with caution, got %q", got)
	}
	if got := mk(10, 4).Recommendation; got != "review required" {
		t.Errorf("0.4 should require review, got %q", got)
	}
}

func TestAnalyzeFeasibility_UndoRenameProbes(t *testing.T) {
	plan := &Plan{Operations: []Operation{{
		OperationID: "op_0",
		Action:      Action{Kind: ActionUndoRename, Current: "new.go", Original: "old.go"},
	}}}

	// Renamed file present, original slot free: feasible.
	a := AnalyzeFeasibility(plan, fakeProber{targets: map[string]bool{"new.go": true}})
	if !a.Operations[0].Feasible {
		t.Errorf("expected feasible, got %+v", a.Operations[0])
	}

	// Original slot occupied: would overwrite.
	a = AnalyzeFeasibility(plan, fakeProber{targets: map[string]bool{"new.go": true, "old.go": true}})
	if a.Operations[0].Feasible {
		t.Errorf("expected infeasible when the original path is occupied")
	}
}

func TestAnalyzeFeasibility_NoOpCountsFeasible(t *testing.T) {
	plan := &Plan{Operations: []Operation{{
		OperationID: "op_0",
		Action:      Action{Kind: ActionNoOp, Reason: "nothing recoverable"},
	}}}

	a := AnalyzeFeasibility(plan, fakeProber{})
	if a.Score != 1.0 {
		t.Errorf("a NoOp is trivially executable, expected 1.0, got %v", a.Score)
	}
}

func TestConvertLegacy(t *testing.T) {
	plan, err := ConvertLegacy(LegacyDescription{
		Reason: "build broke after apply",
		Steps: []LegacyStep{
			{Action: "delete_file", Path: "gen.go"},
			{Action: "restore_file", Path: "main.go", Backup: "/backups/main.go.bak"},
			{Action: "rename_file", From: "new.go", To: "old.go"},
			{Action: "teleport", Path: "x"},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	wantKinds := []ActionKind{ActionDeleteCreatedFile, ActionRestoreFromBackup, ActionUndoRename, ActionNoOp}
	if len(plan.Operations) != len(wantKinds) {
		t.Fatalf("expected %d operations, got %d", len(wantKinds), len(plan.Operations))
	}
	for i, want := range wantKinds {
		if plan.Operations[i].Action.Kind != want {
			t.Errorf("step %d: expected %s, got %s", i, want, plan.Operations[i].Action.Kind)
		}
	}
	if plan.Reason != "build broke after apply" {
		t.Errorf("reason not carried over: %q", plan.Reason)
	}
	// A delete action makes the plan High.
	if plan.SafetyLevel != model.RiskHigh {
		t.Errorf("expected high, got %s", plan.SafetyLevel)
	}
}
