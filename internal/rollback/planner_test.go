package rollback

import (
	"strings"
	"testing"

	"github.com/msageha/foresight/internal/model"
)

type fakeStore map[string]string

func (s fakeStore) OriginalContent(path string) (string, bool) {
	content, ok := s[path]
	return content, ok
}

func TestPlanRollback_SingleCreate(t *testing.T) {
	plan, err := NewPlanner(nil, nil).PlanRollback([]model.FileOperation{
		model.NewCreate("t.txt", "hello"),
	}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(plan.Operations) != 1 {
		t.Fatalf("expected exactly one operation, got %d", len(plan.Operations))
	}
	op := plan.Operations[0]
	if op.Action.Kind != ActionDeleteCreatedFile || op.Action.Path != "t.txt" {
		t.Errorf("expected DeleteCreatedFile t.txt, got %+v", op.Action)
	}
	if plan.SafetyLevel != model.RiskLow {
		t.Errorf("expected safety level low, got %s", plan.SafetyLevel)
	}
	if plan.VerificationRequired {
		t.Errorf("expected no verification for a low plan")
	}
}

func TestInverseMapping(t *testing.T) {
	old := "old content"
	store := fakeStore{"deleted.txt": "bytes from backup"}
	planner := NewPlanner(store, nil)

	tests := []struct {
		name string
		op   model.FileOperation
		want ActionKind
	}{
		{"create", model.NewCreate("a.txt", "x"), ActionDeleteCreatedFile},
		{"update with inline pre-image", model.NewUpdate("b.txt", &old, "new"), ActionRevertModification},
		{"update without pre-image", model.NewUpdate("c.txt", nil, "new"), ActionNoOp},
		{"append without backup", model.NewAppend("c.txt", "tail"), ActionNoOp},
		{"delete with backup", model.NewDelete("deleted.txt"), ActionRecreateDeletedFile},
		{"delete without backup", model.NewDelete("gone.txt"), ActionNoOp},
		{"rename", model.NewRename("old.go", "new.go"), ActionUndoRename},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := planner.PlanRollback([]model.FileOperation{tt.op}, "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			got := plan.Operations[0].Action
			if got.Kind != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got.Kind)
			}
			if got.Kind == ActionNoOp && got.Reason == "" {
				t.Errorf("NoOp must carry a reason")
			}
		})
	}
}

func TestInverseMapping_RevertCarriesOriginalContent(t *testing.T) {
	old := "the pre-image"
	plan, err := NewPlanner(nil, nil).PlanRollback([]model.FileOperation{
		model.NewUpdate("main.go", &old, "edited"),
	}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	action := plan.Operations[0].Action
	if action.OriginalContent != old {
		t.Errorf("expected original content preserved, got %q", action.OriginalContent)
	}
}

func TestInverseMapping_UndoRenameDirections(t *testing.T) {
	plan, err := NewPlanner(nil, nil).PlanRollback([]model.FileOperation{
		model.NewRename("old.go", "new.go"),
	}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	action := plan.Operations[0].Action
	if action.Current != "new.go" || action.Original != "old.go" {
		t.Errorf("expected undo new.go -> old.go, got current=%s original=%s", action.Current, action.Original)
	}
}

func TestPlanRollback_ReverseOrderAndDependencies(t *testing.T) {
	old := "v1"
	ops := []model.FileOperation{
		model.NewCreate("shared.txt", "v1"),
		model.NewUpdate("shared.txt", &old, "v2"),
		model.NewCreate("unrelated.txt", "z"),
	}

	plan, err := NewPlanner(nil, nil).PlanRollback(ops, "pipeline failure")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Reverse original order: op_2, op_1, op_0.
	wantOrder := []string{"op_2", "op_1", "op_0"}
	for i, want := range wantOrder {
		if plan.Operations[i].OperationID != want {
			t.Fatalf("expected order %v, got %v", wantOrder, planIDs(plan))
		}
	}

	// The create's rollback waits for the update's rollback (overlapping
	// file, earlier in the original list).
	var createRb *Operation
	for i := range plan.Operations {
		if plan.Operations[i].OperationID == "op_0" {
			createRb = &plan.Operations[i]
		}
	}
	if createRb == nil || len(createRb.Dependencies) != 1 || createRb.Dependencies[0] != "op_1" {
		t.Errorf("expected op_0 rollback to depend on op_1 rollback, got %+v", createRb)
	}

	// The unrelated file's rollback has no dependencies.
	for _, op := range plan.Operations {
		if op.OperationID == "op_2" && len(op.Dependencies) != 0 {
			t.Errorf("expected op_2 rollback independent, got %v", op.Dependencies)
		}
	}
}

func TestPlanPartial_SubsetByIndex(t *testing.T) {
	ops := []model.FileOperation{
		model.NewCreate("a.txt", "a"),
		model.NewCreate("b.txt", "b"),
		model.NewCreate("c.txt", "c"),
	}

	plan, err := NewPlanner(nil, nil).PlanPartial(ops, []int{0, 2, 99}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(plan.Operations) != 2 {
		t.Fatalf("expected two operations (out-of-range skipped), got %d", len(plan.Operations))
	}
	if plan.Operations[0].OperationID != "op_2" || plan.Operations[1].OperationID != "op_0" {
		t.Errorf("expected [op_2, op_0], got %v", planIDs(plan))
	}
}

func TestClassifySafety(t *testing.T) {
	tests := []struct {
		name string
		ops  []model.FileOperation
		want model.RiskLevel
	}{
		{"single create", repeatCreates(1), model.RiskLow}, // deletes only its own create
		{"six creates", repeatCreates(6), model.RiskMedium},
		{"six updates", repeatUpdates(6), model.RiskMedium},
		{"eleven updates", repeatUpdates(11), model.RiskHigh},
		{"five updates", repeatUpdates(5), model.RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewPlanner(nil, nil).PlanRollback(tt.ops, "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if plan.SafetyLevel != tt.want {
				t.Errorf("expected %s, got %s", tt.want, plan.SafetyLevel)
			}
		})
	}
}

func TestClassifySafety_DeleteProvenance(t *testing.T) {
	own := []Operation{{
		OperationID: "op_0",
		Action:      Action{Kind: ActionDeleteCreatedFile, Path: "t.txt"},
		Undoes:      model.OpCreate,
	}}
	if got := classifySafety(own); got != model.RiskLow {
		t.Errorf("deleting the plan's own create should be low, got %s", got)
	}

	// No recorded provenance, as in converted legacy plans: the delete may
	// destroy data the pipeline never wrote.
	foreign := []Operation{{
		OperationID: "op_0",
		Action:      Action{Kind: ActionDeleteCreatedFile, Path: "t.txt"},
	}}
	if got := classifySafety(foreign); got != model.RiskHigh {
		t.Errorf("a delete of unknown provenance should be high, got %s", got)
	}
}

func TestClassifySafety_SystemPathIsCritical(t *testing.T) {
	old := "x"
	plan, err := NewPlanner(nil, nil).PlanRollback([]model.FileOperation{
		model.NewUpdate("/etc/hosts", &old, "y"),
	}, "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if plan.SafetyLevel != model.RiskCritical {
		t.Errorf("expected critical for /etc path, got %s", plan.SafetyLevel)
	}
	if !plan.VerificationRequired {
		t.Errorf("expected verification required for a critical plan")
	}
}

func planIDs(plan *Plan) []string {
	ids := make([]string, 0, len(plan.Operations))
	for _, op := range plan.Operations {
		ids = append(ids, op.OperationID)
	}
	return ids
}

func repeatCreates(n int) []model.FileOperation {
	ops := make([]model.FileOperation, 0, n)
	for i := 0; i < n; i++ {
		ops = append(ops, model.NewCreate("f"+strings.Repeat("x", i)+".txt", "c"))
	}
	return ops
}

func repeatUpdates(n int) []model.FileOperation {
	old := "pre"
	ops := make([]model.FileOperation, 0, n)
	for i := 0; i < n; i++ {
		ops = append(ops, model.NewUpdate("f"+strings.Repeat("x", i)+".txt", &old, "post"))
	}
	return ops
}
