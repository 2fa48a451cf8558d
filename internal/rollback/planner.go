package rollback

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/msageha/foresight/internal/model"
)

// ContentStore supplies pre-mutation file content from a backup or history
// subsystem. The second return reports availability.
type ContentStore interface {
	OriginalContent(path string) (string, bool)
}

// noStore is the zero-value store: nothing is ever available.
type noStore struct{}

func (noStore) OriginalContent(string) (string, bool) { return "", false }

// Planner builds rollback plans. It is a pure function of its inputs plus the
// injected store; it performs no filesystem mutation itself.
type Planner struct {
	store  ContentStore
	logger *log.Logger
}

func NewPlanner(store ContentStore, logger *log.Logger) *Planner {
	if store == nil {
		store = noStore{}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Planner{store: store, logger: logger}
}

// PlanRollback builds a plan undoing every operation in the list.
func (p *Planner) PlanRollback(ops []model.FileOperation, reason string) (*Plan, error) {
	indices := make([]int, len(ops))
	for i := range ops {
		indices[i] = i
	}
	return p.PlanPartial(ops, indices, reason)
}

// PlanPartial builds a plan undoing only the operations selected by index.
// Out-of-range indices are logged and skipped. The resulting plan lists
// inverse operations in reverse original order, which satisfies every
// computed dependency.
func (p *Planner) PlanPartial(ops []model.FileOperation, indices []int, reason string) (*Plan, error) {
	planID, err := model.GenerateID(model.IDTypePlan)
	if err != nil {
		return nil, fmt.Errorf("generate plan id: %w", err)
	}

	selected := make([]int, 0, len(indices))
	seen := make(map[int]bool)
	for _, idx := range indices {
		if idx < 0 || idx >= len(ops) {
			p.logger.Printf("rollback: skipping out-of-range operation index %d", idx)
			continue
		}
		if !seen[idx] {
			seen[idx] = true
			selected = append(selected, idx)
		}
	}
	sort.Ints(selected)

	plan := &Plan{
		PlanID:    planID,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}

	// Undo in reverse original order.
	byIndex := make(map[int]*Operation, len(selected))
	for i := len(selected) - 1; i >= 0; i-- {
		idx := selected[i]
		op := p.inverse(idx, ops[idx])
		plan.Operations = append(plan.Operations, op)
		byIndex[idx] = &plan.Operations[len(plan.Operations)-1]
	}

	// The rollback of an earlier operation waits for the rollback of every
	// later operation whose forward file set overlaps: undoing runs against
	// the original ordering.
	for a := 0; a < len(selected); a++ {
		for b := a + 1; b < len(selected); b++ {
			earlier, later := selected[a], selected[b]
			if pathsOverlap(ops[earlier], ops[later]) {
				ra := byIndex[earlier]
				ra.Dependencies = append(ra.Dependencies, byIndex[later].OperationID)
			}
		}
	}

	plan.SafetyLevel = classifySafety(plan.Operations)
	plan.VerificationRequired = plan.SafetyLevel.AtLeast(model.RiskHigh)
	return plan, nil
}

// inverse maps one forward operation to its undo action. It is total: kinds
// whose undo needs unavailable data degrade to an explicit NoOp rather than
// fabricated content.
func (p *Planner) inverse(index int, op model.FileOperation) Operation {
	out := Operation{
		OperationID:   model.NodeID(index),
		FilesAffected: op.Paths(),
		Undoes:        op.Kind,
	}

	switch op.Kind {
	case model.OpCreate:
		out.Action = Action{Kind: ActionDeleteCreatedFile, Path: op.Path}
	case model.OpUpdate, model.OpAppend:
		if content, ok := p.originalContent(op); ok {
			out.Action = Action{Kind: ActionRevertModification, Path: op.TargetPath(), OriginalContent: content}
		} else {
			out.Action = Action{
				Kind:   ActionNoOp,
				Path:   op.TargetPath(),
				Reason: fmt.Sprintf("original content of %s is not available from any backup", op.TargetPath()),
			}
		}
	case model.OpDelete:
		if content, ok := p.store.OriginalContent(op.Path); ok {
			out.Action = Action{Kind: ActionRecreateDeletedFile, Path: op.Path, Content: content}
		} else {
			out.Action = Action{
				Kind:   ActionNoOp,
				Path:   op.Path,
				Reason: fmt.Sprintf("deleted content of %s is not available from any backup", op.Path),
			}
		}
	case model.OpRename:
		out.Action = Action{Kind: ActionUndoRename, Current: op.To, Original: op.From}
	default:
		out.Action = Action{Kind: ActionNoOp, Reason: fmt.Sprintf("unknown operation kind %q", op.Kind)}
	}

	out.Description = out.Action.String()
	return out
}

// originalContent prefers the pre-image carried on the operation itself,
// falling back to the backup store.
func (p *Planner) originalContent(op model.FileOperation) (string, bool) {
	if op.Kind == model.OpUpdate && op.OldContent != nil {
		return *op.OldContent, true
	}
	return p.store.OriginalContent(op.TargetPath())
}

func pathsOverlap(a, b model.FileOperation) bool {
	for _, p := range a.Paths() {
		if b.Touches(p) {
			return true
		}
	}
	return false
}

// systemPathPrefixes mirror the guardrail engine's protected roots; a
// rollback touching them is Critical regardless of size.
var systemPathPrefixes = []string{
	"/etc/", "/sys/", "/proc/", "/boot/", "/dev/",
	"c:/windows/", "c:/program files/",
}

// classifySafety ranks the plan. Critical for system paths or external
// commands, High for a destructive delete or more than 10 steps, Medium above
// 5, else Low. Deleting a file whose create this very plan is undoing is not
// destructive: the plan removes only what the pipeline itself put there.
func classifySafety(ops []Operation) model.RiskLevel {
	for _, op := range ops {
		if op.Action.Kind == ActionRunScript {
			return model.RiskCritical
		}
		for _, path := range op.FilesAffected {
			if isSystemPath(path) {
				return model.RiskCritical
			}
		}
	}

	hasDelete := false
	for _, op := range ops {
		if op.Action.Kind == ActionDeleteCreatedFile && op.Undoes != model.OpCreate {
			hasDelete = true
			break
		}
	}
	switch {
	case hasDelete || len(ops) > 10:
		return model.RiskHigh
	case len(ops) > 5:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

func isSystemPath(path string) bool {
	lower := strings.ToLower(filepath.ToSlash(path))
	for _, prefix := range systemPathPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
