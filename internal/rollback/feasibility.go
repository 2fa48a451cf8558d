package rollback

import "fmt"

// Prober answers existence questions for feasibility checks. The execution
// layer supplies the real implementation; tests supply fakes.
type Prober interface {
	TargetExists(path string) bool
	BackupExists(path string) bool
}

// AnalyzeFeasibility probes each plan step without executing anything.
// A NoOp step counts as feasible: it is trivially executable, and its reason
// already tells the operator what was lost.
func AnalyzeFeasibility(plan *Plan, probes Prober) FeasibilityAnalysis {
	analysis := FeasibilityAnalysis{
		PlanID:     plan.PlanID,
		TotalCount: len(plan.Operations),
	}

	for _, op := range plan.Operations {
		verdict := checkOperation(op, probes)
		analysis.Operations = append(analysis.Operations, verdict)
		if verdict.Feasible {
			analysis.FeasibleCount++
		}
	}

	if analysis.TotalCount == 0 {
		analysis.Score = 1.0
	} else {
		analysis.Score = float64(analysis.FeasibleCount) / float64(analysis.TotalCount)
	}
	analysis.Recommendation = recommendation(analysis.Score)
	return analysis
}

func checkOperation(op Operation, probes Prober) OperationFeasibility {
	verdict := OperationFeasibility{OperationID: op.OperationID, Feasible: true}

	switch op.Action.Kind {
	case ActionDeleteCreatedFile:
		if !probes.TargetExists(op.Action.Path) {
			verdict.Feasible = false
			verdict.Reason = fmt.Sprintf("%s no longer exists", op.Action.Path)
		}
	case ActionRevertModification:
		if !probes.TargetExists(op.Action.Path) {
			verdict.Feasible = false
			verdict.Reason = fmt.Sprintf("%s no longer exists", op.Action.Path)
		}
	case ActionRecreateDeletedFile:
		if probes.TargetExists(op.Action.Path) {
			verdict.Feasible = false
			verdict.Reason = fmt.Sprintf("%s already exists, recreating would overwrite it", op.Action.Path)
		}
	case ActionUndoRename:
		if !probes.TargetExists(op.Action.Current) {
			verdict.Feasible = false
			verdict.Reason = fmt.Sprintf("%s no longer exists", op.Action.Current)
		} else if probes.TargetExists(op.Action.Original) {
			verdict.Feasible = false
			verdict.Reason = fmt.Sprintf("%s is occupied, undoing the rename would overwrite it", op.Action.Original)
		}
	case ActionRestoreFromBackup:
		if !probes.BackupExists(op.Action.BackupPath) {
			verdict.Feasible = false
			verdict.Reason = fmt.Sprintf("backup %s is missing", op.Action.BackupPath)
		}
	}
	return verdict
}

func recommendation(score float64) string {
	switch {
	case score > 0.8:
		return "proceed"
	case score >= 0.5:
		return "proceed with caution"
	default:
		return "review required"
	}
}
