package rollback

import (
	"fmt"
	"time"

	"github.com/msageha/foresight/internal/model"
)

// LegacyStep is one entry of the older free-form rollback description some
// pipelines still emit.
type LegacyStep struct {
	Action  string `yaml:"action" json:"action"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
	Content string `yaml:"content,omitempty" json:"content,omitempty"`
	From    string `yaml:"from,omitempty" json:"from,omitempty"`
	To      string `yaml:"to,omitempty" json:"to,omitempty"`
	Backup  string `yaml:"backup,omitempty" json:"backup,omitempty"`
	Command string `yaml:"command,omitempty" json:"command,omitempty"`
}

// LegacyDescription is the alternate rollback shape accepted for conversion.
type LegacyDescription struct {
	Reason string       `yaml:"reason,omitempty" json:"reason,omitempty"`
	Steps  []LegacyStep `yaml:"steps" json:"steps"`
}

// ConvertLegacy maps a legacy description onto a Plan. Steps keep their given
// order; unrecognized actions become NoOps so the plan shape stays total.
func ConvertLegacy(desc LegacyDescription) (*Plan, error) {
	planID, err := model.GenerateID(model.IDTypePlan)
	if err != nil {
		return nil, fmt.Errorf("generate plan id: %w", err)
	}

	plan := &Plan{
		PlanID:    planID,
		Reason:    desc.Reason,
		CreatedAt: time.Now().UTC(),
	}

	for i, step := range desc.Steps {
		op := Operation{OperationID: model.NodeID(i)}

		switch step.Action {
		case "delete_file":
			op.Action = Action{Kind: ActionDeleteCreatedFile, Path: step.Path}
			op.FilesAffected = []string{step.Path}
		case "restore_file":
			if step.Backup != "" {
				op.Action = Action{Kind: ActionRestoreFromBackup, Path: step.Path, BackupPath: step.Backup}
			} else {
				op.Action = Action{Kind: ActionRecreateDeletedFile, Path: step.Path, Content: step.Content}
			}
			op.FilesAffected = []string{step.Path}
		case "revert_file":
			op.Action = Action{Kind: ActionRevertModification, Path: step.Path, OriginalContent: step.Content}
			op.FilesAffected = []string{step.Path}
		case "rename_file":
			op.Action = Action{Kind: ActionUndoRename, Current: step.From, Original: step.To}
			op.FilesAffected = []string{step.From, step.To}
		case "run_script":
			op.Action = Action{Kind: ActionRunScript, Command: step.Command}
		default:
			op.Action = Action{
				Kind:   ActionNoOp,
				Reason: fmt.Sprintf("unrecognized legacy action %q", step.Action),
			}
		}

		op.Description = op.Action.String()
		plan.Operations = append(plan.Operations, op)
	}

	plan.SafetyLevel = classifySafety(plan.Operations)
	plan.VerificationRequired = plan.SafetyLevel.AtLeast(model.RiskHigh)
	return plan, nil
}
