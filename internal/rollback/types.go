// Package rollback turns a list of executed operations into an ordered plan
// of inverse actions, classified by safety level and scored for feasibility.
package rollback

import (
	"fmt"
	"time"

	"github.com/msageha/foresight/internal/model"
)

type ActionKind string

const (
	ActionDeleteCreatedFile   ActionKind = "delete_created_file"
	ActionRevertModification  ActionKind = "revert_modification"
	ActionRecreateDeletedFile ActionKind = "recreate_deleted_file"
	ActionUndoRename          ActionKind = "undo_rename"
	ActionRestoreFromBackup   ActionKind = "restore_from_backup"
	ActionRunScript           ActionKind = "run_script"
	ActionNoOp                ActionKind = "no_op"
)

// Action is the tagged union of inverse steps. Only the fields matching Kind
// are meaningful.
type Action struct {
	Kind ActionKind `yaml:"kind" json:"kind"`

	// Target for delete/revert/recreate/restore.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// RevertModification: the pre-image to write back.
	OriginalContent string `yaml:"original_content,omitempty" json:"original_content,omitempty"`

	// RecreateDeletedFile: the deleted file's content.
	Content string `yaml:"content,omitempty" json:"content,omitempty"`

	// UndoRename: move Current back to Original.
	Current  string `yaml:"current,omitempty" json:"current,omitempty"`
	Original string `yaml:"original,omitempty" json:"original,omitempty"`

	// RestoreFromBackup: where the backup copy lives.
	BackupPath string `yaml:"backup_path,omitempty" json:"backup_path,omitempty"`

	// RunScript: the command the execution layer must invoke.
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// NoOp: why nothing can be done.
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

func (a Action) String() string {
	switch a.Kind {
	case ActionDeleteCreatedFile:
		return fmt.Sprintf("delete created file %s", a.Path)
	case ActionRevertModification:
		return fmt.Sprintf("revert %s to its previous content", a.Path)
	case ActionRecreateDeletedFile:
		return fmt.Sprintf("recreate deleted file %s", a.Path)
	case ActionUndoRename:
		return fmt.Sprintf("rename %s back to %s", a.Current, a.Original)
	case ActionRestoreFromBackup:
		return fmt.Sprintf("restore %s from backup %s", a.Path, a.BackupPath)
	case ActionRunScript:
		return fmt.Sprintf("run %s", a.Command)
	case ActionNoOp:
		return fmt.Sprintf("no-op: %s", a.Reason)
	default:
		return string(a.Kind)
	}
}

// Operation is one step of a rollback plan. Dependencies name other rollback
// operations that must run before this one.
type Operation struct {
	OperationID   string   `yaml:"operation_id" json:"operation_id"`
	Action        Action   `yaml:"action" json:"action"`
	Description   string   `yaml:"description" json:"description"`
	FilesAffected []string `yaml:"files_affected" json:"files_affected"`
	Dependencies  []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// Undoes records the forward operation kind this step inverts. Empty for
	// steps converted from legacy descriptions, whose provenance is unknown.
	Undoes model.OperationKind `yaml:"undoes,omitempty" json:"undoes,omitempty"`
}

// Plan is an ordered list of inverse operations; the order already satisfies
// every listed dependency.
type Plan struct {
	PlanID               string          `yaml:"plan_id" json:"plan_id"`
	Operations           []Operation     `yaml:"operations" json:"operations"`
	SafetyLevel          model.RiskLevel `yaml:"safety_level" json:"safety_level"`
	VerificationRequired bool            `yaml:"verification_required" json:"verification_required"`
	Reason               string          `yaml:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt            time.Time       `yaml:"created_at" json:"created_at"`
}

// OperationFeasibility is the probe verdict for one plan step.
type OperationFeasibility struct {
	OperationID string `yaml:"operation_id" json:"operation_id"`
	Feasible    bool   `yaml:"feasible" json:"feasible"`
	Reason      string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// FeasibilityAnalysis scores a plan without executing it. Score is the
// fraction of operations independently verified as executable; an empty plan
// scores exactly 1.0.
type FeasibilityAnalysis struct {
	PlanID         string                 `yaml:"plan_id" json:"plan_id"`
	Score          float64                `yaml:"score" json:"score"`
	FeasibleCount  int                    `yaml:"feasible_count" json:"feasible_count"`
	TotalCount     int                    `yaml:"total_count" json:"total_count"`
	Operations     []OperationFeasibility `yaml:"operations" json:"operations"`
	Recommendation string                 `yaml:"recommendation" json:"recommendation"`
}
