package model

import (
	"fmt"
	"strings"
	"time"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Rank returns the ordering position of the level; higher is riskier.
func (r RiskLevel) Rank() int {
	return riskRank[r]
}

// AtLeast reports whether r is as severe as other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return riskRank[r] >= riskRank[other]
}

// OperationNode wraps one FileOperation with metadata derived at graph-build
// time.
type OperationNode struct {
	ID                string        `yaml:"id"`
	Operation         FileOperation `yaml:"operation"`
	RiskLevel         RiskLevel     `yaml:"risk_level"`
	EstimatedDuration time.Duration `yaml:"estimated_duration"`

	// Parallelizable is true iff the node has no dependency edge to or from
	// another pending operation. Set by the builder after edges are known.
	Parallelizable bool `yaml:"parallelizable"`
}

// NodeID formats the node id for the operation at the given proposal index.
func NodeID(index int) string {
	return fmt.Sprintf("op_%d", index)
}

// NewOperationNode derives a node from the operation at the given proposal
// index. Parallelizable starts true and is cleared once edges are added.
func NewOperationNode(index int, op FileOperation) OperationNode {
	return OperationNode{
		ID:                NodeID(index),
		Operation:         op,
		RiskLevel:         DeriveRiskLevel(op),
		EstimatedDuration: EstimateDuration(op),
		Parallelizable:    true,
	}
}

// sensitivePathFragments marks paths whose mutation is inherently riskier than
// ordinary source edits, short of the guardrail engine's critical list.
var sensitivePathFragments = []string{
	".github/", ".ci/", "migrations/", "schema", "secrets",
}

// DeriveRiskLevel maps operation kind plus path heuristics to a risk level.
// The guardrail engine performs the authoritative check; this level only
// drives graph analysis and display.
func DeriveRiskLevel(op FileOperation) RiskLevel {
	if op.Kind == OpDelete {
		return RiskHigh
	}
	lower := strings.ToLower(op.TargetPath())
	if strings.Contains(lower, ".env") || strings.Contains(lower, "credential") {
		return RiskCritical
	}
	for _, frag := range sensitivePathFragments {
		if strings.Contains(lower, frag) {
			return RiskMedium
		}
	}
	if op.Kind == OpRename {
		return RiskMedium
	}
	if IsConfigPath(op.TargetPath()) {
		return RiskMedium
	}
	return RiskLow
}

const (
	writeBaseDuration  = 20 * time.Millisecond
	writePerKB         = time.Millisecond
	fixedSmallDuration = 50 * time.Millisecond
)

// EstimateDuration returns a content-size-proportional estimate for writes and
// a fixed small constant for delete/rename.
func EstimateDuration(op FileOperation) time.Duration {
	switch op.Kind {
	case OpDelete, OpRename:
		return fixedSmallDuration
	default:
		kb := op.WriteSize() / 1024
		return writeBaseDuration + time.Duration(kb)*writePerKB
	}
}

// MaxRiskLevel returns the more severe of two levels.
func MaxRiskLevel(a, b RiskLevel) RiskLevel {
	if b.AtLeast(a) {
		return b
	}
	return a
}
