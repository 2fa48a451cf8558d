// Package guard implements the safety guardrail engine: independent
// validators run over each proposed operation plus ambient context, and their
// findings are aggregated into one enforcement decision.
package guard

import (
	"fmt"
	"time"

	"github.com/msageha/foresight/internal/model"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

func (s Severity) Rank() int {
	return severityRank[s]
}

// SafetyViolation is an immutable finding produced by exactly one validator.
type SafetyViolation struct {
	RuleID             string   `yaml:"rule_id" json:"rule_id"`
	Severity           Severity `yaml:"severity" json:"severity"`
	Description        string   `yaml:"description" json:"description"`
	AffectedFiles      []string `yaml:"affected_files" json:"affected_files"`
	MitigationRequired bool     `yaml:"mitigation_required" json:"mitigation_required"`
	AutoFixable        bool     `yaml:"auto_fixable" json:"auto_fixable"`
}

// ValidationResult is one validator's verdict for one operation.
type ValidationResult struct {
	ValidatorName   string            `yaml:"validator_name" json:"validator_name"`
	RiskScore       float64           `yaml:"risk_score" json:"risk_score"`
	Violations      []SafetyViolation `yaml:"violations" json:"violations"`
	Warnings        []string          `yaml:"warnings" json:"warnings"`
	Confirmations   []string          `yaml:"confirmations" json:"confirmations"`
	Recommendations []string          `yaml:"recommendations" json:"recommendations"`
}

// EnforcementAction is the policy decision gating whether an operation may
// proceed.
type EnforcementAction string

const (
	ActionAllow                 EnforcementAction = "allow"
	ActionWarn                  EnforcementAction = "warn"
	ActionRequireConfirmation   EnforcementAction = "require_confirmation"
	ActionRequireManualOverride EnforcementAction = "require_manual_override"
	ActionBlock                 EnforcementAction = "block"
)

// ExecutionRequirement tells the execution layer how to proceed.
type ExecutionRequirement string

const (
	ExecBlocked                     ExecutionRequirement = "blocked"
	ExecManual                      ExecutionRequirement = "manual"
	ExecConditionalWithMitigation   ExecutionRequirement = "conditional_with_mitigation"
	ExecConditionalWithConfirmation ExecutionRequirement = "conditional_with_confirmation"
	ExecAutoWithWarning             ExecutionRequirement = "auto_with_warning"
	ExecAuto                        ExecutionRequirement = "auto"
)

// EnforcementLevel selects how aggressively findings translate into actions.
type EnforcementLevel string

const (
	LevelAdvisory  EnforcementLevel = "advisory"
	LevelEnforcing EnforcementLevel = "enforcing"
	LevelParanoid  EnforcementLevel = "paranoid"
)

func ParseEnforcementLevel(s string) (EnforcementLevel, error) {
	switch EnforcementLevel(s) {
	case LevelAdvisory, LevelEnforcing, LevelParanoid:
		return EnforcementLevel(s), nil
	case "":
		return LevelEnforcing, nil
	default:
		return "", fmt.Errorf("unknown enforcement level: %q", s)
	}
}

// UpstreamSignals carries the consensus pipeline's confidence and risk
// estimates for the operation, both on a 0–100 scale.
type UpstreamSignals struct {
	Confidence float64 `yaml:"confidence" json:"confidence"`
	Risk       float64 `yaml:"risk" json:"risk"`
}

// ComprehensiveSafetyResult aggregates every validator's findings into one
// decision. RiskScore is the max over validator scores, never a sum: one
// severe finding cannot be diluted by the silence of other validators.
type ComprehensiveSafetyResult struct {
	OperationID          string               `yaml:"operation_id" json:"operation_id"`
	Operation            model.FileOperation  `yaml:"operation" json:"operation"`
	OverallSafe          bool                 `yaml:"overall_safe" json:"overall_safe"`
	RiskScore            float64              `yaml:"risk_score" json:"risk_score"`
	EnforcementAction    EnforcementAction    `yaml:"enforcement_action" json:"enforcement_action"`
	ExecutionRequirement ExecutionRequirement `yaml:"execution_requirement" json:"execution_requirement"`

	Violations       []SafetyViolation  `yaml:"violations" json:"violations"`
	Warnings         []string           `yaml:"warnings" json:"warnings"`
	Confirmations    []string           `yaml:"confirmations" json:"confirmations"`
	Recommendations  []string           `yaml:"recommendations" json:"recommendations"`
	ValidatorResults []ValidationResult `yaml:"validator_results" json:"validator_results"`

	BrakeTripped bool      `yaml:"brake_tripped" json:"brake_tripped"`
	CacheHit     bool      `yaml:"cache_hit" json:"cache_hit"`
	EvaluatedAt  time.Time `yaml:"evaluated_at" json:"evaluated_at"`
}

// HasCritical reports whether any collected violation is Critical.
func (r *ComprehensiveSafetyResult) HasCritical() bool {
	return r.hasSeverity(SeverityCritical)
}

// HasHigh reports whether any collected violation is High.
func (r *ComprehensiveSafetyResult) HasHigh() bool {
	return r.hasSeverity(SeverityHigh)
}

func (r *ComprehensiveSafetyResult) hasSeverity(s Severity) bool {
	for _, v := range r.Violations {
		if v.Severity == s {
			return true
		}
	}
	return false
}
