package guard

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/msageha/foresight/internal/model"
)

// Validator is one independent safety check. Implementations must be pure
// functions of their inputs, with no shared mutable state, so the engine can
// run them concurrently. Priority orders results, not execution: every
// validator always runs.
type Validator interface {
	Name() string
	Priority() int
	Validate(op model.FileOperation, ctx *Context) ValidationResult
}

// criticalPathPrefixes are directories no assistant-proposed mutation may
// touch, on any platform.
var criticalPathPrefixes = []string{
	"/etc/", "/sys/", "/proc/", "/boot/", "/dev/",
	"c:/windows/", "c:/program files/",
}

// criticalPathFragments flag version-control internals, dependency trees, and
// credential material anywhere in a path.
var criticalPathFragments = []string{
	".git/", "node_modules/", ".ssh/", ".aws/", ".gnupg/",
}

var credentialNames = []string{
	".env", "credentials", "id_rsa", "id_ed25519", ".netrc", ".npmrc", ".pypirc",
}

// CriticalFileValidator blocks mutations of critical files outright.
type CriticalFileValidator struct{}

func (v *CriticalFileValidator) Name() string  { return "critical_file_protection" }
func (v *CriticalFileValidator) Priority() int { return 10 }

func (v *CriticalFileValidator) Validate(op model.FileOperation, ctx *Context) ValidationResult {
	result := ValidationResult{ValidatorName: v.Name()}

	for _, path := range op.Paths() {
		if reason, ok := criticalPathReason(path); ok {
			result.RiskScore = 100
			result.Violations = append(result.Violations, SafetyViolation{
				RuleID:             "critical_file",
				Severity:           SeverityCritical,
				Description:        fmt.Sprintf("operation targets protected path %s (%s)", path, reason),
				AffectedFiles:      []string{path},
				MitigationRequired: true,
			})
		}
	}
	return result
}

func criticalPathReason(path string) (string, bool) {
	lower := strings.ToLower(filepath.ToSlash(path))

	for _, prefix := range criticalPathPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return "system directory", true
		}
	}
	for _, frag := range criticalPathFragments {
		if strings.Contains(lower, frag) {
			return "protected tree", true
		}
	}
	base := filepath.Base(lower)
	for _, name := range credentialNames {
		if base == name || strings.HasPrefix(base, name+".") {
			return "credential material", true
		}
	}
	return "", false
}

// systemDirPrefixes are paths writes should not stray into even when they are
// not on the critical list.
var systemDirPrefixes = []string{
	"/usr/", "/bin/", "/sbin/", "/lib/", "/opt/", "/var/",
}

// SystemDirectoryValidator flags writes outside user space.
type SystemDirectoryValidator struct{}

func (v *SystemDirectoryValidator) Name() string  { return "system_directory" }
func (v *SystemDirectoryValidator) Priority() int { return 20 }

func (v *SystemDirectoryValidator) Validate(op model.FileOperation, ctx *Context) ValidationResult {
	result := ValidationResult{ValidatorName: v.Name()}

	for _, path := range op.Paths() {
		lower := strings.ToLower(filepath.ToSlash(path))
		for _, prefix := range systemDirPrefixes {
			if strings.HasPrefix(lower, prefix) {
				result.RiskScore = maxFloat(result.RiskScore, 85)
				result.Violations = append(result.Violations, SafetyViolation{
					RuleID:             "system_directory",
					Severity:           SeverityHigh,
					Description:        fmt.Sprintf("operation writes under system directory: %s", path),
					AffectedFiles:      []string{path},
					MitigationRequired: true,
				})
			}
		}
	}
	return result
}

// DiskSpaceValidator checks free space against the configured floors.
type DiskSpaceValidator struct {
	MinFreeMB     int64
	WarningFreeMB int64
}

func (v *DiskSpaceValidator) Name() string  { return "disk_space" }
func (v *DiskSpaceValidator) Priority() int { return 30 }

func (v *DiskSpaceValidator) Validate(op model.FileOperation, ctx *Context) ValidationResult {
	result := ValidationResult{ValidatorName: v.Name()}

	switch {
	case ctx.DiskFreeMB < v.MinFreeMB:
		result.RiskScore = 80
		result.Violations = append(result.Violations, SafetyViolation{
			RuleID:             "low_disk_space",
			Severity:           SeverityHigh,
			Description:        fmt.Sprintf("only %d MB free, below the %d MB floor", ctx.DiskFreeMB, v.MinFreeMB),
			AffectedFiles:      op.Paths(),
			MitigationRequired: true,
		})
	case ctx.DiskFreeMB < v.WarningFreeMB:
		result.RiskScore = 50
		result.Violations = append(result.Violations, SafetyViolation{
			RuleID:        "disk_space_warning",
			Severity:      SeverityMedium,
			Description:   fmt.Sprintf("%d MB free, below the %d MB comfort level", ctx.DiskFreeMB, v.WarningFreeMB),
			AffectedFiles: op.Paths(),
			AutoFixable:   true,
		})
		result.Warnings = append(result.Warnings, "disk space is getting low")
	}
	return result
}

// BackupAvailabilityValidator requires the backup subsystem before any
// destructive mutation can be undone.
type BackupAvailabilityValidator struct{}

func (v *BackupAvailabilityValidator) Name() string  { return "backup_availability" }
func (v *BackupAvailabilityValidator) Priority() int { return 40 }

func (v *BackupAvailabilityValidator) Validate(op model.FileOperation, ctx *Context) ValidationResult {
	result := ValidationResult{ValidatorName: v.Name()}

	if !ctx.BackupAvailable {
		result.RiskScore = 75
		result.Violations = append(result.Violations, SafetyViolation{
			RuleID:             "backup_unavailable",
			Severity:           SeverityHigh,
			Description:        "backup subsystem is down; rollback would be impossible",
			AffectedFiles:      op.Paths(),
			MitigationRequired: true,
		})
		result.Recommendations = append(result.Recommendations,
			"restore the backup subsystem before mutating files")
	}
	return result
}

// VCSIntegrityValidator warns about dirty or untracked working-tree state.
type VCSIntegrityValidator struct{}

func (v *VCSIntegrityValidator) Name() string  { return "vcs_integrity" }
func (v *VCSIntegrityValidator) Priority() int { return 50 }

func (v *VCSIntegrityValidator) Validate(op model.FileOperation, ctx *Context) ValidationResult {
	result := ValidationResult{ValidatorName: v.Name()}

	if !ctx.VCSClean {
		result.RiskScore = 40
		result.Violations = append(result.Violations, SafetyViolation{
			RuleID:        "dirty_working_tree",
			Severity:      SeverityMedium,
			Description:   "working tree has uncommitted changes",
			AffectedFiles: op.Paths(),
			AutoFixable:   true,
		})
		result.Warnings = append(result.Warnings,
			"uncommitted changes may be mixed with assistant edits")
		result.Recommendations = append(result.Recommendations,
			"commit or stash pending changes first")
	}
	if ctx.UntrackedFiles > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d untracked files present", ctx.UntrackedFiles))
	}
	return result
}

// ConcurrencyValidator throttles when recent operations have been failing.
type ConcurrencyValidator struct {
	MaxRecentFailures int
}

func (v *ConcurrencyValidator) Name() string  { return "concurrency_throttle" }
func (v *ConcurrencyValidator) Priority() int { return 60 }

func (v *ConcurrencyValidator) Validate(op model.FileOperation, ctx *Context) ValidationResult {
	result := ValidationResult{ValidatorName: v.Name()}

	if ctx.RecentFailures > v.MaxRecentFailures {
		result.RiskScore = 55
		result.Violations = append(result.Violations, SafetyViolation{
			RuleID:   "failure_throttle",
			Severity: SeverityMedium,
			Description: fmt.Sprintf("%d operation failures within %s exceeds the throttle threshold of %d",
				ctx.RecentFailures, ctx.FailureWindow, v.MaxRecentFailures),
			AffectedFiles: op.Paths(),
		})
		result.Recommendations = append(result.Recommendations,
			"pause the pipeline and investigate recent failures")
	}
	return result
}

// PatternRuleValidator matches the operation against the mutable table of
// operator-defined safety rules.
type PatternRuleValidator struct {
	table *RuleTable
}

func NewPatternRuleValidator(table *RuleTable) *PatternRuleValidator {
	return &PatternRuleValidator{table: table}
}

func (v *PatternRuleValidator) Name() string  { return "pattern_rules" }
func (v *PatternRuleValidator) Priority() int { return 70 }

func (v *PatternRuleValidator) Validate(op model.FileOperation, ctx *Context) ValidationResult {
	result := ValidationResult{ValidatorName: v.Name()}

	for _, rule := range v.table.Matching(op) {
		result.RiskScore = maxFloat(result.RiskScore, severityRiskScore(rule.Severity))
		result.Violations = append(result.Violations, SafetyViolation{
			RuleID:             rule.ID,
			Severity:           rule.Severity,
			Description:        rule.violationDescription(op),
			AffectedFiles:      op.Paths(),
			MitigationRequired: rule.Severity.Rank() >= SeverityHigh.Rank(),
		})
	}
	return result
}

// severityRiskScore maps a rule severity onto the 0–100 risk scale.
func severityRiskScore(s Severity) float64 {
	switch s {
	case SeverityCritical:
		return 100
	case SeverityHigh:
		return 80
	case SeverityMedium:
		return 50
	default:
		return 20
	}
}

func maxFloat(a, b float64) float64 {
	if b > a {
		return b
	}
	return a
}
