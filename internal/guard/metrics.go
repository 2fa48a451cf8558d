package guard

import "sync"

// SafetyMetrics keeps running counters over every enforcement decision.
type SafetyMetrics struct {
	mu sync.Mutex

	totalValidations int64
	blocked          int64
	manualOverrides  int64
	confirmations    int64
	warned           int64
	autoApproved     int64
	totalViolations  int64
	brakeTrips       int64
	cacheHits        int64
}

// MetricsSnapshot is a read-only copy of the counters.
type MetricsSnapshot struct {
	TotalValidations int64 `yaml:"total_validations" json:"total_validations"`
	Blocked          int64 `yaml:"blocked" json:"blocked"`
	ManualOverrides  int64 `yaml:"manual_overrides" json:"manual_overrides"`
	Confirmations    int64 `yaml:"confirmations" json:"confirmations"`
	Warned           int64 `yaml:"warned" json:"warned"`
	AutoApproved     int64 `yaml:"auto_approved" json:"auto_approved"`
	TotalViolations  int64 `yaml:"total_violations" json:"total_violations"`
	BrakeTrips       int64 `yaml:"brake_trips" json:"brake_trips"`
	CacheHits        int64 `yaml:"cache_hits" json:"cache_hits"`
}

func (m *SafetyMetrics) record(result *ComprehensiveSafetyResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalValidations++
	m.totalViolations += int64(len(result.Violations))
	if result.BrakeTripped {
		m.brakeTrips++
	}
	if result.CacheHit {
		m.cacheHits++
	}

	switch result.EnforcementAction {
	case ActionBlock:
		m.blocked++
	case ActionRequireManualOverride:
		m.manualOverrides++
	case ActionRequireConfirmation:
		m.confirmations++
	case ActionWarn:
		m.warned++
	case ActionAllow:
		m.autoApproved++
	}
}

// Snapshot returns the current counters.
func (m *SafetyMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MetricsSnapshot{
		TotalValidations: m.totalValidations,
		Blocked:          m.blocked,
		ManualOverrides:  m.manualOverrides,
		Confirmations:    m.confirmations,
		Warned:           m.warned,
		AutoApproved:     m.autoApproved,
		TotalViolations:  m.totalViolations,
		BrakeTrips:       m.brakeTrips,
		CacheHits:        m.cacheHits,
	}
}
