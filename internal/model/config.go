package model

type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Graph     GraphConfig     `yaml:"graph"`
	Guardrail GuardrailConfig `yaml:"guardrail"`
	Outcome   OutcomeConfig   `yaml:"outcome"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ProjectConfig struct {
	Name string `yaml:"name"`
	Root string `yaml:"root"`
}

type GraphConfig struct {
	EnableImplicitDependencies  bool    `yaml:"enable_implicit_dependencies"`
	EnablePredictedDependencies bool    `yaml:"enable_predicted_dependencies"`
	PredictionThreshold         float64 `yaml:"prediction_threshold"`
}

type GuardrailConfig struct {
	// EnforcementLevel is one of advisory, enforcing, paranoid.
	EnforcementLevel string `yaml:"enforcement_level"`

	MaxAutoRiskScore   float64 `yaml:"max_auto_risk_score"`
	MinConfidenceScore float64 `yaml:"min_confidence_score"`
	MaxUpstreamRisk    float64 `yaml:"max_upstream_risk"`

	// Emergency brake thresholds.
	LoadThreshold     float64 `yaml:"load_threshold"`
	MaxRecentFailures int     `yaml:"max_recent_failures"`
	FailureWindowSec  int     `yaml:"failure_window_sec"`
	MinDiskSpaceMB    int64   `yaml:"min_disk_space_mb"`
	LowDiskWarningMB  int64   `yaml:"low_disk_warning_mb"`
	RulesFile         string  `yaml:"rules_file"`
	WatchRulesFile    bool    `yaml:"watch_rules_file"`
	ResultCacheSize   int     `yaml:"result_cache_size"`
	ResultCacheTTLSec int     `yaml:"result_cache_ttl_sec"`
}

type OutcomeConfig struct {
	CacheCapacity          int     `yaml:"cache_capacity"`
	TrendBufferSize        int     `yaml:"trend_buffer_size"`
	MinOutcomesForTraining int     `yaml:"min_outcomes_for_training"`
	RetrainIntervalHours   int     `yaml:"retrain_interval_hours"`
	AccuracyTarget         float64 `yaml:"accuracy_target"`
}

type StoreConfig struct {
	Dir string `yaml:"dir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the configuration used when no foresight.yaml is
// present. Thresholds mirror the documented enforcement policy.
func DefaultConfig() Config {
	return Config{
		Graph: GraphConfig{
			EnableImplicitDependencies:  true,
			EnablePredictedDependencies: true,
			PredictionThreshold:         0.6,
		},
		Guardrail: GuardrailConfig{
			EnforcementLevel:   "enforcing",
			MaxAutoRiskScore:   70,
			MinConfidenceScore: 60,
			MaxUpstreamRisk:    70,
			LoadThreshold:      0.95,
			MaxRecentFailures:  5,
			FailureWindowSec:   300,
			MinDiskSpaceMB:     100,
			LowDiskWarningMB:   500,
			RulesFile:          ".foresight/rules.yaml",
			WatchRulesFile:     false,
			ResultCacheSize:    1000,
			ResultCacheTTLSec:  30,
		},
		Outcome: OutcomeConfig{
			CacheCapacity:          1000,
			TrendBufferSize:        20,
			MinOutcomesForTraining: 50,
			RetrainIntervalHours:   24,
			AccuracyTarget:         0.8,
		},
		Store: StoreConfig{
			Dir: ".foresight",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
