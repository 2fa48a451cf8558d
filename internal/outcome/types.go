// Package outcome records the prediction made before an operation executes
// and the result observed after, derives accuracy metrics per scoring source,
// detects systematic error patterns, and proposes weight adjustments for the
// upstream scorers.
package outcome

import "time"

type State string

const (
	// StatePredicted means the prediction is recorded and the actual result
	// is still pending.
	StatePredicted State = "predicted"
	// StateResolved is terminal: the actual result arrived and accuracy was
	// computed. No further transitions.
	StateResolved State = "resolved"
)

// PredictionSnapshot is what the pipeline believed before execution.
type PredictionSnapshot struct {
	PredictedConfidence float64            `yaml:"predicted_confidence" json:"predicted_confidence"`
	PredictedRisk       float64            `yaml:"predicted_risk" json:"predicted_risk"`
	SourceScores        map[string]float64 `yaml:"source_scores,omitempty" json:"source_scores,omitempty"`
	RecordedAt          time.Time          `yaml:"recorded_at" json:"recorded_at"`
}

// ActualResult is what the execution layer reported afterwards.
type ActualResult struct {
	Success      bool      `yaml:"success" json:"success"`
	ErrorKind    string    `yaml:"error_kind,omitempty" json:"error_kind,omitempty"`
	ErrorMessage string    `yaml:"error_message,omitempty" json:"error_message,omitempty"`
	TouchedFiles []string  `yaml:"touched_files,omitempty" json:"touched_files,omitempty"`
	RecordedAt   time.Time `yaml:"recorded_at" json:"recorded_at"`
}

// AccuracyBreakdown is derived once, at resolution time.
type AccuracyBreakdown struct {
	ConfidenceError           float64            `yaml:"confidence_error" json:"confidence_error"`
	RiskError                 float64            `yaml:"risk_error" json:"risk_error"`
	SuccessPredictionAccuracy float64            `yaml:"success_prediction_accuracy" json:"success_prediction_accuracy"`
	SourceAccuracy            map[string]float64 `yaml:"source_accuracy,omitempty" json:"source_accuracy,omitempty"`
	OverallAccuracyScore      float64            `yaml:"overall_accuracy_score" json:"overall_accuracy_score"`
}

// TrackedOutcome is one operation's prediction-versus-reality record. It is
// mutated exactly once, when the real outcome arrives, and is immutable
// thereafter.
type TrackedOutcome struct {
	OutcomeID   string `yaml:"outcome_id" json:"outcome_id"`
	OperationID string `yaml:"operation_id" json:"operation_id"`
	State       State  `yaml:"state" json:"state"`

	Prediction PredictionSnapshot `yaml:"prediction" json:"prediction"`
	Actual     *ActualResult      `yaml:"actual,omitempty" json:"actual,omitempty"`
	Accuracy   *AccuracyBreakdown `yaml:"accuracy,omitempty" json:"accuracy,omitempty"`
}

// SourceStats is the running view of one scoring source.
type SourceStats struct {
	PredictionAccuracy float64   `yaml:"prediction_accuracy" json:"prediction_accuracy"`
	Samples            int64     `yaml:"samples" json:"samples"`
	Trend              []float64 `yaml:"trend" json:"trend"`
}

// AccuracyMetrics is the read-only snapshot exposed to observability.
type AccuracyMetrics struct {
	OverallAccuracy float64                `yaml:"overall_accuracy" json:"overall_accuracy"`
	TotalResolved   int64                  `yaml:"total_resolved" json:"total_resolved"`
	LostPredictions int64                  `yaml:"lost_predictions" json:"lost_predictions"`
	Sources         map[string]SourceStats `yaml:"sources" json:"sources"`
}

// ErrorPattern is a detected systematic prediction failure.
type ErrorPattern struct {
	Kind         string  `yaml:"kind" json:"kind"`
	Rate         float64 `yaml:"rate" json:"rate"`
	Count        int     `yaml:"count" json:"count"`
	WindowSize   int     `yaml:"window_size" json:"window_size"`
	SuggestedFix string  `yaml:"suggested_fix" json:"suggested_fix"`
}

// LearningInsights bundles metrics, detected patterns, and the latest weight
// suggestions for display and for the upstream scorers.
type LearningInsights struct {
	Metrics              AccuracyMetrics    `yaml:"metrics" json:"metrics"`
	Patterns             []ErrorPattern     `yaml:"patterns" json:"patterns"`
	WeightSuggestions    map[string]float64 `yaml:"weight_suggestions,omitempty" json:"weight_suggestions,omitempty"`
	LastRetrain          time.Time          `yaml:"last_retrain" json:"last_retrain"`
	ResolvedSinceRetrain int                `yaml:"resolved_since_retrain" json:"resolved_since_retrain"`
}

// HistoryStore persists resolved outcomes. Saves are fire-and-forget from the
// tracker's perspective and must not block the decision path.
type HistoryStore interface {
	SaveOutcome(outcome TrackedOutcome) error
}
