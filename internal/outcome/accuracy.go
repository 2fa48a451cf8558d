package outcome

import "math"

const (
	confidenceErrorWeight = 0.3
	riskErrorWeight       = 0.3
	successAccuracyWeight = 0.4

	// Per-source and overall exponential moving average retention.
	sourceEMAAlpha  = 0.9
	overallEMAAlpha = 0.95
)

// computeAccuracy derives the breakdown for a resolved outcome. Scores are on
// a 0-100 scale; accuracy values are fractions in [0,1].
func computeAccuracy(pred PredictionSnapshot, success bool) AccuracyBreakdown {
	actualSuccessScore := 0.0
	actualRiskScore := 100.0
	if success {
		actualSuccessScore = 100.0
		actualRiskScore = 0.0
	}

	breakdown := AccuracyBreakdown{
		ConfidenceError: math.Abs(pred.PredictedConfidence - actualSuccessScore),
		RiskError:       math.Abs(pred.PredictedRisk - actualRiskScore),
	}
	if (pred.PredictedConfidence > 50) == success {
		breakdown.SuccessPredictionAccuracy = 1.0
	}

	if len(pred.SourceScores) > 0 {
		breakdown.SourceAccuracy = make(map[string]float64, len(pred.SourceScores))
		for source, score := range pred.SourceScores {
			breakdown.SourceAccuracy[source] = 1.0 - math.Abs(score-actualSuccessScore)/100.0
		}
	}

	breakdown.OverallAccuracyScore = confidenceErrorWeight*(1.0-breakdown.ConfidenceError/100.0) +
		riskErrorWeight*(1.0-breakdown.RiskError/100.0) +
		successAccuracyWeight*breakdown.SuccessPredictionAccuracy
	return breakdown
}

// ema folds one sample into a running average with the given retention; the
// first sample seeds the average directly.
func ema(old float64, sample float64, alpha float64, seeded bool) float64 {
	if !seeded {
		return sample
	}
	return alpha*old + (1.0-alpha)*sample
}
