package outcome

// Pattern kinds reported by detectPatterns.
const (
	PatternOverconfidence      = "overconfidence"
	PatternRiskUnderestimation = "risk_underestimation"
)

// patternRateThreshold is the fraction of the recent window above which a
// systematic pattern is flagged.
const patternRateThreshold = 0.10

// detectPatterns scans the recent resolved outcomes for systematic failures:
// confidently-predicted operations that failed anyway, and failures the risk
// estimate called safe.
func detectPatterns(recent []resolvedSample) []ErrorPattern {
	if len(recent) == 0 {
		return nil
	}

	overconfident := 0
	riskBlind := 0
	for _, s := range recent {
		if s.success {
			continue
		}
		if s.confidence > 80 {
			overconfident++
		}
		if s.risk < 30 {
			riskBlind++
		}
	}

	total := len(recent)
	var patterns []ErrorPattern

	if rate := float64(overconfident) / float64(total); rate > patternRateThreshold {
		patterns = append(patterns, ErrorPattern{
			Kind:         PatternOverconfidence,
			Rate:         rate,
			Count:        overconfident,
			WindowSize:   total,
			SuggestedFix: "scale down confidence scores above 80 until failure rate drops",
		})
	}
	if rate := float64(riskBlind) / float64(total); rate > patternRateThreshold {
		patterns = append(patterns, ErrorPattern{
			Kind:         PatternRiskUnderestimation,
			Rate:         rate,
			Count:        riskBlind,
			WindowSize:   total,
			SuggestedFix: "raise the floor of risk estimates for operation kinds that recently failed",
		})
	}
	return patterns
}
