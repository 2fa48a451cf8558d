package outcome

import "time"

// Weight multipliers are clamped so one bad stretch cannot zero out or
// runaway-boost a source.
const (
	minWeightMultiplier = 0.5
	maxWeightMultiplier = 1.5
)

// ShouldRetrain reports whether a retraining pass is due. Both conditions are
// required: enough resolved outcomes since the last pass, and either accuracy
// below target or a full interval elapsed. This prevents premature retraining
// on sparse data as well as retraining storms.
func (t *Tracker) ShouldRetrain() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.resolvedSinceRetrain < t.cfg.MinOutcomesForTraining {
		return false
	}
	interval := time.Duration(t.cfg.RetrainIntervalHours) * time.Hour
	return t.overall < t.cfg.AccuracyTarget || time.Since(t.lastRetrain) >= interval
}

// Retrain produces suggested per-source weight multipliers relative to the
// mean source accuracy and resets the retrain counters. Applying the weights
// is the consumer's responsibility.
func (t *Tracker) Retrain() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	weights := make(map[string]float64, len(t.sources))
	if len(t.sources) > 0 {
		mean := 0.0
		for _, state := range t.sources {
			mean += state.accuracy
		}
		mean /= float64(len(t.sources))

		for source, state := range t.sources {
			multiplier := 1.0
			if mean > 0 {
				multiplier = clamp(state.accuracy/mean, minWeightMultiplier, maxWeightMultiplier)
			}
			weights[source] = multiplier
		}
	}

	t.lastWeights = weights
	t.lastRetrain = time.Now().UTC()
	t.resolvedSinceRetrain = 0

	out := make(map[string]float64, len(weights))
	for k, v := range weights {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
