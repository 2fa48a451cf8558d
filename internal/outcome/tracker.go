package outcome

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/msageha/foresight/internal/events"
	"github.com/msageha/foresight/internal/model"
)

// patternWindow bounds the resolved-outcome window scanned for systematic
// error patterns.
const patternWindow = 100

type sourceState struct {
	accuracy float64
	samples  int64
	trend    []float64
}

type resolvedSample struct {
	confidence float64
	risk       float64
	success    bool
}

// Tracker holds pending predictions in a capacity-bounded cache and folds
// each resolution into the running accuracy statistics.
//
// The cache evicts in insertion order: entries are added exactly once per
// operation id and only ever read with Peek, which does not touch recency, so
// LRU order degenerates to FIFO and the oldest prediction is lost first.
//
// mu guards both the aggregate statistics and the mutable fields of cached
// TrackedOutcome records; the cache's internal lock alone does not cover
// resolution writes.
type Tracker struct {
	mu     sync.RWMutex
	cache  *lru.Cache[string, *TrackedOutcome]
	store  HistoryStore
	bus    *events.Bus
	logger *log.Logger
	cfg    model.OutcomeConfig

	overall         float64
	overallSeeded   bool
	totalResolved   int64
	lostPredictions int64
	sources         map[string]*sourceState
	recent          []resolvedSample

	lastRetrain          time.Time
	resolvedSinceRetrain int
	lastWeights          map[string]float64
}

// NewTracker builds a tracker. The store and bus may be nil; persistence and
// event publication are then skipped.
func NewTracker(cfg model.OutcomeConfig, store HistoryStore, bus *events.Bus, logger *log.Logger) (*Tracker, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = 1000
	}
	if cfg.TrendBufferSize <= 0 {
		cfg.TrendBufferSize = 20
	}

	t := &Tracker{
		store:       store,
		bus:         bus,
		logger:      logger,
		cfg:         cfg,
		sources:     make(map[string]*sourceState),
		lastRetrain: time.Now().UTC(),
	}

	cache, err := lru.NewWithEvict[string, *TrackedOutcome](cfg.CacheCapacity, t.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create outcome cache: %w", err)
	}
	t.cache = cache
	return t, nil
}

// RecordPrediction registers what the pipeline expects before execution and
// returns the new outcome id. A second prediction for the same operation id
// replaces the first.
func (t *Tracker) RecordPrediction(operationID string, pred PredictionSnapshot) (string, error) {
	outcomeID, err := model.GenerateID(model.IDTypeOutcome)
	if err != nil {
		return "", fmt.Errorf("generate outcome id: %w", err)
	}
	if pred.RecordedAt.IsZero() {
		pred.RecordedAt = time.Now().UTC()
	}

	t.mu.Lock()
	if _, exists := t.cache.Peek(operationID); exists {
		t.logger.Printf("outcome: replacing existing prediction for %s", operationID)
	}
	t.cache.Add(operationID, &TrackedOutcome{
		OutcomeID:   outcomeID,
		OperationID: operationID,
		State:       StatePredicted,
		Prediction:  pred,
	})
	t.mu.Unlock()
	return outcomeID, nil
}

// RecordOutcome resolves the prediction for the operation id. An unknown id
// is a logged no-op: the prediction was lost, most likely to cache eviction.
// A second resolution for the same id is likewise a no-op, so accuracy never
// double-counts.
func (t *Tracker) RecordOutcome(operationID string, result ActualResult) *TrackedOutcome {
	if result.RecordedAt.IsZero() {
		result.RecordedAt = time.Now().UTC()
	}

	t.mu.Lock()
	tracked, ok := t.cache.Peek(operationID)
	if !ok {
		t.lostPredictions++
		t.mu.Unlock()
		t.logger.Printf("outcome: no prediction recorded for %s, skipping", operationID)
		return nil
	}
	if tracked.State == StateResolved {
		t.mu.Unlock()
		t.logger.Printf("outcome: %s already resolved, skipping duplicate", operationID)
		return tracked
	}

	breakdown := computeAccuracy(tracked.Prediction, result.Success)
	tracked.Actual = &result
	tracked.Accuracy = &breakdown
	tracked.State = StateResolved
	t.fold(tracked, breakdown)
	snapshot := *tracked
	t.mu.Unlock()

	if t.bus != nil {
		t.bus.Publish(events.EventOutcomeResolved, map[string]interface{}{
			"operation_id": operationID,
			"outcome_id":   snapshot.OutcomeID,
			"success":      result.Success,
			"accuracy":     breakdown.OverallAccuracyScore,
		})
	}
	t.persist(snapshot)
	return tracked
}

// fold updates the running statistics; caller holds the write lock.
func (t *Tracker) fold(tracked *TrackedOutcome, breakdown AccuracyBreakdown) {
	t.overall = ema(t.overall, breakdown.OverallAccuracyScore, overallEMAAlpha, t.overallSeeded)
	t.overallSeeded = true
	t.totalResolved++
	t.resolvedSinceRetrain++

	for source, accuracy := range breakdown.SourceAccuracy {
		state := t.sources[source]
		if state == nil {
			state = &sourceState{}
			t.sources[source] = state
		}
		state.accuracy = ema(state.accuracy, accuracy, sourceEMAAlpha, state.samples > 0)
		state.samples++
		state.trend = append(state.trend, accuracy)
		if len(state.trend) > t.cfg.TrendBufferSize {
			state.trend = state.trend[len(state.trend)-t.cfg.TrendBufferSize:]
		}
	}

	t.recent = append(t.recent, resolvedSample{
		confidence: tracked.Prediction.PredictedConfidence,
		risk:       tracked.Prediction.PredictedRisk,
		success:    tracked.Actual.Success,
	})
	if len(t.recent) > patternWindow {
		t.recent = t.recent[len(t.recent)-patternWindow:]
	}
}

// Outcome returns a copy of the tracked record for an operation id without
// touching cache recency. The copy keeps callers from observing a resolution
// in progress.
func (t *Tracker) Outcome(operationID string) (*TrackedOutcome, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	tracked, ok := t.cache.Peek(operationID)
	if !ok {
		return nil, false
	}
	snapshot := *tracked
	return &snapshot, true
}

// Pending returns how many entries the cache currently holds.
func (t *Tracker) Pending() int {
	return t.cache.Len()
}

// Metrics returns a read-only snapshot of the accuracy statistics.
func (t *Tracker) Metrics() AccuracyMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metricsLocked()
}

func (t *Tracker) metricsLocked() AccuracyMetrics {
	metrics := AccuracyMetrics{
		OverallAccuracy: t.overall,
		TotalResolved:   t.totalResolved,
		LostPredictions: t.lostPredictions,
		Sources:         make(map[string]SourceStats, len(t.sources)),
	}
	for source, state := range t.sources {
		trend := make([]float64, len(state.trend))
		copy(trend, state.trend)
		metrics.Sources[source] = SourceStats{
			PredictionAccuracy: state.accuracy,
			Samples:            state.samples,
			Trend:              trend,
		}
	}
	return metrics
}

// Insights returns metrics, detected error patterns, and the latest weight
// suggestions.
func (t *Tracker) Insights() LearningInsights {
	t.mu.RLock()
	defer t.mu.RUnlock()

	weights := make(map[string]float64, len(t.lastWeights))
	for k, v := range t.lastWeights {
		weights[k] = v
	}
	return LearningInsights{
		Metrics:              t.metricsLocked(),
		Patterns:             detectPatterns(t.recent),
		WeightSuggestions:    weights,
		LastRetrain:          t.lastRetrain,
		ResolvedSinceRetrain: t.resolvedSinceRetrain,
	}
}

// onEvict fires when capacity pushes the oldest entry out. Resolved records
// were already persisted at resolution time; an unresolved one is a lost
// prediction and only gets logged.
func (t *Tracker) onEvict(operationID string, tracked *TrackedOutcome) {
	if tracked.State == StatePredicted {
		t.logger.Printf("outcome: prediction for %s evicted before resolution", operationID)
	}
}

// persist saves a resolved record off the caller's goroutine so persistence
// never blocks the decision path. The caller passes a snapshot taken under
// the lock.
func (t *Tracker) persist(snapshot TrackedOutcome) {
	if t.store == nil {
		return
	}
	go func() {
		if err := t.store.SaveOutcome(snapshot); err != nil {
			t.logger.Printf("outcome: persist %s failed: %v", snapshot.OutcomeID, err)
		}
	}()
}
