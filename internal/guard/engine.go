package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/msageha/foresight/internal/events"
	"github.com/msageha/foresight/internal/model"
)

// Engine runs the validator set over each operation and turns their findings
// into one enforcement decision. Validators are registered priority-sorted at
// construction and all of them always run; priority orders the aggregated
// findings, it is not a short-circuit.
type Engine struct {
	validators []Validator
	table      *RuleTable
	cache      *resultCache
	flight     singleflight.Group
	bus        *events.Bus
	logger     *log.Logger
	metrics    *SafetyMetrics
	level      EnforcementLevel
	cfg        model.GuardrailConfig
}

// NewEngine builds an engine with the standard validator set plus the pattern
// rule validator bound to the given table. The bus may be nil.
func NewEngine(cfg model.GuardrailConfig, table *RuleTable, bus *events.Bus, logger *log.Logger) (*Engine, error) {
	level, err := ParseEnforcementLevel(cfg.EnforcementLevel)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if table == nil {
		table = NewRuleTable()
	}

	e := &Engine{
		table:   table,
		cache:   newResultCache(cfg.ResultCacheSize, time.Duration(cfg.ResultCacheTTLSec)*time.Second),
		bus:     bus,
		logger:  logger,
		metrics: &SafetyMetrics{},
		level:   level,
		cfg:     cfg,
	}

	e.Register(&CriticalFileValidator{})
	e.Register(&SystemDirectoryValidator{})
	e.Register(&DiskSpaceValidator{MinFreeMB: cfg.MinDiskSpaceMB, WarningFreeMB: cfg.LowDiskWarningMB})
	e.Register(&BackupAvailabilityValidator{})
	e.Register(&VCSIntegrityValidator{})
	e.Register(&ConcurrencyValidator{MaxRecentFailures: cfg.MaxRecentFailures})
	e.Register(NewPatternRuleValidator(table))

	return e, nil
}

// Register adds a validator, keeping the list priority-sorted.
func (e *Engine) Register(v Validator) {
	e.validators = append(e.validators, v)
	sort.SliceStable(e.validators, func(i, j int) bool {
		return e.validators[i].Priority() < e.validators[j].Priority()
	})
}

// Rules exposes the mutable rule table backing the pattern validator.
func (e *Engine) Rules() *RuleTable { return e.table }

// Metrics returns the engine's running counters.
func (e *Engine) Metrics() *SafetyMetrics { return e.metrics }

// Level returns the active enforcement level.
func (e *Engine) Level() EnforcementLevel { return e.level }

// InvalidateCache drops all cached results. The rule watcher calls this after
// a reload; rule-table edits are already covered by the checksum in the key.
func (e *Engine) InvalidateCache() { e.cache.Clear() }

// CheckOperation evaluates one operation against the full validator set and
// the ambient context, returning the aggregate decision.
//
// The emergency brake is checked before any validator runs: a tripped brake
// forces Block with mandatory manual confirmation and bypasses aggregation
// entirely.
func (e *Engine) CheckOperation(ctx context.Context, operationID string, op model.FileOperation, gctx *Context) (*ComprehensiveSafetyResult, error) {
	if gctx == nil {
		defaulted := DefaultContext("")
		gctx = &defaulted
	}

	if reason := e.brakeReason(gctx); reason != "" {
		result := e.brakeResult(operationID, op, reason)
		e.metrics.record(result)
		e.publish(events.EventBrakeTripped, map[string]interface{}{
			"operation_id": operationID,
			"reason":       reason,
		})
		e.logger.Printf("emergency brake tripped for %s: %s", operationID, reason)
		return result, nil
	}

	key := e.cacheKey(op, gctx)
	if cached := e.cache.Get(key); cached != nil {
		cached.OperationID = operationID
		cached.CacheHit = true
		e.metrics.record(cached)
		return cached, nil
	}

	v, err, _ := e.flight.Do(key, func() (interface{}, error) {
		return e.evaluateUncached(ctx, op, gctx), nil
	})
	if err != nil {
		return nil, err
	}

	result := v.(*ComprehensiveSafetyResult)
	e.cache.Set(key, result)

	// Copy so concurrent singleflight sharers do not race on OperationID.
	out := *result
	out.OperationID = operationID
	e.metrics.record(&out)
	e.publish(events.EventDecisionMade, map[string]interface{}{
		"operation_id": operationID,
		"action":       string(out.EnforcementAction),
		"risk_score":   out.RiskScore,
		"violations":   len(out.Violations),
	})
	return &out, nil
}

// CheckNodes evaluates every node in proposal order with a shared context.
func (e *Engine) CheckNodes(ctx context.Context, nodes []model.OperationNode, gctx *Context) ([]*ComprehensiveSafetyResult, error) {
	results := make([]*ComprehensiveSafetyResult, 0, len(nodes))
	for _, node := range nodes {
		result, err := e.CheckOperation(ctx, node.ID, node.Operation, gctx)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (e *Engine) evaluateUncached(ctx context.Context, op model.FileOperation, gctx *Context) *ComprehensiveSafetyResult {
	validators := e.validators
	results := make([]ValidationResult, len(validators))

	g, _ := errgroup.WithContext(ctx)
	for i, v := range validators {
		i, v := i, v
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Printf("validator %s panicked: %v", v.Name(), r)
					results[i] = panicResult(v.Name(), r)
				}
			}()
			results[i] = v.Validate(op, gctx)
			return nil
		})
	}
	// Validators never return errors; the group is used for the join.
	_ = g.Wait()

	result := &ComprehensiveSafetyResult{
		Operation:        op,
		ValidatorResults: results,
		EvaluatedAt:      time.Now().UTC(),
	}
	for _, vr := range results {
		if vr.RiskScore > result.RiskScore {
			result.RiskScore = vr.RiskScore
		}
		result.Violations = append(result.Violations, vr.Violations...)
		result.Warnings = append(result.Warnings, vr.Warnings...)
		result.Confirmations = append(result.Confirmations, vr.Confirmations...)
		result.Recommendations = append(result.Recommendations, vr.Recommendations...)
	}

	result.OverallSafe = !result.HasCritical()
	result.EnforcementAction = e.decide(result, gctx)
	result.ExecutionRequirement = deriveRequirement(result)
	return result
}

// decide applies the enforcement decision table in order; first match wins.
func (e *Engine) decide(result *ComprehensiveSafetyResult, gctx *Context) EnforcementAction {
	// 1. A Critical violation blocks at every level.
	if result.HasCritical() {
		return ActionBlock
	}

	// 2. Aggregate risk above the auto threshold.
	if result.RiskScore > e.cfg.MaxAutoRiskScore {
		switch e.level {
		case LevelAdvisory:
			return ActionWarn
		case LevelParanoid:
			return ActionBlock
		default:
			return ActionRequireConfirmation
		}
	}

	// 3. A High violation present.
	if result.HasHigh() {
		switch e.level {
		case LevelAdvisory:
			return ActionWarn
		case LevelParanoid:
			return ActionRequireManualOverride
		default:
			return ActionRequireConfirmation
		}
	}

	// 4. Upstream pipeline is unsure or pessimistic.
	if gctx.Upstream.Confidence < e.cfg.MinConfidenceScore || gctx.Upstream.Risk > e.cfg.MaxUpstreamRisk {
		return ActionRequireConfirmation
	}

	// 5. Level-specific default.
	switch e.level {
	case LevelAdvisory:
		return ActionAllow
	case LevelParanoid:
		if len(result.Violations) == 0 && result.RiskScore < 20 {
			return ActionAllow
		}
		return ActionRequireConfirmation
	default:
		if len(result.Violations) == 0 {
			return ActionAllow
		}
		return ActionWarn
	}
}

func deriveRequirement(result *ComprehensiveSafetyResult) ExecutionRequirement {
	switch result.EnforcementAction {
	case ActionBlock:
		return ExecBlocked
	case ActionRequireManualOverride:
		return ExecManual
	case ActionRequireConfirmation:
		if mitigationRequired(result.Violations) {
			return ExecConditionalWithMitigation
		}
		return ExecConditionalWithConfirmation
	case ActionWarn:
		return ExecAutoWithWarning
	default:
		return ExecAuto
	}
}

func mitigationRequired(violations []SafetyViolation) bool {
	for _, v := range violations {
		if v.MitigationRequired {
			return true
		}
	}
	return false
}

// brakeReason reports why the emergency brake should trip, or "" when it
// should not.
func (e *Engine) brakeReason(gctx *Context) string {
	if gctx.SystemLoad > e.cfg.LoadThreshold {
		return fmt.Sprintf("system load %.2f exceeds %.2f", gctx.SystemLoad, e.cfg.LoadThreshold)
	}
	if !gctx.BackupAvailable && gctx.RecentFailures > e.cfg.MaxRecentFailures {
		return fmt.Sprintf("backup unavailable with %d recent failures (threshold %d)",
			gctx.RecentFailures, e.cfg.MaxRecentFailures)
	}
	return ""
}

func (e *Engine) brakeResult(operationID string, op model.FileOperation, reason string) *ComprehensiveSafetyResult {
	return &ComprehensiveSafetyResult{
		OperationID:          operationID,
		Operation:            op,
		OverallSafe:          false,
		RiskScore:            100,
		EnforcementAction:    ActionBlock,
		ExecutionRequirement: ExecManual,
		Violations: []SafetyViolation{{
			RuleID:             "emergency_brake",
			Severity:           SeverityCritical,
			Description:        "emergency brake tripped: " + reason,
			AffectedFiles:      op.Paths(),
			MitigationRequired: true,
		}},
		Recommendations: []string{"resolve the system condition, then re-validate"},
		BrakeTripped:    true,
		EvaluatedAt:     time.Now().UTC(),
	}
}

func panicResult(validatorName string, panicValue interface{}) ValidationResult {
	return ValidationResult{
		ValidatorName: validatorName,
		RiskScore:     50,
		Violations: []SafetyViolation{{
			RuleID:      "validator_failure",
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("validator %s failed: %v", validatorName, panicValue),
		}},
		Warnings: []string{fmt.Sprintf("validator %s did not complete", validatorName)},
	}
}

// cacheKey fingerprints the operation plus ambient context and binds the key
// to the current rule set.
func (e *Engine) cacheKey(op model.FileOperation, gctx *Context) string {
	payload, _ := json.Marshal(struct {
		Op  model.FileOperation `json:"op"`
		Ctx *Context            `json:"ctx"`
	}{op, gctx})
	sum := sha256.Sum256(payload)
	return e.table.Checksum() + ":" + hex.EncodeToString(sum[:])
}

func (e *Engine) publish(eventType events.EventType, data map[string]interface{}) {
	if e.bus != nil {
		e.bus.Publish(eventType, data)
	}
}
