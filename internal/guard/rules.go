package guard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/foresight/internal/fyaml"
	"github.com/msageha/foresight/internal/model"
)

type MatcherKind string

const (
	MatchPathRegex    MatcherKind = "path_regex"
	MatchContentRegex MatcherKind = "content_regex"
	MatchExtension    MatcherKind = "extension"
	MatchSizeRange    MatcherKind = "size_range"
	MatchAll          MatcherKind = "all"
	MatchAny          MatcherKind = "any"
	MatchNot          MatcherKind = "not"
)

// RuleMatcher is a predicate over one operation. Leaf kinds test a single
// property; all/any/not compose sub-matchers.
type RuleMatcher struct {
	Kind       MatcherKind   `yaml:"kind"`
	Pattern    string        `yaml:"pattern,omitempty"`
	Extensions []string      `yaml:"extensions,omitempty"`
	MinSize    *int          `yaml:"min_size,omitempty"`
	MaxSize    *int          `yaml:"max_size,omitempty"`
	Matchers   []RuleMatcher `yaml:"matchers,omitempty"`
}

// SafetyRule is one operator-defined rule with its own severity.
type SafetyRule struct {
	ID          string      `yaml:"id"`
	Description string      `yaml:"description"`
	Severity    Severity    `yaml:"severity"`
	Enabled     bool        `yaml:"enabled"`
	Matcher     RuleMatcher `yaml:"matcher"`
}

// RuleFile is the persisted shape of the rule table.
type RuleFile struct {
	SchemaVersion int          `yaml:"schema_version"`
	Rules         []SafetyRule `yaml:"rules"`
}

const ruleFileSchemaVersion = 1

// compiledRule pre-compiles regex patterns so evaluation never pays
// compilation or reports a late pattern error.
type compiledRule struct {
	SafetyRule
	matcher *compiledMatcher
}

type compiledMatcher struct {
	RuleMatcher
	regex *regexp.Regexp
	subs  []*compiledMatcher
}

func compileRule(rule SafetyRule) (*compiledRule, error) {
	if rule.ID == "" {
		return nil, fmt.Errorf("rule is missing an id")
	}
	if _, ok := severityRank[rule.Severity]; !ok {
		return nil, fmt.Errorf("rule %s: unknown severity %q", rule.ID, rule.Severity)
	}
	m, err := compileMatcher(rule.Matcher)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	return &compiledRule{SafetyRule: rule, matcher: m}, nil
}

func compileMatcher(m RuleMatcher) (*compiledMatcher, error) {
	compiled := &compiledMatcher{RuleMatcher: m}

	switch m.Kind {
	case MatchPathRegex, MatchContentRegex:
		re, err := regexp.Compile(m.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", m.Kind, m.Pattern, err)
		}
		compiled.regex = re
	case MatchExtension:
		if len(m.Extensions) == 0 {
			return nil, fmt.Errorf("extension matcher has no extensions")
		}
	case MatchSizeRange:
		if m.MinSize == nil && m.MaxSize == nil {
			return nil, fmt.Errorf("size_range matcher has neither min_size nor max_size")
		}
	case MatchAll, MatchAny:
		if len(m.Matchers) == 0 {
			return nil, fmt.Errorf("%s matcher has no sub-matchers", m.Kind)
		}
	case MatchNot:
		if len(m.Matchers) != 1 {
			return nil, fmt.Errorf("not matcher must have exactly one sub-matcher")
		}
	default:
		return nil, fmt.Errorf("unknown matcher kind: %q", m.Kind)
	}

	for _, sub := range m.Matchers {
		compiledSub, err := compileMatcher(sub)
		if err != nil {
			return nil, err
		}
		compiled.subs = append(compiled.subs, compiledSub)
	}
	return compiled, nil
}

func (m *compiledMatcher) match(op model.FileOperation) bool {
	switch m.Kind {
	case MatchPathRegex:
		for _, p := range op.Paths() {
			if m.regex.MatchString(p) {
				return true
			}
		}
		return false
	case MatchContentRegex:
		return m.regex.MatchString(op.NewContentFor())
	case MatchExtension:
		for _, p := range op.Paths() {
			ext := strings.TrimPrefix(filepath.Ext(p), ".")
			for _, want := range m.Extensions {
				if strings.EqualFold(ext, strings.TrimPrefix(want, ".")) {
					return true
				}
			}
		}
		return false
	case MatchSizeRange:
		size := op.WriteSize()
		if m.MinSize != nil && size < *m.MinSize {
			return false
		}
		if m.MaxSize != nil && size > *m.MaxSize {
			return false
		}
		return true
	case MatchAll:
		for _, sub := range m.subs {
			if !sub.match(op) {
				return false
			}
		}
		return true
	case MatchAny:
		for _, sub := range m.subs {
			if sub.match(op) {
				return true
			}
		}
		return false
	case MatchNot:
		return !m.subs[0].match(op)
	default:
		return false
	}
}

func (r *compiledRule) violationDescription(op model.FileOperation) string {
	if r.Description != "" {
		return fmt.Sprintf("%s (matched %s)", r.Description, op)
	}
	return fmt.Sprintf("safety rule %s matched %s", r.ID, op)
}

// RuleTable is the engine's mutable rule store. A read-mostly RWMutex guards
// it: evaluation takes short read locks, add/remove/reload take the write
// lock. No lock is held across I/O.
type RuleTable struct {
	mu       sync.RWMutex
	rules    []*compiledRule
	checksum string
}

func NewRuleTable() *RuleTable {
	t := &RuleTable{}
	t.recomputeChecksumLocked()
	return t
}

// AddRule compiles and inserts the rule. A malformed pattern is a
// caller-visible error; the table is left unchanged.
func (t *RuleTable) AddRule(rule SafetyRule) error {
	compiled, err := compileRule(rule)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.rules {
		if existing.ID == rule.ID {
			return fmt.Errorf("rule %s already exists", rule.ID)
		}
	}
	t.rules = append(t.rules, compiled)
	sort.SliceStable(t.rules, func(i, j int) bool { return t.rules[i].ID < t.rules[j].ID })
	t.recomputeChecksumLocked()
	return nil
}

// RemoveRule deletes the rule by id; reports whether it existed.
func (t *RuleTable) RemoveRule(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, rule := range t.rules {
		if rule.ID == id {
			t.rules = append(t.rules[:i], t.rules[i+1:]...)
			t.recomputeChecksumLocked()
			return true
		}
	}
	return false
}

// Rules returns a snapshot of the rule definitions.
func (t *RuleTable) Rules() []SafetyRule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]SafetyRule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r.SafetyRule)
	}
	return out
}

// Matching returns the enabled rules whose matcher accepts the operation.
func (t *RuleTable) Matching(op model.FileOperation) []*compiledRule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var hits []*compiledRule
	for _, rule := range t.rules {
		if rule.Enabled && rule.matcher.match(op) {
			hits = append(hits, rule)
		}
	}
	return hits
}

// Checksum identifies the current rule set; it feeds the engine's result
// cache key so cached decisions die with the rules that produced them.
func (t *RuleTable) Checksum() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.checksum
}

func (t *RuleTable) recomputeChecksumLocked() {
	defs := make([]SafetyRule, 0, len(t.rules))
	for _, r := range t.rules {
		defs = append(defs, r.SafetyRule)
	}
	data, err := yamlv3.Marshal(defs)
	if err != nil {
		t.checksum = "unknown"
		return
	}
	sum := sha256.Sum256(data)
	t.checksum = hex.EncodeToString(sum[:])
}

// LoadFile replaces the table contents from a yaml rule file. A file that no
// longer parses is quarantined and reloaded from the .bak the last atomic
// write left behind; only when that fails too does the caller see an error,
// and the table stays unchanged.
func (t *RuleTable) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rule file: %w", err)
	}

	var file RuleFile
	if err := yamlv3.Unmarshal(data, &file); err != nil {
		recovered, rerr := recoverRuleFile(path)
		if rerr != nil {
			return fmt.Errorf("parse rule file %s: %w", path, err)
		}
		file = recovered
	}

	compiled := make([]*compiledRule, 0, len(file.Rules))
	for _, rule := range file.Rules {
		c, err := compileRule(rule)
		if err != nil {
			return fmt.Errorf("rule file %s: %w", path, err)
		}
		compiled = append(compiled, c)
	}
	sort.SliceStable(compiled, func(i, j int) bool { return compiled[i].ID < compiled[j].ID })

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rules = compiled
	t.recomputeChecksumLocked()
	return nil
}

// recoverRuleFile quarantines the corrupt rule file and re-reads the restored
// backup copy.
func recoverRuleFile(path string) (RuleFile, error) {
	var file RuleFile
	if err := fyaml.RecoverCorruptedFile(filepath.Dir(path), path); err != nil {
		return file, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return file, err
	}
	if err := yamlv3.Unmarshal(data, &file); err != nil {
		return file, err
	}
	return file, nil
}

// SaveFile persists the table atomically.
func (t *RuleTable) SaveFile(path string) error {
	file := RuleFile{
		SchemaVersion: ruleFileSchemaVersion,
		Rules:         t.Rules(),
	}
	return fyaml.AtomicWrite(path, file)
}
