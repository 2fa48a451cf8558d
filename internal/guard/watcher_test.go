package guard

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/foresight/internal/model"
)

func TestRuleWatcher_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")

	engine, err := NewEngine(testConfig(), NewRuleTable(), nil, nil)
	require.NoError(t, err)

	watcher := NewRuleWatcher(engine, rulesPath, nil, nil)
	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	// Writing the file after Start simulates an operator editing the rules of
	// a running engine.
	source := NewRuleTable()
	require.NoError(t, source.AddRule(SafetyRule{
		ID:       "hot-added",
		Severity: SeverityCritical,
		Enabled:  true,
		Matcher:  RuleMatcher{Kind: MatchPathRegex, Pattern: `\.pem$`},
	}))
	require.NoError(t, source.SaveFile(rulesPath))

	require.Eventually(t, func() bool {
		return len(engine.Rules().Rules()) == 1
	}, 3*time.Second, 25*time.Millisecond, "watcher should pick up the new rule file")

	result, err := engine.CheckOperation(context.Background(), "op_0",
		model.NewCreate("server.pem", "key material"), healthyContext())
	require.NoError(t, err)
	assert.Equal(t, ActionBlock, result.EnforcementAction)
}

func TestRuleWatcher_KeepsRulesOnBadReload(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")

	table := NewRuleTable()
	require.NoError(t, table.AddRule(SafetyRule{
		ID:       "keep-me",
		Severity: SeverityLow,
		Enabled:  true,
		Matcher:  RuleMatcher{Kind: MatchPathRegex, Pattern: `\.bak$`},
	}))
	engine, err := NewEngine(testConfig(), table, nil, nil)
	require.NoError(t, err)

	watcher := NewRuleWatcher(engine, rulesPath, nil, nil)
	require.NoError(t, watcher.Start(context.Background()))
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(rulesPath, []byte("rules: [not: {closed"), 0644))

	// Give the debounce and reload a chance to run, then confirm nothing was
	// thrown away.
	time.Sleep(600 * time.Millisecond)
	assert.Len(t, engine.Rules().Rules(), 1)
}
