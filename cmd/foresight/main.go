package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/msageha/foresight/internal/events"
	"github.com/msageha/foresight/internal/graph"
	"github.com/msageha/foresight/internal/guard"
	"github.com/msageha/foresight/internal/model"
	"github.com/msageha/foresight/internal/outcome"
	"github.com/msageha/foresight/internal/rollback"
	"github.com/msageha/foresight/internal/store"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "plan":
		runPlan(os.Args[2:])
	case "check":
		runCheck(os.Args[2:])
	case "rollback":
		runRollback(os.Args[2:])
	case "outcomes":
		runOutcomes(os.Args[2:])
	case "journal":
		runJournal(os.Args[2:])
	case "rules":
		runRules(os.Args[2:])
	case "version":
		fmt.Printf("foresight %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runPlan(args []string) {
	var opsPath string
	asJSON := false
	for _, a := range args {
		switch a {
		case "--json":
			asJSON = true
		default:
			if strings.HasPrefix(a, "--") {
				fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: foresight plan <operations.yaml> [--json]\n", a)
				os.Exit(1)
			}
			opsPath = a
		}
	}
	if opsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: foresight plan <operations.yaml> [--json]")
		os.Exit(1)
	}

	cfg, logger := mustConfig()
	ops, declared, err := loadOperations(opsPath)
	if err != nil {
		fatal(err)
	}

	builder := graph.NewBuilder(graph.Options{
		EnableImplicit:      cfg.Graph.EnableImplicitDependencies,
		EnablePredicted:     cfg.Graph.EnablePredictedDependencies,
		PredictionThreshold: cfg.Graph.PredictionThreshold,
	}, logger)
	g := builder.Build(ops, declared)

	emit(g, asJSON)
	if len(g.Anomalies) > 0 {
		os.Exit(3)
	}
}

func runCheck(args []string) {
	var opsPath string
	asJSON := false
	watch := false
	gctx := guard.DefaultContext("")
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--json":
			asJSON = true
		case a == "--watch":
			watch = true
		case a == "--dirty":
			gctx.VCSClean = false
		case a == "--no-backup":
			gctx.BackupAvailable = false
		case strings.HasPrefix(a, "--load="):
			gctx.SystemLoad = parseFloatFlag(a)
		case strings.HasPrefix(a, "--failures="):
			gctx.RecentFailures = int(parseFloatFlag(a))
		case strings.HasPrefix(a, "--disk-free-mb="):
			gctx.DiskFreeMB = int64(parseFloatFlag(a))
		case strings.HasPrefix(a, "--confidence="):
			gctx.Upstream.Confidence = parseFloatFlag(a)
		case strings.HasPrefix(a, "--risk="):
			gctx.Upstream.Risk = parseFloatFlag(a)
		case strings.HasPrefix(a, "--"):
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", a)
			os.Exit(1)
		default:
			opsPath = a
		}
	}
	if opsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: foresight check <operations.yaml> [--json] [--watch] [--dirty] [--no-backup] [--load=N] [--failures=N] [--disk-free-mb=N] [--confidence=N] [--risk=N]")
		os.Exit(1)
	}

	cfg, logger := mustConfig()
	watch = watch || cfg.Guardrail.WatchRulesFile
	ops, _, err := loadOperations(opsPath)
	if err != nil {
		fatal(err)
	}

	table := guard.NewRuleTable()
	rulesPath := resolveRulesPath(cfg.Store.Dir, cfg.Guardrail.RulesFile)
	if _, err := os.Stat(rulesPath); err == nil {
		if err := table.LoadFile(rulesPath); err != nil {
			fatal(err)
		}
	}

	bus := events.NewBus(100)
	defer bus.Close()
	journal := openJournal(cfg.Store.Dir, bus, logger)
	if journal != nil {
		defer journal.Close()
	}

	engine, err := guard.NewEngine(cfg.Guardrail, table, bus, logger)
	if err != nil {
		fatal(err)
	}

	nodes := make([]model.OperationNode, len(ops))
	for i, op := range ops {
		nodes[i] = model.NewOperationNode(i, op)
	}

	evaluate := func() bool {
		results, err := engine.CheckNodes(context.Background(), nodes, &gctx)
		if err != nil {
			fatal(err)
		}
		emit(struct {
			Results []*guard.ComprehensiveSafetyResult `yaml:"results" json:"results"`
			Metrics guard.MetricsSnapshot              `yaml:"metrics" json:"metrics"`
		}{results, engine.Metrics().Snapshot()}, asJSON)
		for _, r := range results {
			if r.EnforcementAction == guard.ActionBlock {
				return true
			}
		}
		return false
	}

	blocked := evaluate()
	if !watch {
		if blocked {
			os.Exit(2)
		}
		return
	}

	// Watch mode: hot-reload the rule file and re-evaluate the batch on every
	// reload until interrupted.
	watcher := guard.NewRuleWatcher(engine, rulesPath, bus, logger)
	if err := watcher.Start(context.Background()); err != nil {
		fatal(err)
	}
	defer watcher.Stop()

	reloads := make(chan struct{}, 1)
	bus.Subscribe(events.EventRulesReloaded, func(events.Event) {
		select {
		case reloads <- struct{}{}:
		default:
		}
	})

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	logger.Printf("watching %s for rule changes", rulesPath)
	for {
		select {
		case <-reloads:
			evaluate()
		case <-sigc:
			return
		}
	}
}

func runRollback(args []string) {
	if len(args) >= 1 && args[0] == "convert" {
		runRollbackConvert(args[1:])
		return
	}

	var opsPath, reason string
	var indices []int
	asJSON := false
	for _, a := range args {
		switch {
		case a == "--json":
			asJSON = true
		case strings.HasPrefix(a, "--reason="):
			reason = strings.TrimPrefix(a, "--reason=")
		case strings.HasPrefix(a, "--indices="):
			for _, part := range strings.Split(strings.TrimPrefix(a, "--indices="), ",") {
				idx, err := strconv.Atoi(strings.TrimSpace(part))
				if err != nil {
					fatal(fmt.Errorf("bad index %q: %w", part, err))
				}
				indices = append(indices, idx)
			}
		case strings.HasPrefix(a, "--"):
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", a)
			os.Exit(1)
		default:
			opsPath = a
		}
	}
	if opsPath == "" {
		fmt.Fprintln(os.Stderr, "usage: foresight rollback <operations.yaml> [--indices=0,2] [--reason=...] [--json]")
		fmt.Fprintln(os.Stderr, "       foresight rollback convert <legacy.yaml> [--json]")
		os.Exit(1)
	}

	cfg, logger := mustConfig()
	ops, _, err := loadOperations(opsPath)
	if err != nil {
		fatal(err)
	}

	fileStore, err := store.NewFileStore(cfg.Store.Dir)
	if err != nil {
		fatal(err)
	}

	planner := rollback.NewPlanner(fileStore, logger)
	var plan *rollback.Plan
	if len(indices) > 0 {
		plan, err = planner.PlanPartial(ops, indices, reason)
	} else {
		plan, err = planner.PlanRollback(ops, reason)
	}
	if err != nil {
		fatal(err)
	}

	prober := store.FileProber{Root: cfg.Project.Root, Store: fileStore}
	analysis := rollback.AnalyzeFeasibility(plan, prober)

	emit(struct {
		Plan        *rollback.Plan               `yaml:"plan" json:"plan"`
		Feasibility rollback.FeasibilityAnalysis `yaml:"feasibility" json:"feasibility"`
	}{plan, analysis}, asJSON)
}

func runRollbackConvert(args []string) {
	var legacyPath string
	asJSON := false
	for _, a := range args {
		switch {
		case a == "--json":
			asJSON = true
		case strings.HasPrefix(a, "--"):
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", a)
			os.Exit(1)
		default:
			legacyPath = a
		}
	}
	if legacyPath == "" {
		fmt.Fprintln(os.Stderr, "usage: foresight rollback convert <legacy.yaml> [--json]")
		os.Exit(1)
	}

	data, err := os.ReadFile(legacyPath)
	if err != nil {
		fatal(err)
	}
	var desc rollback.LegacyDescription
	if err := yaml.Unmarshal(data, &desc); err != nil {
		fatal(fmt.Errorf("parse legacy description: %w", err))
	}

	plan, err := rollback.ConvertLegacy(desc)
	if err != nil {
		fatal(err)
	}
	emit(plan, asJSON)
}

func runOutcomes(args []string) {
	asJSON := false
	for _, a := range args {
		switch a {
		case "--json":
			asJSON = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: foresight outcomes [--json]\n", a)
			os.Exit(1)
		}
	}

	cfg, logger := mustConfig()
	fileStore, err := store.NewFileStore(cfg.Store.Dir)
	if err != nil {
		fatal(err)
	}
	records, skipped, err := fileStore.LoadOutcomes()
	if err != nil {
		fatal(err)
	}
	if skipped > 0 {
		logger.Printf("outcomes: skipped %d unparseable journal lines", skipped)
	}

	// Replay the persisted history through a fresh tracker so metrics,
	// patterns, and retrain suggestions match what the live pipeline saw.
	tracker, err := outcome.NewTracker(cfg.Outcome, nil, nil, logger)
	if err != nil {
		fatal(err)
	}
	for _, record := range records {
		if record.Actual == nil {
			continue
		}
		if _, err := tracker.RecordPrediction(record.OperationID, record.Prediction); err != nil {
			fatal(err)
		}
		tracker.RecordOutcome(record.OperationID, *record.Actual)
	}
	if tracker.ShouldRetrain() {
		tracker.Retrain()
	}

	emit(tracker.Insights(), asJSON)
}

func runJournal(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: foresight journal <verify|tail> [--n=N] [--json]")
		os.Exit(1)
	}

	asJSON := false
	tailCount := 20
	for _, a := range args[1:] {
		switch {
		case a == "--json":
			asJSON = true
		case strings.HasPrefix(a, "--n="):
			n, err := strconv.Atoi(strings.TrimPrefix(a, "--n="))
			if err != nil || n < 1 {
				fatal(fmt.Errorf("bad value in %s", a))
			}
			tailCount = n
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", a)
			os.Exit(1)
		}
	}

	cfg, _ := mustConfig()
	journalPath := filepath.Join(cfg.Store.Dir, "journal", "events.jsonl")

	switch args[0] {
	case "verify":
		total, valid, err := events.VerifyJournalIntegrity(journalPath)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("%s: %d entries, %d valid\n", journalPath, total, valid)
		if valid < total {
			os.Exit(2)
		}
	case "tail":
		entries, err := events.ReadEntries(journalPath)
		if err != nil {
			fatal(err)
		}
		if len(entries) > tailCount {
			entries = entries[len(entries)-tailCount:]
		}
		emit(entries, asJSON)
	default:
		fmt.Fprintf(os.Stderr, "unknown journal subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func runRules(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: foresight rules <init|list|add|remove> [options]")
		os.Exit(1)
	}

	cfg, _ := mustConfig()
	rulesPath := resolveRulesPath(cfg.Store.Dir, cfg.Guardrail.RulesFile)
	table := guard.NewRuleTable()
	if _, err := os.Stat(rulesPath); err == nil {
		if err := table.LoadFile(rulesPath); err != nil {
			fatal(err)
		}
	}

	switch args[0] {
	case "init":
		if err := os.MkdirAll(filepath.Dir(rulesPath), 0755); err != nil {
			fatal(err)
		}
		if err := table.SaveFile(rulesPath); err != nil {
			fatal(err)
		}
		fmt.Printf("initialized rule table at %s\n", rulesPath)
	case "list":
		emit(table.Rules(), false)
	case "add":
		rule := parseRuleFlags(args[1:])
		if err := table.AddRule(rule); err != nil {
			fatal(err)
		}
		if err := table.SaveFile(rulesPath); err != nil {
			fatal(err)
		}
		fmt.Printf("added rule %s\n", rule.ID)
	case "remove":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: foresight rules remove <id>")
			os.Exit(1)
		}
		if !table.RemoveRule(args[1]) {
			fatal(fmt.Errorf("no rule with id %s", args[1]))
		}
		if err := table.SaveFile(rulesPath); err != nil {
			fatal(err)
		}
		fmt.Printf("removed rule %s\n", args[1])
	default:
		fmt.Fprintf(os.Stderr, "unknown rules subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func parseRuleFlags(args []string) guard.SafetyRule {
	rule := guard.SafetyRule{Severity: guard.SeverityMedium, Enabled: true}
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "--id="):
			rule.ID = strings.TrimPrefix(a, "--id=")
		case strings.HasPrefix(a, "--description="):
			rule.Description = strings.TrimPrefix(a, "--description=")
		case strings.HasPrefix(a, "--severity="):
			rule.Severity = guard.Severity(strings.TrimPrefix(a, "--severity="))
		case strings.HasPrefix(a, "--path-regex="):
			rule.Matcher = guard.RuleMatcher{Kind: guard.MatchPathRegex, Pattern: strings.TrimPrefix(a, "--path-regex=")}
		case strings.HasPrefix(a, "--content-regex="):
			rule.Matcher = guard.RuleMatcher{Kind: guard.MatchContentRegex, Pattern: strings.TrimPrefix(a, "--content-regex=")}
		case strings.HasPrefix(a, "--extension="):
			rule.Matcher = guard.RuleMatcher{Kind: guard.MatchExtension, Extensions: strings.Split(strings.TrimPrefix(a, "--extension="), ",")}
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", a)
			os.Exit(1)
		}
	}
	if rule.ID == "" || rule.Matcher.Kind == "" {
		fmt.Fprintln(os.Stderr, "usage: foresight rules add --id=ID --severity=LEVEL (--path-regex=RE | --content-regex=RE | --extension=EXT,...) [--description=TEXT]")
		os.Exit(1)
	}
	return rule
}

// openJournal wires an audit journal to the event bus so every decision and
// brake trip leaves a persistent trace. A nil return means auditing is off.
func openJournal(storeDir string, bus *events.Bus, logger *log.Logger) *events.Journal {
	journal, err := events.NewJournal(filepath.Join(storeDir, "journal", "events.jsonl"), 10*1024*1024)
	if err != nil {
		logger.Printf("audit journal disabled: %v", err)
		return nil
	}
	for _, eventType := range []events.EventType{events.EventDecisionMade, events.EventBrakeTripped} {
		bus.Subscribe(eventType, func(e events.Event) {
			if err := journal.Record(string(e.Type), e.Data); err != nil {
				logger.Printf("audit journal write: %v", err)
			}
		})
	}
	return journal
}

func resolveRulesPath(storeDir, rulesFile string) string {
	if filepath.IsAbs(rulesFile) {
		return rulesFile
	}
	// The default ".foresight/rules.yaml" is relative to the repo root, which
	// is the store dir's parent.
	if strings.HasPrefix(rulesFile, ".foresight/") {
		return filepath.Join(storeDir, strings.TrimPrefix(rulesFile, ".foresight/"))
	}
	return filepath.Join(storeDir, rulesFile)
}

func mustConfig() (model.Config, *log.Logger) {
	cfg, err := loadConfig(findForesightDir())
	if err != nil {
		fatal(err)
	}
	return cfg, newLogger(cfg)
}

func parseFloatFlag(flag string) float64 {
	parts := strings.SplitN(flag, "=", 2)
	v, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		fatal(fmt.Errorf("bad value in %s: %w", flag, err))
	}
	return v
}

func emit(v interface{}, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			fatal(err)
		}
		return
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		fatal(err)
	}
	os.Stdout.Write(data)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "foresight: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `foresight %s: planning and safety analysis for proposed file operations

Usage: foresight <command> [options]

Planning:
  plan <operations.yaml> [--json]        Build the dependency graph and execution plan
  check <operations.yaml> [flags]        Run the safety guardrail engine over each operation
  rollback <operations.yaml> [flags]     Build an inverse plan with feasibility analysis
  rollback convert <legacy.yaml>         Convert a legacy rollback description

History:
  outcomes [--json]                      Show accuracy metrics and learning insights
  journal verify                         Check the audit journal's entry checksums
  journal tail [--n=N] [--json]          Show the latest audit journal entries

Rules:
  rules init                             Create an empty rule table
  rules list                             Show the active safety rules
  rules add [flags]                      Add a rule (see 'rules add' usage)
  rules remove <id>                      Delete a rule

Other:
  version                                Print version
  help                                   Show this help
`, version)
}
