package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/msageha/foresight/internal/model"
)

// findForesightDir searches for .foresight/ in the current directory and
// ancestors.
func findForesightDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".foresight")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadConfig layers defaults, foresight.yaml, a .env file next to it, and
// FORESIGHT_* environment variables, in that order of precedence.
func loadConfig(foresightDir string) (model.Config, error) {
	cfg := model.DefaultConfig()

	if foresightDir != "" {
		// Missing .env is fine. Plain Load keeps variables already set in the
		// shell authoritative; Overload would clobber them.
		_ = godotenv.Load(filepath.Join(foresightDir, ".env"))

		data, err := os.ReadFile(filepath.Join(foresightDir, "foresight.yaml"))
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse foresight.yaml: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read foresight.yaml: %w", err)
		}
		if cfg.Store.Dir == "" || cfg.Store.Dir == ".foresight" {
			cfg.Store.Dir = foresightDir
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *model.Config) {
	if v := os.Getenv("FORESIGHT_ENFORCEMENT_LEVEL"); v != "" {
		cfg.Guardrail.EnforcementLevel = v
	}
	if v := os.Getenv("FORESIGHT_RULES_FILE"); v != "" {
		cfg.Guardrail.RulesFile = v
	}
	if v := os.Getenv("FORESIGHT_STORE_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("FORESIGHT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FORESIGHT_MAX_AUTO_RISK"); v != "" {
		if score, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Guardrail.MaxAutoRiskScore = score
		}
	}
}

func newLogger(cfg model.Config) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		if f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			out = f
		}
	}
	if cfg.Logging.Level == "quiet" {
		out = io.Discard
	}
	return log.New(out, "foresight ", log.LstdFlags)
}

// operationsFile is the on-disk shape of a proposed operation batch.
type operationsFile struct {
	SchemaVersion int               `yaml:"schema_version"`
	Operations    []operationsEntry `yaml:"operations"`
}

type operationsEntry struct {
	model.FileOperation `yaml:",inline"`
	DependsOn           []int `yaml:"depends_on,omitempty"`
}

// loadOperations reads the batch file and returns the operation list plus the
// declared dependency indices keyed by operation position.
func loadOperations(path string) ([]model.FileOperation, map[int][]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read operations file: %w", err)
	}

	var file operationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse operations file %s: %w", path, err)
	}

	ops := make([]model.FileOperation, 0, len(file.Operations))
	declared := make(map[int][]int)
	for i, entry := range file.Operations {
		if err := entry.FileOperation.Validate(); err != nil {
			return nil, nil, fmt.Errorf("operation %d: %w", i, err)
		}
		ops = append(ops, entry.FileOperation)
		if len(entry.DependsOn) > 0 {
			declared[i] = entry.DependsOn
		}
	}
	return ops, declared, nil
}
