package model

import (
	"testing"
	"time"
)

func TestFileOperation_Validate(t *testing.T) {
	old := "pre"
	tests := []struct {
		name    string
		op      FileOperation
		wantErr bool
	}{
		{"create", NewCreate("a.txt", "x"), false},
		{"update without pre-image", NewUpdate("a.txt", nil, "y"), false},
		{"update with pre-image", NewUpdate("a.txt", &old, "y"), false},
		{"append", NewAppend("log.txt", "line"), false},
		{"delete", NewDelete("a.txt"), false},
		{"rename", NewRename("a.txt", "b.txt"), false},
		{"unknown kind", FileOperation{Kind: "truncate", Path: "a.txt"}, true},
		{"create without path", FileOperation{Kind: OpCreate}, true},
		{"rename missing to", FileOperation{Kind: OpRename, From: "a.txt"}, true},
		{"rename with stray path", FileOperation{Kind: OpRename, From: "a", To: "b", Path: "c"}, true},
		{"create with stray from", FileOperation{Kind: OpCreate, Path: "a", From: "b"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileOperation_PathsAndTouches(t *testing.T) {
	rename := NewRename("old.go", "new.go")
	paths := rename.Paths()
	if len(paths) != 2 || paths[0] != "old.go" || paths[1] != "new.go" {
		t.Errorf("rename should touch both paths, got %v", paths)
	}
	if !rename.Touches("new.go") || rename.Touches("other.go") {
		t.Errorf("Touches mismatch for %v", rename)
	}

	create := NewCreate("a.txt", "x")
	if len(create.Paths()) != 1 || create.TargetPath() != "a.txt" {
		t.Errorf("single-path operation, got %v", create.Paths())
	}
	if rename.TargetPath() != "old.go" {
		t.Errorf("rename target is the source path, got %s", rename.TargetPath())
	}
}

func TestFileOperation_WriteSize(t *testing.T) {
	if got := NewCreate("a.txt", "12345").WriteSize(); got != 5 {
		t.Errorf("create write size = %d, want 5", got)
	}
	if got := NewUpdate("a.txt", nil, "1234567").WriteSize(); got != 7 {
		t.Errorf("update write size = %d, want 7", got)
	}
	if got := NewDelete("a.txt").WriteSize(); got != 0 {
		t.Errorf("delete write size = %d, want 0", got)
	}
	if got := NewRename("a", "b").WriteSize(); got != 0 {
		t.Errorf("rename write size = %d, want 0", got)
	}
}

func TestIsTestPath(t *testing.T) {
	for _, path := range []string{
		"pkg/foo_test.go",
		"tests_dir/test_helpers.py",
		"src/app.test.ts",
		"src/app.spec.js",
		"project/tests/conftest.py",
		"src/__tests__/app.js",
	} {
		if !IsTestPath(path) {
			t.Errorf("expected test path: %s", path)
		}
	}
	for _, path := range []string{"pkg/foo.go", "src/app.ts", "testdata.go"} {
		if IsTestPath(path) {
			t.Errorf("not a test path: %s", path)
		}
	}
}

func TestDeriveRiskLevel(t *testing.T) {
	tests := []struct {
		op   FileOperation
		want RiskLevel
	}{
		{NewDelete("anything.go"), RiskHigh},
		{NewCreate(".env.local", "X=1"), RiskCritical},
		{NewUpdate("config/credentials.yaml", nil, "x"), RiskCritical},
		{NewUpdate(".github/workflows/ci.yml", nil, "x"), RiskMedium},
		{NewCreate("db/migrations/0001_init.sql", "x"), RiskMedium},
		{NewRename("a.go", "b.go"), RiskMedium},
		{NewUpdate("go.mod", nil, "x"), RiskMedium},
		{NewCreate("internal/server.go", "x"), RiskLow},
	}
	for _, tt := range tests {
		if got := DeriveRiskLevel(tt.op); got != tt.want {
			t.Errorf("DeriveRiskLevel(%s) = %s, want %s", tt.op, got, tt.want)
		}
	}
}

func TestEstimateDuration(t *testing.T) {
	if got := EstimateDuration(NewDelete("a.txt")); got != 50*time.Millisecond {
		t.Errorf("delete duration = %v", got)
	}
	small := EstimateDuration(NewCreate("a.txt", "tiny"))
	large := EstimateDuration(NewCreate("b.txt", string(make([]byte, 200*1024))))
	if large <= small {
		t.Errorf("larger writes must take longer: %v vs %v", large, small)
	}
}

func TestRiskLevelOrdering(t *testing.T) {
	if !RiskCritical.AtLeast(RiskHigh) || RiskLow.AtLeast(RiskMedium) {
		t.Error("risk ordering broken")
	}
	if MaxRiskLevel(RiskMedium, RiskHigh) != RiskHigh {
		t.Error("MaxRiskLevel should pick the severer level")
	}
	if MaxRiskLevel(RiskCritical, RiskLow) != RiskCritical {
		t.Error("MaxRiskLevel should be order-independent")
	}
}

func TestNodeID(t *testing.T) {
	if NodeID(0) != "op_0" || NodeID(12) != "op_12" {
		t.Errorf("NodeID format changed: %s %s", NodeID(0), NodeID(12))
	}
}

func TestGenerateAndValidateID(t *testing.T) {
	for _, idType := range []IDType{IDTypeOperation, IDTypePlan, IDTypeRollback, IDTypeOutcome} {
		id, err := GenerateID(idType)
		if err != nil {
			t.Fatalf("GenerateID(%s): %v", idType, err)
		}
		if !ValidateID(id) {
			t.Errorf("generated id fails validation: %s", id)
		}
		parsed, err := ParseIDType(id)
		if err != nil || parsed != idType {
			t.Errorf("ParseIDType(%s) = %s, %v", id, parsed, err)
		}
		ts, err := ParseIDTimestamp(id)
		if err != nil {
			t.Errorf("ParseIDTimestamp(%s): %v", id, err)
		}
		if d := time.Since(ts); d < 0 || d > time.Minute {
			t.Errorf("timestamp out of range: %v", ts)
		}
	}

	if _, err := GenerateID(IDType("bogus")); err == nil {
		t.Error("unknown id type must be rejected")
	}
	for _, bad := range []string{"", "op_123", "zz_0000000000_deadbeef", "op_0000000000_nothexx!"} {
		if ValidateID(bad) {
			t.Errorf("expected invalid: %s", bad)
		}
	}
}
