package fyaml

import (
	"os"
	"path/filepath"
	"testing"

	yamlv3 "gopkg.in/yaml.v3"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func TestAtomicWrite_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	if err := AtomicWrite(path, sample{Name: "rules", Count: 3}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected readable file, got %v", err)
	}
	var got sample
	if err := yamlv3.Unmarshal(data, &got); err != nil {
		t.Fatalf("expected valid yaml, got %v", err)
	}
	if got.Name != "rules" || got.Count != 3 {
		t.Errorf("round trip lost data: %+v", got)
	}
}

func TestAtomicWrite_CreatesBackupOfPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	if err := AtomicWrite(path, sample{Name: "v1"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := os.Stat(path + ".bak"); !os.IsNotExist(err) {
		t.Fatal("first write must not create a backup")
	}

	if err := AtomicWrite(path, sample{Name: "v2"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	bak, err := os.ReadFile(path + ".bak")
	if err != nil {
		t.Fatalf("expected backup after second write, got %v", err)
	}
	var got sample
	if err := yamlv3.Unmarshal(bak, &got); err != nil {
		t.Fatalf("expected valid yaml backup, got %v", err)
	}
	if got.Name != "v1" {
		t.Errorf("backup should hold the previous content, got %+v", got)
	}
}

func TestAtomicWrite_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	if err := AtomicWrite(path, sample{Name: "x"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, e := range entries {
		if e.Name() != "state.yaml" {
			t.Errorf("unexpected leftover file: %s", e.Name())
		}
	}
}

func TestAtomicWriteRaw_RejectsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	if err := AtomicWriteRaw(path, []byte("key: [unclosed")); err == nil {
		t.Fatal("expected validation error for malformed yaml")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("failed write must not create the target file")
	}
}

func TestRecoverCorruptedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yaml")

	if err := AtomicWrite(path, sample{Name: "good"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := AtomicWrite(path, sample{Name: "newer"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Corrupt the live file; the .bak still holds the previous version.
	if err := os.WriteFile(path, []byte("{{{{not yaml"), 0644); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := RecoverCorruptedFile(dir, path); err != nil {
		t.Fatalf("expected recovery to succeed, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected restored file, got %v", err)
	}
	var got sample
	if err := yamlv3.Unmarshal(data, &got); err != nil {
		t.Fatalf("expected valid yaml after restore, got %v", err)
	}
	if got.Name != "good" {
		t.Errorf("expected backup content restored, got %+v", got)
	}

	// The corrupted version is preserved under quarantine.
	entries, err := os.ReadDir(filepath.Join(dir, "quarantine"))
	if err != nil || len(entries) != 1 {
		t.Errorf("expected one quarantined file, got %v err=%v", entries, err)
	}
}

func TestRestoreFromBackup_NoBackup(t *testing.T) {
	dir := t.TempDir()
	if err := RestoreFromBackup(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error when no backup exists")
	}
}
