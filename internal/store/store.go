// Package store is the file-backed history store: resolved outcome records as
// an append-only jsonl journal, file backups for rollback content recovery,
// and existence probes for feasibility checks.
package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/msageha/foresight/internal/lock"
	"github.com/msageha/foresight/internal/outcome"
)

const (
	outcomesFile = "outcomes.jsonl"
	backupsDir   = "backups"
	lockFile     = "store.lock"
)

// FileStore keeps everything under one directory, typically .foresight/.
// In-process writers serialize on a keyed mutex; cross-process exclusion uses
// an advisory flock taken per append, not held across calls.
type FileStore struct {
	dir     string
	mutexes *lock.MutexMap
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, backupsDir), 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{
		dir:     dir,
		mutexes: lock.NewMutexMap(),
	}, nil
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string { return s.dir }

// SaveOutcome appends one resolved record to the outcomes journal.
func (s *FileStore) SaveOutcome(record outcome.TrackedOutcome) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal outcome %s: %w", record.OutcomeID, err)
	}

	s.mutexes.Lock(outcomesFile)
	defer s.mutexes.Unlock(outcomesFile)

	fl := lock.NewFileLock(filepath.Join(s.dir, lockFile))
	if err := fl.TryLock(); err != nil {
		return fmt.Errorf("lock outcome journal: %w", err)
	}
	defer fl.Unlock()

	f, err := os.OpenFile(filepath.Join(s.dir, outcomesFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open outcome journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append outcome %s: %w", record.OutcomeID, err)
	}
	return f.Sync()
}

// LoadOutcomes reads the full journal. Unparseable lines are skipped and
// counted rather than failing the whole load.
func (s *FileStore) LoadOutcomes() ([]outcome.TrackedOutcome, int, error) {
	f, err := os.Open(filepath.Join(s.dir, outcomesFile))
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open outcome journal: %w", err)
	}
	defer f.Close()

	var records []outcome.TrackedOutcome
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record outcome.TrackedOutcome
		if err := json.Unmarshal(line, &record); err != nil {
			skipped++
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("read outcome journal: %w", err)
	}
	return records, skipped, nil
}

// SaveBackup snapshots a file's pre-mutation content, keyed by its path.
func (s *FileStore) SaveBackup(path, content string) error {
	name := backupName(path)

	s.mutexes.Lock(name)
	defer s.mutexes.Unlock(name)

	full := filepath.Join(s.dir, backupsDir, name)
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("write backup for %s: %w", path, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize backup for %s: %w", path, err)
	}
	return nil
}

// OriginalContent returns the backed-up content for a path, if any. Satisfies
// the rollback planner's content store.
func (s *FileStore) OriginalContent(path string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, backupsDir, backupName(path)))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// BackupExists reports whether a snapshot exists for the path.
func (s *FileStore) BackupExists(path string) bool {
	_, err := os.Stat(filepath.Join(s.dir, backupsDir, backupName(path)))
	return err == nil
}

// backupName keys backups by path hash so arbitrary paths map to flat file
// names.
func backupName(path string) string {
	sum := sha256.Sum256([]byte(filepath.ToSlash(path)))
	return hex.EncodeToString(sum[:16]) + ".bak"
}

// FileProber answers rollback feasibility probes against the real
// filesystem, resolving relative paths under the repository root.
type FileProber struct {
	Root  string
	Store *FileStore
}

func (p FileProber) TargetExists(path string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.Root, path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// BackupExists accepts either a store-managed snapshot key or a literal
// backup file path, as legacy descriptions carry the latter.
func (p FileProber) BackupExists(path string) bool {
	if p.Store != nil && p.Store.BackupExists(path) {
		return true
	}
	return p.TargetExists(path)
}
