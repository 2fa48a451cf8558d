package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// Default maximum journal file size (100MB)
	DefaultMaxJournalSize = 100 * 1024 * 1024
	// Journal file extension
	JournalFileExtension = ".jsonl"
	// Archive directory name
	ArchiveDir = "archive"
)

// JournalEntry represents a single decision-journal entry.
type JournalEntry struct {
	Timestamp   time.Time              `json:"timestamp"`
	EventType   string                 `json:"event_type"`
	OperationID string                 `json:"operation_id,omitempty"`
	PlanID      string                 `json:"plan_id,omitempty"`
	RuleID      string                 `json:"rule_id,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Checksum    string                 `json:"checksum,omitempty"`
}

// Journal provides append-only jsonl logging of enforcement decisions,
// rollback plans, and resolved outcomes, with size-based rotation.
type Journal struct {
	mu              sync.Mutex
	file            *os.File
	currentSize     int64
	maxSize         int64
	journalPath     string
	enableChecksum  bool
	rotationCounter int
}

// NewJournal opens (or creates) the journal file at journalPath.
func NewJournal(journalPath string, maxSize int64) (*Journal, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxJournalSize
	}

	j := &Journal{
		journalPath: journalPath,
		maxSize:     maxSize,
	}

	dir := filepath.Dir(journalPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	if err := j.openFile(); err != nil {
		return nil, err
	}

	return j, nil
}

func (j *Journal) openFile() error {
	file, err := os.OpenFile(j.journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat journal file: %w", err)
	}

	j.file = file
	j.currentSize = stat.Size()
	return nil
}

// Record appends an entry for the given event type, lifting well-known ids out
// of the details map.
func (j *Journal) Record(eventType string, details map[string]interface{}) error {
	entry := JournalEntry{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Details:   details,
	}

	if opID, ok := details["operation_id"].(string); ok {
		entry.OperationID = opID
	}
	if planID, ok := details["plan_id"].(string); ok {
		entry.PlanID = planID
	}
	if ruleID, ok := details["rule_id"].(string); ok {
		entry.RuleID = ruleID
	}

	return j.WriteEntry(&entry)
}

// WriteEntry appends a structured entry to the journal file.
func (j *Journal) WriteEntry(entry *JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.enableChecksum {
		entry.Checksum = j.calculateChecksum(entry)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	data = append(data, '\n')

	if j.currentSize+int64(len(data)) > j.maxSize {
		if err := j.rotate(); err != nil {
			return fmt.Errorf("failed to rotate journal: %w", err)
		}
	}

	n, err := j.file.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}

	// Sync to disk for durability
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal file: %w", err)
	}

	j.currentSize += int64(n)
	return nil
}

// rotate archives the current journal and starts a fresh one.
func (j *Journal) rotate() error {
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close current journal file: %w", err)
	}

	archiveDir := filepath.Join(filepath.Dir(j.journalPath), ArchiveDir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	j.rotationCounter++
	baseName := filepath.Base(j.journalPath)
	archiveName := fmt.Sprintf("%s.%s.%d%s",
		baseName[:len(baseName)-len(JournalFileExtension)],
		timestamp,
		j.rotationCounter,
		JournalFileExtension)
	archivePath := filepath.Join(archiveDir, archiveName)

	if err := os.Rename(j.journalPath, archivePath); err != nil {
		return fmt.Errorf("failed to archive journal file: %w", err)
	}

	if err := j.openFile(); err != nil {
		return fmt.Errorf("failed to open new journal file: %w", err)
	}

	return nil
}

func (j *Journal) calculateChecksum(entry *JournalEntry) string {
	entryCopy := *entry
	entryCopy.Checksum = ""

	data, err := json.Marshal(entryCopy)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("%x", simpleHash(data))
}

// simpleHash provides a basic djb2 hash for entry checksums.
func simpleHash(data []byte) uint64 {
	var hash uint64 = 5381
	for _, b := range data {
		hash = ((hash << 5) + hash) + uint64(b)
	}
	return hash
}

// EnableChecksum turns on checksum calculation for new entries.
func (j *Journal) EnableChecksum(enable bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.enableChecksum = enable
}

// VerifyJournalIntegrity reads a journal file and returns (total, valid)
// entry counts. Entries without checksums count as valid.
func VerifyJournalIntegrity(journalPath string) (int, int, error) {
	file, err := os.Open(journalPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open journal file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	totalEntries := 0
	validEntries := 0

	for decoder.More() {
		var entry JournalEntry
		if err := decoder.Decode(&entry); err != nil {
			// Skip malformed entries
			continue
		}

		totalEntries++

		if entry.Checksum != "" {
			expectedChecksum := entry.Checksum
			entry.Checksum = ""

			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}

			if fmt.Sprintf("%x", simpleHash(data)) == expectedChecksum {
				validEntries++
			}
		} else {
			validEntries++
		}
	}

	return totalEntries, validEntries, nil
}

// ReadEntries loads every parseable entry from a journal file, oldest first.
func ReadEntries(journalPath string) ([]JournalEntry, error) {
	file, err := os.Open(journalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	defer file.Close()

	var entries []JournalEntry
	decoder := json.NewDecoder(file)
	for decoder.More() {
		var entry JournalEntry
		if err := decoder.Decode(&entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close syncs and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file != nil {
		if err := j.file.Sync(); err != nil {
			return err
		}
		return j.file.Close()
	}
	return nil
}

// Path returns the active journal file path.
func (j *Journal) Path() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.journalPath
}

// Size returns the current size of the journal file.
func (j *Journal) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.currentSize
}
