// Package state persists which messages a run has already routed so an
// interrupted extraction can resume without emitting duplicates.
package state

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Tracker answers whether a message hash was already routed in a
// previous run and records newly routed ones.
type Tracker interface {
	Seen(hash string) bool
	Mark(hash, outputName string) error
	Count() int
}

// MemoryTracker keeps routed hashes for the lifetime of one process.
// Used for dry runs, where nothing may touch the disk.
type MemoryTracker struct {
	mu     sync.RWMutex
	routed map[string]string
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{routed: make(map[string]string)}
}

func (m *MemoryTracker) Seen(hash string) bool {
	if hash == "" {
		return false
	}
	m.mu.RLock()
	_, ok := m.routed[hash]
	m.mu.RUnlock()
	return ok
}

func (m *MemoryTracker) Mark(hash, outputName string) error {
	if hash == "" {
		return nil
	}
	m.mu.Lock()
	m.routed[hash] = outputName
	m.mu.Unlock()
	return nil
}

func (m *MemoryTracker) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.routed)
}

// FileTracker appends one JSON line per routed message. Lines are
// flushed per message so a kill mid-run loses at most the in-flight
// record.
type FileTracker struct {
	*MemoryTracker
	path    string
	file    *os.File
	writer  *bufio.Writer
	writeMu sync.Mutex
}

type routedRecord struct {
	Hash       string `json:"hash"`
	OutputName string `json:"output_name"`
}

func NewFileTracker(stateDir string) (*FileTracker, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, fmt.Errorf("state directory is empty")
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	tracker := &FileTracker{
		MemoryTracker: NewMemoryTracker(),
		path:          filepath.Join(stateDir, "routed.jsonl"),
	}
	if err := tracker.load(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(tracker.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open state file for append: %w", err)
	}
	tracker.file = file
	tracker.writer = bufio.NewWriter(file)
	return tracker, nil
}

func (f *FileTracker) load() error {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for line := 1; scanner.Scan(); line++ {
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}

		var record routedRecord
		if err := json.Unmarshal(text, &record); err != nil {
			return fmt.Errorf("parse state line %d: %w", line, err)
		}
		if record.Hash == "" {
			continue
		}
		f.MemoryTracker.Mark(record.Hash, record.OutputName)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read state file: %w", err)
	}
	return nil
}

func (f *FileTracker) Mark(hash, outputName string) error {
	if hash == "" {
		return nil
	}
	if f.Seen(hash) {
		return nil
	}
	if err := f.MemoryTracker.Mark(hash, outputName); err != nil {
		return err
	}

	data, err := json.Marshal(routedRecord{Hash: hash, OutputName: outputName})
	if err != nil {
		return fmt.Errorf("encode state record: %w", err)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if _, err := f.writer.Write(data); err != nil {
		return fmt.Errorf("write state record: %w", err)
	}
	if err := f.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("flush state file: %w", err)
	}
	return nil
}

// Close flushes and closes the state file.
func (f *FileTracker) Close() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	if f.writer != nil {
		if err := f.writer.Flush(); err != nil {
			f.file.Close()
			return fmt.Errorf("flush state file: %w", err)
		}
	}
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}
