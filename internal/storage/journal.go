package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CSVJournal appends rows to a header-less CSV file.
type CSVJournal struct {
	mu   sync.Mutex
	path string
}

// NewCSVJournal prepares a journal that appends to path.
func NewCSVJournal(path string) (*CSVJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	return &CSVJournal{path: path}, nil
}

// Path returns the backing file.
func (j *CSVJournal) Path() string {
	return j.path
}

// Append writes the rows in order and flushes them to disk.
func (j *CSVJournal) Append(rows ...[]string) error {
	if len(rows) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(j.path), err)
	}

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(j.path), err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(j.path), err)
	}
	return nil
}
