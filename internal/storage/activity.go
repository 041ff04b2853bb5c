package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultActivityCapacity bounds the in-memory activity history.
const DefaultActivityCapacity = 100

// ErrNoLog is returned by ReadFileTail when nothing has been logged yet.
var ErrNoLog = errors.New("activity log does not exist yet")

// ActivityLog keeps the most recent entries in memory and appends every
// entry to a durable text file. The two copies may differ in length.
type ActivityLog struct {
	mu       sync.Mutex
	path     string
	capacity int
	entries  []string
	logger   *slog.Logger
}

// NewActivityLog prepares a log that appends to path.
func NewActivityLog(path string, logger *slog.Logger) (*ActivityLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityLog{
		path:     path,
		capacity: DefaultActivityCapacity,
		logger:   logger,
	}, nil
}

// FormatEntry renders a single activity line. The latency suffix is only
// present when latency is non-nil.
func FormatEntry(timestamp, url, status string, latency *float64) string {
	entry := fmt.Sprintf("%s - %s - STATUS: %s", timestamp, url, status)
	if latency != nil {
		entry += fmt.Sprintf(" - LATENCY: %.2fs", *latency)
	}
	return entry
}

// Record appends an entry to memory and to the durable file, evicting the
// oldest in-memory entry once the capacity is exceeded.
func (l *ActivityLog) Record(timestamp, url, status string, latency *float64) string {
	entry := FormatEntry(timestamp, url, status, latency)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if err := l.appendLocked(entry); err != nil {
		l.logger.Error("append activity log", slog.String("path", l.path), slog.String("error", err.Error()))
	}
	if len(l.entries) > l.capacity {
		l.entries = l.entries[1:]
	}
	return entry
}

// Tail returns up to n of the most recent in-memory entries, oldest first.
func (l *ActivityLog) Tail(n int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || len(l.entries) == 0 {
		return []string{}
	}
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]string, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// Len reports how many entries are held in memory.
func (l *ActivityLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ReadFileTail returns the last n lines of the durable file.
func (l *ActivityLog) ReadFileTail(n int) ([]string, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoLog
		}
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	defer file.Close()

	var lines []string
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.TrimSpace(line))
			if n > 0 && len(lines) > n {
				lines = lines[1:]
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read activity log: %w", err)
		}
	}
	if n <= 0 {
		return []string{}, nil
	}
	return lines, nil
}

func (l *ActivityLog) appendLocked(entry string) error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(entry + "\n"); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
