package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"linklogger/internal/models"
)

// StatsStore persists per-link success/error counters to a JSON file.
// Every Update reloads and rewrites the whole file.
type StatsStore struct {
	mu     sync.Mutex
	path   string
	links  []string
	logger *slog.Logger
}

// NewStatsStore creates a store backed by path. links seeds the mapping
// returned while the file does not exist yet.
func NewStatsStore(path string, links []string, logger *slog.Logger) (*StatsStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	seed := make([]string, len(links))
	copy(seed, links)
	return &StatsStore{path: path, links: seed, logger: logger}, nil
}

// Load reads the mapping from disk. A missing or unreadable file yields
// zeroed counters for the configured links.
func (s *StatsStore) Load() models.LinkStats {
	stats, err := s.read()
	if err != nil {
		s.logger.Warn("stats file unusable, starting from zero", slog.String("path", s.path), slog.String("error", err.Error()))
		return s.initial()
	}
	if stats == nil {
		return s.initial()
	}
	return stats
}

// Save overwrites the file with the full mapping.
func (s *StatsStore) Save(stats models.LinkStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(stats)
}

// Update increments the success counter of url when status is 200 and the
// error counter otherwise, then saves the mapping.
func (s *StatsStore) Update(url string, status int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.Load()
	counter := stats[url]
	if status == 200 {
		counter.Success++
	} else {
		counter.Error++
	}
	stats[url] = counter
	return s.persistLocked(stats)
}

// Get returns the counters recorded for url.
func (s *StatsStore) Get(url string) (models.Counter, bool) {
	counter, ok := s.Load()[url]
	return counter, ok
}

func (s *StatsStore) initial() models.LinkStats {
	stats := make(models.LinkStats, len(s.links))
	for _, link := range s.links {
		stats[link] = models.Counter{}
	}
	return stats
}

// read returns nil, nil when the file does not exist or holds a JSON null.
func (s *StatsStore) read() (models.LinkStats, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read stats: %w", err)
	}

	var stats models.LinkStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("parse stats: %w", err)
	}
	return stats, nil
}

func (s *StatsStore) persistLocked(stats models.LinkStats) error {
	data, err := MarshalStats(stats)
	if err != nil {
		return err
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp stats: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace stats file: %w", err)
	}
	return nil
}

// MarshalStats renders the mapping as pretty-printed JSON.
func MarshalStats(stats models.LinkStats) ([]byte, error) {
	if stats == nil {
		stats = models.LinkStats{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return nil, fmt.Errorf("encode stats: %w", err)
	}
	return buf.Bytes(), nil
}
