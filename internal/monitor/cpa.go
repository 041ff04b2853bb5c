package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"linklogger/internal/metrics"
	"linklogger/internal/models"
	"linklogger/internal/storage"
)

// CPATag is the URL column of bookkeeping entries written by the CPA task.
const CPATag = "CPA"

// LoadCPALinks reads the JSON array of candidate links.
func LoadCPALinks(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cpa links: %w", err)
	}
	var links []string
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, fmt.Errorf("parse cpa links: %w", err)
	}
	return links, nil
}

// CPATask probes one link picked at random from an external list.
type CPATask struct {
	path     string
	prober   *Prober
	activity *storage.ActivityLog
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time
	pick     func(n int) int
}

// NewCPATask wires a task reading its candidates from path on every run.
func NewCPATask(path string, prober *Prober, activity *storage.ActivityLog, collector *metrics.Collector, logger *slog.Logger) *CPATask {
	if logger == nil {
		logger = slog.Default()
	}
	return &CPATask{
		path:     path,
		prober:   prober,
		activity: activity,
		metrics:  collector,
		logger:   logger,
		now:      time.Now,
		pick:     rand.IntN,
	}
}

// Run performs one CPA round and returns the activity entry it wrote.
func (t *CPATask) Run(ctx context.Context) string {
	links, err := LoadCPALinks(t.path)
	if err != nil {
		t.logger.Warn("cpa links unavailable", slog.String("path", t.path), slog.String("error", err.Error()))
		return t.activity.Record(t.timestamp(), CPATag, "READ ERROR: "+err.Error(), nil)
	}
	if len(links) == 0 {
		return t.activity.Record(t.timestamp(), CPATag, "NO LINKS", nil)
	}

	url := links[t.pick(len(links))]
	result := t.prober.Probe(ctx, url)
	t.metrics.ObserveProbe(metrics.SourceCPA, result)

	if !result.OK() {
		t.logger.Debug("cpa probe failed", slog.String("url", url), slog.String("error", result.Err.Error()))
		return t.activity.Record(t.timestamp(), url, models.StatusError+": "+result.Err.Error(), nil)
	}
	t.logger.Debug("cpa probe", slog.String("url", url), slog.Int("status", result.StatusCode))
	return t.activity.Record(t.timestamp(), url, strconv.Itoa(result.StatusCode), result.Latency)
}

func (t *CPATask) timestamp() string {
	return t.now().Format(models.TimestampLayout)
}
