package monitor

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"linklogger/internal/metrics"
	"linklogger/internal/models"
	"linklogger/internal/storage"
)

const (
	// ExternalTag is the URL column of status messages posted by other systems.
	ExternalTag = "EXTERNAL"
	// DefaultExternalMessage stands in for a status post without a message.
	DefaultExternalMessage = "no message"

	externalStatusColumn = "EXTERNAL_STATUS"
)

// Deps groups the stores and collaborators a Monitor writes to.
type Deps struct {
	Prober   *Prober
	Stats    *storage.StatsStore
	Activity *storage.ActivityLog
	// RawLog receives every /check result.
	RawLog *storage.CSVJournal
	// External receives messages posted to the status endpoint.
	External *storage.CSVJournal
	Clicks   *ClickRecorder
	CPA      *CPATask
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

// Monitor checks the registered links on demand and keeps the results.
type Monitor struct {
	links    []string
	prober   *Prober
	stats    *storage.StatsStore
	activity *storage.ActivityLog
	rawLog   *storage.CSVJournal
	external *storage.CSVJournal
	clicks   *ClickRecorder
	cpa      *CPATask
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a monitor for the given links.
func New(links []string, deps Deps) *Monitor {
	registry := make([]string, len(links))
	copy(registry, links)

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prober := deps.Prober
	if prober == nil {
		prober = NewProber(nil)
	}

	return &Monitor{
		links:    registry,
		prober:   prober,
		stats:    deps.Stats,
		activity: deps.Activity,
		rawLog:   deps.RawLog,
		external: deps.External,
		clicks:   deps.Clicks,
		cpa:      deps.CPA,
		metrics:  deps.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Links returns the registered links.
func (m *Monitor) Links() []string {
	out := make([]string, len(m.links))
	copy(out, m.links)
	return out
}

// RunOnce probes every link sequentially, then stores each result in the raw
// CSV journal, the activity log, the stats file and the click recorder.
// All rows of a round share one timestamp.
func (m *Monitor) RunOnce(ctx context.Context) []models.ProbeResult {
	runID := uuid.New().String()
	logger := m.logger.With(slog.String("run_id", runID))

	results := make([]models.ProbeResult, 0, len(m.links))
	for _, link := range m.links {
		result := m.prober.Probe(ctx, link)
		if result.Err != nil {
			logger.Debug("probe failed", slog.String("url", link), slog.String("error", result.Err.Error()))
		}
		results = append(results, result)
	}

	now := m.now().Format(models.TimestampLayout)
	for _, result := range results {
		m.metrics.ObserveProbe(metrics.SourceCheck, result)

		if err := m.rawLog.Append([]string{now, result.URL, result.Status(), rawLatency(result.Latency)}); err != nil {
			logger.Warn("append raw click log", slog.String("url", result.URL), slog.String("error", err.Error()))
		}
		m.activity.Record(now, result.URL, result.Status(), result.Latency)
		if err := m.stats.Update(result.URL, result.StatusCode); err != nil {
			logger.Error("update link stats", slog.String("url", result.URL), slog.String("error", err.Error()))
		}
		m.clicks.Record(now, result.URL, result.StatusCode, result.Latency)
	}

	logger.Info("check completed", slog.Int("links", len(results)))
	return results
}

// RunCPA performs one CPA round.
func (m *Monitor) RunCPA(ctx context.Context) string {
	return m.cpa.Run(ctx)
}

// ReportStatus journals a message posted by an external system.
func (m *Monitor) ReportStatus(msg string) string {
	now := m.now().Format(models.TimestampLayout)
	if err := m.external.Append([]string{now, externalStatusColumn, msg}); err != nil {
		m.logger.Warn("append external status", slog.String("error", err.Error()))
	}
	m.metrics.IncExternalStatus()
	return m.activity.Record(now, ExternalTag, msg, nil)
}

// Stats returns the persisted counters.
func (m *Monitor) Stats() models.LinkStats {
	return m.stats.Load()
}

// RecentActivity returns up to n in-memory activity entries.
func (m *Monitor) RecentActivity(n int) []string {
	return m.activity.Tail(n)
}

// LogTail returns the last n lines of the durable activity log.
func (m *Monitor) LogTail(n int) ([]string, error) {
	return m.activity.ReadFileTail(n)
}

func rawLatency(latency *float64) string {
	if latency == nil {
		return ""
	}
	return strconv.FormatFloat(*latency, 'f', -1, 64)
}
