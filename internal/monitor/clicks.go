package monitor

import (
	"log/slog"
	"net/http"
	"strconv"

	"linklogger/internal/metrics"
	"linklogger/internal/storage"
)

const (
	// MaxQualifyingLatency is the exclusive latency bound of a qualifying click, in seconds.
	MaxQualifyingLatency = 2.0
	// ConversionThreshold is the success count from which a conversion notice is emitted.
	ConversionThreshold = 5
)

// Qualifies reports whether a probe counts as a valid click.
func Qualifies(status int, latency *float64) bool {
	return status == http.StatusOK && latency != nil && *latency < MaxQualifyingLatency
}

// ClickRecorder journals qualifying clicks and flags links that look converted.
type ClickRecorder struct {
	journal *storage.CSVJournal
	stats   *storage.StatsStore
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewClickRecorder wires a recorder; metrics may be nil.
func NewClickRecorder(journal *storage.CSVJournal, stats *storage.StatsStore, collector *metrics.Collector, logger *slog.Logger) *ClickRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClickRecorder{journal: journal, stats: stats, metrics: collector, logger: logger}
}

// Record writes a row when the probe qualifies and reports whether it did.
// Every qualifying click of a link with enough successes emits a notice.
func (c *ClickRecorder) Record(timestamp, url string, status int, latency *float64) bool {
	if !Qualifies(status, latency) {
		return false
	}

	row := []string{timestamp, url, strconv.Itoa(status), strconv.FormatFloat(*latency, 'f', 2, 64)}
	if err := c.journal.Append(row); err != nil {
		c.logger.Warn("record qualifying click", slog.String("url", url), slog.String("error", err.Error()))
	}
	c.metrics.IncQualifyingClick()

	counter, _ := c.stats.Get(url)
	if counter.Success >= ConversionThreshold {
		c.logger.Info("possible conversion", slog.String("url", url), slog.Int("success", counter.Success))
		c.metrics.IncConversionNotice()
	}
	return true
}
