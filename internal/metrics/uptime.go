package metrics

import (
	"math"
	"sort"

	"linklogger/internal/models"
)

// LinkUptime summarises the recorded outcomes of a monitored link.
type LinkUptime struct {
	URL           string  `json:"url"`
	UptimePercent float64 `json:"uptime_percent"`
	TotalChecks   int     `json:"total_checks"`
	Passing       int     `json:"passing"`
	Failing       int     `json:"failing"`
}

// ComputeLinkUptime derives per-link uptime from the persisted counters,
// sorted by URL.
func ComputeLinkUptime(stats models.LinkStats) []LinkUptime {
	if len(stats) == 0 {
		return []LinkUptime{}
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]LinkUptime, 0, len(keys))
	for _, url := range keys {
		counter := stats[url]
		total := counter.Success + counter.Error
		uptime := 0.0
		if total > 0 {
			uptime = float64(counter.Success) / float64(total) * 100
		}
		results = append(results, LinkUptime{
			URL:           url,
			UptimePercent: round2(uptime),
			TotalChecks:   total,
			Passing:       counter.Success,
			Failing:       counter.Error,
		})
	}
	return results
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
