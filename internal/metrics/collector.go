package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linklogger/internal/models"
)

// Probe sources.
const (
	SourceCheck = "check"
	SourceCPA   = "cpa"
)

// Collector owns the Prometheus instruments of one service instance.
type Collector struct {
	registry *prometheus.Registry

	probes          *prometheus.CounterVec
	probeLatency    *prometheus.HistogramVec
	qualifyingClick prometheus.Counter
	conversions     prometheus.Counter
	externalStatus  prometheus.Counter
}

// NewCollector registers the instruments on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		probes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linklogger_probes_total",
			Help: "The total number of link probes, by source and outcome.",
		}, []string{"source", "outcome"}),
		probeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linklogger_probe_latency_seconds",
			Help:    "Latency of link probes that produced an HTTP response.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"source"}),
		qualifyingClick: factory.NewCounter(prometheus.CounterOpts{
			Name: "linklogger_qualifying_clicks_total",
			Help: "The total number of probes answered with 200 in under two seconds.",
		}),
		conversions: factory.NewCounter(prometheus.CounterOpts{
			Name: "linklogger_conversion_notices_total",
			Help: "The total number of possible conversion notices emitted.",
		}),
		externalStatus: factory.NewCounter(prometheus.CounterOpts{
			Name: "linklogger_external_status_total",
			Help: "The total number of externally reported status messages.",
		}),
	}
}

// ObserveProbe counts a probe result. Only 200 responses count as success.
func (c *Collector) ObserveProbe(source string, result models.ProbeResult) {
	if c == nil {
		return
	}
	outcome := "error"
	if result.OK() && result.StatusCode == http.StatusOK {
		outcome = "success"
	}
	c.probes.WithLabelValues(source, outcome).Inc()
	if result.Latency != nil {
		c.probeLatency.WithLabelValues(source).Observe(*result.Latency)
	}
}

// IncQualifyingClick counts a qualifying click row.
func (c *Collector) IncQualifyingClick() {
	if c == nil {
		return
	}
	c.qualifyingClick.Inc()
}

// IncConversionNotice counts a possible conversion notice.
func (c *Collector) IncConversionNotice() {
	if c == nil {
		return
	}
	c.conversions.Inc()
}

// IncExternalStatus counts a message received on the status endpoint.
func (c *Collector) IncExternalStatus() {
	if c == nil {
		return
	}
	c.externalStatus.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
