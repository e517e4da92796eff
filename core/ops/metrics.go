// Package ops serves the health and metrics endpoints of the bot process.
package ops

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/todobot/core/buildinfo"
)

// Collector records bot activity as Prometheus metrics.
type Collector struct {
	reg prometheus.Registerer

	handled       *prometheus.CounterVec
	handleLatency *prometheus.HistogramVec
	flowOutcomes  *prometheus.CounterVec
}

// NewCollector registers the bot metrics on reg. sessions, when non-nil,
// is exported as the number of stored conversation sessions.
func NewCollector(reg prometheus.Registerer, sessions func() int) *Collector {
	c := &Collector{
		reg: reg,
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todobot_updates_handled_total",
			Help: "Routed updates by handler and status.",
		}, []string{"handler", "status"}),
		handleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todobot_handler_duration_seconds",
			Help:    "Handler latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler"}),
		flowOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todobot_flow_events_total",
			Help: "Conversation events by flow and outcome.",
		}, []string{"flow", "outcome"}),
	}
	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "todobot_build_info",
		Help:        "Build metadata of the running binary.",
		ConstLabels: prometheus.Labels{"version": buildinfo.Version, "commit": buildinfo.Commit},
	})
	buildInfo.Set(1)
	reg.MustRegister(c.handled, c.handleLatency, c.flowOutcomes, buildInfo)

	if sessions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "todobot_sessions",
			Help: "Conversation sessions held in memory.",
		}, func() float64 { return float64(sessions()) }))
	}
	return c
}

// RecordHandled counts one routed update.
func (c *Collector) RecordHandled(handler, status string, took time.Duration) {
	c.handled.WithLabelValues(handler, status).Inc()
	c.handleLatency.WithLabelValues(handler).Observe(took.Seconds())
}

// RecordFlow counts one conversation event.
func (c *Collector) RecordFlow(flow, outcome string) {
	c.flowOutcomes.WithLabelValues(flow, outcome).Inc()
}

// ObserveSender exports the outbound delivery counters reported by stats.
// It must be called at most once per Collector.
func (c *Collector) ObserveSender(stats func() (sent, failed uint64)) {
	c.reg.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "todobot_outbound_sent_total",
			Help: "Bot API calls delivered by the sender.",
		}, func() float64 { sent, _ := stats(); return float64(sent) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "todobot_outbound_failed_total",
			Help: "Bot API calls dropped after retries.",
		}, func() float64 { _, failed := stats(); return float64(failed) }),
	)
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
