// Package metrics collects Prometheus metrics and exposes them for scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements the metrics interfaces of the reset and generation
// packages.
type Collector struct {
	resetIssued      prometheus.Counter
	resetRedeemed    *prometheus.CounterVec
	generations      *prometheus.CounterVec
	generationTime   prometheus.Histogram
	fragments        prometheus.Counter
	activeGenerating prometheus.Gauge
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		resetIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cicero_reset_tokens_issued_total",
			Help: "Password reset tokens issued.",
		}),
		resetRedeemed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cicero_reset_tokens_redeemed_total",
			Help: "Password reset token redemptions by outcome.",
		}, []string{"outcome"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cicero_generations_total",
			Help: "Finished itinerary generations by outcome.",
		}, []string{"outcome"}),
		generationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cicero_generation_duration_seconds",
			Help:    "Time from opening the upstream stream to its end.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 180},
		}),
		fragments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cicero_generation_fragments_total",
			Help: "Text fragments relayed to callers.",
		}),
		activeGenerating: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cicero_generations_in_flight",
			Help: "Generations currently streaming.",
		}),
	}

	reg.MustRegister(
		c.resetIssued,
		c.resetRedeemed,
		c.generations,
		c.generationTime,
		c.fragments,
		c.activeGenerating,
	)

	return c
}

func (c *Collector) ResetTokenIssued() {
	c.resetIssued.Inc()
}

func (c *Collector) ResetTokenRedeemed(outcome string) {
	c.resetRedeemed.WithLabelValues(outcome).Inc()
}

// GenerationStarted marks a stream as in flight.
func (c *Collector) GenerationStarted() {
	c.activeGenerating.Inc()
}

// GenerationFinished records how a stream ended and how long it ran.
func (c *Collector) GenerationFinished(outcome string, d time.Duration) {
	c.activeGenerating.Dec()
	c.generations.WithLabelValues(outcome).Inc()
	c.generationTime.Observe(d.Seconds())
}

func (c *Collector) FragmentRelayed() {
	c.fragments.Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
