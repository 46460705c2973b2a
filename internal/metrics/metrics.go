// Package metrics exposes crawl scheduler counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace prefixes every metric name.
	Namespace = "onionspider"
	// Subsystem groups the scheduler metrics.
	Subsystem = "scheduler"
)

// Recorder receives scheduler events. The scheduler calls it from many
// workers at once, so implementations must be safe for concurrent use.
type Recorder interface {
	// RecordSeeded records locations inserted by seed ingestion.
	RecordSeeded(count int)
	// RecordIngestError records a seed insert that failed.
	RecordIngestError()
	// RecordRefill records one pending-work query and the rows it returned.
	RecordRefill(rows int)
	// RecordDispatch records a location handed to the gateway.
	RecordDispatch()
	// RecordFetch records a completed fetch.
	RecordFetch(statusCode int, successful bool, latency time.Duration)
	// RecordFoldBackError records a fetch result that could not be stored.
	RecordFoldBackError()
	// RecordSlotRelease records a worker that gave up its slot for lack of work.
	RecordSlotRelease()
}

// Nop discards every event.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordSeeded(int)                     {}
func (Nop) RecordIngestError()                   {}
func (Nop) RecordRefill(int)                     {}
func (Nop) RecordDispatch()                      {}
func (Nop) RecordFetch(int, bool, time.Duration) {}
func (Nop) RecordFoldBackError()                 {}
func (Nop) RecordSlotRelease()                   {}

// Collector is the Prometheus Recorder.
type Collector struct {
	seeded        prometheus.Counter
	ingestErrors  prometheus.Counter
	refills       prometheus.Counter
	refillRows    prometheus.Counter
	dispatched    prometheus.Counter
	inFlight      prometheus.Gauge
	fetches       *prometheus.CounterVec
	statusCodes   *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	foldBackError prometheus.Counter
	slotReleases  prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg. A nil reg
// registers with the default Prometheus registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      name,
			Help:      help,
		})
	}

	return &Collector{
		seeded:        counter("seeded_total", "Locations inserted from seed input"),
		ingestErrors:  counter("ingest_errors_total", "Seed inserts that failed"),
		refills:       counter("refills_total", "Pending-work queries issued"),
		refillRows:    counter("refill_rows_total", "Rows returned by pending-work queries"),
		dispatched:    counter("dispatched_total", "Locations handed to the gateway"),
		foldBackError: counter("fold_back_errors_total", "Fetch results that could not be stored"),
		slotReleases:  counter("slot_releases_total", "Workers that released their slot for lack of work"),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "fetches_in_flight",
			Help:      "Fetches currently outstanding",
		}),
		fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "fetches_total",
			Help:      "Completed fetches by outcome",
		}, []string{"outcome"}),
		statusCodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "http_status_total",
			Help:      "Completed fetches by HTTP status code (0 for transport errors)",
		}, []string{"status_code"}),
		fetchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "fetch_latency_seconds",
			Help:      "Fetch latency through the Tor gateway",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
	}
}

// RecordSeeded implements Recorder.
func (c *Collector) RecordSeeded(count int) {
	c.seeded.Add(float64(count))
}

// RecordIngestError implements Recorder.
func (c *Collector) RecordIngestError() {
	c.ingestErrors.Inc()
}

// RecordRefill implements Recorder.
func (c *Collector) RecordRefill(rows int) {
	c.refills.Inc()
	c.refillRows.Add(float64(rows))
}

// RecordDispatch implements Recorder.
func (c *Collector) RecordDispatch() {
	c.dispatched.Inc()
	c.inFlight.Inc()
}

// RecordFetch implements Recorder.
func (c *Collector) RecordFetch(statusCode int, successful bool, latency time.Duration) {
	c.inFlight.Dec()
	outcome := "failure"
	if successful {
		outcome = "success"
	}
	c.fetches.WithLabelValues(outcome).Inc()
	c.statusCodes.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.fetchLatency.Observe(latency.Seconds())
}

// RecordFoldBackError implements Recorder.
func (c *Collector) RecordFoldBackError() {
	c.foldBackError.Inc()
}

// RecordSlotRelease implements Recorder.
func (c *Collector) RecordSlotRelease() {
	c.slotReleases.Inc()
}

// Handler returns an HTTP handler serving /metrics from gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
