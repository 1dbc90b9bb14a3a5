// Package metrics exposes run counters for the detector. Each Recorder owns
// its registry so independent runs (and tests) do not share state.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "purchasewatch"

// Feed names used as label values.
const (
	FeedBatch  = "batch"
	FeedStream = "stream"
)

// Recorder collects detector metrics.
type Recorder struct {
	registry *prometheus.Registry

	events              *prometheus.CounterVec
	skipped             *prometheus.CounterVec
	flagged             prometheus.Counter
	insufficientHistory prometheus.Counter
	neighborhoodSize    prometheus.Histogram
	windowSize          prometheus.Histogram
	users               prometheus.Gauge
	feedDuration        *prometheus.GaugeVec
}

// New creates a Recorder with all collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Feed records processed, by feed and event kind.",
		}, []string{"feed", "kind"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_records_total",
			Help:      "Feed records skipped, by feed and reason.",
		}, []string{"feed", "reason"}),
		flagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flagged_purchases_total",
			Help:      "Purchases flagged as anomalous.",
		}),
		insufficientHistory: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_history_total",
			Help:      "Purchase checks skipped because the network window held fewer than two purchases.",
		}),
		neighborhoodSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "neighborhood_size",
			Help:      "Number of users within D degrees of the buyer.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		windowSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "window_size",
			Help:      "Number of purchases in the merged network window.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users",
			Help:      "Users known to the social graph.",
		}),
		feedDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_duration_seconds",
			Help:      "Wall time spent replaying each feed.",
		}, []string{"feed"}),
	}

	r.registry.MustRegister(
		r.events,
		r.skipped,
		r.flagged,
		r.insufficientHistory,
		r.neighborhoodSize,
		r.windowSize,
		r.users,
		r.feedDuration,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Event counts a processed record.
func (r *Recorder) Event(feed, kind string) {
	r.events.WithLabelValues(feed, kind).Inc()
}

// Skipped counts a record dropped for reason.
func (r *Recorder) Skipped(feed, reason string) {
	r.skipped.WithLabelValues(feed, reason).Inc()
}

// Classified records the shape of one classification.
func (r *Recorder) Classified(neighborhood, window int, sufficient, anomalous bool) {
	r.neighborhoodSize.Observe(float64(neighborhood))
	r.windowSize.Observe(float64(window))
	if !sufficient {
		r.insufficientHistory.Inc()
	}
	if anomalous {
		r.flagged.Inc()
	}
}

// Users sets the current user count.
func (r *Recorder) Users(n int) {
	r.users.Set(float64(n))
}

// FeedDuration records how long a feed took to replay.
func (r *Recorder) FeedDuration(feed string, d time.Duration) {
	r.feedDuration.WithLabelValues(feed).Set(d.Seconds())
}

// WriteTextfile writes all metrics in the Prometheus text format, suitable for
// the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}
