// Package metrics exposes simulation progress as Prometheus metrics.
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nvandessel/cogmap/internal/simulation"
)

const namespace = "cogmap"

// Run outcomes used as the "result" label of cogmap_runs_total.
const (
	ResultCompleted = "completed" // run mode, budget spent
	ResultConverged = "converged"
	ResultExhausted = "exhausted" // converge mode, budget spent without settling
)

// Collector records epochs and runs. It implements simulation.RunObserver.
type Collector struct {
	epochs   prometheus.Counter
	runs     *prometheus.CounterVec
	delta    prometheus.Histogram
	concepts prometheus.Gauge
	duration *prometheus.HistogramVec
}

// NewCollector registers the cogmap metrics on reg. Registering twice on the
// same registry panics, as with promauto.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		epochs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "epochs_total",
			Help:      "Total epochs executed",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total simulation runs by mode and outcome",
		}, []string{"mode", "result"}),
		delta: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "epoch_delta",
			Help:      "Average squared output change per epoch (finite values only)",
			Buckets:   prometheus.ExponentialBuckets(1e-8, 10, 10),
		}),
		concepts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "concepts",
			Help:      "Concepts in the map most recently stepped",
		}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of simulation runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
	}
}

// ObserveEpoch counts the epoch and records its delta.
func (c *Collector) ObserveEpoch(ev simulation.EpochEvent) {
	c.epochs.Inc()
	c.concepts.Set(float64(ev.Map.ConceptCount()))
	if d, ok := ev.Delta.Float(); ok && !math.IsNaN(d) && !math.IsInf(d, 0) {
		c.delta.Observe(d)
	}
}

// ObserveRun counts the finished run by outcome.
func (c *Collector) ObserveRun(res *simulation.Result) {
	c.runs.WithLabelValues(string(res.Mode), Outcome(res)).Inc()
	c.duration.WithLabelValues(string(res.Mode)).Observe(res.Duration.Seconds())
}

// Outcome classifies a result for the "result" label.
func Outcome(res *simulation.Result) string {
	switch {
	case res.Mode == simulation.ModeRun:
		return ResultCompleted
	case res.Converged:
		return ResultConverged
	default:
		return ResultExhausted
	}
}
