// Package metrics records the outcome of agent runs for the node_exporter
// textfile collector.
package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nodeagent"

// Run is the outcome of a single lifecycle run.
type Run struct {
	Started  time.Time
	Duration time.Duration
	// Failed names the step that failed, or is empty on success.
	Failed string
}

// Recorder accumulates run outcomes and writes them to a textfile.
type Recorder struct {
	path     string
	registry *prometheus.Registry

	lastRun      prometheus.Gauge
	lastDuration prometheus.Gauge
	lastSuccess  prometheus.Gauge
	runs         *prometheus.CounterVec
	failures     *prometheus.CounterVec
}

// NewRecorder returns a Recorder writing to path. Record is a no-op when
// path is empty.
func NewRecorder(path string) *Recorder {
	r := &Recorder{
		path:     path,
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run started.",
		}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "Whether the last run completed (1) or failed (0).",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by result.",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Failed runs by the step that failed.",
		}, []string{"step"}),
	}
	r.registry.MustRegister(r.lastRun, r.lastDuration, r.lastSuccess, r.runs, r.failures)
	return r
}

// Record notes the run and rewrites the textfile.
func (r *Recorder) Record(run Run) error {
	r.lastRun.Set(float64(run.Started.Unix()))
	r.lastDuration.Set(run.Duration.Seconds())
	if run.Failed == "" {
		r.lastSuccess.Set(1)
		r.runs.WithLabelValues("success").Inc()
	} else {
		r.lastSuccess.Set(0)
		r.runs.WithLabelValues("failure").Inc()
		r.failures.WithLabelValues(run.Failed).Inc()
	}
	if r.path == "" {
		return nil
	}
	return errors.Wrap(prometheus.WriteToTextfile(r.path, r.registry), "unable to write metrics textfile")
}
