// Package metrics records per-attempt outcomes of request executions, both
// as prometheus collectors and as per-execution in-process summaries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder owns the prometheus collectors of the SDK. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	attempts   *prometheus.CounterVec
	executions *prometheus.HistogramVec
	channels   prometheus.Gauge
}

// NewRecorder creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "sdk",
			Name:      "attempts_total",
			Help:      "Request attempts segmented by node and outcome.",
		}, []string{"node", "outcome"}),
		executions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "sdk",
			Name:      "execution_duration_seconds",
			Help:      "Latency of complete request executions including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "result"}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Subsystem: "sdk",
			Name:      "open_channels",
			Help:      "Number of open node channels.",
		}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{r.attempts, r.executions, r.channels} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// ObserveAttempt counts one attempt.
func (r *Recorder) ObserveAttempt(node, outcome string) {
	if r == nil {
		return
	}
	if node == "" {
		node = "unknown"
	}
	r.attempts.WithLabelValues(node, outcome).Inc()
}

// ObserveExecution records the latency of a finished execution.
func (r *Recorder) ObserveExecution(kind, result string, d time.Duration) {
	if r == nil {
		return
	}
	r.executions.WithLabelValues(kind, result).Observe(d.Seconds())
}

func (r *Recorder) ChannelOpened() {
	if r != nil {
		r.channels.Inc()
	}
}

func (r *Recorder) ChannelClosed() {
	if r != nil {
		r.channels.Dec()
	}
}
