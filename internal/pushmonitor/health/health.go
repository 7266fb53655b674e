// Package health defines the push-outcome stats sink and a Prometheus-
// backed implementation.
package health

import "github.com/prometheus/client_golang/prometheus"

// Sink records push outcomes and durations. Implementations must be safe
// for concurrent use; the monitor calls these under its write lock, but a
// slow sink should not be assumed to be the only caller in a future
// refactor.
type Sink interface {
	RecordPushCompleted(storeName string, durationSec int64)
	RecordPushFailed(storeName string, durationSec int64)
}

// Prometheus is the production Sink, exporting counters and a duration
// histogram labeled by store.
type Prometheus struct {
	completed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewPrometheus registers the push-monitor metrics against reg and returns
// a Sink backed by them.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offline_push_monitor_pushes_completed_total",
			Help: "Total number of offline pushes that reached COMPLETED.",
		}, []string{"store"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offline_push_monitor_pushes_failed_total",
			Help: "Total number of offline pushes that reached ERROR.",
		}, []string{"store"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "offline_push_monitor_push_duration_seconds",
			Help:    "Duration of offline pushes from start to terminal status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"store", "outcome"}),
	}

	if reg != nil {
		reg.MustRegister(p.completed, p.failed, p.duration)
	}

	return p
}

func (p *Prometheus) RecordPushCompleted(storeName string, durationSec int64) {
	p.completed.WithLabelValues(storeName).Inc()
	p.duration.WithLabelValues(storeName, "completed").Observe(float64(durationSec))
}

func (p *Prometheus) RecordPushFailed(storeName string, durationSec int64) {
	p.failed.WithLabelValues(storeName).Inc()
	p.duration.WithLabelValues(storeName, "failed").Observe(float64(durationSec))
}

// NoOp discards everything; useful for tests that don't assert on stats.
type NoOp struct{}

func (NoOp) RecordPushCompleted(string, int64) {}
func (NoOp) RecordPushFailed(string, int64)    {}
