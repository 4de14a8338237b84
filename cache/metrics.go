package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	entries  prometheus.Gauge
	queue    prometheus.Gauge
	loads    *prometheus.CounterVec
	persists *prometheus.CounterVec
	duration prometheus.Histogram
}

// newMetrics builds the collectors and registers them with r; a nil r
// leaves them unregistered.
func newMetrics(r prometheus.Registerer) *metrics {
	f := promauto.With(r)
	return &metrics{
		entries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "playercache",
			Name:      "snapshots",
			Help:      "Number of cached player snapshots.",
		}),
		queue: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "playercache",
			Name:      "pending_saves",
			Help:      "Save requests waiting for the worker.",
		}),
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "playercache",
			Name:      "loads_total",
			Help:      "Cache lookups on login by result (hit, miss).",
		}, []string{"result"}),
		persists: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "playercache",
			Name:      "saves_total",
			Help:      "Snapshot saves by result (ok, error).",
		}, []string{"result"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "playercache",
			Name:      "save_duration_seconds",
			Help:      "Time to write one player's snapshot to the backend.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}
}
