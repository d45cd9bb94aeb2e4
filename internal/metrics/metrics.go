// Package metrics defines the Prometheus instrumentation surface
// shared by every worker and reconciler: tick counts, queue depth, and
// the size of each reconciler's last diff.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry groups every metric this daemon exposes, so main can
// register them all against one prometheus.Registerer.
type Registry struct {
	CollectorTicks      *prometheus.CounterVec
	CollectorErrors     *prometheus.CounterVec
	QueueDepth          *prometheus.GaugeVec
	MergeTicks          prometheus.Counter
	MergedHosts         prometheus.Gauge
	ReconcileTicks      *prometheus.CounterVec
	ReconcileChanges    *prometheus.CounterVec
	FailsafeTrips       *prometheus.CounterVec
}

// New constructs a Registry. Call Register to wire it into a
// prometheus.Registerer (typically prometheus.DefaultRegisterer).
func New() *Registry {
	return &Registry{
		CollectorTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zac_collector_ticks_total",
			Help: "Completed collector ticks, per source.",
		}, []string{"source"}),
		CollectorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zac_collector_errors_total",
			Help: "Collector invocation failures, per source.",
		}, []string{"source"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zac_source_queue_depth",
			Help: "Current depth (0 or 1) of each source's handoff queue.",
		}, []string{"source"}),
		MergeTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zac_merge_ticks_total",
			Help: "Completed SourceMerger ticks.",
		}),
		MergedHosts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zac_merged_hosts",
			Help: "Number of hostnames currently present in the hosts table.",
		}),
		ReconcileTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zac_reconcile_ticks_total",
			Help: "Completed reconciler ticks, per reconciler.",
		}, []string{"reconciler"}),
		ReconcileChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zac_reconcile_changes_total",
			Help: "API mutations applied, per reconciler and change kind.",
		}, []string{"reconciler", "kind"}),
		FailsafeTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zac_failsafe_trips_total",
			Help: "Times a reconciler's change set exceeded the failsafe threshold and was blocked.",
		}, []string{"reconciler"}),
	}
}

// Register adds every metric in r to reg.
func (r *Registry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.CollectorTicks, r.CollectorErrors, r.QueueDepth,
		r.MergeTicks, r.MergedHosts,
		r.ReconcileTicks, r.ReconcileChanges, r.FailsafeTrips,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
