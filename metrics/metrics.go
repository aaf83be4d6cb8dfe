// Package metrics exposes Prometheus instrumentation for the listener,
// queue, log, and replay components (SPEC_FULL.md ambient stack).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ListenerFramesDropped counts fragments a RawListener could not
	// assemble (malformed frames, filtered topics are not counted here).
	ListenerFramesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mcl",
		Subsystem: "listener",
		Name:      "frames_dropped_total",
		Help:      "Total number of UDP frames dropped by a RawListener before reassembly completed.",
	})

	// ListenerFragmentsPending reports the number of in-flight reassembly
	// slots across all active listeners.
	ListenerFragmentsPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mcl",
		Subsystem: "listener",
		Name:      "fragments_pending",
		Help:      "Number of incomplete fragment assemblies currently buffered.",
	})

	// BroadcasterFragmentsSent counts UDP fragments sent by any
	// RawBroadcaster.
	BroadcasterFragmentsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mcl",
		Subsystem: "broadcaster",
		Name:      "fragments_sent_total",
		Help:      "Total number of UDP fragments sent by a RawBroadcaster.",
	})

	// QueueDepth reports the current occupancy of a QueuedListener's
	// bounded queue.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mcl",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current number of records buffered in a bounded queue.",
	})

	// QueueDropped counts records dropped because a bounded queue was
	// full when Put was attempted.
	QueueDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mcl",
		Subsystem: "queue",
		Name:      "dropped_total",
		Help:      "Total number of records dropped because the queue was full.",
	})

	// LogRotations counts LogWriter rotations across all open writers.
	LogRotations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mcl",
		Subsystem: "log",
		Name:      "rotations_total",
		Help:      "Total number of log file rotations performed by LogWriter instances.",
	})

	// LogRecordsWritten counts records appended across all open writers.
	LogRecordsWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mcl",
		Subsystem: "log",
		Name:      "records_written_total",
		Help:      "Total number of records written by LogWriter instances.",
	})

	// ReplayLag reports the difference between a replay's scheduled
	// broadcast deadline and the time it was actually published.
	ReplayLag = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mcl",
		Subsystem: "replay",
		Name:      "lag_seconds",
		Help:      "Difference between a replayed record's scheduled deadline and its actual publish time, in seconds.",
	})
)

// Registry returns a prometheus.Registerer with every mcl collector
// registered, ready to be exposed via promhttp.
func Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		ListenerFramesDropped,
		ListenerFragmentsPending,
		BroadcasterFragmentsSent,
		QueueDepth,
		QueueDropped,
		LogRotations,
		LogRecordsWritten,
		ReplayLag,
	)
	return reg
}
