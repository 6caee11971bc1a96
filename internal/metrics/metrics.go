// Package metrics defines the Prometheus collectors of the indexing engine
// and exposes an HTTP handler for scraping.
//
// Every method is safe on a nil *Metrics, so components can be built
// without a registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	DocsIndexedTotal prometheus.Counter
	DocsUpdatedTotal prometheus.Counter
	DocsRemovedTotal prometheus.Counter
	TaskFailures     *prometheus.CounterVec
	TasksPending     prometheus.Gauge
	IndexKeys        prometheus.Gauge
	SearchQueries    *prometheus.CounterVec
	SearchLatency    prometheus.Histogram
	WatchEvents      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which tests use to read values without global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otlive_documents_indexed_total",
			Help: "Documents added to the index.",
		}),
		DocsUpdatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otlive_documents_updated_total",
			Help: "Documents re-indexed after a modification.",
		}),
		DocsRemovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otlive_documents_removed_total",
			Help: "Documents dropped from the index.",
		}),
		TaskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otlive_task_failures_total",
			Help: "Indexing tasks that failed, by task type.",
		}, []string{"task"}),
		TasksPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "otlive_tasks_pending",
			Help: "Tasks queued or running on the worker pool.",
		}),
		IndexKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "otlive_index_keys",
			Help: "Distinct tokens held by the index.",
		}),
		SearchQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otlive_search_queries_total",
			Help: "Search queries by result (hit, miss, cached, empty).",
		}, []string{"result"}),
		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "otlive_search_latency_seconds",
			Help:    "Search latency in seconds.",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		WatchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otlive_watch_events_total",
			Help: "Filesystem events forwarded by the watcher, by change type and target kind.",
		}, []string{"type", "kind"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.DocsIndexedTotal,
			m.DocsUpdatedTotal,
			m.DocsRemovedTotal,
			m.TaskFailures,
			m.TasksPending,
			m.IndexKeys,
			m.SearchQueries,
			m.SearchLatency,
			m.WatchEvents,
		)
	}
	return m
}

func (m *Metrics) DocumentIndexed() {
	if m == nil {
		return
	}
	m.DocsIndexedTotal.Inc()
}

func (m *Metrics) DocumentUpdated() {
	if m == nil {
		return
	}
	m.DocsUpdatedTotal.Inc()
}

func (m *Metrics) DocumentRemoved() {
	if m == nil {
		return
	}
	m.DocsRemovedTotal.Inc()
}

func (m *Metrics) TaskFailed(task string) {
	if m == nil {
		return
	}
	m.TaskFailures.WithLabelValues(task).Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.TasksPending.Set(float64(n))
}

func (m *Metrics) SetKeys(n int) {
	if m == nil {
		return
	}
	m.IndexKeys.Set(float64(n))
}

func (m *Metrics) Search(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SearchQueries.WithLabelValues(result).Inc()
	m.SearchLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) WatchEvent(changeType string, kind string) {
	if m == nil {
		return
	}
	m.WatchEvents.WithLabelValues(changeType, kind).Inc()
}
