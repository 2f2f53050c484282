// Package metrics holds the Prometheus collectors recorded during a
// changelog run. A CLI run has no scrape endpoint, so the registry can be
// written to a node-exporter style textfile once the run finishes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Item fetch sources.
const (
	SourceQuery  = "query"
	SourceDetail = "detail"
	SourceParent = "parent"
)

// Summary scopes and results.
const (
	ScopeItem      = "item"
	ScopeChangelog = "changelog"

	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Metrics is the set of collectors for one aggregation engine.
type Metrics struct {
	registry *prometheus.Registry

	ItemsFetched        *prometheus.CounterVec
	ParentWaves         prometheus.Counter
	UnresolvableParents prometheus.Counter
	CyclesBroken        prometheus.Counter
	OrphanedItems       prometheus.Gauge
	Summaries           *prometheus.CounterVec
	CommitItems         prometheus.Gauge
	StageDuration       *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ItemsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weaver_items_fetched_total",
			Help: "Work items fetched from the platform by source",
		}, []string{"source"}),

		ParentWaves: factory.NewCounter(prometheus.CounterOpts{
			Name: "weaver_parent_waves_total",
			Help: "Parent resolution waves dispatched",
		}),

		UnresolvableParents: factory.NewCounter(prometheus.CounterOpts{
			Name: "weaver_unresolvable_parents_total",
			Help: "Parent identities that could not be fetched and were redirected to the orphan bucket",
		}),

		CyclesBroken: factory.NewCounter(prometheus.CounterOpts{
			Name: "weaver_parent_cycles_broken_total",
			Help: "Parent references cut to break cycles",
		}),

		OrphanedItems: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weaver_orphaned_items",
			Help: "Items placed under the synthetic Other root in the last run",
		}),

		Summaries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "weaver_summaries_total",
			Help: "Summarization calls by scope and result",
		}, []string{"scope", "result"}),

		CommitItems: factory.NewGauge(prometheus.GaugeOpts{
			Name: "weaver_commit_items",
			Help: "Commits merged into the changelog in the last run",
		}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "weaver_stage_duration_seconds",
			Help:    "Duration of aggregation stages",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}, []string{"stage"}),
	}
}

// ObserveStage records the time elapsed since start for a stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in the Prometheus text format to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
