// Package prometheus registers and exposes the engine's operational
// metrics: reload outcomes and durations, per-source record counts,
// skipped entries, and screening latency by match layer.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the engine emits.  A fresh instance owns a
// private registry, so tests can construct isolated copies without global
// collector collisions.
type Metrics struct {
	registry *prometheus.Registry

	ReloadsTotal     *prometheus.CounterVec   // labels: source, result (ok|skipped|error)
	ReloadDuration   prometheus.Histogram     // full reload wall time
	RecordsLoaded    *prometheus.GaugeVec     // labels: source
	SkippedEntries   *prometheus.CounterVec   // labels: source
	SnapshotRestores *prometheus.CounterVec   // labels: result (ok|stale|corrupt|absent)
	ScreensTotal     prometheus.Counter       // screening queries served
	ScreenDuration   prometheus.Histogram     // per-query latency
	MatchesTotal     *prometheus.CounterVec   // labels: layer
	BatchRowsTotal   prometheus.Counter       // client rows screened in batches
}

// New constructs and registers all engine metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amlscreen",
			Name:      "reloads_total",
			Help:      "Source reload attempts by outcome.",
		}, []string{"source", "result"}),
		ReloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "amlscreen",
			Name:      "reload_duration_seconds",
			Help:      "Wall time of a full reload pass.",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
		}),
		RecordsLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "amlscreen",
			Name:      "records_loaded",
			Help:      "Canonical records currently indexed, by source.",
		}, []string{"source"}),
		SkippedEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amlscreen",
			Name:      "skipped_entries_total",
			Help:      "Malformed entries skipped during parsing, by source.",
		}, []string{"source"}),
		SnapshotRestores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amlscreen",
			Name:      "snapshot_restores_total",
			Help:      "Snapshot restore attempts by outcome.",
		}, []string{"result"}),
		ScreensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "amlscreen",
			Name:      "screens_total",
			Help:      "Screening queries served.",
		}),
		ScreenDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "amlscreen",
			Name:      "screen_duration_seconds",
			Help:      "Per-query screening latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		MatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amlscreen",
			Name:      "matches_total",
			Help:      "Matches returned at or above threshold, by winning layer.",
		}, []string{"layer"}),
		BatchRowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "amlscreen",
			Name:      "batch_rows_total",
			Help:      "Client rows screened through the batch orchestrator.",
		}),
	}

	reg.MustRegister(
		m.ReloadsTotal,
		m.ReloadDuration,
		m.RecordsLoaded,
		m.SkippedEntries,
		m.SnapshotRestores,
		m.ScreensTotal,
		m.ScreenDuration,
		m.MatchesTotal,
		m.BatchRowsTotal,
	)
	return m
}

// Handler returns the HTTP handler serving this instance's registry in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for test assertions.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
