// Package metrics instruments the engine's hot paths.
//
// Timing metrics are in-memory atomics read by the CLI's -stats flag and by
// benchmarks. Collection is on by default and can be disabled with
// GLENS_METRICS=0:
//
//	func (s *Store) TrimNetwork(mode model.Mode) (TrimStats, error) {
//	    defer metrics.Timer(metrics.Trim)()
//	    ...
//	}
//
// Counters and gauges that belong on a scrape endpoint live in prom.go.
package metrics

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/vanderheijden86/graphlens/pkg/debug"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("GLENS_METRICS") != "0")
}

// Enabled returns whether timing collection is on.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled toggles timing collection.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// TimingMetric aggregates durations of one named operation.
type TimingMetric struct {
	name    string
	count   atomic.Int64
	totalNs atomic.Int64
	maxNs   atomic.Int64
	minNs   atomic.Int64 // 0 means unset
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record adds one measurement.
func (m *TimingMetric) Record(d time.Duration) {
	if !Enabled() {
		return
	}
	ns := d.Nanoseconds()
	m.count.Add(1)
	m.totalNs.Add(ns)

	for {
		old := m.maxNs.Load()
		if ns <= old || m.maxNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.minNs.Load()
		if old != 0 && ns >= old {
			break
		}
		if m.minNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// Name returns the metric name.
func (m *TimingMetric) Name() string { return m.name }

// Count returns the number of measurements.
func (m *TimingMetric) Count() int64 { return m.count.Load() }

// Stats returns a consistent-enough snapshot of the metric.
func (m *TimingMetric) Stats() TimingStats {
	count := m.count.Load()
	total := m.totalNs.Load()
	var avg int64
	if count > 0 {
		avg = total / count
	}
	return TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: float64(total) / 1e6,
		AvgMs:   float64(avg) / 1e6,
		MaxMs:   float64(m.maxNs.Load()) / 1e6,
		MinMs:   float64(m.minNs.Load()) / 1e6,
	}
}

// Reset clears all measurements.
func (m *TimingMetric) Reset() {
	m.count.Store(0)
	m.totalNs.Store(0)
	m.maxNs.Store(0)
	m.minNs.Store(0)
}

// TimingStats is a snapshot of one TimingMetric.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
	MinMs   float64 `json:"min_ms,omitempty"`
}

// Timer returns a func that records the time elapsed since Timer was called.
// With debug logging on, the duration is also written to the debug log.
func Timer(m *TimingMetric) func() {
	record, trace := Enabled(), debug.Enabled()
	if m == nil || (!record && !trace) {
		return func() {}
	}
	start := time.Now()
	return func() {
		d := time.Since(start)
		if record {
			m.Record(d)
		}
		debug.LogTiming(m.name, d)
	}
}

// Operation timings.
var (
	GraphLoad      = newTimingMetric("graph_load")
	DegreeFilter   = newTimingMetric("degree_filter")
	NeighborQuery  = newTimingMetric("neighbor_query")
	ExpansionMerge = newTimingMetric("expansion_merge")
	ExpansionFetch = newTimingMetric("expansion_fetch")
	Trim           = newTimingMetric("trim")
	ColorRecompute = newTimingMetric("color_recompute")
	DatasetRead    = newTimingMetric("dataset_read")
)

// AllTimingMetrics returns every registered timing metric.
func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{
		GraphLoad,
		DegreeFilter,
		NeighborQuery,
		ExpansionMerge,
		ExpansionFetch,
		Trim,
		ColorRecompute,
		DatasetRead,
	}
}

// ResetAll clears every timing metric.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
}

// AllTimingStats returns stats for metrics that have data.
func AllTimingStats() []TimingStats {
	all := AllTimingMetrics()
	stats := make([]TimingStats, 0, len(all))
	for _, m := range all {
		if m.Count() > 0 {
			stats = append(stats, m.Stats())
		}
	}
	return stats
}
