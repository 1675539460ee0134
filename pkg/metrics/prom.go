package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Expansion outcomes.
const (
	OutcomeMerged  = "merged"
	OutcomeStale   = "stale"
	OutcomeFailed  = "failed"
	OutcomeInvalid = "invalid"
)

var (
	// ExpansionsTotal counts expansion requests by outcome.
	ExpansionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glens_expansions_total",
		Help: "Expansion requests by outcome",
	}, []string{"outcome"})

	// ExpansionDuration tracks round trips to the expansion service.
	ExpansionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "glens_expansion_duration_seconds",
		Help:    "Expansion request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	viewNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glens_view_nodes",
		Help: "Nodes in the most recently loaded view, by mode",
	}, []string{"mode"})

	viewLinks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "glens_view_links",
		Help: "Links in the most recently loaded view, by mode",
	}, []string{"mode"})

	// ReloadsTotal counts dataset reloads triggered by the file watcher.
	ReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glens_reloads_total",
		Help: "Dataset reloads by result",
	}, []string{"result"})
)

// ObserveView records the size of a freshly loaded view.
func ObserveView(mode string, nodes, links int) {
	viewNodes.WithLabelValues(mode).Set(float64(nodes))
	viewLinks.WithLabelValues(mode).Set(float64(links))
}

// ObserveExpansion counts one expansion outcome.
func ObserveExpansion(outcome string) {
	ExpansionsTotal.WithLabelValues(outcome).Inc()
}
