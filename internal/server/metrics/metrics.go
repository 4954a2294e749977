// Package metrics exposes Prometheus counters for the import pipeline and
// the credential refresher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Import outcome label values.
const (
	OutcomeImported = "imported"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Metrics bundles the counters a Registry-backed server exports on /metrics.
type Metrics struct {
	ImportOutcomes *prometheus.CounterVec
	TokenRefreshes *prometheus.CounterVec
}

// New registers the counters on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ImportOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataroom",
			Name:      "import_files_total",
			Help:      "Per-file import outcomes, labelled imported/skipped/failed.",
		}, []string{"outcome"}),
		TokenRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dataroom",
			Name:      "drive_token_refresh_total",
			Help:      "Drive token refresh attempts by result.",
		}, []string{"result"}),
	}
}
