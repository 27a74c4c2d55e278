package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the issuance core.
type Metrics struct {
	RecordsMinted  prometheus.Counter
	ClaimsRejected *prometheus.CounterVec
	ClaimLatency   prometheus.Histogram
	Phase          *prometheus.GaugeVec
}

// New creates and registers all issuance metrics.
func New() *Metrics {
	return &Metrics{
		RecordsMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bestiary_records_minted_total",
			Help: "Total number of creature records minted",
		}),
		ClaimsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bestiary_claims_rejected_total",
			Help: "Claims rejected, labeled by stable rejection reason",
		}, []string{"reason"}),
		ClaimLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bestiary_claim_duration_seconds",
			Help:    "End-to-end latency of claim submissions",
			Buckets: prometheus.DefBuckets,
		}),
		Phase: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bestiary_phase",
			Help: "Current lifecycle phase (1 for the active phase, 0 otherwise)",
		}, []string{"phase"}),
	}
}

// SetPhase marks the given phase active and all others inactive.
func (m *Metrics) SetPhase(active string) {
	for _, phase := range []string{"configuring", "awaiting_randomness", "minting_open", "closed"} {
		value := 0.0
		if phase == active {
			value = 1.0
		}
		m.Phase.WithLabelValues(phase).Set(value)
	}
}
