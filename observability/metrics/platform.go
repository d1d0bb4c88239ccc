package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PlatformMetrics mirrors the latest platform snapshot as gauges.
type PlatformMetrics struct {
	totalLoans      prometheus.Gauge
	totalStaked     prometheus.Gauge
	totalVolume     prometheus.Gauge
	treasuryBalance prometheus.Gauge
	feeBPS          *prometheus.GaugeVec
	paused          prometheus.Gauge
	snapshotAge     prometheus.Gauge
}

var (
	platformOnce     sync.Once
	platformRegistry *PlatformMetrics
)

func Platform() *PlatformMetrics {
	platformOnce.Do(func() {
		platformRegistry = &PlatformMetrics{
			totalLoans: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "elegent_platform_total_loans",
				Help: "Number of loans ever created on the platform.",
			}),
			totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "elegent_platform_total_staked",
				Help: "Total staked amount in display units.",
			}),
			totalVolume: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "elegent_platform_total_volume",
				Help: "Total lending volume in display units.",
			}),
			treasuryBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "elegent_platform_treasury_balance",
				Help: "Treasury balance in display units.",
			}),
			feeBPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "elegent_platform_fee_bps",
				Help: "Fee parameters in basis points by fee kind.",
			}, []string{"kind"}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "elegent_platform_paused",
				Help: "1 when the platform contract reports paused.",
			}),
			snapshotAge: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "elegent_platform_snapshot_timestamp_seconds",
				Help: "Unix time of the last successful snapshot.",
			}),
		}
		prometheus.MustRegister(
			platformRegistry.totalLoans,
			platformRegistry.totalStaked,
			platformRegistry.totalVolume,
			platformRegistry.treasuryBalance,
			platformRegistry.feeBPS,
			platformRegistry.paused,
			platformRegistry.snapshotAge,
		)
	})
	return platformRegistry
}

// SnapshotValues is the float projection of a snapshot the gauges accept.
type SnapshotValues struct {
	TotalLoans      float64
	TotalStaked     float64
	TotalVolume     float64
	TreasuryBalance float64
	PlatformFeeBPS  float64
	FlashLoanFeeBPS float64
	Paused          bool
	FetchedAtUnix   float64
}

func (m *PlatformMetrics) ObserveSnapshot(v SnapshotValues) {
	if m == nil {
		return
	}
	m.totalLoans.Set(v.TotalLoans)
	m.totalStaked.Set(v.TotalStaked)
	m.totalVolume.Set(v.TotalVolume)
	m.treasuryBalance.Set(v.TreasuryBalance)
	m.feeBPS.WithLabelValues("platform").Set(v.PlatformFeeBPS)
	m.feeBPS.WithLabelValues("flash_loan").Set(v.FlashLoanFeeBPS)
	if v.Paused {
		m.paused.Set(1)
	} else {
		m.paused.Set(0)
	}
	m.snapshotAge.Set(v.FetchedAtUnix)
}
