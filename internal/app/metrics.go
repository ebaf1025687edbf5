/**
 * @description
 * Prometheus gauges for platform-level accounting state, refreshed by the
 * scheduled metrics job from the aggregate-on-read stats.
 */

package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTotalValueLocked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "financing_total_value_locked",
		Help: "Sum of total assets across all vaults, in micro-units.",
	})
	metricTotalDeployed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "financing_total_deployed",
		Help: "Sum of funds currently deployed to yield strategies, in micro-units.",
	})
	metricTotalYield = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "financing_total_yield_generated",
		Help: "Cumulative yield booked across all vaults, in micro-units.",
	})
	metricVaultCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "financing_vault_count",
		Help: "Number of vaults registered on the platform.",
	})
	metricFundedVaultCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "financing_funded_vault_count",
		Help: "Number of vaults that reached their funding target.",
	})
	metricExpiredVaultsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "financing_expired_vaults_swept_total",
		Help: "Vaults expired by the scheduled deadline sweep.",
	})
)

// RefreshPlatformMetrics pushes current aggregate stats into the gauges.
func (s *Service) RefreshPlatformMetrics() {
	stats := s.PlatformStats()
	metricTotalValueLocked.Set(float64(stats.TotalValueLocked))
	metricTotalDeployed.Set(float64(stats.TotalDeployed))
	metricTotalYield.Set(float64(stats.TotalYieldGenerated))
	metricVaultCount.Set(float64(stats.VaultCount))
	metricFundedVaultCount.Set(float64(stats.FundedVaultCount))
}
