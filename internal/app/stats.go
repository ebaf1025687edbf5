/**
 * @description
 * This file implements the platform's aggregate views. Statistics are always
 * computed on read from the live vault and note ledgers; there are no
 * incrementally maintained counters that could drift from per-vault truth.
 */

package app

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundra/financing-service/internal/domain"
)

// snapshots collects every vault snapshot in registration order.
func (s *Service) snapshots() []domain.VaultState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.VaultState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.vaults[id].Snapshot())
	}
	return out
}

// PlatformStats aggregates the whole platform in one pass over the vault list.
func (s *Service) PlatformStats() domain.PlatformStats {
	stats := domain.PlatformStats{}

	var assetsWithShares, totalShares int64
	for _, snap := range s.snapshots() {
		stats.VaultCount++
		if snap.Active {
			stats.ActiveVaultCount++
		}
		if snap.FundingComplete {
			stats.FundedVaultCount++
		}
		stats.TotalValueLocked += snap.TotalAssets()
		stats.TotalDeployed += snap.DeployedFunds
		stats.TotalYieldGenerated += snap.TotalYieldGenerated
		if snap.TotalShares > 0 {
			assetsWithShares += snap.TotalAssets()
			totalShares += snap.TotalShares
		}
	}

	for _, nt := range s.notes.List() {
		stats.NoteTypeCount++
		stats.NoteYieldDistributed += nt.YieldDeposited
	}

	// Asset-weighted share price across vaults with outstanding shares.
	price := decimal.NewFromInt(1)
	if totalShares > 0 {
		price = decimal.NewFromInt(assetsWithShares).Div(decimal.NewFromInt(totalShares))
	}
	stats.AveragePricePerShare = price.StringFixed(6)

	return stats
}

// MonitoringFeed is the per-vault view served to the external yield agent:
// what can still be deployed, and what this agent currently holds.
func (s *Service) MonitoringFeed() []domain.VaultMonitoringEntry {
	s.mu.RLock()
	ids := make([]uuid.UUID, len(s.order))
	copy(ids, s.order)
	s.mu.RUnlock()

	out := make([]domain.VaultMonitoringEntry, 0, len(ids))
	for _, id := range ids {
		v, err := s.vaultByID(id)
		if err != nil {
			continue
		}
		snap := v.Snapshot()

		var agentDeployed int64
		for _, session := range v.Sessions() {
			if session.Active && session.Executor == s.externalAgentID {
				agentDeployed += session.Principal
			}
		}

		out = append(out, domain.VaultMonitoringEntry{
			VaultID:             snap.ID,
			InvoiceID:           snap.InvoiceID,
			TotalAssets:         snap.TotalAssets(),
			DeployedFunds:       snap.DeployedFunds,
			AvailableToDeploy:   v.AvailableForDeployment(),
			AgentDeployedTotal:  agentDeployed,
			TotalYieldGenerated: snap.TotalYieldGenerated,
			Active:              snap.Active,
			Paused:              snap.Paused,
		})
	}
	return out
}
