/**
 * @description
 * This file implements the coordinator's batch operations: deploy-for-yield and
 * return-yield across many vaults, plus the global emergency withdraw and
 * resume sweeps. Each item runs inside its own error boundary so one bad vault
 * cannot abort the rest of the batch; a zero-amount item is an intentional
 * no-op, reported as skipped rather than failed.
 */

package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
	"github.com/fundra/financing-service/internal/ledger"
)

// batchAuthz resolves the capability gate for a per-item batch. A platform-wide
// grant authorizes every item up front; without one the batch still runs and
// each item is re-checked against its own vault scope, so a vault-scoped
// executor can sweep the vaults it is granted. Transport failures from the auth
// service abort the whole batch.
func (s *Service) batchAuthz(ctx context.Context, actor uuid.UUID, capability domain.Capability) (func(uuid.UUID) error, error) {
	err := s.requireCapability(ctx, actor, capability, nil)
	if err == nil {
		return func(uuid.UUID) error { return nil }, nil
	}
	if !errors.Is(err, domain.ErrUnauthorized) {
		return nil, err
	}
	return func(vaultID uuid.UUID) error {
		scope := vaultID
		return s.requireCapability(ctx, actor, capability, &scope)
	}, nil
}

// BatchDeploy opens a deployment session on each listed vault.
func (s *Service) BatchDeploy(ctx context.Context, executor uuid.UUID, items []domain.BatchDeployItem) (domain.BatchResult, error) {
	allow, err := s.batchAuthz(ctx, executor, domain.CapabilityYieldExecutor)
	if err != nil {
		return domain.BatchResult{}, err
	}

	result := domain.BatchResult{StartedAt: time.Now().UTC()}
	for _, item := range items {
		out := domain.BatchItemResult{VaultID: item.VaultID, Amount: item.Amount}
		switch {
		case item.Amount == 0:
			out.Skipped = true
			result.SkippedCount++
		default:
			err := allow(item.VaultID)
			var v *ledger.Vault
			if err == nil {
				v, err = s.vaultByID(item.VaultID)
			}
			if err == nil {
				var session domain.YieldSession
				session, err = v.WithdrawForYield(ctx, executor, item.Amount)
				if err == nil {
					out.SessionID = session.ID
					s.persistVault(ctx, v)
					if sErr := s.repo.SaveYieldSession(ctx, session); sErr != nil {
						log.Printf("level=error component=coordinator msg=\"session persist failed\" vault_id=%s session_id=%d err=%v", item.VaultID, session.ID, sErr)
					}
				}
			}
			if err != nil {
				out.Error = err.Error()
				result.FailureCount++
			} else {
				result.SuccessCount++
				result.TotalAmount += item.Amount
			}
		}
		result.Items = append(result.Items, out)
	}
	log.Printf("level=info component=coordinator msg=\"batch deploy done\" executor=%s ok=%d failed=%d skipped=%d total=%d",
		executor, result.SuccessCount, result.FailureCount, result.SkippedCount, result.TotalAmount)
	return result, nil
}

// BatchReturn closes deployment sessions across many vaults. Item amounts are
// the total returned per session (principal plus yield).
func (s *Service) BatchReturn(ctx context.Context, executor uuid.UUID, items []domain.BatchDeployItem) (domain.BatchResult, error) {
	allow, err := s.batchAuthz(ctx, executor, domain.CapabilityYieldExecutor)
	if err != nil {
		return domain.BatchResult{}, err
	}

	result := domain.BatchResult{StartedAt: time.Now().UTC()}
	for _, item := range items {
		out := domain.BatchItemResult{VaultID: item.VaultID, SessionID: item.SessionID, Amount: item.Amount}
		switch {
		case item.Amount == 0:
			out.Skipped = true
			result.SkippedCount++
		default:
			err := allow(item.VaultID)
			var v *ledger.Vault
			if err == nil {
				v, err = s.vaultByID(item.VaultID)
			}
			if err == nil {
				var ev domain.YieldReturnedEvent
				ev, err = v.DepositYieldReturn(ctx, executor, item.SessionID, item.Amount)
				if err == nil {
					s.persistVault(ctx, v)
					if session, sErr := v.Session(item.SessionID); sErr == nil {
						if pErr := s.repo.SaveYieldSession(ctx, session); pErr != nil {
							log.Printf("level=error component=coordinator msg=\"session persist failed\" vault_id=%s session_id=%d err=%v", item.VaultID, item.SessionID, pErr)
						}
					}
					s.publish(ctx, domain.RoutingKeyYieldReturned, ev)
				}
			}
			if err != nil {
				out.Error = err.Error()
				result.FailureCount++
			} else {
				result.SuccessCount++
				result.TotalAmount += item.Amount
			}
		}
		result.Items = append(result.Items, out)
	}
	log.Printf("level=info component=coordinator msg=\"batch return done\" executor=%s ok=%d failed=%d skipped=%d total=%d",
		executor, result.SuccessCount, result.FailureCount, result.SkippedCount, result.TotalAmount)
	return result, nil
}

// BatchEmergencyReturn re-injects recovered funds into many vaults at once,
// pulling each amount from the operator's account outside session bookkeeping.
func (s *Service) BatchEmergencyReturn(ctx context.Context, actor uuid.UUID, items []domain.BatchDeployItem) (domain.BatchResult, error) {
	allow, err := s.batchAuthz(ctx, actor, domain.CapabilityEmergencyOperator)
	if err != nil {
		return domain.BatchResult{}, err
	}

	result := domain.BatchResult{StartedAt: time.Now().UTC()}
	for _, item := range items {
		out := domain.BatchItemResult{VaultID: item.VaultID, Amount: item.Amount}
		switch {
		case item.Amount == 0:
			out.Skipped = true
			result.SkippedCount++
		default:
			err := allow(item.VaultID)
			var v *ledger.Vault
			if err == nil {
				v, err = s.vaultByID(item.VaultID)
			}
			if err == nil {
				err = v.EmergencyDepositReturn(ctx, actor, item.Amount)
				if err == nil {
					s.persistVault(ctx, v)
				}
			}
			if err != nil {
				out.Error = err.Error()
				result.FailureCount++
			} else {
				result.SuccessCount++
				result.TotalAmount += item.Amount
			}
		}
		result.Items = append(result.Items, out)
	}
	log.Printf("level=info component=coordinator msg=\"batch emergency return done\" actor=%s ok=%d failed=%d skipped=%d total=%d",
		actor, result.SuccessCount, result.FailureCount, result.SkippedCount, result.TotalAmount)
	return result, nil
}

// EmergencyWithdrawAll force-recalls deployed funds on every vault that has any.
func (s *Service) EmergencyWithdrawAll(ctx context.Context, actor uuid.UUID) (domain.BatchResult, error) {
	if err := s.requireCapability(ctx, actor, domain.CapabilityEmergencyOperator, nil); err != nil {
		return domain.BatchResult{}, err
	}

	s.mu.RLock()
	ids := make([]uuid.UUID, len(s.order))
	copy(ids, s.order)
	s.mu.RUnlock()

	result := domain.BatchResult{StartedAt: time.Now().UTC()}
	for _, id := range ids {
		v, err := s.vaultByID(id)
		if err != nil {
			continue
		}
		if v.Snapshot().DeployedFunds == 0 {
			result.SkippedCount++
			result.Items = append(result.Items, domain.BatchItemResult{VaultID: id, Skipped: true})
			continue
		}
		ev, err := v.EmergencyWithdrawDeployed()
		out := domain.BatchItemResult{VaultID: id}
		if err != nil {
			out.Error = err.Error()
			result.FailureCount++
		} else {
			out.Amount = ev.TotalWithdrawn
			result.SuccessCount++
			result.TotalAmount += ev.TotalWithdrawn
			s.persistVault(ctx, v)
			for _, session := range v.Sessions() {
				if sErr := s.repo.SaveYieldSession(ctx, session); sErr != nil {
					log.Printf("level=error component=coordinator msg=\"session persist failed\" vault_id=%s session_id=%d err=%v", id, session.ID, sErr)
				}
			}
			s.publish(ctx, domain.RoutingKeyEmergencyWithdraw, ev)
		}
		result.Items = append(result.Items, out)
	}
	log.Printf("level=warn component=coordinator msg=\"global emergency withdraw done\" actor=%s ok=%d failed=%d skipped=%d total=%d",
		actor, result.SuccessCount, result.FailureCount, result.SkippedCount, result.TotalAmount)
	return result, nil
}

// ResumeAll lifts the emergency pause on every paused vault.
func (s *Service) ResumeAll(ctx context.Context, actor uuid.UUID) (domain.BatchResult, error) {
	if err := s.requireCapability(ctx, actor, domain.CapabilityEmergencyOperator, nil); err != nil {
		return domain.BatchResult{}, err
	}

	s.mu.RLock()
	ids := make([]uuid.UUID, len(s.order))
	copy(ids, s.order)
	s.mu.RUnlock()

	result := domain.BatchResult{StartedAt: time.Now().UTC()}
	for _, id := range ids {
		v, err := s.vaultByID(id)
		if err != nil {
			continue
		}
		if !v.Snapshot().Paused {
			result.SkippedCount++
			result.Items = append(result.Items, domain.BatchItemResult{VaultID: id, Skipped: true})
			continue
		}
		v.Resume()
		s.persistVault(ctx, v)
		result.SuccessCount++
		result.Items = append(result.Items, domain.BatchItemResult{VaultID: id})
	}
	log.Printf("level=info component=coordinator msg=\"global resume done\" actor=%s resumed=%d skipped=%d",
		actor, result.SuccessCount, result.SkippedCount)
	return result, nil
}
