/**
 * @description
 * Yield deployment sessions: the bounded round trips during which vault principal
 * is held by an external yield strategy. Each withdraw-for-yield call opens exactly
 * one session; a session closes exactly once, either through a return of principal
 * plus yield or through a vault-wide emergency recall that abandons yield
 * accounting.
 *
 * @notes
 * - A return below the recorded principal is rejected outright: there is no
 *   partial-loss path in this design.
 * - The emergency re-injection path deliberately bypasses session and yield
 *   bookkeeping; only the custody balance moves.
 */

package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

// AvailableForDeployment is the headroom left under the vault's deployment cap:
// max(0, totalAssets * maxDeploymentBps / 10000 − deployed − reserved).
func (v *Vault) AvailableForDeployment() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.availableForDeploymentLocked()
}

func (v *Vault) availableForDeploymentLocked() int64 {
	limit := mulDivDown(v.totalAssetsLocked(), v.maxDeploymentBps, 10000)
	avail := limit - v.deployed - v.reservedFunds
	if avail < 0 {
		return 0
	}
	return avail
}

// WithdrawForYield opens a new session: records (amount, now, executor), bumps
// deployedFunds, and pushes the principal out to the executor. This is the only
// path by which funds leave custody for yield generation.
func (v *Vault) WithdrawForYield(ctx context.Context, executor uuid.UUID, amount int64) (domain.YieldSession, error) {
	if amount <= 0 || executor == uuid.Nil {
		return domain.YieldSession{}, domain.ErrInvalidArgument
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return domain.YieldSession{}, domain.ErrVaultPaused
	}
	if amount > v.availableForDeploymentLocked() {
		return domain.YieldSession{}, domain.ErrExceedsLimit
	}

	if err := v.assets.TransferOut(ctx, v.id, executor, amount); err != nil {
		return domain.YieldSession{}, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	v.nextSessionID++
	s := &domain.YieldSession{
		ID:         v.nextSessionID,
		VaultID:    v.id,
		Executor:   executor,
		Principal:  amount,
		DeployedAt: v.now().UTC(),
		Active:     true,
	}
	v.sessions[s.ID] = s
	v.sessionOrder = append(v.sessionOrder, s.ID)
	v.onHand -= amount
	v.deployed += amount
	return *s, nil
}

// DepositYieldReturn closes a session: pulls the full returned amount back into
// custody, decrements deployedFunds by the principal, and books the excess as
// yield. The caller must be the session's recorded executor, and the return must
// cover at least the principal.
func (v *Vault) DepositYieldReturn(ctx context.Context, executor uuid.UUID, sessionID, totalAmount int64) (domain.YieldReturnedEvent, error) {
	if totalAmount <= 0 {
		return domain.YieldReturnedEvent{}, domain.ErrInvalidArgument
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	s, ok := v.sessions[sessionID]
	if !ok {
		return domain.YieldReturnedEvent{}, fmt.Errorf("session %d: %w", sessionID, domain.ErrSessionNotFound)
	}
	if !s.Active {
		return domain.YieldReturnedEvent{}, fmt.Errorf("session %d: %w", sessionID, domain.ErrSessionClosed)
	}
	if s.Executor != executor {
		return domain.YieldReturnedEvent{}, domain.ErrUnauthorized
	}
	if totalAmount < s.Principal {
		return domain.YieldReturnedEvent{}, fmt.Errorf("returned %d against principal %d: %w", totalAmount, s.Principal, domain.ErrInsufficientReturn)
	}

	if err := v.assets.TransferIn(ctx, v.id, executor, totalAmount); err != nil {
		return domain.YieldReturnedEvent{}, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	yield := totalAmount - s.Principal
	now := v.now().UTC()
	s.Active = false
	s.ClosedAt = &now
	s.YieldGenerated = yield

	v.deployed -= s.Principal
	v.onHand += totalAmount
	v.totalYieldGenerated += yield

	return domain.YieldReturnedEvent{
		VaultID:   v.id,
		SessionID: sessionID,
		Principal: s.Principal,
		Yield:     yield,
		Timestamp: now,
	}, nil
}

// EmergencyWithdrawDeployed force-closes every active session without yield
// accounting, zeroes deployedFunds, pauses the vault, and reports the abandoned
// total. Recovery of the actual funds happens out of band and re-enters through
// EmergencyDepositReturn.
func (v *Vault) EmergencyWithdrawDeployed() (domain.EmergencyWithdrawEvent, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	total := v.deployed
	closed := 0
	now := v.now().UTC()
	for _, id := range v.sessionOrder {
		s := v.sessions[id]
		if s.Active {
			s.Active = false
			s.ClosedAt = &now
			closed++
		}
	}
	v.deployed = 0
	v.paused = true

	return domain.EmergencyWithdrawEvent{
		VaultID:        v.id,
		TotalWithdrawn: total,
		SessionsClosed: closed,
		Timestamp:      now,
	}, nil
}

// EmergencyDepositReturn re-injects recovered funds into custody. It does not
// touch sessions or yield: the money simply comes back.
func (v *Vault) EmergencyDepositReturn(ctx context.Context, from uuid.UUID, amount int64) error {
	if amount <= 0 || from == uuid.Nil {
		return domain.ErrInvalidArgument
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.assets.TransferIn(ctx, v.id, from, amount); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	v.onHand += amount
	return nil
}

// Session returns a copy of one session record.
func (v *Vault) Session(id int64) (domain.YieldSession, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s, ok := v.sessions[id]
	if !ok {
		return domain.YieldSession{}, fmt.Errorf("session %d: %w", id, domain.ErrSessionNotFound)
	}
	return *s, nil
}

// Sessions returns copies of all session records in creation order.
func (v *Vault) Sessions() []domain.YieldSession {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.YieldSession, 0, len(v.sessionOrder))
	for _, id := range v.sessionOrder {
		out = append(out, *v.sessions[id])
	}
	return out
}
