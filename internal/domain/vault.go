/**
 * @description
 * This file defines the vault-side domain models: the persisted snapshot of a yield
 * vault's accounting state, per-depositor positions, yield deployment sessions, and
 * the request/response DTOs for the vault API endpoints.
 *
 * @notes
 * - The authoritative vault state lives in the in-memory accounting engine
 *   (internal/ledger); these structs are what gets written through to Postgres and
 *   returned from the API.
 * - Share amounts use the same smallest-unit integer scale as asset amounts: the
 *   first deposit into an empty vault mints shares one-to-one with assets.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// VaultState is a point-in-time snapshot of a vault's accounting state.
// It maps directly to the `vaults` table in the database.
type VaultState struct {
	ID                  uuid.UUID `json:"id"`
	InvoiceID           int64     `json:"invoice_id"`
	Admin               uuid.UUID `json:"admin"`
	FundingTarget       int64     `json:"funding_target"` // in micro-units
	FundingDeadline     time.Time `json:"funding_deadline"`
	MinimumDeposit      int64     `json:"minimum_deposit"`
	MaximumDeposit      int64     `json:"maximum_deposit"`
	Active              bool      `json:"active"`
	Paused              bool      `json:"paused"`
	FundingComplete     bool      `json:"funding_complete"`
	OnHandAssets        int64     `json:"on_hand_assets"`
	DeployedFunds       int64     `json:"deployed_funds"`
	TotalShares         int64     `json:"total_shares"`
	ReservedFunds       int64     `json:"reserved_funds"`
	MaxDeploymentBps    int64     `json:"max_deployment_bps"`
	TotalYieldGenerated int64     `json:"total_yield_generated"`
	DepositorCount      int       `json:"depositor_count"`
	CreatedAt           time.Time `json:"created_at"`
}

// TotalAssets is the vault's full asset claim: custody balance plus funds
// currently deployed to an external yield strategy.
func (v VaultState) TotalAssets() int64 {
	return v.OnHandAssets + v.DeployedFunds
}

// VaultPosition is one depositor's holding in a vault. Maps to `vault_positions`.
type VaultPosition struct {
	VaultID        uuid.UUID `json:"vault_id"`
	Holder         uuid.UUID `json:"holder"`
	Shares         int64     `json:"shares"`
	LifetimeAssets int64     `json:"lifetime_assets"` // cumulative deposited, never decremented
}

// YieldSession records one withdraw-for-yield round trip. Session ids are
// sequential within a vault. Maps to `yield_sessions`.
type YieldSession struct {
	ID             int64      `json:"id"`
	VaultID        uuid.UUID  `json:"vault_id"`
	Executor       uuid.UUID  `json:"executor"`
	Principal      int64      `json:"principal"` // in micro-units
	DeployedAt     time.Time  `json:"deployed_at"`
	Active         bool       `json:"active"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	YieldGenerated int64      `json:"yield_generated"`
}

// VaultLimits reports the four ERC-4626 style caps for a given owner.
type VaultLimits struct {
	MaxDeposit  int64 `json:"max_deposit"`
	MaxMint     int64 `json:"max_mint"`
	MaxWithdraw int64 `json:"max_withdraw"`
	MaxRedeem   int64 `json:"max_redeem"`
}

// DepositRequest is the DTO for deposit and mint API requests. Exactly one of
// Assets (deposit) or Shares (mint) is set depending on the endpoint.
type DepositRequest struct {
	Assets   int64     `json:"assets,omitempty"`
	Shares   int64     `json:"shares,omitempty"`
	Receiver uuid.UUID `json:"receiver"`
}

// WithdrawRequest is the DTO for withdraw and redeem API requests.
type WithdrawRequest struct {
	Assets   int64     `json:"assets,omitempty"`
	Shares   int64     `json:"shares,omitempty"`
	Receiver uuid.UUID `json:"receiver"`
	Owner    uuid.UUID `json:"owner"`
}

// ApproveSharesRequest grants a spender the right to withdraw/redeem against
// the caller's shares.
type ApproveSharesRequest struct {
	Spender uuid.UUID `json:"spender"`
	Shares  int64     `json:"shares"`
}

// DeployRequest is the DTO for a withdraw-for-yield call by the executor.
type DeployRequest struct {
	Amount int64 `json:"amount"`
}

// YieldReturnRequest is the DTO for returning principal plus yield to a vault.
type YieldReturnRequest struct {
	TotalAmount int64 `json:"total_amount"`
}

// EmergencyReturnRequest re-injects recovered funds outside session bookkeeping.
type EmergencyReturnRequest struct {
	Amount int64 `json:"amount"`
}
