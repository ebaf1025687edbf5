/**
 * @description
 * This file defines platform-level DTOs: aggregate statistics computed on demand
 * over the live vault list, and the per-item result shapes for privileged batch
 * operations across many vaults.
 *
 * @notes
 * - Stats are always aggregated on read from vault state; the service keeps no
 *   incrementally maintained counters that could drift from per-vault truth.
 * - Batch operations never abort on one bad vault: each item carries its own
 *   error boundary and the result array reports both outcomes.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlatformStats is the aggregate view over every vault and note type.
type PlatformStats struct {
	VaultCount           int    `json:"vault_count"`
	ActiveVaultCount     int    `json:"active_vault_count"`
	FundedVaultCount     int    `json:"funded_vault_count"`
	TotalValueLocked     int64  `json:"total_value_locked"`
	TotalDeployed        int64  `json:"total_deployed"`
	TotalYieldGenerated  int64  `json:"total_yield_generated"`
	NoteTypeCount        int    `json:"note_type_count"`
	NoteYieldDistributed int64  `json:"note_yield_distributed"`
	AveragePricePerShare string `json:"average_price_per_share"` // decimal string
}

// VaultMonitoringEntry is one vault's row in the external-agent monitoring feed.
type VaultMonitoringEntry struct {
	VaultID             uuid.UUID `json:"vault_id"`
	InvoiceID           int64     `json:"invoice_id"`
	TotalAssets         int64     `json:"total_assets"`
	DeployedFunds       int64     `json:"deployed_funds"`
	AvailableToDeploy   int64     `json:"available_to_deploy"`
	AgentDeployedTotal  int64     `json:"agent_deployed_total"`
	TotalYieldGenerated int64     `json:"total_yield_generated"`
	Active              bool      `json:"active"`
	Paused              bool      `json:"paused"`
}

// BatchDeployItem is one instruction in a batch deploy or return request.
// A zero amount is treated as an intentional no-op, not an error.
type BatchDeployItem struct {
	VaultID   uuid.UUID `json:"vault_id"`
	SessionID int64     `json:"session_id,omitempty"` // returns only
	Amount    int64     `json:"amount"`
}

// BatchItemResult is the per-item outcome of a batch operation.
type BatchItemResult struct {
	VaultID   uuid.UUID `json:"vault_id"`
	SessionID int64     `json:"session_id,omitempty"`
	Amount    int64     `json:"amount"`
	Skipped   bool      `json:"skipped,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// BatchResult summarizes a batch operation across many vaults.
type BatchResult struct {
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
	SkippedCount int               `json:"skipped_count"`
	TotalAmount  int64             `json:"total_amount"`
	Items        []BatchItemResult `json:"items"`
	StartedAt    time.Time         `json:"started_at"`
}
