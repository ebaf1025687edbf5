/**
 * @description
 * This file defines the sentinel errors shared across the ledger, application, and
 * API layers. Every precondition failure in the accounting core maps to exactly one
 * of these, and the API layer translates them to HTTP statuses with errors.Is.
 */

package domain

import "errors"

var (
	// ErrInvalidArgument covers malformed input: zero ids, non-positive amounts,
	// out-of-range rates.
	ErrInvalidArgument = errors.New("invalid argument")

	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrVaultNotFound    = errors.New("vault not found")
	ErrSessionNotFound  = errors.New("yield session not found")
	ErrNoteTypeNotFound = errors.New("note type not found")

	// ErrUnauthorized is returned when the capability check for a privileged
	// operation fails.
	ErrUnauthorized = errors.New("caller lacks required capability")

	// Deposit-window violations.
	ErrBelowMinimum  = errors.New("amount below vault minimum deposit")
	ErrAboveMaximum  = errors.New("amount above vault maximum deposit")
	ErrExceedsTarget = errors.New("deposit would exceed funding target")
	ErrFundingClosed = errors.New("vault funding window is closed")

	// Operational-state gating.
	ErrVaultPaused = errors.New("vault is emergency paused")

	// ErrExceedsLimit covers deployment-cap violations and withdrawals beyond the
	// owner's redeemable claim or the vault's on-hand liquidity.
	ErrExceedsLimit = errors.New("amount exceeds available limit")

	// ErrInsufficientAllowance is returned when a third party withdraws or redeems
	// without a sufficient share allowance from the owner.
	ErrInsufficientAllowance = errors.New("insufficient share allowance")

	// ErrInsufficientReturn rejects a yield-session return below the deployed
	// principal: no partial-loss path exists.
	ErrInsufficientReturn = errors.New("return is below deployed principal")

	// ErrSessionClosed is returned when a return targets an already-closed session.
	ErrSessionClosed = errors.New("yield session already closed")

	// ErrNoteTypeInactive gates purchases against deactivated note types.
	ErrNoteTypeInactive = errors.New("note type is not active")

	// ErrTransferFailed wraps a failure reported by the asset-transfer collaborator.
	ErrTransferFailed = errors.New("asset transfer failed")
)
