/**
 * @description
 * This file defines the `Repository` interface, the persistence contract for the
 * financing service. The in-memory ledgers are the authoritative state; the
 * repository is a write-through journal used for durability, boot rehydration,
 * and reporting. Defining an interface decouples the coordinator from PostgreSQL
 * and lets tests substitute in-memory stubs.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For vault and actor identities.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

// Repository defines the set of methods for persisting ledger state.
type Repository interface {
	// Invoice methods
	SaveInvoice(ctx context.Context, inv *domain.Invoice) error
	UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status domain.InvoiceStatus) error
	ListInvoices(ctx context.Context) ([]domain.Invoice, error)

	// Vault methods
	SaveVault(ctx context.Context, state domain.VaultState) error
	ListVaults(ctx context.Context) ([]domain.VaultState, error)
	UpsertVaultPosition(ctx context.Context, pos domain.VaultPosition) error
	ListVaultPositions(ctx context.Context, vaultID uuid.UUID) ([]domain.VaultPosition, error)

	// Yield session methods
	SaveYieldSession(ctx context.Context, session domain.YieldSession) error
	ListYieldSessions(ctx context.Context, vaultID uuid.UUID) ([]domain.YieldSession, error)

	// Note ledger methods
	SaveNoteType(ctx context.Context, nt domain.NoteType) error
	UpsertNoteHolding(ctx context.Context, holding domain.NoteHolding) error
	ListNoteTypes(ctx context.Context) ([]domain.NoteType, error)
	ListNoteHoldings(ctx context.Context, noteTypeID int64) ([]domain.NoteHolding, error)

	// Event journal
	RecordEvent(ctx context.Context, routingKey string, payload any) error
}
