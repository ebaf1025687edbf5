/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * All writes are idempotent upserts keyed on the ledger identities, so replaying
 * a write-through after a retry cannot duplicate rows. Reads are only used at
 * boot (rehydration) and by reporting endpoints.
 *
 * @dependencies
 * - context, encoding/json, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fundra/financing-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// SaveInvoice inserts or refreshes an invoice record.
func (r *PostgresRepository) SaveInvoice(ctx context.Context, inv *domain.Invoice) error {
	query := `
		INSERT INTO invoices (id, issuer, debtor, face_value, discount_rate_bps, maturity_date, status, vault_id, metadata_uri, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
	`
	_, err := r.db.Exec(ctx, query,
		inv.ID, inv.Issuer, inv.Debtor, inv.FaceValue, inv.DiscountRateBps,
		inv.MaturityDate, inv.Status, inv.VaultID, inv.MetadataURI, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save invoice %d: %w", inv.ID, err)
	}
	return nil
}

// UpdateInvoiceStatus writes only the status column.
func (r *PostgresRepository) UpdateInvoiceStatus(ctx context.Context, invoiceID int64, status domain.InvoiceStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE invoices SET status = $2 WHERE id = $1`, invoiceID, status)
	if err != nil {
		return fmt.Errorf("update invoice %d status: %w", invoiceID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// ListInvoices returns every invoice in id order, for boot rehydration.
func (r *PostgresRepository) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	query := `
		SELECT id, issuer, debtor, face_value, discount_rate_bps, maturity_date, status, vault_id, metadata_uri, created_at
		FROM invoices ORDER BY id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.Issuer, &inv.Debtor, &inv.FaceValue, &inv.DiscountRateBps,
			&inv.MaturityDate, &inv.Status, &inv.VaultID, &inv.MetadataURI, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// SaveVault upserts a full vault snapshot.
func (r *PostgresRepository) SaveVault(ctx context.Context, s domain.VaultState) error {
	query := `
		INSERT INTO vaults (
			id, invoice_id, admin, funding_target, funding_deadline, minimum_deposit, maximum_deposit,
			active, paused, funding_complete, on_hand_assets, deployed_funds, total_shares,
			reserved_funds, max_deployment_bps, total_yield_generated, depositor_count, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			paused = EXCLUDED.paused,
			funding_complete = EXCLUDED.funding_complete,
			on_hand_assets = EXCLUDED.on_hand_assets,
			deployed_funds = EXCLUDED.deployed_funds,
			total_shares = EXCLUDED.total_shares,
			reserved_funds = EXCLUDED.reserved_funds,
			total_yield_generated = EXCLUDED.total_yield_generated,
			depositor_count = EXCLUDED.depositor_count
	`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.InvoiceID, s.Admin, s.FundingTarget, s.FundingDeadline, s.MinimumDeposit, s.MaximumDeposit,
		s.Active, s.Paused, s.FundingComplete, s.OnHandAssets, s.DeployedFunds, s.TotalShares,
		s.ReservedFunds, s.MaxDeploymentBps, s.TotalYieldGenerated, s.DepositorCount, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save vault %s: %w", s.ID, err)
	}
	return nil
}

// ListVaults returns every vault snapshot for boot rehydration.
func (r *PostgresRepository) ListVaults(ctx context.Context) ([]domain.VaultState, error) {
	query := `
		SELECT id, invoice_id, admin, funding_target, funding_deadline, minimum_deposit, maximum_deposit,
			active, paused, funding_complete, on_hand_assets, deployed_funds, total_shares,
			reserved_funds, max_deployment_bps, total_yield_generated, depositor_count, created_at
		FROM vaults ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	defer rows.Close()

	var out []domain.VaultState
	for rows.Next() {
		var s domain.VaultState
		if err := rows.Scan(&s.ID, &s.InvoiceID, &s.Admin, &s.FundingTarget, &s.FundingDeadline,
			&s.MinimumDeposit, &s.MaximumDeposit, &s.Active, &s.Paused, &s.FundingComplete,
			&s.OnHandAssets, &s.DeployedFunds, &s.TotalShares, &s.ReservedFunds,
			&s.MaxDeploymentBps, &s.TotalYieldGenerated, &s.DepositorCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan vault: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertVaultPosition writes one depositor's holding.
func (r *PostgresRepository) UpsertVaultPosition(ctx context.Context, p domain.VaultPosition) error {
	query := `
		INSERT INTO vault_positions (vault_id, holder, shares, lifetime_assets)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vault_id, holder) DO UPDATE SET
			shares = EXCLUDED.shares,
			lifetime_assets = EXCLUDED.lifetime_assets
	`
	if _, err := r.db.Exec(ctx, query, p.VaultID, p.Holder, p.Shares, p.LifetimeAssets); err != nil {
		return fmt.Errorf("upsert position %s/%s: %w", p.VaultID, p.Holder, err)
	}
	return nil
}

// ListVaultPositions returns a vault's positions in first-deposit order.
func (r *PostgresRepository) ListVaultPositions(ctx context.Context, vaultID uuid.UUID) ([]domain.VaultPosition, error) {
	query := `SELECT vault_id, holder, shares, lifetime_assets FROM vault_positions WHERE vault_id = $1 ORDER BY ctid`
	rows, err := r.db.Query(ctx, query, vaultID)
	if err != nil {
		return nil, fmt.Errorf("list positions for %s: %w", vaultID, err)
	}
	defer rows.Close()

	var out []domain.VaultPosition
	for rows.Next() {
		var p domain.VaultPosition
		if err := rows.Scan(&p.VaultID, &p.Holder, &p.Shares, &p.LifetimeAssets); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveYieldSession upserts a session record (open or closed).
func (r *PostgresRepository) SaveYieldSession(ctx context.Context, s domain.YieldSession) error {
	query := `
		INSERT INTO yield_sessions (id, vault_id, executor, principal, deployed_at, active, closed_at, yield_generated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (vault_id, id) DO UPDATE SET
			active = EXCLUDED.active,
			closed_at = EXCLUDED.closed_at,
			yield_generated = EXCLUDED.yield_generated
	`
	if _, err := r.db.Exec(ctx, query, s.ID, s.VaultID, s.Executor, s.Principal, s.DeployedAt, s.Active, s.ClosedAt, s.YieldGenerated); err != nil {
		return fmt.Errorf("save session %s/%d: %w", s.VaultID, s.ID, err)
	}
	return nil
}

// ListYieldSessions returns a vault's sessions in id order.
func (r *PostgresRepository) ListYieldSessions(ctx context.Context, vaultID uuid.UUID) ([]domain.YieldSession, error) {
	query := `
		SELECT id, vault_id, executor, principal, deployed_at, active, closed_at, yield_generated
		FROM yield_sessions WHERE vault_id = $1 ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, vaultID)
	if err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", vaultID, err)
	}
	defer rows.Close()

	var out []domain.YieldSession
	for rows.Next() {
		var s domain.YieldSession
		if err := rows.Scan(&s.ID, &s.VaultID, &s.Executor, &s.Principal, &s.DeployedAt, &s.Active, &s.ClosedAt, &s.YieldGenerated); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveNoteType upserts a note type. The invoice id set is stored as JSONB.
func (r *PostgresRepository) SaveNoteType(ctx context.Context, nt domain.NoteType) error {
	ids, err := json.Marshal(nt.InvoiceIDs)
	if err != nil {
		return fmt.Errorf("marshal invoice ids: %w", err)
	}
	query := `
		INSERT INTO note_types (id, name, invoice_ids, aggregate_face_value, minimum_purchase, price_per_unit, active, total_supply, yield_deposited, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			total_supply = EXCLUDED.total_supply,
			yield_deposited = EXCLUDED.yield_deposited
	`
	if _, err := r.db.Exec(ctx, query, nt.ID, nt.Name, ids, nt.AggregateFaceValue, nt.MinimumPurchase,
		nt.PricePerUnit, nt.Active, nt.TotalSupply, nt.YieldDeposited, nt.CreatedAt); err != nil {
		return fmt.Errorf("save note type %d: %w", nt.ID, err)
	}
	return nil
}

// UpsertNoteHolding writes one holder's units and claim watermark.
func (r *PostgresRepository) UpsertNoteHolding(ctx context.Context, h domain.NoteHolding) error {
	query := `
		INSERT INTO note_holdings (note_type_id, holder, units, yield_claimed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (note_type_id, holder) DO UPDATE SET
			units = EXCLUDED.units,
			yield_claimed = EXCLUDED.yield_claimed
	`
	if _, err := r.db.Exec(ctx, query, h.NoteTypeID, h.Holder, h.Units, h.YieldClaimed); err != nil {
		return fmt.Errorf("upsert holding %d/%s: %w", h.NoteTypeID, h.Holder, err)
	}
	return nil
}

// ListNoteTypes returns every note type in id order.
func (r *PostgresRepository) ListNoteTypes(ctx context.Context) ([]domain.NoteType, error) {
	query := `
		SELECT id, name, invoice_ids, aggregate_face_value, minimum_purchase, price_per_unit, active, total_supply, yield_deposited, created_at
		FROM note_types ORDER BY id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list note types: %w", err)
	}
	defer rows.Close()

	var out []domain.NoteType
	for rows.Next() {
		var nt domain.NoteType
		var ids []byte
		if err := rows.Scan(&nt.ID, &nt.Name, &ids, &nt.AggregateFaceValue, &nt.MinimumPurchase,
			&nt.PricePerUnit, &nt.Active, &nt.TotalSupply, &nt.YieldDeposited, &nt.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note type: %w", err)
		}
		if err := json.Unmarshal(ids, &nt.InvoiceIDs); err != nil {
			return nil, fmt.Errorf("decode invoice ids for note type %d: %w", nt.ID, err)
		}
		out = append(out, nt)
	}
	return out, rows.Err()
}

// ListNoteHoldings returns all holdings for a note type.
func (r *PostgresRepository) ListNoteHoldings(ctx context.Context, noteTypeID int64) ([]domain.NoteHolding, error) {
	query := `SELECT note_type_id, holder, units, yield_claimed FROM note_holdings WHERE note_type_id = $1 ORDER BY ctid`
	rows, err := r.db.Query(ctx, query, noteTypeID)
	if err != nil {
		return nil, fmt.Errorf("list holdings for %d: %w", noteTypeID, err)
	}
	defer rows.Close()

	var out []domain.NoteHolding
	for rows.Next() {
		var h domain.NoteHolding
		if err := rows.Scan(&h.NoteTypeID, &h.Holder, &h.Units, &h.YieldClaimed); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// RecordEvent appends one row to the append-only event journal.
func (r *PostgresRepository) RecordEvent(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	query := `INSERT INTO ledger_events (routing_key, payload, recorded_at) VALUES ($1, $2, now())`
	if _, err := r.db.Exec(ctx, query, routingKey, body); err != nil {
		return fmt.Errorf("record event %s: %w", routingKey, err)
	}
	return nil
}
