/**
 * @description
 * This file defines the fractional note domain models. A note type bundles a set of
 * invoices into a portfolio whose units are sold to buyers; deposited yield is owed
 * pro-rata to unit holders and settled through an explicit claim that advances a
 * per-holder watermark.
 *
 * @notes
 * - Note accounting is fully decoupled from vault share accounting: the two ledgers
 *   only share the invoice registry as a read-side reference.
 * - Unit prices are quoted per UnitScale units, fixed-point.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// UnitScale is the fixed-point scale for note units: a purchase of UnitScale
// units costs exactly PricePerUnit micro-units.
const UnitScale = 1_000_000

// NoteType is a fractional-ownership portfolio over a set of invoices.
// Maps to the `note_types` table.
type NoteType struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	InvoiceIDs         []int64   `json:"invoice_ids"`
	AggregateFaceValue int64     `json:"aggregate_face_value"` // cached at creation, never recomputed
	MinimumPurchase    int64     `json:"minimum_purchase"`
	PricePerUnit       int64     `json:"price_per_unit"` // micro-units per UnitScale units
	Active             bool      `json:"active"`
	TotalSupply        int64     `json:"total_supply"`
	YieldDeposited     int64     `json:"yield_deposited"` // cumulative, never decremented
	CreatedAt          time.Time `json:"created_at"`
}

// NoteHolding is one holder's unit balance and claim watermark for a note type.
// Maps to the `note_holdings` table.
type NoteHolding struct {
	NoteTypeID   int64     `json:"note_type_id"`
	Holder       uuid.UUID `json:"holder"`
	Units        int64     `json:"units"`
	YieldClaimed int64     `json:"yield_claimed"` // lifetime yield paid out to this holder
}

// CreateNoteTypeRequest is the DTO for note type creation API requests.
type CreateNoteTypeRequest struct {
	Name            string  `json:"name"`
	InvoiceIDs      []int64 `json:"invoice_ids"`
	MinimumPurchase int64   `json:"minimum_purchase"`
	PricePerUnit    int64   `json:"price_per_unit"`
}

// PurchaseNotesRequest is the DTO for note purchase API requests.
type PurchaseNotesRequest struct {
	Amount int64 `json:"amount"` // units
}

// DistributeYieldRequest is the DTO for privileged note yield deposits.
type DistributeYieldRequest struct {
	Amount int64 `json:"amount"` // micro-units
}

// NoteClaimResult reports a settled yield claim.
type NoteClaimResult struct {
	NoteTypeID int64     `json:"note_type_id"`
	Holder     uuid.UUID `json:"holder"`
	Amount     int64     `json:"amount"`
}
