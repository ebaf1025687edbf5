/**
 * @description
 * This file defines the event payloads published to RabbitMQ when ledger state
 * changes. Consumers (notification, reporting) receive these on the platform
 * exchange keyed by the routing keys below.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for platform events.
const (
	RoutingKeyInvoiceCreated       = "invoice.created"
	RoutingKeyInvoiceStatusChanged = "invoice.status.changed"
	RoutingKeyFundingCompleted     = "vault.funding.completed"
	RoutingKeyVaultExpired         = "vault.funding.expired"
	RoutingKeyYieldReturned        = "vault.yield.returned"
	RoutingKeyEmergencyWithdraw    = "vault.emergency.withdraw"
	RoutingKeyNoteYieldDistributed = "note.yield.distributed"
	RoutingKeyNoteYieldClaimed     = "note.yield.claimed"
)

// InvoiceCreatedEvent is published when an invoice and its funding vault are created.
type InvoiceCreatedEvent struct {
	InvoiceID     int64     `json:"invoice_id"`
	Issuer        uuid.UUID `json:"issuer"`
	VaultID       uuid.UUID `json:"vault_id"`
	FaceValue     int64     `json:"face_value"`
	FundingTarget int64     `json:"funding_target"`
	Timestamp     time.Time `json:"timestamp"`
}

// InvoiceStatusChangedEvent is published whenever an invoice status is written.
type InvoiceStatusChangedEvent struct {
	InvoiceID int64         `json:"invoice_id"`
	OldStatus InvoiceStatus `json:"old_status"`
	NewStatus InvoiceStatus `json:"new_status"`
	Actor     uuid.UUID     `json:"actor"`
	Timestamp time.Time     `json:"timestamp"`
}

// FundingCompletedEvent is published exactly once per vault, when a deposit
// brings total assets to the funding target.
type FundingCompletedEvent struct {
	VaultID        uuid.UUID `json:"vault_id"`
	InvoiceID      int64     `json:"invoice_id"`
	TotalRaised    int64     `json:"total_raised"`
	DepositorCount int       `json:"depositor_count"`
	Timestamp      time.Time `json:"timestamp"`
}

// VaultExpiredEvent is published when a vault passes its deadline unfunded and
// is deactivated by the expiry sweep or an explicit expire call.
type VaultExpiredEvent struct {
	VaultID     uuid.UUID `json:"vault_id"`
	InvoiceID   int64     `json:"invoice_id"`
	TotalRaised int64     `json:"total_raised"`
	Timestamp   time.Time `json:"timestamp"`
}

// YieldReturnedEvent is published when a deployment session closes with its
// principal/yield breakdown.
type YieldReturnedEvent struct {
	VaultID   uuid.UUID `json:"vault_id"`
	SessionID int64     `json:"session_id"`
	Principal int64     `json:"principal"`
	Yield     int64     `json:"yield"`
	Timestamp time.Time `json:"timestamp"`
}

// EmergencyWithdrawEvent is published when deployed funds are force-recalled.
type EmergencyWithdrawEvent struct {
	VaultID        uuid.UUID `json:"vault_id"`
	TotalWithdrawn int64     `json:"total_withdrawn"`
	SessionsClosed int       `json:"sessions_closed"`
	Timestamp      time.Time `json:"timestamp"`
}

// NoteYieldDistributedEvent is published when yield is deposited into a note pool.
type NoteYieldDistributedEvent struct {
	NoteTypeID int64     `json:"note_type_id"`
	Amount     int64     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// NoteYieldClaimedEvent is published when a holder settles a claim.
type NoteYieldClaimedEvent struct {
	NoteTypeID int64     `json:"note_type_id"`
	Holder     uuid.UUID `json:"holder"`
	Amount     int64     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}
