/**
 * @description
 * This file defines the invoice domain model and its status lifecycle. Invoices are
 * the leaf entity of the platform: every vault, note type, and statistic ultimately
 * references an invoice record held by the registry.
 *
 * @notes
 * - Monetary values are stored as `int64` in the smallest currency unit (micro-units),
 *   which avoids floating-point inaccuracies with financial data.
 * - Rates are integer basis points (10000 = 100%).
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusCreated   InvoiceStatus = "created"
	InvoiceStatusFunded    InvoiceStatus = "funded"
	InvoiceStatusMatured   InvoiceStatus = "matured"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusDefaulted InvoiceStatus = "defaulted"
)

// MaxDiscountRateBps caps the discount haircut at 20%.
const MaxDiscountRateBps = 2000

// Invoice represents a tokenized receivable. This struct maps directly to the
// `invoices` table in the database.
type Invoice struct {
	ID              int64         `json:"id"`
	Issuer          uuid.UUID     `json:"issuer"`
	Debtor          uuid.UUID     `json:"debtor"`
	FaceValue       int64         `json:"face_value"` // in micro-units
	DiscountRateBps int64         `json:"discount_rate_bps"`
	MaturityDate    time.Time     `json:"maturity_date"`
	Status          InvoiceStatus `json:"status"`
	VaultID         uuid.UUID     `json:"vault_id"`
	MetadataURI     string        `json:"metadata_uri"`
	CreatedAt       time.Time     `json:"created_at"`
}

// CreateInvoiceRequest is the DTO for incoming invoice creation API requests.
type CreateInvoiceRequest struct {
	Debtor          uuid.UUID `json:"debtor"`
	FaceValue       int64     `json:"face_value"`
	DiscountRateBps int64     `json:"discount_rate_bps"`
	MaturityDays    int       `json:"maturity_days"`
	MetadataURI     string    `json:"metadata_uri"`
}

// UpdateInvoiceStatusRequest is the DTO for status update API requests.
type UpdateInvoiceStatusRequest struct {
	Status InvoiceStatus `json:"status"`
}

// IsValidStatus reports whether s is one of the known invoice statuses.
func IsValidStatus(s InvoiceStatus) bool {
	switch s {
	case InvoiceStatusCreated, InvoiceStatusFunded, InvoiceStatusMatured,
		InvoiceStatusPaid, InvoiceStatusDefaulted:
		return true
	}
	return false
}

// IsLegalStatusSuccessor reports whether `to` is a legal successor of `from` in the
// documented lifecycle ordering (created → funded → matured → paid|defaulted).
// The registry accepts out-of-order writes from authorized callers but logs them,
// so this is advisory rather than enforced.
func IsLegalStatusSuccessor(from, to InvoiceStatus) bool {
	switch from {
	case InvoiceStatusCreated:
		return to == InvoiceStatusFunded
	case InvoiceStatusFunded:
		return to == InvoiceStatusMatured
	case InvoiceStatusMatured:
		return to == InvoiceStatusPaid || to == InvoiceStatusDefaulted
	}
	return false
}
