/**
 * @description
 * The invoice registry: owns invoice records, their sequential ids, and the status
 * lifecycle. It is the leaf ledger of the platform; vaults, note types, and the
 * coordinator all reference it. Ids can be pre-allocated so a vault can be
 * constructed against its real invoice id before the record itself exists.
 *
 * @notes
 * - Status writes by authorized callers are permissive: any known status is
 *   accepted, but a write that is not a legal lifecycle successor is logged.
 * - Records are never deleted.
 */

package ledger

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

// MaxMaturityDays bounds invoice tenor to one year.
const MaxMaturityDays = 365

// CreateInvoiceParams carries everything needed to create an invoice record.
// ID must be a value previously returned by AllocateID, or zero to allocate
// one during creation.
type CreateInvoiceParams struct {
	ID              int64
	Issuer          uuid.UUID
	Debtor          uuid.UUID
	FaceValue       int64
	DiscountRateBps int64
	MaturityDays    int
	VaultID         uuid.UUID
	MetadataURI     string
}

// StatusChange records one status write, for event publication.
type StatusChange struct {
	InvoiceID int64
	Old       domain.InvoiceStatus
	New       domain.InvoiceStatus
	At        time.Time
}

// Registry is the in-memory invoice ledger. All access is serialized through
// its mutex; individual operations are atomic.
type Registry struct {
	mu       sync.RWMutex
	nextID   int64
	invoices map[int64]*domain.Invoice
	byIssuer map[uuid.UUID][]int64
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		invoices: make(map[int64]*domain.Invoice),
		byIssuer: make(map[uuid.UUID][]int64),
		now:      time.Now,
	}
}

// AllocateID reserves and returns the next sequential invoice id without any
// other side effects. The coordinator uses this to bind a vault to its invoice
// before the record is created.
func (r *Registry) AllocateID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

// Create validates and records a new invoice. It fails with ErrInvalidArgument
// on any violated precondition and never partially applies.
func (r *Registry) Create(p CreateInvoiceParams) (*domain.Invoice, error) {
	if p.Issuer == uuid.Nil {
		return nil, fmt.Errorf("issuer is required: %w", domain.ErrInvalidArgument)
	}
	if p.Debtor == uuid.Nil {
		return nil, fmt.Errorf("debtor is required: %w", domain.ErrInvalidArgument)
	}
	if p.FaceValue <= 0 {
		return nil, fmt.Errorf("face value must be positive: %w", domain.ErrInvalidArgument)
	}
	if p.DiscountRateBps < 0 || p.DiscountRateBps > domain.MaxDiscountRateBps {
		return nil, fmt.Errorf("discount rate %d bps out of range: %w", p.DiscountRateBps, domain.ErrInvalidArgument)
	}
	if p.MaturityDays < 1 || p.MaturityDays > MaxMaturityDays {
		return nil, fmt.Errorf("maturity days %d out of range: %w", p.MaturityDays, domain.ErrInvalidArgument)
	}
	if p.VaultID == uuid.Nil {
		return nil, fmt.Errorf("vault reference is required: %w", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(p.MetadataURI) == "" {
		return nil, fmt.Errorf("metadata uri is required: %w", domain.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID
	if id == 0 {
		r.nextID++
		id = r.nextID
	} else if _, exists := r.invoices[id]; exists || id > r.nextID {
		return nil, fmt.Errorf("invoice id %d not allocatable: %w", id, domain.ErrInvalidArgument)
	}

	now := r.now().UTC()
	inv := &domain.Invoice{
		ID:              id,
		Issuer:          p.Issuer,
		Debtor:          p.Debtor,
		FaceValue:       p.FaceValue,
		DiscountRateBps: p.DiscountRateBps,
		MaturityDate:    now.Add(time.Duration(p.MaturityDays) * 24 * time.Hour),
		Status:          domain.InvoiceStatusCreated,
		VaultID:         p.VaultID,
		MetadataURI:     p.MetadataURI,
		CreatedAt:       now,
	}
	r.invoices[id] = inv
	r.byIssuer[p.Issuer] = append(r.byIssuer[p.Issuer], id)

	out := *inv
	return &out, nil
}

// Get returns a copy of the invoice record.
func (r *Registry) Get(id int64) (*domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, domain.ErrInvoiceNotFound)
	}
	out := *inv
	return &out, nil
}

// ListByIssuer returns copies of every invoice created by the issuer, in
// creation order.
func (r *Registry) ListByIssuer(issuer uuid.UUID) []domain.Invoice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byIssuer[issuer]
	out := make([]domain.Invoice, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.invoices[id])
	}
	return out
}

// Count returns the number of invoice records.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.invoices)
}

// SetStatus writes a new status. Authorization (bound vault, platform admin, or
// issuer) is enforced by the coordinator before this is called. Unknown ids fail
// with ErrInvoiceNotFound; unknown status values with ErrInvalidArgument.
func (r *Registry) SetStatus(id int64, status domain.InvoiceStatus) (StatusChange, error) {
	if !domain.IsValidStatus(status) {
		return StatusChange{}, fmt.Errorf("status %q: %w", status, domain.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.invoices[id]
	if !ok {
		return StatusChange{}, fmt.Errorf("invoice %d: %w", id, domain.ErrInvoiceNotFound)
	}

	old := inv.Status
	if old != status && !domain.IsLegalStatusSuccessor(old, status) {
		log.Printf("level=warn component=registry msg=\"out-of-order status write accepted\" invoice_id=%d old=%s new=%s", id, old, status)
	}
	inv.Status = status

	return StatusChange{InvoiceID: id, Old: old, New: status, At: r.now().UTC()}, nil
}

// IssuerOf returns the issuer of the invoice, for authorization checks.
func (r *Registry) IssuerOf(id int64) (uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.invoices[id]
	if !ok {
		return uuid.Nil, fmt.Errorf("invoice %d: %w", id, domain.ErrInvoiceNotFound)
	}
	return inv.Issuer, nil
}

// Restore re-inserts a persisted invoice during boot rehydration, advancing the
// id sequence past it.
func (r *Registry) Restore(inv domain.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := inv
	r.invoices[inv.ID] = &cp
	r.byIssuer[inv.Issuer] = append(r.byIssuer[inv.Issuer], inv.ID)
	if inv.ID > r.nextID {
		r.nextID = inv.ID
	}
}
