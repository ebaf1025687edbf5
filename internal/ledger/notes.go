/**
 * @description
 * The multi-invoice note ledger: fractional-ownership units over portfolios of
 * invoices, with an independent pro-rata yield pool per note type. Yield is
 * distributed into a cumulative pool pointer and settled pull-style: claimable
 * amounts are floor pro-rata views, and an explicit claim pays out and advances a
 * per-holder watermark so the same yield can never be paid twice.
 *
 * @notes
 * - Completely decoupled from vault share accounting; the invoice registry is
 *   only read at note-type creation to cache the aggregate face value.
 * - Floor division on claims means rounding dust stays in the pool, never the
 *   holder.
 */

package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

type noteType struct {
	domain.NoteType
	holdings map[uuid.UUID]int64
	claimed  map[uuid.UUID]int64
	order    []uuid.UUID
}

// NoteLedger owns every note type and its holder balances. The treasury custody
// account receives purchase proceeds and yield deposits, and pays out claims.
type NoteLedger struct {
	mu       sync.Mutex
	registry *Registry
	assets   AssetMover
	treasury uuid.UUID
	nextID   int64
	types    map[int64]*noteType
	now      func() time.Time
}

// NewNoteLedger creates an empty note ledger backed by the given treasury account.
func NewNoteLedger(registry *Registry, assets AssetMover, treasury uuid.UUID) *NoteLedger {
	return &NoteLedger{
		registry: registry,
		assets:   assets,
		treasury: treasury,
		types:    make(map[int64]*noteType),
		now:      time.Now,
	}
}

// CreateNoteType registers a new portfolio. The aggregate face value is summed
// from the referenced invoices at creation time only and never recomputed.
func (n *NoteLedger) CreateNoteType(name string, invoiceIDs []int64, minimumPurchase, pricePerUnit int64) (domain.NoteType, error) {
	if strings.TrimSpace(name) == "" {
		return domain.NoteType{}, fmt.Errorf("name is required: %w", domain.ErrInvalidArgument)
	}
	if len(invoiceIDs) == 0 {
		return domain.NoteType{}, fmt.Errorf("at least one invoice is required: %w", domain.ErrInvalidArgument)
	}
	if pricePerUnit <= 0 {
		return domain.NoteType{}, fmt.Errorf("price per unit must be positive: %w", domain.ErrInvalidArgument)
	}
	if minimumPurchase < 0 {
		return domain.NoteType{}, fmt.Errorf("minimum purchase negative: %w", domain.ErrInvalidArgument)
	}

	var aggregate int64
	for _, id := range invoiceIDs {
		inv, err := n.registry.Get(id)
		if err != nil {
			return domain.NoteType{}, err
		}
		aggregate += inv.FaceValue
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	nt := &noteType{
		NoteType: domain.NoteType{
			ID:                 n.nextID,
			Name:               name,
			InvoiceIDs:         append([]int64(nil), invoiceIDs...),
			AggregateFaceValue: aggregate,
			MinimumPurchase:    minimumPurchase,
			PricePerUnit:       pricePerUnit,
			Active:             true,
			CreatedAt:          n.now().UTC(),
		},
		holdings: make(map[uuid.UUID]int64),
		claimed:  make(map[uuid.UUID]int64),
	}
	n.types[nt.ID] = nt
	return nt.NoteType, nil
}

// PurchaseNotes mints `amount` units to the buyer against payment of
// amount * pricePerUnit / UnitScale micro-units, pulled into the treasury.
func (n *NoteLedger) PurchaseNotes(ctx context.Context, buyer uuid.UUID, noteTypeID, amount int64) (int64, error) {
	if buyer == uuid.Nil || amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	nt, ok := n.types[noteTypeID]
	if !ok {
		return 0, fmt.Errorf("note type %d: %w", noteTypeID, domain.ErrNoteTypeNotFound)
	}
	if !nt.Active {
		return 0, domain.ErrNoteTypeInactive
	}
	if amount < nt.MinimumPurchase {
		return 0, domain.ErrBelowMinimum
	}
	cost := mulDivDown(amount, nt.PricePerUnit, domain.UnitScale)
	if cost <= 0 {
		return 0, fmt.Errorf("purchase cost rounds to zero: %w", domain.ErrInvalidArgument)
	}

	if err := n.assets.TransferIn(ctx, n.treasury, buyer, cost); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	if _, seen := nt.holdings[buyer]; !seen {
		nt.order = append(nt.order, buyer)
	}
	nt.holdings[buyer] += amount
	nt.TotalSupply += amount
	return cost, nil
}

// DistributeYield pulls yield into the note type's cumulative pool. Individual
// holder balances are untouched until claims settle.
func (n *NoteLedger) DistributeYield(ctx context.Context, from uuid.UUID, noteTypeID, amount int64) (domain.NoteYieldDistributedEvent, error) {
	if amount <= 0 {
		return domain.NoteYieldDistributedEvent{}, domain.ErrInvalidArgument
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	nt, ok := n.types[noteTypeID]
	if !ok {
		return domain.NoteYieldDistributedEvent{}, fmt.Errorf("note type %d: %w", noteTypeID, domain.ErrNoteTypeNotFound)
	}

	if err := n.assets.TransferIn(ctx, n.treasury, from, amount); err != nil {
		return domain.NoteYieldDistributedEvent{}, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	nt.YieldDeposited += amount

	return domain.NoteYieldDistributedEvent{
		NoteTypeID: noteTypeID,
		Amount:     amount,
		Timestamp:  n.now().UTC(),
	}, nil
}

// claimableLocked is the holder's outstanding entitlement: floor pro-rata share
// of all yield ever deposited, minus what was already claimed.
func (nt *noteType) claimableLocked(holder uuid.UUID) int64 {
	bal := nt.holdings[holder]
	if bal == 0 || nt.TotalSupply == 0 {
		return 0
	}
	entitled := mulDivDown(nt.YieldDeposited, bal, nt.TotalSupply)
	out := entitled - nt.claimed[holder]
	if out < 0 {
		return 0
	}
	return out
}

// ClaimableYield is a pure view of the holder's settleable amount.
func (n *NoteLedger) ClaimableYield(noteTypeID int64, holder uuid.UUID) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nt, ok := n.types[noteTypeID]
	if !ok {
		return 0, fmt.Errorf("note type %d: %w", noteTypeID, domain.ErrNoteTypeNotFound)
	}
	return nt.claimableLocked(holder), nil
}

// ClaimYield settles the holder's outstanding entitlement: pays it out from the
// treasury and advances the claimed watermark so repeated claims return zero
// until new yield arrives.
func (n *NoteLedger) ClaimYield(ctx context.Context, noteTypeID int64, holder uuid.UUID) (domain.NoteClaimResult, error) {
	if holder == uuid.Nil {
		return domain.NoteClaimResult{}, domain.ErrInvalidArgument
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	nt, ok := n.types[noteTypeID]
	if !ok {
		return domain.NoteClaimResult{}, fmt.Errorf("note type %d: %w", noteTypeID, domain.ErrNoteTypeNotFound)
	}
	amount := nt.claimableLocked(holder)
	if amount == 0 {
		return domain.NoteClaimResult{NoteTypeID: noteTypeID, Holder: holder}, nil
	}

	if err := n.assets.TransferOut(ctx, n.treasury, holder, amount); err != nil {
		return domain.NoteClaimResult{}, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	nt.claimed[holder] += amount

	return domain.NoteClaimResult{NoteTypeID: noteTypeID, Holder: holder, Amount: amount}, nil
}

// SetActive toggles whether new purchases are accepted.
func (n *NoteLedger) SetActive(noteTypeID int64, active bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	nt, ok := n.types[noteTypeID]
	if !ok {
		return fmt.Errorf("note type %d: %w", noteTypeID, domain.ErrNoteTypeNotFound)
	}
	nt.Active = active
	return nil
}

// Get returns a copy of one note type.
func (n *NoteLedger) Get(noteTypeID int64) (domain.NoteType, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nt, ok := n.types[noteTypeID]
	if !ok {
		return domain.NoteType{}, fmt.Errorf("note type %d: %w", noteTypeID, domain.ErrNoteTypeNotFound)
	}
	out := nt.NoteType
	out.InvoiceIDs = append([]int64(nil), nt.InvoiceIDs...)
	return out, nil
}

// List returns copies of every note type in creation order.
func (n *NoteLedger) List() []domain.NoteType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.NoteType, 0, len(n.types))
	for id := int64(1); id <= n.nextID; id++ {
		if nt, ok := n.types[id]; ok {
			cp := nt.NoteType
			cp.InvoiceIDs = append([]int64(nil), nt.InvoiceIDs...)
			out = append(out, cp)
		}
	}
	return out
}

// HoldingOf returns the holder's unit balance and claim watermark.
func (n *NoteLedger) HoldingOf(noteTypeID int64, holder uuid.UUID) (domain.NoteHolding, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nt, ok := n.types[noteTypeID]
	if !ok {
		return domain.NoteHolding{}, fmt.Errorf("note type %d: %w", noteTypeID, domain.ErrNoteTypeNotFound)
	}
	return domain.NoteHolding{
		NoteTypeID:   noteTypeID,
		Holder:       holder,
		Units:        nt.holdings[holder],
		YieldClaimed: nt.claimed[holder],
	}, nil
}

// Holdings returns every holder's position for a note type, in first-purchase order.
func (n *NoteLedger) Holdings(noteTypeID int64) ([]domain.NoteHolding, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nt, ok := n.types[noteTypeID]
	if !ok {
		return nil, fmt.Errorf("note type %d: %w", noteTypeID, domain.ErrNoteTypeNotFound)
	}
	out := make([]domain.NoteHolding, 0, len(nt.order))
	for _, h := range nt.order {
		out = append(out, domain.NoteHolding{
			NoteTypeID:   noteTypeID,
			Holder:       h,
			Units:        nt.holdings[h],
			YieldClaimed: nt.claimed[h],
		})
	}
	return out, nil
}

// Restore re-inserts a persisted note type and its holdings during boot.
func (n *NoteLedger) Restore(t domain.NoteType, holdings []domain.NoteHolding) {
	n.mu.Lock()
	defer n.mu.Unlock()
	nt := &noteType{
		NoteType: t,
		holdings: make(map[uuid.UUID]int64),
		claimed:  make(map[uuid.UUID]int64),
	}
	for _, h := range holdings {
		nt.order = append(nt.order, h.Holder)
		nt.holdings[h.Holder] = h.Units
		nt.claimed[h.Holder] = h.YieldClaimed
	}
	n.types[t.ID] = nt
	if t.ID > n.nextID {
		n.nextID = t.ID
	}
}
