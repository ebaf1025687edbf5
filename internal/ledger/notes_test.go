package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

func noteFixture(t *testing.T) (*NoteLedger, *Registry, *fakeMover, []int64) {
	t.Helper()
	reg := NewRegistry()
	mover := newFakeMover()
	var ids []int64
	for _, fv := range []int64{100_000, 250_000, 50_000} {
		p := validInvoiceParams()
		p.FaceValue = fv
		inv, err := reg.Create(p)
		if err != nil {
			t.Fatalf("create invoice: %v", err)
		}
		ids = append(ids, inv.ID)
	}
	return NewNoteLedger(reg, mover, uuid.New()), reg, mover, ids
}

func TestCreateNoteTypeCachesAggregateValue(t *testing.T) {
	notes, reg, _, ids := noteFixture(t)

	nt, err := notes.CreateNoteType("Q1 receivables", ids, 10, 2_000_000)
	if err != nil {
		t.Fatalf("create note type: %v", err)
	}
	if nt.ID != 1 || nt.AggregateFaceValue != 400_000 {
		t.Fatalf("note type %+v", nt)
	}

	// Later invoice changes must not move the cached aggregate.
	if _, err := reg.SetStatus(ids[0], domain.InvoiceStatusDefaulted); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, _ := notes.Get(nt.ID)
	if got.AggregateFaceValue != 400_000 {
		t.Fatalf("aggregate moved to %d", got.AggregateFaceValue)
	}
}

func TestCreateNoteTypeValidation(t *testing.T) {
	notes, _, _, ids := noteFixture(t)

	if _, err := notes.CreateNoteType("  ", ids, 0, 1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("empty name: %v", err)
	}
	if _, err := notes.CreateNoteType("x", nil, 0, 1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("no invoices: %v", err)
	}
	if _, err := notes.CreateNoteType("x", ids, 0, 0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero price: %v", err)
	}
	if _, err := notes.CreateNoteType("x", []int64{ids[0], 999}, 0, 1); !errors.Is(err, domain.ErrInvoiceNotFound) {
		t.Fatalf("unknown invoice: %v", err)
	}
}

func TestPurchaseNotesCostAndSupply(t *testing.T) {
	notes, _, mover, ids := noteFixture(t)
	ctx := context.Background()
	buyer := uuid.New()

	// 2.5 micro-units per unit at the fixed-point scale.
	nt, err := notes.CreateNoteType("bundle", ids, 1_000_000, 2_500_000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cost, err := notes.PurchaseNotes(ctx, buyer, nt.ID, 4_000_000)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if cost != 10_000_000 {
		t.Fatalf("cost %d, want 10000000", cost)
	}
	if mover.custody[notes.treasury] != cost {
		t.Fatalf("treasury balance %d", mover.custody[notes.treasury])
	}

	holding, _ := notes.HoldingOf(nt.ID, buyer)
	if holding.Units != 4_000_000 {
		t.Fatalf("units %d", holding.Units)
	}
	got, _ := notes.Get(nt.ID)
	if got.TotalSupply != 4_000_000 {
		t.Fatalf("supply %d", got.TotalSupply)
	}

	// Below minimum purchase and inactive type are rejected.
	if _, err := notes.PurchaseNotes(ctx, buyer, nt.ID, 999_999); !errors.Is(err, domain.ErrBelowMinimum) {
		t.Fatalf("below minimum: %v", err)
	}
	if err := notes.SetActive(nt.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := notes.PurchaseNotes(ctx, buyer, nt.ID, 2_000_000); !errors.Is(err, domain.ErrNoteTypeInactive) {
		t.Fatalf("inactive: %v", err)
	}
}

func TestNoteYieldProRataFloorBound(t *testing.T) {
	notes, _, _, ids := noteFixture(t)
	ctx := context.Background()

	nt, err := notes.CreateNoteType("bundle", ids, 1, 1_000_000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Three holders with awkward balances summing to the supply.
	holders := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	balances := []int64{3_333_337, 1_000_001, 5_555_563}
	for i, h := range holders {
		if _, err := notes.PurchaseNotes(ctx, h, nt.ID, balances[i]); err != nil {
			t.Fatalf("purchase %d: %v", i, err)
		}
	}

	const yield = 1_000_000_007
	if _, err := notes.DistributeYield(ctx, uuid.New(), nt.ID, yield); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	var sum int64
	for _, h := range holders {
		c, err := notes.ClaimableYield(nt.ID, h)
		if err != nil {
			t.Fatalf("claimable: %v", err)
		}
		sum += c
	}
	if sum > yield {
		t.Fatalf("claims %d exceed deposited yield %d", sum, yield)
	}
	if yield-sum >= int64(len(holders)) {
		t.Fatalf("floor rounding lost %d units across %d holders", yield-sum, len(holders))
	}

	// A stranger has nothing to claim.
	if c, _ := notes.ClaimableYield(nt.ID, uuid.New()); c != 0 {
		t.Fatalf("stranger claimable %d", c)
	}
}

func TestClaimYieldSettlesExactlyOnce(t *testing.T) {
	notes, _, mover, ids := noteFixture(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	nt, _ := notes.CreateNoteType("bundle", ids, 1, 1_000_000)
	if _, err := notes.PurchaseNotes(ctx, alice, nt.ID, 750); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := notes.PurchaseNotes(ctx, bob, nt.ID, 250); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := notes.DistributeYield(ctx, uuid.New(), nt.ID, 10_000); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	res, err := notes.ClaimYield(ctx, nt.ID, alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Amount != 7_500 {
		t.Fatalf("claimed %d, want 7500", res.Amount)
	}

	// The view drops to zero and a repeated claim pays nothing.
	if c, _ := notes.ClaimableYield(nt.ID, alice); c != 0 {
		t.Fatalf("claimable after claim %d", c)
	}
	again, err := notes.ClaimYield(ctx, nt.ID, alice)
	if err != nil {
		t.Fatalf("repeat claim: %v", err)
	}
	if again.Amount != 0 {
		t.Fatalf("repeat claim paid %d", again.Amount)
	}

	// New yield re-opens the claim for the delta only.
	if _, err := notes.DistributeYield(ctx, uuid.New(), nt.ID, 4_000); err != nil {
		t.Fatalf("second distribute: %v", err)
	}
	if c, _ := notes.ClaimableYield(nt.ID, alice); c != 3_000 {
		t.Fatalf("delta claimable %d, want 3000", c)
	}

	// A failed payout leaves the watermark untouched.
	mover.failOut = true
	if _, err := notes.ClaimYield(ctx, nt.ID, bob); !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	mover.failOut = false
	if c, _ := notes.ClaimableYield(nt.ID, bob); c != 2_500+1_000 {
		t.Fatalf("bob claimable %d after failed claim", c)
	}
}

func TestNoteLedgerRestore(t *testing.T) {
	notes, _, _, _ := noteFixture(t)
	holder := uuid.New()

	notes.Restore(domain.NoteType{
		ID:             5,
		Name:           "restored",
		InvoiceIDs:     []int64{1},
		PricePerUnit:   1_000_000,
		Active:         true,
		TotalSupply:    100,
		YieldDeposited: 1_000,
	}, []domain.NoteHolding{{NoteTypeID: 5, Holder: holder, Units: 100, YieldClaimed: 400}})

	if c, err := notes.ClaimableYield(5, holder); err != nil || c != 600 {
		t.Fatalf("restored claimable=%d err=%v", c, err)
	}
	nt, err := notes.CreateNoteType("next", []int64{1}, 1, 1_000_000)
	if err != nil {
		t.Fatalf("create after restore: %v", err)
	}
	if nt.ID != 6 {
		t.Fatalf("sequence did not advance: %d", nt.ID)
	}
}
