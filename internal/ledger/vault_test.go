package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

// fakeMover is an in-memory asset-transfer collaborator. It tracks per-account
// balances against each custody account and can be told to fail.
type fakeMover struct {
	inCalls  int
	outCalls int
	failIn   bool
	failOut  bool
	// custody account → net balance held
	custody map[uuid.UUID]int64
}

func newFakeMover() *fakeMover {
	return &fakeMover{custody: make(map[uuid.UUID]int64)}
}

func (m *fakeMover) TransferIn(ctx context.Context, custody, from uuid.UUID, amount int64) error {
	m.inCalls++
	if m.failIn {
		return errors.New("custody rejected transfer in")
	}
	m.custody[custody] += amount
	return nil
}

func (m *fakeMover) TransferOut(ctx context.Context, custody, to uuid.UUID, amount int64) error {
	m.outCalls++
	if m.failOut {
		return errors.New("custody rejected transfer out")
	}
	m.custody[custody] -= amount
	return nil
}

func testVault(t *testing.T, target int64) (*Vault, *Registry, *fakeMover) {
	t.Helper()
	reg := NewRegistry()
	mover := newFakeMover()
	issuer := uuid.New()
	vaultID := uuid.New()
	invID := reg.AllocateID()
	if _, err := reg.Create(CreateInvoiceParams{
		ID:              invID,
		Issuer:          issuer,
		Debtor:          uuid.New(),
		FaceValue:       target,
		DiscountRateBps: 0,
		MaturityDays:    90,
		VaultID:         vaultID,
		MetadataURI:     "ipfs://invoice-meta",
	}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	v, err := NewVault(VaultParams{
		ID:               vaultID,
		InvoiceID:        invID,
		Admin:            issuer,
		FundingTarget:    target,
		FundingDeadline:  time.Now().Add(24 * time.Hour),
		MinimumDeposit:   100,
		MaximumDeposit:   target,
		MaxDeploymentBps: 8000,
	}, reg, mover)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}
	return v, reg, mover
}

func TestDepositMintsSharesOneToOneWhenEmpty(t *testing.T) {
	v, _, mover := testVault(t, 90_000)
	alice := uuid.New()

	res, err := v.Deposit(context.Background(), alice, alice, 50_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if res.Shares != 50_000 {
		t.Fatalf("expected 1:1 shares on empty vault, got %d", res.Shares)
	}
	if res.FundingCompleted {
		t.Fatal("did not expect funding completion at 50k of 90k")
	}
	if v.TotalAssets() != 50_000 || v.SharesOf(alice) != 50_000 {
		t.Fatalf("state mismatch: assets=%d shares=%d", v.TotalAssets(), v.SharesOf(alice))
	}
	if mover.custody[v.ID()] != 50_000 {
		t.Fatalf("custody balance %d", mover.custody[v.ID()])
	}
}

func TestFundingCompletionScenario(t *testing.T) {
	// Target 90,000: 50,000 + 40,000 from two depositors exactly reaches it.
	v, reg, _ := testVault(t, 90_000)
	alice, bob := uuid.New(), uuid.New()

	if _, err := v.Deposit(context.Background(), alice, alice, 50_000); err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	res, err := v.Deposit(context.Background(), bob, bob, 40_000)
	if err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	if !res.FundingCompleted {
		t.Fatal("expected funding completion at exactly the target")
	}
	if res.TotalRaised != 90_000 || res.DepositorCount != 2 {
		t.Fatalf("completion report: raised=%d depositors=%d", res.TotalRaised, res.DepositorCount)
	}
	if res.StatusChange == nil || res.StatusChange.New != domain.InvoiceStatusFunded {
		t.Fatalf("expected registry transition to funded, got %+v", res.StatusChange)
	}
	inv, err := reg.Get(v.InvoiceID())
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if inv.Status != domain.InvoiceStatusFunded {
		t.Fatalf("invoice status %s", inv.Status)
	}

	// A subsequent deposit of 1 fails with the window error, not a bound error,
	// and completion never re-fires.
	if _, err := v.Deposit(context.Background(), alice, alice, 1); !errors.Is(err, domain.ErrFundingClosed) {
		t.Fatalf("expected ErrFundingClosed, got %v", err)
	}
}

func TestDepositWindowErrors(t *testing.T) {
	v, _, _ := testVault(t, 90_000)
	alice := uuid.New()
	ctx := context.Background()

	if _, err := v.Deposit(ctx, alice, alice, 50); !errors.Is(err, domain.ErrBelowMinimum) {
		t.Fatalf("below minimum: %v", err)
	}
	if _, err := v.Deposit(ctx, alice, alice, 90_001); !errors.Is(err, domain.ErrAboveMaximum) {
		t.Fatalf("above maximum: %v", err)
	}
	if _, err := v.Deposit(ctx, alice, alice, 89_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := v.Deposit(ctx, alice, alice, 2_000); !errors.Is(err, domain.ErrExceedsTarget) {
		t.Fatalf("exceeds target: %v", err)
	}

	v.Pause()
	if _, err := v.Deposit(ctx, alice, alice, 500); !errors.Is(err, domain.ErrVaultPaused) {
		t.Fatalf("paused: %v", err)
	}
	v.Resume()

	v.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	if _, err := v.Deposit(ctx, alice, alice, 500); !errors.Is(err, domain.ErrFundingClosed) {
		t.Fatalf("past deadline: %v", err)
	}
}

func TestDepositAbortsCleanlyOnTransferFailure(t *testing.T) {
	v, _, mover := testVault(t, 90_000)
	alice := uuid.New()
	mover.failIn = true

	_, err := v.Deposit(context.Background(), alice, alice, 1_000)
	if !errors.Is(err, domain.ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if v.TotalAssets() != 0 || v.SharesOf(alice) != 0 {
		t.Fatal("state mutated despite failed transfer")
	}
}

func TestConservationUnderDepositWithdrawCycles(t *testing.T) {
	// With no yield events, sum of net contributions equals total assets, and
	// any rounding loss stays inside the vault.
	v, _, _ := testVault(t, 1_000_000)
	ctx := context.Background()
	holders := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	net := make(map[uuid.UUID]int64)

	amounts := []int64{3_333, 7_777, 123_457, 999, 50_001}
	for i, a := range amounts {
		h := holders[i%len(holders)]
		if _, err := v.Deposit(ctx, h, h, a); err != nil {
			t.Fatalf("deposit %d: %v", a, err)
		}
		net[h] += a
	}
	withdrawals := []int64{1_111, 2_500, 333}
	for i, a := range withdrawals {
		h := holders[i%len(holders)]
		if _, err := v.Withdraw(ctx, h, h, h, a); err != nil {
			t.Fatalf("withdraw %d: %v", a, err)
		}
		net[h] -= a
	}

	var sum int64
	for _, n := range net {
		sum += n
	}
	if v.TotalAssets() != sum {
		t.Fatalf("conservation broken: totalAssets=%d net contributions=%d", v.TotalAssets(), sum)
	}
	// Redeeming everything never pays out more than was put in.
	var paidOut int64
	for _, h := range holders {
		res, err := v.Redeem(ctx, h, h, h, v.SharesOf(h))
		if err != nil {
			t.Fatalf("redeem all for %s: %v", h, err)
		}
		paidOut += res.Assets
	}
	if paidOut > sum {
		t.Fatalf("vault paid out %d against %d contributed", paidOut, sum)
	}
}

func TestSharePriceMonotonicityUnderYield(t *testing.T) {
	v, _, _ := testVault(t, 1_000_000)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	executor := uuid.New()

	if _, err := v.Deposit(ctx, alice, alice, 100_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	before := v.PreviewRedeem(10_000)

	// Round-trip a deployment with yield.
	s, err := v.WithdrawForYield(ctx, executor, 50_000)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, err := v.DepositYieldReturn(ctx, executor, s.ID, 60_000); err != nil {
		t.Fatalf("return: %v", err)
	}

	after := v.PreviewRedeem(10_000)
	if after <= before {
		t.Fatalf("share price did not increase after yield: before=%d after=%d", before, after)
	}

	// A depositor arriving after yield gets strictly fewer shares per asset.
	res, err := v.Deposit(ctx, bob, bob, 100_000)
	if err != nil {
		t.Fatalf("late deposit: %v", err)
	}
	if res.Shares >= 100_000 {
		t.Fatalf("late depositor received %d shares for 100000 assets", res.Shares)
	}
}

func TestWithdrawCappedByOnHandLiquidity(t *testing.T) {
	v, _, _ := testVault(t, 1_000_000)
	ctx := context.Background()
	alice := uuid.New()
	executor := uuid.New()

	if _, err := v.Deposit(ctx, alice, alice, 100_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := v.WithdrawForYield(ctx, executor, 80_000); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	// Claim is 100k but only 20k is on hand.
	limits := v.Limits(alice)
	if limits.MaxWithdraw != 20_000 {
		t.Fatalf("maxWithdraw=%d, want 20000", limits.MaxWithdraw)
	}
	if _, err := v.Withdraw(ctx, alice, alice, alice, 20_001); !errors.Is(err, domain.ErrExceedsLimit) {
		t.Fatalf("expected ErrExceedsLimit, got %v", err)
	}
	if _, err := v.Withdraw(ctx, alice, alice, alice, 20_000); err != nil {
		t.Fatalf("withdraw at cap: %v", err)
	}
}

func TestThirdPartyWithdrawSpendsAllowance(t *testing.T) {
	v, _, _ := testVault(t, 1_000_000)
	ctx := context.Background()
	owner, operator := uuid.New(), uuid.New()

	if _, err := v.Deposit(ctx, owner, owner, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := v.Withdraw(ctx, operator, operator, owner, 1_000); !errors.Is(err, domain.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}

	if err := v.ApproveShares(owner, operator, 1_000); err != nil {
		t.Fatalf("approve: %v", err)
	}
	res, err := v.Withdraw(ctx, operator, operator, owner, 1_000)
	if err != nil {
		t.Fatalf("withdraw with allowance: %v", err)
	}
	if got := v.AllowanceOf(owner, operator); got != 1_000-res.Shares {
		t.Fatalf("allowance not spent: %d", got)
	}
}

func TestMintRoundsAssetsUp(t *testing.T) {
	v, _, _ := testVault(t, 1_000_000)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	executor := uuid.New()

	if _, err := v.Deposit(ctx, alice, alice, 100_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	s, err := v.WithdrawForYield(ctx, executor, 50_000)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	// 1/3 extra yield makes the share price awkward.
	if _, err := v.DepositYieldReturn(ctx, executor, s.ID, 83_333); err != nil {
		t.Fatalf("return: %v", err)
	}

	wantShares := int64(3_000)
	res, err := v.Mint(ctx, bob, bob, wantShares)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if res.Shares != wantShares {
		t.Fatalf("minted %d shares, want exactly %d", res.Shares, wantShares)
	}
	// Up rounding: the assets charged must redeem back to at most wantShares.
	if back := v.PreviewDeposit(res.Assets); back < wantShares {
		t.Fatalf("mint undercharged: %d assets convert to only %d shares", res.Assets, back)
	}
}

func TestLimitsViewsZeroWhenGated(t *testing.T) {
	v, _, _ := testVault(t, 90_000)
	alice := uuid.New()
	if _, err := v.Deposit(context.Background(), alice, alice, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	v.Pause()
	l := v.Limits(alice)
	if l.MaxDeposit != 0 || l.MaxMint != 0 || l.MaxWithdraw != 0 || l.MaxRedeem != 0 {
		t.Fatalf("paused limits not zero: %+v", l)
	}
	v.Resume()

	v.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	l = v.Limits(alice)
	if l.MaxDeposit != 0 || l.MaxMint != 0 {
		t.Fatalf("deposit-side limits past deadline not zero: %+v", l)
	}
	if l.MaxWithdraw == 0 {
		t.Fatal("withdraw side should survive the deadline")
	}
}

func TestExpireVault(t *testing.T) {
	v, _, _ := testVault(t, 90_000)
	alice := uuid.New()
	if _, err := v.Deposit(context.Background(), alice, alice, 10_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := v.Expire(); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected expire before deadline to fail, got %v", err)
	}

	v.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	ev, err := v.Expire()
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if ev.TotalRaised != 10_000 {
		t.Fatalf("expiry raised=%d", ev.TotalRaised)
	}
	if _, err := v.Expire(); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected second expire to fail, got %v", err)
	}
	// Depositors can still exit after expiry.
	if _, err := v.Withdraw(context.Background(), alice, alice, alice, 10_000); err != nil {
		t.Fatalf("withdraw after expiry: %v", err)
	}
}

func TestRoundingAlwaysFavorsVault(t *testing.T) {
	// Across many odd amounts, a deposit immediately followed by a full redeem
	// never pays back more than was deposited, and loses at most one unit per
	// conversion.
	v, _, _ := testVault(t, 10_000_000)
	ctx := context.Background()
	alice := uuid.New()
	executor := uuid.New()

	if _, err := v.Deposit(ctx, alice, alice, 1_000_003); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
	s, err := v.WithdrawForYield(ctx, executor, 500_000)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, err := v.DepositYieldReturn(ctx, executor, s.ID, 576_923); err != nil {
		t.Fatalf("return: %v", err)
	}

	for i, amount := range []int64{101, 997, 1_009, 33_331} {
		probe := uuid.New()
		dep, err := v.Deposit(ctx, probe, probe, amount)
		if err != nil {
			t.Fatalf("probe deposit %d: %v", i, err)
		}
		red, err := v.Redeem(ctx, probe, probe, probe, dep.Shares)
		if err != nil {
			t.Fatalf("probe redeem %d: %v", i, err)
		}
		if red.Assets > amount {
			t.Fatalf("round trip gained value: in=%d out=%d", amount, red.Assets)
		}
		if amount-red.Assets > 2 {
			t.Fatalf("round trip lost more than rounding: in=%d out=%d", amount, red.Assets)
		}
	}
}

func TestRestoreVaultRebuildsState(t *testing.T) {
	v, reg, mover := testVault(t, 1_000_000)
	ctx := context.Background()
	alice := uuid.New()
	executor := uuid.New()

	if _, err := v.Deposit(ctx, alice, alice, 250_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := v.WithdrawForYield(ctx, executor, 100_000); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	restored := RestoreVault(v.Snapshot(), v.Positions(), v.Sessions(), reg, mover)
	if restored.TotalAssets() != v.TotalAssets() {
		t.Fatalf("restored assets %d != %d", restored.TotalAssets(), v.TotalAssets())
	}
	if restored.SharesOf(alice) != v.SharesOf(alice) {
		t.Fatal("restored shares mismatch")
	}
	// Session sequence continues past restored sessions.
	s, err := restored.WithdrawForYield(ctx, executor, 10_000)
	if err != nil {
		t.Fatalf("deploy on restored vault: %v", err)
	}
	if s.ID != 2 {
		t.Fatalf("session id sequence broken: got %d", s.ID)
	}
}

func TestVaultParamValidation(t *testing.T) {
	reg := NewRegistry()
	mover := newFakeMover()
	base := VaultParams{
		ID:               uuid.New(),
		InvoiceID:        1,
		Admin:            uuid.New(),
		FundingTarget:    1_000,
		FundingDeadline:  time.Now().Add(time.Hour),
		MinimumDeposit:   10,
		MaximumDeposit:   1_000,
		MaxDeploymentBps: 8000,
	}

	bad := []func(p *VaultParams){
		func(p *VaultParams) { p.ID = uuid.Nil },
		func(p *VaultParams) { p.InvoiceID = 0 },
		func(p *VaultParams) { p.FundingTarget = 0 },
		func(p *VaultParams) { p.MinimumDeposit = 0 },
		func(p *VaultParams) { p.MaximumDeposit = 5 },
		func(p *VaultParams) { p.MaxDeploymentBps = 10_001 },
		func(p *VaultParams) { p.ReservedFunds = -1 },
	}
	for i, mutate := range bad {
		p := base
		mutate(&p)
		if _, err := NewVault(p, reg, mover); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("case %d: expected ErrInvalidArgument, got %v", i, err)
		}
	}
	if _, err := NewVault(base, reg, mover); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
}

func TestLifetimeDepositTotalsAccumulate(t *testing.T) {
	v, _, _ := testVault(t, 1_000_000)
	ctx := context.Background()
	alice := uuid.New()

	for _, a := range []int64{1_000, 2_000, 3_000} {
		if _, err := v.Deposit(ctx, alice, alice, a); err != nil {
			t.Fatalf("deposit %d: %v", a, err)
		}
	}
	if _, err := v.Withdraw(ctx, alice, alice, alice, 4_000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	positions := v.Positions()
	if len(positions) != 1 {
		t.Fatalf("expected one position, got %d", len(positions))
	}
	if positions[0].LifetimeAssets != 6_000 {
		t.Fatalf("lifetime deposits %d, want 6000 (withdrawals must not decrement)", positions[0].LifetimeAssets)
	}
	if positions[0].Shares != 2_000 {
		t.Fatalf("remaining shares %d", positions[0].Shares)
	}
}

func TestFundingCompletionSurvivesMissingInvoice(t *testing.T) {
	// A vault bound to an invoice id the registry never saw still completes its
	// funding; the status change is dropped (and logged) rather than failing the
	// depositor's transfer.
	reg := NewRegistry()
	mover := newFakeMover()
	v, err := NewVault(VaultParams{
		ID: uuid.New(), InvoiceID: 777, Admin: uuid.New(), FundingTarget: 10_000,
		FundingDeadline: time.Now().Add(time.Hour), MinimumDeposit: 100,
		MaximumDeposit: 10_000, MaxDeploymentBps: 8000,
	}, reg, mover)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	alice := uuid.New()
	res, err := v.Deposit(context.Background(), alice, alice, 10_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !res.FundingCompleted {
		t.Fatal("funding should complete at target")
	}
	if res.StatusChange != nil {
		t.Fatalf("no status change should be reported for a missing invoice, got %+v", res.StatusChange)
	}
}

func TestConversionsSurviveFullEmergencyRecall(t *testing.T) {
	// A full-cap vault can deploy its entire balance; an emergency recall then
	// zeroes total assets while shares remain outstanding. Reads and deposits
	// must keep working in that state instead of dividing by zero.
	reg := NewRegistry()
	mover := newFakeMover()
	issuer := uuid.New()
	vaultID := uuid.New()
	invID := reg.AllocateID()
	if _, err := reg.Create(CreateInvoiceParams{
		ID: invID, Issuer: issuer, Debtor: uuid.New(), FaceValue: 90_000,
		MaturityDays: 90, VaultID: vaultID, MetadataURI: "ipfs://invoice-meta",
	}); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	v, err := NewVault(VaultParams{
		ID: vaultID, InvoiceID: invID, Admin: issuer, FundingTarget: 90_000,
		FundingDeadline: time.Now().Add(24 * time.Hour), MinimumDeposit: 100,
		MaximumDeposit: 90_000, MaxDeploymentBps: 10_000,
	}, reg, mover)
	if err != nil {
		t.Fatalf("new vault: %v", err)
	}

	alice := uuid.New()
	executor := uuid.New()
	if _, err := v.Deposit(context.Background(), alice, alice, 50_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := v.WithdrawForYield(context.Background(), executor, 50_000); err != nil {
		t.Fatalf("withdraw for yield: %v", err)
	}
	if _, err := v.EmergencyWithdrawDeployed(); err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	v.Resume()

	if got := v.TotalAssets(); got != 0 {
		t.Fatalf("recall should leave zero assets, got %d", got)
	}
	if got := v.SharesOf(alice); got != 50_000 {
		t.Fatalf("shares must survive the recall, got %d", got)
	}

	limits := v.Limits(alice)
	if limits.MaxDeposit != 90_000 || limits.MaxMint != 90_000 {
		t.Fatalf("zero-asset vault should quote 1:1 limits: %+v", limits)
	}
	if got := v.PreviewDeposit(10_000); got != 10_000 {
		t.Fatalf("zero-asset preview should be 1:1, got %d", got)
	}

	bob := uuid.New()
	res, err := v.Deposit(context.Background(), bob, bob, 10_000)
	if err != nil {
		t.Fatalf("deposit after recall: %v", err)
	}
	if res.Shares != 10_000 {
		t.Fatalf("expected 1:1 mint after recall, got %d", res.Shares)
	}
}

func ExampleVault_Deposit() {
	reg := NewRegistry()
	mover := newFakeMover()
	vaultID := uuid.New()
	issuer := uuid.New()
	invID := reg.AllocateID()
	reg.Create(CreateInvoiceParams{
		ID: invID, Issuer: issuer, Debtor: uuid.New(), FaceValue: 90_000,
		MaturityDays: 30, VaultID: vaultID, MetadataURI: "ipfs://x",
	})
	v, _ := NewVault(VaultParams{
		ID: vaultID, InvoiceID: invID, Admin: issuer, FundingTarget: 90_000,
		FundingDeadline: time.Now().Add(time.Hour), MinimumDeposit: 100,
		MaximumDeposit: 90_000, MaxDeploymentBps: 8000,
	}, reg, mover)

	res, _ := v.Deposit(context.Background(), issuer, issuer, 90_000)
	fmt.Println(res.FundingCompleted)
	// Output: true
}
