/**
 * @description
 * The per-invoice yield vault: an ERC-4626 style share ledger over a single
 * underlying asset. It converts between asset amounts and shares, enforces the
 * funding window (cap, deadline, per-deposit bounds), tracks per-depositor
 * contributions, and triggers the invoice's Funded transition exactly once when
 * the target is reached.
 *
 * Rounding policy (who absorbs the remainder):
 *   deposit  assets→shares  down
 *   mint     shares→assets  up
 *   withdraw assets→shares  up
 *   redeem   shares→assets  down
 * Every direction rounds in the vault's favor, so repeated small operations can
 * never extract value from the share pool.
 *
 * @notes
 * - One mutex per vault serializes all operations; each public method is
 *   all-or-nothing. Validation runs before any mutation, and asset transfers run
 *   before the in-memory ledger is touched, so a collaborator failure aborts
 *   cleanly with no partial state.
 * - TotalAssets = on-hand custody balance + funds deployed to yield sessions.
 */

package ledger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

// VaultParams configures a new vault. The invoice id must already be allocated.
type VaultParams struct {
	ID               uuid.UUID
	InvoiceID        int64
	Admin            uuid.UUID
	FundingTarget    int64
	FundingDeadline  time.Time
	MinimumDeposit   int64
	MaximumDeposit   int64
	ReservedFunds    int64
	MaxDeploymentBps int64
}

// DepositResult reports a completed deposit or mint.
type DepositResult struct {
	Assets           int64
	Shares           int64
	FundingCompleted bool
	StatusChange     *StatusChange
	TotalRaised      int64
	DepositorCount   int
}

// WithdrawResult reports a completed withdraw or redeem.
type WithdrawResult struct {
	Assets int64
	Shares int64
}

// Vault is the accounting engine for one invoice's funding pool.
type Vault struct {
	mu sync.Mutex

	id        uuid.UUID
	invoiceID int64
	admin     uuid.UUID
	registry  *Registry
	assets    AssetMover

	fundingTarget    int64
	fundingDeadline  time.Time
	minimumDeposit   int64
	maximumDeposit   int64
	reservedFunds    int64
	maxDeploymentBps int64

	active          bool
	paused          bool
	fundingComplete bool

	onHand              int64
	deployed            int64
	totalShares         int64
	totalYieldGenerated int64

	shares     map[uuid.UUID]int64
	deposited  map[uuid.UUID]int64            // lifetime deposits per holder
	allowances map[uuid.UUID]map[uuid.UUID]int64 // owner → spender → shares
	depositors []uuid.UUID

	nextSessionID int64
	sessions      map[int64]*domain.YieldSession
	sessionOrder  []int64

	createdAt time.Time
	now       func() time.Time
}

// NewVault creates an active, unpaused vault bound to an allocated invoice id.
func NewVault(p VaultParams, registry *Registry, assets AssetMover) (*Vault, error) {
	if p.ID == uuid.Nil || p.InvoiceID <= 0 {
		return nil, fmt.Errorf("vault identity incomplete: %w", domain.ErrInvalidArgument)
	}
	if p.FundingTarget <= 0 {
		return nil, fmt.Errorf("funding target must be positive: %w", domain.ErrInvalidArgument)
	}
	if p.MinimumDeposit <= 0 || p.MaximumDeposit < p.MinimumDeposit {
		return nil, fmt.Errorf("deposit bounds invalid: %w", domain.ErrInvalidArgument)
	}
	if p.MaxDeploymentBps < 0 || p.MaxDeploymentBps > 10000 {
		return nil, fmt.Errorf("deployment cap %d bps out of range: %w", p.MaxDeploymentBps, domain.ErrInvalidArgument)
	}
	if p.ReservedFunds < 0 {
		return nil, fmt.Errorf("reserved funds negative: %w", domain.ErrInvalidArgument)
	}

	v := &Vault{
		id:               p.ID,
		invoiceID:        p.InvoiceID,
		admin:            p.Admin,
		registry:         registry,
		assets:           assets,
		fundingTarget:    p.FundingTarget,
		fundingDeadline:  p.FundingDeadline,
		minimumDeposit:   p.MinimumDeposit,
		maximumDeposit:   p.MaximumDeposit,
		reservedFunds:    p.ReservedFunds,
		maxDeploymentBps: p.MaxDeploymentBps,
		active:           true,
		shares:           make(map[uuid.UUID]int64),
		deposited:        make(map[uuid.UUID]int64),
		allowances:       make(map[uuid.UUID]map[uuid.UUID]int64),
		sessions:         make(map[int64]*domain.YieldSession),
		now:              time.Now,
	}
	v.createdAt = v.now().UTC()
	return v, nil
}

// ID returns the vault identity.
func (v *Vault) ID() uuid.UUID { return v.id }

// InvoiceID returns the bound invoice id.
func (v *Vault) InvoiceID() int64 { return v.invoiceID }

// Admin returns the vault's administrative owner.
func (v *Vault) Admin() uuid.UUID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.admin
}

// TotalAssets is the on-hand balance plus deployed funds.
func (v *Vault) TotalAssets() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.onHand + v.deployed
}

// SharesOf returns the holder's share balance.
func (v *Vault) SharesOf(holder uuid.UUID) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shares[holder]
}

func (v *Vault) totalAssetsLocked() int64 { return v.onHand + v.deployed }

// convertToShares applies the share-price formula. With an empty share ledger
// the conversion is one-to-one. Total assets can also reach zero while shares
// are outstanding (emergency recall abandons deployed funds without crediting
// custody); that state falls back to one-to-one as well so the division below
// never sees a zero denominator.
func (v *Vault) convertToShares(assets int64, roundUp bool) int64 {
	total := v.totalAssetsLocked()
	if v.totalShares == 0 || total == 0 || assets == 0 {
		return assets
	}
	if roundUp {
		return mulDivUp(assets, v.totalShares, total)
	}
	return mulDivDown(assets, v.totalShares, total)
}

func (v *Vault) convertToAssets(shares int64, roundUp bool) int64 {
	if v.totalShares == 0 {
		return shares
	}
	if roundUp {
		return mulDivUp(shares, v.totalAssetsLocked(), v.totalShares)
	}
	return mulDivDown(shares, v.totalAssetsLocked(), v.totalShares)
}

// depositWindowError returns the gating error for a new deposit, or nil when
// the funding window is open. Ordering matters: a closed window wins over
// amount-bound violations.
func (v *Vault) depositWindowError(assets int64) error {
	if v.paused {
		return domain.ErrVaultPaused
	}
	if !v.active || v.fundingComplete || !v.now().Before(v.fundingDeadline) {
		return domain.ErrFundingClosed
	}
	if assets < v.minimumDeposit {
		return domain.ErrBelowMinimum
	}
	if assets > v.maximumDeposit {
		return domain.ErrAboveMaximum
	}
	if v.totalAssetsLocked()+assets > v.fundingTarget {
		return domain.ErrExceedsTarget
	}
	return nil
}

// recordDeposit applies the share mint and depositor bookkeeping, and fires the
// one-shot funding completion when the target is reached.
func (v *Vault) recordDeposit(receiver uuid.UUID, assets, shares int64) DepositResult {
	if _, seen := v.deposited[receiver]; !seen {
		v.depositors = append(v.depositors, receiver)
	}
	v.deposited[receiver] += assets
	v.shares[receiver] += shares
	v.totalShares += shares
	v.onHand += assets

	res := DepositResult{
		Assets:         assets,
		Shares:         shares,
		TotalRaised:    v.totalAssetsLocked(),
		DepositorCount: len(v.depositors),
	}
	if !v.fundingComplete && v.totalAssetsLocked() >= v.fundingTarget {
		v.fundingComplete = true
		res.FundingCompleted = true
		if change, err := v.registry.SetStatus(v.invoiceID, domain.InvoiceStatusFunded); err == nil {
			res.StatusChange = &change
		} else {
			log.Printf("level=error component=vault msg=\"funded status write failed\" vault_id=%s invoice_id=%d error=%v", v.id, v.invoiceID, err)
		}
	}
	return res
}

// Deposit pulls `assets` from the caller and mints shares (rounded down) to the
// receiver. Reaching the funding target closes the window and marks the invoice
// Funded exactly once.
func (v *Vault) Deposit(ctx context.Context, caller, receiver uuid.UUID, assets int64) (DepositResult, error) {
	if assets <= 0 || receiver == uuid.Nil {
		return DepositResult{}, domain.ErrInvalidArgument
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.depositWindowError(assets); err != nil {
		return DepositResult{}, err
	}
	shares := v.convertToShares(assets, false)

	if err := v.assets.TransferIn(ctx, v.id, caller, assets); err != nil {
		return DepositResult{}, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	return v.recordDeposit(receiver, assets, shares), nil
}

// Mint is the shares-denominated deposit: the asset cost is derived from the
// requested shares with up rounding, then passes the same window checks.
func (v *Vault) Mint(ctx context.Context, caller, receiver uuid.UUID, shares int64) (DepositResult, error) {
	if shares <= 0 || receiver == uuid.Nil {
		return DepositResult{}, domain.ErrInvalidArgument
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	assets := v.convertToAssets(shares, true)
	if err := v.depositWindowError(assets); err != nil {
		return DepositResult{}, err
	}

	if err := v.assets.TransferIn(ctx, v.id, caller, assets); err != nil {
		return DepositResult{}, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}
	return v.recordDeposit(receiver, assets, shares), nil
}

// spendAllowance consumes `shares` of owner's allowance for spender.
func (v *Vault) spendAllowance(owner, spender uuid.UUID, shares int64) error {
	granted := v.allowances[owner][spender]
	if granted < shares {
		return domain.ErrInsufficientAllowance
	}
	v.allowances[owner][spender] = granted - shares
	return nil
}

// maxWithdrawLocked is the owner's asset-side cap: the smaller of the vault's
// immediately available liquidity and the owner's asset-equivalent claim.
// Deployed funds are deliberately excluded.
func (v *Vault) maxWithdrawLocked(owner uuid.UUID) int64 {
	return minInt64(v.onHand, v.convertToAssets(v.shares[owner], false))
}

func (v *Vault) maxRedeemLocked(owner uuid.UUID) int64 {
	return minInt64(v.shares[owner], v.convertToShares(v.onHand, false))
}

// Withdraw burns shares (rounded up) against an exact asset amount and pays the
// receiver. A caller other than the owner spends a share allowance.
func (v *Vault) Withdraw(ctx context.Context, caller, receiver, owner uuid.UUID, assets int64) (WithdrawResult, error) {
	if assets <= 0 || receiver == uuid.Nil || owner == uuid.Nil {
		return WithdrawResult{}, domain.ErrInvalidArgument
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return WithdrawResult{}, domain.ErrVaultPaused
	}
	if assets > v.maxWithdrawLocked(owner) {
		return WithdrawResult{}, domain.ErrExceedsLimit
	}
	shares := v.convertToShares(assets, true)
	if shares > v.shares[owner] {
		// Up-rounding can demand one share more than the owner holds.
		return WithdrawResult{}, domain.ErrExceedsLimit
	}
	if caller != owner {
		if err := v.spendAllowance(owner, caller, shares); err != nil {
			return WithdrawResult{}, err
		}
	}

	if err := v.assets.TransferOut(ctx, v.id, receiver, assets); err != nil {
		return WithdrawResult{}, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
	}

	v.shares[owner] -= shares
	v.totalShares -= shares
	v.onHand -= assets
	return WithdrawResult{Assets: assets, Shares: shares}, nil
}

// Redeem burns an exact share amount for assets rounded down.
func (v *Vault) Redeem(ctx context.Context, caller, receiver, owner uuid.UUID, shares int64) (WithdrawResult, error) {
	if shares <= 0 || receiver == uuid.Nil || owner == uuid.Nil {
		return WithdrawResult{}, domain.ErrInvalidArgument
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.paused {
		return WithdrawResult{}, domain.ErrVaultPaused
	}
	if shares > v.maxRedeemLocked(owner) {
		return WithdrawResult{}, domain.ErrExceedsLimit
	}
	if caller != owner {
		if err := v.spendAllowance(owner, caller, shares); err != nil {
			return WithdrawResult{}, err
		}
	}
	assets := v.convertToAssets(shares, false)

	if assets > 0 {
		if err := v.assets.TransferOut(ctx, v.id, receiver, assets); err != nil {
			return WithdrawResult{}, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err)
		}
	}

	v.shares[owner] -= shares
	v.totalShares -= shares
	v.onHand -= assets
	return WithdrawResult{Assets: assets, Shares: shares}, nil
}

// ApproveShares sets the spender's allowance over the owner's shares.
func (v *Vault) ApproveShares(owner, spender uuid.UUID, shares int64) error {
	if spender == uuid.Nil || shares < 0 {
		return domain.ErrInvalidArgument
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.allowances[owner] == nil {
		v.allowances[owner] = make(map[uuid.UUID]int64)
	}
	v.allowances[owner][spender] = shares
	return nil
}

// AllowanceOf returns the remaining share allowance.
func (v *Vault) AllowanceOf(owner, spender uuid.UUID) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.allowances[owner][spender]
}

// Limits reports the four deposit/withdraw caps for an owner. All read-side:
// no state is touched.
func (v *Vault) Limits(owner uuid.UUID) domain.VaultLimits {
	v.mu.Lock()
	defer v.mu.Unlock()

	var l domain.VaultLimits
	if !v.paused {
		l.MaxWithdraw = v.maxWithdrawLocked(owner)
		l.MaxRedeem = v.maxRedeemLocked(owner)
		if v.active && !v.fundingComplete && v.now().Before(v.fundingDeadline) {
			remaining := v.fundingTarget - v.totalAssetsLocked()
			l.MaxDeposit = minInt64(v.maximumDeposit, remaining)
			if l.MaxDeposit < 0 {
				l.MaxDeposit = 0
			}
			l.MaxMint = v.convertToShares(l.MaxDeposit, false)
		}
	}
	return l
}

// PreviewDeposit returns the shares a deposit of `assets` would mint now.
func (v *Vault) PreviewDeposit(assets int64) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.convertToShares(assets, false)
}

// PreviewMint returns the assets a mint of `shares` would cost now.
func (v *Vault) PreviewMint(shares int64) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.convertToAssets(shares, true)
}

// PreviewWithdraw returns the shares a withdrawal of `assets` would burn now.
func (v *Vault) PreviewWithdraw(assets int64) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.convertToShares(assets, true)
}

// PreviewRedeem returns the assets a redemption of `shares` would pay now.
func (v *Vault) PreviewRedeem(shares int64) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.convertToAssets(shares, false)
}

// Pause halts all deposit/withdraw/deploy activity until Resume.
func (v *Vault) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = true
}

// Resume lifts an emergency pause.
func (v *Vault) Resume() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paused = false
}

// Expire deactivates a vault whose deadline has passed without reaching the
// funding target. Callable by anyone once the condition holds; depositors can
// still withdraw afterwards.
func (v *Vault) Expire() (domain.VaultExpiredEvent, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.active || v.fundingComplete {
		return domain.VaultExpiredEvent{}, fmt.Errorf("vault %s not expirable: %w", v.id, domain.ErrInvalidArgument)
	}
	if v.now().Before(v.fundingDeadline) {
		return domain.VaultExpiredEvent{}, fmt.Errorf("deadline not reached: %w", domain.ErrInvalidArgument)
	}
	v.active = false
	return domain.VaultExpiredEvent{
		VaultID:     v.id,
		InvoiceID:   v.invoiceID,
		TotalRaised: v.totalAssetsLocked(),
		Timestamp:   v.now().UTC(),
	}, nil
}

// TransferAdmin hands vault administration to a new owner.
func (v *Vault) TransferAdmin(newAdmin uuid.UUID) error {
	if newAdmin == uuid.Nil {
		return domain.ErrInvalidArgument
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.admin = newAdmin
	return nil
}

// Snapshot returns the persisted view of the vault state.
func (v *Vault) Snapshot() domain.VaultState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *Vault) snapshotLocked() domain.VaultState {
	return domain.VaultState{
		ID:                  v.id,
		InvoiceID:           v.invoiceID,
		Admin:               v.admin,
		FundingTarget:       v.fundingTarget,
		FundingDeadline:     v.fundingDeadline,
		MinimumDeposit:      v.minimumDeposit,
		MaximumDeposit:      v.maximumDeposit,
		Active:              v.active,
		Paused:              v.paused,
		FundingComplete:     v.fundingComplete,
		OnHandAssets:        v.onHand,
		DeployedFunds:       v.deployed,
		TotalShares:         v.totalShares,
		ReservedFunds:       v.reservedFunds,
		MaxDeploymentBps:    v.maxDeploymentBps,
		TotalYieldGenerated: v.totalYieldGenerated,
		DepositorCount:      len(v.depositors),
		CreatedAt:           v.createdAt,
	}
}

// Positions returns every depositor's current holding, in first-deposit order.
func (v *Vault) Positions() []domain.VaultPosition {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.VaultPosition, 0, len(v.depositors))
	for _, h := range v.depositors {
		out = append(out, domain.VaultPosition{
			VaultID:        v.id,
			Holder:         h,
			Shares:         v.shares[h],
			LifetimeAssets: v.deposited[h],
		})
	}
	return out
}

// RestoreVault rebuilds a vault from persisted state during boot.
func RestoreVault(state domain.VaultState, positions []domain.VaultPosition, sessions []domain.YieldSession, registry *Registry, assets AssetMover) *Vault {
	v := &Vault{
		id:                  state.ID,
		invoiceID:           state.InvoiceID,
		admin:               state.Admin,
		registry:            registry,
		assets:              assets,
		fundingTarget:       state.FundingTarget,
		fundingDeadline:     state.FundingDeadline,
		minimumDeposit:      state.MinimumDeposit,
		maximumDeposit:      state.MaximumDeposit,
		reservedFunds:       state.ReservedFunds,
		maxDeploymentBps:    state.MaxDeploymentBps,
		active:              state.Active,
		paused:              state.Paused,
		fundingComplete:     state.FundingComplete,
		onHand:              state.OnHandAssets,
		deployed:            state.DeployedFunds,
		totalShares:         state.TotalShares,
		totalYieldGenerated: state.TotalYieldGenerated,
		shares:              make(map[uuid.UUID]int64),
		deposited:           make(map[uuid.UUID]int64),
		allowances:          make(map[uuid.UUID]map[uuid.UUID]int64),
		sessions:            make(map[int64]*domain.YieldSession),
		createdAt:           state.CreatedAt,
		now:                 time.Now,
	}
	for _, p := range positions {
		v.depositors = append(v.depositors, p.Holder)
		v.shares[p.Holder] = p.Shares
		v.deposited[p.Holder] = p.LifetimeAssets
	}
	for _, s := range sessions {
		cp := s
		v.sessions[s.ID] = &cp
		v.sessionOrder = append(v.sessionOrder, s.ID)
		if s.ID > v.nextSessionID {
			v.nextSessionID = s.ID
		}
	}
	return v
}
