/**
 * @description
 * This file contains the platform coordinator for the financing service. The
 * `Service` struct orchestrates the three coupled ledgers (invoice registry,
 * yield vaults, note ledger), coordinating between the in-memory accounting
 * engine, the database repository, the custody API client, the authorization
 * service, and the message broker.
 *
 * Key features:
 * - Implements invoice-and-vault creation with up-front invoice id allocation.
 * - Delegates share accounting to the vault engine and persists each mutation
 *   through the write-through repository.
 * - Consults the authorization collaborator before every privileged operation.
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, fmt, log, sync, time: Standard Go libraries.
 * - github.com/google/uuid: For vault and actor identities.
 * - internal/domain, internal/ledger, internal/store: Domain models, accounting core, data access.
 * - pkg/rabbitmq: For event publication.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
	"github.com/fundra/financing-service/internal/ledger"
	"github.com/fundra/financing-service/internal/store"
	"github.com/fundra/financing-service/pkg/rabbitmq"
)

// VaultDefaults are the construction parameters applied to every new vault.
type VaultDefaults struct {
	MinimumDeposit    int64
	MaximumDeposit    int64
	ReservedFunds     int64
	MaxDeploymentBps  int64
	FundingWindowDays int
}

// Service provides the core business logic for the financing platform.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	assets        ledger.AssetMover
	authz         ledger.Authorizer

	registry *ledger.Registry
	notes    *ledger.NoteLedger

	mu     sync.RWMutex
	vaults map[uuid.UUID]*ledger.Vault
	order  []uuid.UUID

	externalAgentID uuid.UUID
	defaults        VaultDefaults
}

// NewService creates a new platform coordinator instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, assets ledger.AssetMover, authz ledger.Authorizer, treasuryAccountID, externalAgentID uuid.UUID, defaults VaultDefaults) *Service {
	registry := ledger.NewRegistry()
	return &Service{
		repo:            repo,
		eventProducer:   producer,
		assets:          assets,
		authz:           authz,
		registry:        registry,
		notes:           ledger.NewNoteLedger(registry, assets, treasuryAccountID),
		vaults:          make(map[uuid.UUID]*ledger.Vault),
		externalAgentID: externalAgentID,
		defaults:        defaults,
	}
}

// requireCapability consults the authorization service and converts a denial
// into ErrUnauthorized.
func (s *Service) requireCapability(ctx context.Context, actor uuid.UUID, capability domain.Capability, scope *uuid.UUID) error {
	ok, err := s.authz.HasCapability(ctx, actor, capability, scope)
	if err != nil {
		return fmt.Errorf("capability check for %s: %w", capability, err)
	}
	if !ok {
		return fmt.Errorf("actor %s lacks capability %s: %w", actor, capability, domain.ErrUnauthorized)
	}
	return nil
}

// publish sends an event to the platform exchange and journals it. Both are
// best-effort: the in-memory ledgers already committed the mutation.
func (s *Service) publish(ctx context.Context, routingKey string, payload interface{}) {
	if err := s.eventProducer.Publish(ctx, rabbitmq.PlatformExchange, routingKey, payload); err != nil {
		log.Printf("level=warn component=coordinator msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
	if err := s.repo.RecordEvent(ctx, routingKey, payload); err != nil {
		log.Printf("level=warn component=coordinator msg=\"event journal write failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// persistVault writes the vault snapshot through to the repository.
func (s *Service) persistVault(ctx context.Context, v *ledger.Vault) {
	if err := s.repo.SaveVault(ctx, v.Snapshot()); err != nil {
		log.Printf("level=error component=coordinator msg=\"vault persist failed\" vault_id=%s err=%v", v.ID(), err)
	}
}

// persistPosition writes one holder's position through to the repository.
func (s *Service) persistPosition(ctx context.Context, v *ledger.Vault, holder uuid.UUID) {
	pos := domain.VaultPosition{VaultID: v.ID(), Holder: holder, Shares: v.SharesOf(holder)}
	for _, p := range v.Positions() {
		if p.Holder == holder {
			pos = p
			break
		}
	}
	if err := s.repo.UpsertVaultPosition(ctx, pos); err != nil {
		log.Printf("level=error component=coordinator msg=\"position persist failed\" vault_id=%s holder=%s err=%v", v.ID(), holder, err)
	}
}

// vaultByID looks up a registered vault.
func (s *Service) vaultByID(id uuid.UUID) (*ledger.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vaults[id]
	if !ok {
		return nil, fmt.Errorf("vault %s: %w", id, domain.ErrVaultNotFound)
	}
	return v, nil
}

// CreateInvoiceAndVault allocates an invoice id, builds the vault bound to that
// id, then creates the invoice record bound to the vault. The issuer becomes
// the vault admin.
func (s *Service) CreateInvoiceAndVault(ctx context.Context, issuer uuid.UUID, req domain.CreateInvoiceRequest) (*domain.Invoice, domain.VaultState, error) {
	if err := s.requireCapability(ctx, issuer, domain.CapabilityIssuer, nil); err != nil {
		return nil, domain.VaultState{}, err
	}
	if req.DiscountRateBps < 0 || req.DiscountRateBps > domain.MaxDiscountRateBps {
		return nil, domain.VaultState{}, fmt.Errorf("discount rate %d bps out of range: %w", req.DiscountRateBps, domain.ErrInvalidArgument)
	}

	invoiceID := s.registry.AllocateID()
	vaultID := uuid.New()
	fundingTarget := ledger.DiscountedFundingTarget(req.FaceValue, req.DiscountRateBps)

	vault, err := ledger.NewVault(ledger.VaultParams{
		ID:               vaultID,
		InvoiceID:        invoiceID,
		Admin:            issuer,
		FundingTarget:    fundingTarget,
		FundingDeadline:  time.Now().UTC().Add(time.Duration(s.defaults.FundingWindowDays) * 24 * time.Hour),
		MinimumDeposit:   s.defaults.MinimumDeposit,
		MaximumDeposit:   s.defaults.MaximumDeposit,
		ReservedFunds:    s.defaults.ReservedFunds,
		MaxDeploymentBps: s.defaults.MaxDeploymentBps,
	}, s.registry, s.assets)
	if err != nil {
		return nil, domain.VaultState{}, fmt.Errorf("failed to construct vault: %w", err)
	}

	inv, err := s.registry.Create(ledger.CreateInvoiceParams{
		ID:              invoiceID,
		Issuer:          issuer,
		Debtor:          req.Debtor,
		FaceValue:       req.FaceValue,
		DiscountRateBps: req.DiscountRateBps,
		MaturityDays:    req.MaturityDays,
		VaultID:         vaultID,
		MetadataURI:     req.MetadataURI,
	})
	if err != nil {
		return nil, domain.VaultState{}, err
	}

	s.mu.Lock()
	s.vaults[vaultID] = vault
	s.order = append(s.order, vaultID)
	s.mu.Unlock()

	if err := s.repo.SaveInvoice(ctx, inv); err != nil {
		log.Printf("level=error component=coordinator msg=\"invoice persist failed\" invoice_id=%d err=%v", inv.ID, err)
	}
	s.persistVault(ctx, vault)
	s.publish(ctx, domain.RoutingKeyInvoiceCreated, domain.InvoiceCreatedEvent{
		InvoiceID:     inv.ID,
		Issuer:        issuer,
		VaultID:       vaultID,
		FaceValue:     inv.FaceValue,
		FundingTarget: fundingTarget,
		Timestamp:     time.Now().UTC(),
	})

	log.Printf("level=info component=coordinator msg=\"invoice and vault created\" invoice_id=%d vault_id=%s funding_target=%d", inv.ID, vaultID, fundingTarget)
	return inv, vault.Snapshot(), nil
}

// GetInvoice returns one invoice record.
func (s *Service) GetInvoice(id int64) (*domain.Invoice, error) {
	return s.registry.Get(id)
}

// ListInvoicesByIssuer returns the issuer's invoices in creation order.
func (s *Service) ListInvoicesByIssuer(issuer uuid.UUID) []domain.Invoice {
	return s.registry.ListByIssuer(issuer)
}

// UpdateInvoiceStatus writes an invoice status on behalf of an external actor.
// Authorized callers are the invoice issuer and platform admins; the bound
// vault writes its own funding transition internally and does not come through
// here.
func (s *Service) UpdateInvoiceStatus(ctx context.Context, actor uuid.UUID, invoiceID int64, status domain.InvoiceStatus) error {
	issuer, err := s.registry.IssuerOf(invoiceID)
	if err != nil {
		return err
	}
	if actor != issuer {
		if err := s.requireCapability(ctx, actor, domain.CapabilityPlatformAdmin, nil); err != nil {
			return err
		}
	}

	change, err := s.registry.SetStatus(invoiceID, status)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateInvoiceStatus(ctx, invoiceID, status); err != nil {
		log.Printf("level=error component=coordinator msg=\"invoice status persist failed\" invoice_id=%d err=%v", invoiceID, err)
	}
	s.publish(ctx, domain.RoutingKeyInvoiceStatusChanged, domain.InvoiceStatusChangedEvent{
		InvoiceID: invoiceID,
		OldStatus: change.Old,
		NewStatus: change.New,
		Actor:     actor,
		Timestamp: change.At,
	})
	return nil
}

// finishDeposit persists a deposit-side mutation and publishes the funding
// completion event when this deposit crossed the target.
func (s *Service) finishDeposit(ctx context.Context, v *ledger.Vault, receiver uuid.UUID, res ledger.DepositResult) {
	s.persistVault(ctx, v)
	s.persistPosition(ctx, v, receiver)
	if res.StatusChange != nil {
		if err := s.repo.UpdateInvoiceStatus(ctx, res.StatusChange.InvoiceID, res.StatusChange.New); err != nil {
			log.Printf("level=error component=coordinator msg=\"invoice status persist failed\" invoice_id=%d err=%v", res.StatusChange.InvoiceID, err)
		}
		s.publish(ctx, domain.RoutingKeyInvoiceStatusChanged, domain.InvoiceStatusChangedEvent{
			InvoiceID: res.StatusChange.InvoiceID,
			OldStatus: res.StatusChange.Old,
			NewStatus: res.StatusChange.New,
			Timestamp: res.StatusChange.At,
		})
	}
	if res.FundingCompleted {
		s.publish(ctx, domain.RoutingKeyFundingCompleted, domain.FundingCompletedEvent{
			VaultID:        v.ID(),
			InvoiceID:      v.InvoiceID(),
			TotalRaised:    res.TotalRaised,
			DepositorCount: res.DepositorCount,
			Timestamp:      time.Now().UTC(),
		})
	}
}

// Deposit moves assets from the caller into a vault and mints shares to the receiver.
func (s *Service) Deposit(ctx context.Context, caller uuid.UUID, vaultID uuid.UUID, req domain.DepositRequest) (ledger.DepositResult, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return ledger.DepositResult{}, err
	}
	receiver := req.Receiver
	if receiver == uuid.Nil {
		receiver = caller
	}
	res, err := v.Deposit(ctx, caller, receiver, req.Assets)
	if err != nil {
		return ledger.DepositResult{}, err
	}
	s.finishDeposit(ctx, v, receiver, res)
	return res, nil
}

// Mint deposits exactly enough assets to mint the requested share amount.
func (s *Service) Mint(ctx context.Context, caller uuid.UUID, vaultID uuid.UUID, req domain.DepositRequest) (ledger.DepositResult, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return ledger.DepositResult{}, err
	}
	receiver := req.Receiver
	if receiver == uuid.Nil {
		receiver = caller
	}
	res, err := v.Mint(ctx, caller, receiver, req.Shares)
	if err != nil {
		return ledger.DepositResult{}, err
	}
	s.finishDeposit(ctx, v, receiver, res)
	return res, nil
}

// Withdraw burns the owner's shares and pays assets out to the receiver.
func (s *Service) Withdraw(ctx context.Context, caller uuid.UUID, vaultID uuid.UUID, req domain.WithdrawRequest) (ledger.WithdrawResult, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return ledger.WithdrawResult{}, err
	}
	owner, receiver := req.Owner, req.Receiver
	if owner == uuid.Nil {
		owner = caller
	}
	if receiver == uuid.Nil {
		receiver = caller
	}
	res, err := v.Withdraw(ctx, caller, receiver, owner, req.Assets)
	if err != nil {
		return ledger.WithdrawResult{}, err
	}
	s.persistVault(ctx, v)
	s.persistPosition(ctx, v, owner)
	return res, nil
}

// Redeem burns an exact share amount and pays the converted assets out.
func (s *Service) Redeem(ctx context.Context, caller uuid.UUID, vaultID uuid.UUID, req domain.WithdrawRequest) (ledger.WithdrawResult, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return ledger.WithdrawResult{}, err
	}
	owner, receiver := req.Owner, req.Receiver
	if owner == uuid.Nil {
		owner = caller
	}
	if receiver == uuid.Nil {
		receiver = caller
	}
	res, err := v.Redeem(ctx, caller, receiver, owner, req.Shares)
	if err != nil {
		return ledger.WithdrawResult{}, err
	}
	s.persistVault(ctx, v)
	s.persistPosition(ctx, v, owner)
	return res, nil
}

// ApproveShares grants a spender withdraw/redeem rights over the caller's shares.
// Allowances are operational state and are not journaled.
func (s *Service) ApproveShares(caller uuid.UUID, vaultID uuid.UUID, req domain.ApproveSharesRequest) error {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return err
	}
	return v.ApproveShares(caller, req.Spender, req.Shares)
}

// VaultState returns a vault snapshot.
func (s *Service) VaultState(vaultID uuid.UUID) (domain.VaultState, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return domain.VaultState{}, err
	}
	return v.Snapshot(), nil
}

// VaultLimits returns the owner's deposit/withdraw caps for one vault.
func (s *Service) VaultLimits(vaultID, owner uuid.UUID) (domain.VaultLimits, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return domain.VaultLimits{}, err
	}
	return v.Limits(owner), nil
}

// PreviewConversion quotes one share/asset conversion at the current price
// without touching state. op is deposit, mint, withdraw or redeem.
func (s *Service) PreviewConversion(vaultID uuid.UUID, op string, amount int64) (int64, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive: %w", domain.ErrInvalidArgument)
	}
	switch op {
	case "deposit":
		return v.PreviewDeposit(amount), nil
	case "mint":
		return v.PreviewMint(amount), nil
	case "withdraw":
		return v.PreviewWithdraw(amount), nil
	case "redeem":
		return v.PreviewRedeem(amount), nil
	default:
		return 0, fmt.Errorf("unknown preview op %q: %w", op, domain.ErrInvalidArgument)
	}
}

// VaultPositions returns every position in a vault.
func (s *Service) VaultPositions(vaultID uuid.UUID) ([]domain.VaultPosition, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return nil, err
	}
	return v.Positions(), nil
}

// VaultSessions returns a vault's deployment sessions in id order.
func (s *Service) VaultSessions(vaultID uuid.UUID) ([]domain.YieldSession, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return nil, err
	}
	return v.Sessions(), nil
}

// PauseVault halts all vault movement. Emergency operators may be scoped to a
// single vault.
func (s *Service) PauseVault(ctx context.Context, actor uuid.UUID, vaultID uuid.UUID) error {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return err
	}
	if err := s.requireCapability(ctx, actor, domain.CapabilityEmergencyOperator, &vaultID); err != nil {
		return err
	}
	v.Pause()
	s.persistVault(ctx, v)
	log.Printf("level=warn component=coordinator msg=\"vault paused\" vault_id=%s actor=%s", vaultID, actor)
	return nil
}

// ResumeVault lifts an emergency pause.
func (s *Service) ResumeVault(ctx context.Context, actor uuid.UUID, vaultID uuid.UUID) error {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return err
	}
	if err := s.requireCapability(ctx, actor, domain.CapabilityEmergencyOperator, &vaultID); err != nil {
		return err
	}
	v.Resume()
	s.persistVault(ctx, v)
	log.Printf("level=info component=coordinator msg=\"vault resumed\" vault_id=%s actor=%s", vaultID, actor)
	return nil
}

// TransferVaultAdmin hands vault administration to a new account. Only the
// current admin may call it.
func (s *Service) TransferVaultAdmin(ctx context.Context, actor uuid.UUID, vaultID, newAdmin uuid.UUID) error {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return err
	}
	if actor != v.Admin() {
		return fmt.Errorf("actor %s is not the vault admin: %w", actor, domain.ErrUnauthorized)
	}
	if err := v.TransferAdmin(newAdmin); err != nil {
		return err
	}
	s.persistVault(ctx, v)
	return nil
}

// ExpireVault deactivates a vault whose deadline passed without reaching its
// target. Anyone may call it; the vault itself decides eligibility.
func (s *Service) ExpireVault(ctx context.Context, vaultID uuid.UUID) (domain.VaultExpiredEvent, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return domain.VaultExpiredEvent{}, err
	}
	ev, err := v.Expire()
	if err != nil {
		return domain.VaultExpiredEvent{}, err
	}
	s.persistVault(ctx, v)
	s.publish(ctx, domain.RoutingKeyVaultExpired, ev)
	log.Printf("level=info component=coordinator msg=\"vault expired\" vault_id=%s total_raised=%d", vaultID, ev.TotalRaised)
	return ev, nil
}

// ExpireDueVaults sweeps every vault and expires the ones past their deadline.
// Used by the cron job; returns the number of vaults expired.
func (s *Service) ExpireDueVaults(ctx context.Context) int {
	s.mu.RLock()
	ids := make([]uuid.UUID, len(s.order))
	copy(ids, s.order)
	s.mu.RUnlock()

	expired := 0
	for _, id := range ids {
		if _, err := s.ExpireVault(ctx, id); err == nil {
			expired++
		}
	}
	return expired
}

// DeployFunds withdraws vault principal to the executor for an external yield
// strategy, opening a tracked session. The executor capability may be scoped
// to the vault.
func (s *Service) DeployFunds(ctx context.Context, executor uuid.UUID, vaultID uuid.UUID, amount int64) (domain.YieldSession, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return domain.YieldSession{}, err
	}
	if err := s.requireCapability(ctx, executor, domain.CapabilityYieldExecutor, &vaultID); err != nil {
		return domain.YieldSession{}, err
	}
	session, err := v.WithdrawForYield(ctx, executor, amount)
	if err != nil {
		return domain.YieldSession{}, err
	}
	s.persistVault(ctx, v)
	if err := s.repo.SaveYieldSession(ctx, session); err != nil {
		log.Printf("level=error component=coordinator msg=\"session persist failed\" vault_id=%s session_id=%d err=%v", vaultID, session.ID, err)
	}
	return session, nil
}

// ReturnYield books principal plus yield back into the vault and closes the session.
func (s *Service) ReturnYield(ctx context.Context, executor uuid.UUID, vaultID uuid.UUID, sessionID, totalAmount int64) (domain.YieldReturnedEvent, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return domain.YieldReturnedEvent{}, err
	}
	if err := s.requireCapability(ctx, executor, domain.CapabilityYieldExecutor, &vaultID); err != nil {
		return domain.YieldReturnedEvent{}, err
	}
	ev, err := v.DepositYieldReturn(ctx, executor, sessionID, totalAmount)
	if err != nil {
		return domain.YieldReturnedEvent{}, err
	}
	s.persistVault(ctx, v)
	if session, sErr := v.Session(sessionID); sErr == nil {
		if err := s.repo.SaveYieldSession(ctx, session); err != nil {
			log.Printf("level=error component=coordinator msg=\"session persist failed\" vault_id=%s session_id=%d err=%v", vaultID, sessionID, err)
		}
	}
	s.publish(ctx, domain.RoutingKeyYieldReturned, ev)
	return ev, nil
}

// EmergencyWithdraw force-closes every open session on a vault and pauses it.
func (s *Service) EmergencyWithdraw(ctx context.Context, actor uuid.UUID, vaultID uuid.UUID) (domain.EmergencyWithdrawEvent, error) {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return domain.EmergencyWithdrawEvent{}, err
	}
	if err := s.requireCapability(ctx, actor, domain.CapabilityEmergencyOperator, &vaultID); err != nil {
		return domain.EmergencyWithdrawEvent{}, err
	}
	ev, err := v.EmergencyWithdrawDeployed()
	if err != nil {
		return domain.EmergencyWithdrawEvent{}, err
	}
	s.persistVault(ctx, v)
	for _, session := range v.Sessions() {
		if err := s.repo.SaveYieldSession(ctx, session); err != nil {
			log.Printf("level=error component=coordinator msg=\"session persist failed\" vault_id=%s session_id=%d err=%v", vaultID, session.ID, err)
		}
	}
	s.publish(ctx, domain.RoutingKeyEmergencyWithdraw, ev)
	log.Printf("level=warn component=coordinator msg=\"emergency withdraw\" vault_id=%s actor=%s sessions_closed=%d", vaultID, actor, ev.SessionsClosed)
	return ev, nil
}

// EmergencyReturn re-injects recovered funds into a vault outside session
// bookkeeping. The funds are pulled from the actor's account.
func (s *Service) EmergencyReturn(ctx context.Context, actor uuid.UUID, vaultID uuid.UUID, amount int64) error {
	v, err := s.vaultByID(vaultID)
	if err != nil {
		return err
	}
	if err := s.requireCapability(ctx, actor, domain.CapabilityEmergencyOperator, &vaultID); err != nil {
		return err
	}
	if err := v.EmergencyDepositReturn(ctx, actor, amount); err != nil {
		return err
	}
	s.persistVault(ctx, v)
	return nil
}

// CreateNoteType creates a fractional-ownership portfolio over a set of invoices.
func (s *Service) CreateNoteType(ctx context.Context, actor uuid.UUID, req domain.CreateNoteTypeRequest) (domain.NoteType, error) {
	if err := s.requireCapability(ctx, actor, domain.CapabilityPlatformAdmin, nil); err != nil {
		return domain.NoteType{}, err
	}
	nt, err := s.notes.CreateNoteType(req.Name, req.InvoiceIDs, req.MinimumPurchase, req.PricePerUnit)
	if err != nil {
		return domain.NoteType{}, err
	}
	if err := s.repo.SaveNoteType(ctx, nt); err != nil {
		log.Printf("level=error component=coordinator msg=\"note type persist failed\" note_type_id=%d err=%v", nt.ID, err)
	}
	return nt, nil
}

// PurchaseNotes sells units of a note type to the buyer and returns the cost paid.
func (s *Service) PurchaseNotes(ctx context.Context, buyer uuid.UUID, noteTypeID, amount int64) (int64, error) {
	cost, err := s.notes.PurchaseNotes(ctx, buyer, noteTypeID, amount)
	if err != nil {
		return 0, err
	}
	s.persistNoteState(ctx, noteTypeID, buyer)
	return cost, nil
}

// DistributeNoteYield pulls yield into a note type's pool for pro-rata claims.
func (s *Service) DistributeNoteYield(ctx context.Context, actor uuid.UUID, noteTypeID, amount int64) error {
	if err := s.requireCapability(ctx, actor, domain.CapabilityPlatformAdmin, nil); err != nil {
		return err
	}
	ev, err := s.notes.DistributeYield(ctx, actor, noteTypeID, amount)
	if err != nil {
		return err
	}
	if nt, gErr := s.notes.Get(noteTypeID); gErr == nil {
		if err := s.repo.SaveNoteType(ctx, nt); err != nil {
			log.Printf("level=error component=coordinator msg=\"note type persist failed\" note_type_id=%d err=%v", noteTypeID, err)
		}
	}
	s.publish(ctx, domain.RoutingKeyNoteYieldDistributed, ev)
	return nil
}

// ClaimNoteYield settles the holder's claimable yield and advances their watermark.
func (s *Service) ClaimNoteYield(ctx context.Context, holder uuid.UUID, noteTypeID int64) (domain.NoteClaimResult, error) {
	res, err := s.notes.ClaimYield(ctx, noteTypeID, holder)
	if err != nil {
		return domain.NoteClaimResult{}, err
	}
	s.persistNoteState(ctx, noteTypeID, holder)
	if res.Amount > 0 {
		s.publish(ctx, domain.RoutingKeyNoteYieldClaimed, domain.NoteYieldClaimedEvent{
			NoteTypeID: noteTypeID,
			Holder:     holder,
			Amount:     res.Amount,
			Timestamp:  time.Now().UTC(),
		})
	}
	return res, nil
}

// ClaimableNoteYield is the read-side claim preview.
func (s *Service) ClaimableNoteYield(noteTypeID int64, holder uuid.UUID) (int64, error) {
	return s.notes.ClaimableYield(noteTypeID, holder)
}

// SetNoteTypeActive toggles a note type's sale window.
func (s *Service) SetNoteTypeActive(ctx context.Context, actor uuid.UUID, noteTypeID int64, active bool) error {
	if err := s.requireCapability(ctx, actor, domain.CapabilityPlatformAdmin, nil); err != nil {
		return err
	}
	if err := s.notes.SetActive(noteTypeID, active); err != nil {
		return err
	}
	if nt, gErr := s.notes.Get(noteTypeID); gErr == nil {
		if err := s.repo.SaveNoteType(ctx, nt); err != nil {
			log.Printf("level=error component=coordinator msg=\"note type persist failed\" note_type_id=%d err=%v", noteTypeID, err)
		}
	}
	return nil
}

// NoteTypeByID returns one note type.
func (s *Service) NoteTypeByID(noteTypeID int64) (domain.NoteType, error) {
	return s.notes.Get(noteTypeID)
}

// NoteTypes returns every note type in id order.
func (s *Service) NoteTypes() []domain.NoteType {
	return s.notes.List()
}

// NoteHolding returns one holder's position in a note type.
func (s *Service) NoteHolding(noteTypeID int64, holder uuid.UUID) (domain.NoteHolding, error) {
	return s.notes.HoldingOf(noteTypeID, holder)
}

// persistNoteState writes a note type and one holder's holding through.
func (s *Service) persistNoteState(ctx context.Context, noteTypeID int64, holder uuid.UUID) {
	if nt, err := s.notes.Get(noteTypeID); err == nil {
		if sErr := s.repo.SaveNoteType(ctx, nt); sErr != nil {
			log.Printf("level=error component=coordinator msg=\"note type persist failed\" note_type_id=%d err=%v", noteTypeID, sErr)
		}
	}
	if h, err := s.notes.HoldingOf(noteTypeID, holder); err == nil {
		if sErr := s.repo.UpsertNoteHolding(ctx, h); sErr != nil {
			log.Printf("level=error component=coordinator msg=\"note holding persist failed\" note_type_id=%d holder=%s err=%v", noteTypeID, holder, sErr)
		}
	}
}

// LoadState rehydrates the in-memory ledgers from the repository at boot.
func (s *Service) LoadState(ctx context.Context) error {
	invoices, err := s.repo.ListInvoices(ctx)
	if err != nil {
		return fmt.Errorf("failed to load invoices: %w", err)
	}
	for _, inv := range invoices {
		s.registry.Restore(inv)
	}

	states, err := s.repo.ListVaults(ctx)
	if err != nil {
		return fmt.Errorf("failed to load vaults: %w", err)
	}
	s.mu.Lock()
	for _, state := range states {
		positions, pErr := s.repo.ListVaultPositions(ctx, state.ID)
		if pErr != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to load positions for vault %s: %w", state.ID, pErr)
		}
		sessions, sErr := s.repo.ListYieldSessions(ctx, state.ID)
		if sErr != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to load sessions for vault %s: %w", state.ID, sErr)
		}
		v := ledger.RestoreVault(state, positions, sessions, s.registry, s.assets)
		s.vaults[state.ID] = v
		s.order = append(s.order, state.ID)
	}
	s.mu.Unlock()

	noteTypes, err := s.repo.ListNoteTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to load note types: %w", err)
	}
	for _, nt := range noteTypes {
		holdings, hErr := s.repo.ListNoteHoldings(ctx, nt.ID)
		if hErr != nil {
			return fmt.Errorf("failed to load holdings for note type %d: %w", nt.ID, hErr)
		}
		s.notes.Restore(nt, holdings)
	}

	log.Printf("level=info component=coordinator msg=\"state rehydrated\" invoices=%d vaults=%d note_types=%d", len(invoices), len(states), len(noteTypes))
	return nil
}
