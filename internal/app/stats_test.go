package app

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

func TestPlatformStatsEmpty(t *testing.T) {
	rig := newTestRig()
	stats := rig.svc.PlatformStats()
	if stats.VaultCount != 0 || stats.TotalValueLocked != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
	if stats.AveragePricePerShare != "1.000000" {
		t.Fatalf("expected unit price with no shares outstanding, got %s", stats.AveragePricePerShare)
	}
}

func TestPlatformStatsAggregates(t *testing.T) {
	rig := newTestRig()
	issuer := uuid.New()
	executor := uuid.New()
	admin := uuid.New()
	rig.authz.grant(executor, domain.CapabilityYieldExecutor)
	rig.authz.grant(admin, domain.CapabilityPlatformAdmin)

	invA, vaultA := rig.createFundedVault(t, 100_000, 1000, issuer, uuid.New())
	_, _ = rig.createFundedVault(t, 50_000, 0, issuer, uuid.New())

	// Deploy and return with yield on the first vault.
	session, err := rig.svc.DeployFunds(context.Background(), executor, vaultA.ID, 30_000)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, err := rig.svc.ReturnYield(context.Background(), executor, vaultA.ID, session.ID, 36_000); err != nil {
		t.Fatalf("return: %v", err)
	}

	nt, err := rig.svc.CreateNoteType(context.Background(), admin, domain.CreateNoteTypeRequest{
		Name:         "receivables pool",
		InvoiceIDs:   []int64{invA.ID},
		PricePerUnit: domain.UnitScale,
	})
	if err != nil {
		t.Fatalf("create note type: %v", err)
	}
	if _, err := rig.svc.PurchaseNotes(context.Background(), uuid.New(), nt.ID, 10); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if err := rig.svc.DistributeNoteYield(context.Background(), admin, nt.ID, 2_500); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	stats := rig.svc.PlatformStats()
	if stats.VaultCount != 2 || stats.FundedVaultCount != 2 {
		t.Fatalf("unexpected vault counts: %+v", stats)
	}
	// Vault A holds 90000 raised plus 6000 yield; vault B holds 50000.
	if stats.TotalValueLocked != 146_000 {
		t.Fatalf("expected TVL 146000, got %d", stats.TotalValueLocked)
	}
	if stats.TotalDeployed != 0 {
		t.Fatalf("everything was returned, got deployed %d", stats.TotalDeployed)
	}
	if stats.TotalYieldGenerated != 6_000 {
		t.Fatalf("expected 6000 yield, got %d", stats.TotalYieldGenerated)
	}
	if stats.NoteTypeCount != 1 || stats.NoteYieldDistributed != 2_500 {
		t.Fatalf("unexpected note stats: %+v", stats)
	}
	// 146000 assets over 140000 shares, asset weighted.
	if stats.AveragePricePerShare != "1.042857" {
		t.Fatalf("unexpected average share price: %s", stats.AveragePricePerShare)
	}
}

func TestMonitoringFeedTracksAgentSessions(t *testing.T) {
	rig := newTestRig()
	issuer := uuid.New()
	otherExecutor := uuid.New()
	rig.authz.grant(rig.agent, domain.CapabilityYieldExecutor)
	rig.authz.grant(otherExecutor, domain.CapabilityYieldExecutor)

	_, state := rig.createFundedVault(t, 100_000, 1000, issuer, uuid.New())
	if _, err := rig.svc.DeployFunds(context.Background(), rig.agent, state.ID, 20_000); err != nil {
		t.Fatalf("agent deploy: %v", err)
	}
	if _, err := rig.svc.DeployFunds(context.Background(), otherExecutor, state.ID, 10_000); err != nil {
		t.Fatalf("other deploy: %v", err)
	}

	feed := rig.svc.MonitoringFeed()
	if len(feed) != 1 {
		t.Fatalf("expected one entry, got %d", len(feed))
	}
	entry := feed[0]
	if entry.VaultID != state.ID {
		t.Fatalf("wrong vault in feed: %s", entry.VaultID)
	}
	if entry.DeployedFunds != 30_000 {
		t.Fatalf("expected 30000 deployed, got %d", entry.DeployedFunds)
	}
	if entry.AgentDeployedTotal != 20_000 {
		t.Fatalf("only the configured agent's sessions count, got %d", entry.AgentDeployedTotal)
	}
	if entry.TotalAssets != 90_000 {
		t.Fatalf("total assets unchanged by deployment, got %d", entry.TotalAssets)
	}
	// 90000 * 80% = 72000 cap, 30000 already out.
	if entry.AvailableToDeploy != 42_000 {
		t.Fatalf("expected 42000 available, got %d", entry.AvailableToDeploy)
	}
}
