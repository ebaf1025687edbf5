package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
)

func TestBatchDeployRequiresCapability(t *testing.T) {
	rig := newTestRig()
	issuer := uuid.New()
	_, state := rig.createFundedVault(t, 100_000, 1000, issuer, uuid.New())

	result, err := rig.svc.BatchDeploy(context.Background(), uuid.New(), []domain.BatchDeployItem{{VaultID: state.ID, Amount: 1_000}})
	if err != nil {
		t.Fatalf("batch deploy: %v", err)
	}
	if result.FailureCount != 1 || result.SuccessCount != 0 {
		t.Fatalf("ungranted executor should fail every item: %+v", result)
	}
	if !strings.Contains(result.Items[0].Error, domain.ErrUnauthorized.Error()) {
		t.Fatalf("item error should report the capability failure, got %q", result.Items[0].Error)
	}
	snap, _ := rig.svc.VaultState(state.ID)
	if snap.DeployedFunds != 0 {
		t.Fatalf("nothing should have deployed, got %d", snap.DeployedFunds)
	}
}

func TestBatchDeployHonorsVaultScopedGrant(t *testing.T) {
	rig := newTestRig()
	issuer := uuid.New()
	executor := uuid.New()

	_, granted := rig.createFundedVault(t, 100_000, 1000, issuer, uuid.New())
	_, other := rig.createFundedVault(t, 50_000, 0, issuer, uuid.New())
	rig.authz.grantScoped(executor, domain.CapabilityYieldExecutor, granted.ID)

	items := []domain.BatchDeployItem{
		{VaultID: granted.ID, Amount: 20_000},
		{VaultID: other.ID, Amount: 5_000},
	}
	result, err := rig.svc.BatchDeploy(context.Background(), executor, items)
	if err != nil {
		t.Fatalf("batch deploy: %v", err)
	}
	if result.SuccessCount != 1 || result.FailureCount != 1 {
		t.Fatalf("only the granted vault should deploy: %+v", result)
	}
	if !strings.Contains(result.Items[1].Error, domain.ErrUnauthorized.Error()) {
		t.Fatalf("out-of-scope item should report the capability failure, got %q", result.Items[1].Error)
	}

	snap, _ := rig.svc.VaultState(granted.ID)
	if snap.DeployedFunds != 20_000 {
		t.Fatalf("expected 20000 deployed on the granted vault, got %d", snap.DeployedFunds)
	}
	otherSnap, _ := rig.svc.VaultState(other.ID)
	if otherSnap.DeployedFunds != 0 {
		t.Fatalf("out-of-scope vault should be untouched, got %d", otherSnap.DeployedFunds)
	}
}

func TestBatchDeployAbortsOnAuthServiceFailure(t *testing.T) {
	rig := newTestRig()
	rig.authz.err = errors.New("auth service unreachable")
	_, err := rig.svc.BatchDeploy(context.Background(), uuid.New(), []domain.BatchDeployItem{{VaultID: uuid.New(), Amount: 1_000}})
	if err == nil {
		t.Fatal("expected transport failure to abort the batch")
	}
}

func TestBatchDeployPerItemIsolation(t *testing.T) {
	rig := newTestRig()
	issuer := uuid.New()
	executor := uuid.New()
	depositor := uuid.New()
	rig.authz.grant(executor, domain.CapabilityYieldExecutor)

	_, state := rig.createFundedVault(t, 100_000, 1000, issuer, depositor)

	items := []domain.BatchDeployItem{
		{VaultID: state.ID, Amount: 20_000},
		{VaultID: uuid.New(), Amount: 5_000}, // unknown vault
		{VaultID: state.ID, Amount: 0},       // intentional no-op
	}
	result, err := rig.svc.BatchDeploy(context.Background(), executor, items)
	if err != nil {
		t.Fatalf("batch deploy: %v", err)
	}
	if result.SuccessCount != 1 || result.FailureCount != 1 || result.SkippedCount != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.TotalAmount != 20_000 {
		t.Fatalf("expected total 20000, got %d", result.TotalAmount)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected one item result per input, got %d", len(result.Items))
	}
	if result.Items[0].SessionID != 1 {
		t.Fatalf("successful item should carry its session id, got %+v", result.Items[0])
	}
	if result.Items[1].Error == "" {
		t.Fatalf("failed item should carry an error message")
	}
	if !result.Items[2].Skipped {
		t.Fatalf("zero-amount item should be skipped, not failed")
	}

	// The good vault really deployed.
	snap, _ := rig.svc.VaultState(state.ID)
	if snap.DeployedFunds != 20_000 {
		t.Fatalf("expected 20000 deployed, got %d", snap.DeployedFunds)
	}
}

func TestBatchReturnClosesSessions(t *testing.T) {
	rig := newTestRig()
	issuer := uuid.New()
	executor := uuid.New()
	rig.authz.grant(executor, domain.CapabilityYieldExecutor)

	_, vaultA := rig.createFundedVault(t, 100_000, 1000, issuer, uuid.New())
	_, vaultB := rig.createFundedVault(t, 50_000, 0, issuer, uuid.New())

	sessionA, err := rig.svc.DeployFunds(context.Background(), executor, vaultA.ID, 30_000)
	if err != nil {
		t.Fatalf("deploy A: %v", err)
	}
	sessionB, err := rig.svc.DeployFunds(context.Background(), executor, vaultB.ID, 10_000)
	if err != nil {
		t.Fatalf("deploy B: %v", err)
	}

	items := []domain.BatchDeployItem{
		{VaultID: vaultA.ID, SessionID: sessionA.ID, Amount: 33_000},
		{VaultID: vaultB.ID, SessionID: sessionB.ID, Amount: 10_500},
		{VaultID: vaultB.ID, SessionID: 99, Amount: 1_000}, // no such session
	}
	result, err := rig.svc.BatchReturn(context.Background(), executor, items)
	if err != nil {
		t.Fatalf("batch return: %v", err)
	}
	if result.SuccessCount != 2 || result.FailureCount != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.TotalAmount != 43_500 {
		t.Fatalf("expected total 43500, got %d", result.TotalAmount)
	}

	snapA, _ := rig.svc.VaultState(vaultA.ID)
	if snapA.DeployedFunds != 0 || snapA.TotalYieldGenerated != 3_000 {
		t.Fatalf("vault A should have booked 3000 yield: %+v", snapA)
	}
	snapB, _ := rig.svc.VaultState(vaultB.ID)
	if snapB.TotalYieldGenerated != 500 {
		t.Fatalf("vault B should have booked 500 yield: %+v", snapB)
	}
}

func TestEmergencyWithdrawAllSkipsIdleVaults(t *testing.T) {
	rig := newTestRig()
	issuer := uuid.New()
	executor := uuid.New()
	operator := uuid.New()
	rig.authz.grant(executor, domain.CapabilityYieldExecutor)
	rig.authz.grant(operator, domain.CapabilityEmergencyOperator)

	_, deployed := rig.createFundedVault(t, 100_000, 1000, issuer, uuid.New())
	_, idle := rig.createFundedVault(t, 50_000, 0, issuer, uuid.New())
	if _, err := rig.svc.DeployFunds(context.Background(), executor, deployed.ID, 25_000); err != nil {
		t.Fatalf("deploy: %v", err)
	}

	result, err := rig.svc.EmergencyWithdrawAll(context.Background(), operator)
	if err != nil {
		t.Fatalf("emergency withdraw all: %v", err)
	}
	if result.SuccessCount != 1 || result.SkippedCount != 1 || result.FailureCount != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.TotalAmount != 25_000 {
		t.Fatalf("expected 25000 recalled, got %d", result.TotalAmount)
	}

	snap, _ := rig.svc.VaultState(deployed.ID)
	if snap.DeployedFunds != 0 || !snap.Paused {
		t.Fatalf("deployed vault should be drained and paused: %+v", snap)
	}
	idleSnap, _ := rig.svc.VaultState(idle.ID)
	if idleSnap.Paused {
		t.Fatalf("idle vault should be untouched")
	}
}

func TestBatchEmergencyReturn(t *testing.T) {
	rig := newTestRig()
	issuer := uuid.New()
	executor := uuid.New()
	operator := uuid.New()
	rig.authz.grant(executor, domain.CapabilityYieldExecutor)
	rig.authz.grant(operator, domain.CapabilityEmergencyOperator)

	_, state := rig.createFundedVault(t, 100_000, 1000, issuer, uuid.New())
	if _, err := rig.svc.DeployFunds(context.Background(), executor, state.ID, 25_000); err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if _, err := rig.svc.EmergencyWithdraw(context.Background(), operator, state.ID); err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}

	items := []domain.BatchDeployItem{
		{VaultID: state.ID, Amount: 25_000},
		{VaultID: uuid.New(), Amount: 1_000}, // unknown vault
		{VaultID: state.ID, Amount: 0},
	}
	result, err := rig.svc.BatchEmergencyReturn(context.Background(), operator, items)
	if err != nil {
		t.Fatalf("batch emergency return: %v", err)
	}
	if result.SuccessCount != 1 || result.FailureCount != 1 || result.SkippedCount != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}

	snap, _ := rig.svc.VaultState(state.ID)
	if snap.OnHandAssets != 90_000 {
		t.Fatalf("vault should be made whole, got %d on hand", snap.OnHandAssets)
	}
}

func TestResumeAll(t *testing.T) {
	rig := newTestRig()
	issuer := uuid.New()
	operator := uuid.New()
	rig.authz.grant(operator, domain.CapabilityEmergencyOperator)

	_, pausedVault := rig.createFundedVault(t, 100_000, 1000, issuer, uuid.New())
	_, runningVault := rig.createFundedVault(t, 50_000, 0, issuer, uuid.New())
	if err := rig.svc.PauseVault(context.Background(), operator, pausedVault.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}

	result, err := rig.svc.ResumeAll(context.Background(), operator)
	if err != nil {
		t.Fatalf("resume all: %v", err)
	}
	if result.SuccessCount != 1 || result.SkippedCount != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}

	snap, _ := rig.svc.VaultState(pausedVault.ID)
	if snap.Paused {
		t.Fatalf("vault should be resumed")
	}
	if _, err := rig.svc.VaultState(runningVault.ID); err != nil {
		t.Fatalf("running vault unaffected: %v", err)
	}
}
