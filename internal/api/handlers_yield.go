/**
 * @description
 * This file contains the HTTP handlers for the internal yield-deployment
 * endpoints used by the executor agent and platform operators: single-vault
 * deploy/return, emergency actions, pause/resume, batch operations, and the
 * agent monitoring feed.
 */

package api

import (
	"net/http"

	"github.com/fundra/financing-service/internal/domain"
)

// returnYieldRequest carries a session close: total returned must cover the
// session principal.
type returnYieldRequest struct {
	SessionID   int64 `json:"session_id"`
	TotalAmount int64 `json:"total_amount"`
}

// batchRequest is the shared body for batch deploy and return calls.
type batchRequest struct {
	Items []domain.BatchDeployItem `json:"items"`
}

// DeployFundsHandler opens a deployment session on one vault.
func (h *Handlers) DeployFundsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	var req domain.DeployRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	session, err := h.service.DeployFunds(r.Context(), actor, vaultID, req.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

// ReturnYieldHandler closes a deployment session with principal plus yield.
func (h *Handlers) ReturnYieldHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	var req returnYieldRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	ev, err := h.service.ReturnYield(r.Context(), actor, vaultID, req.SessionID, req.TotalAmount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ev)
}

// EmergencyWithdrawHandler force-recalls a vault's deployed funds.
func (h *Handlers) EmergencyWithdrawHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	ev, err := h.service.EmergencyWithdraw(r.Context(), actor, vaultID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ev)
}

// EmergencyReturnHandler re-injects recovered funds outside session bookkeeping.
func (h *Handlers) EmergencyReturnHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	var req domain.EmergencyReturnRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.service.EmergencyReturn(r.Context(), actor, vaultID, req.Amount); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "returned"})
}

// PauseVaultHandler halts all movement on a vault.
func (h *Handlers) PauseVaultHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.PauseVault(r.Context(), actor, vaultID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// ResumeVaultHandler lifts an emergency pause.
func (h *Handlers) ResumeVaultHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.ResumeVault(r.Context(), actor, vaultID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

// BatchDeployHandler opens deployment sessions across many vaults.
func (h *Handlers) BatchDeployHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}

	var req batchRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.BatchDeploy(r.Context(), actor, req.Items)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// BatchReturnHandler closes deployment sessions across many vaults.
func (h *Handlers) BatchReturnHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}

	var req batchRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.BatchReturn(r.Context(), actor, req.Items)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// BatchEmergencyReturnHandler re-injects recovered funds into many vaults.
func (h *Handlers) BatchEmergencyReturnHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}

	var req batchRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.BatchEmergencyReturn(r.Context(), actor, req.Items)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// EmergencyWithdrawAllHandler force-recalls deployed funds on every vault.
func (h *Handlers) EmergencyWithdrawAllHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.EmergencyWithdrawAll(r.Context(), actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ResumeAllHandler lifts the emergency pause platform-wide.
func (h *Handlers) ResumeAllHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.ResumeAll(r.Context(), actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// MonitoringFeedHandler serves the external yield agent's per-vault view.
func (h *Handlers) MonitoringFeedHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.MonitoringFeed())
}
