/**
 * @description
 * This file contains the HTTP handlers for the vault share-accounting
 * endpoints: deposit, mint, withdraw, redeem, share approvals, and the
 * read-side snapshot/limits/positions views.
 */

package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/domain"
	"github.com/fundra/financing-service/internal/ledger"
)

// depositResponse mirrors the accounting engine's deposit result for clients.
type depositResponse struct {
	Assets           int64 `json:"assets"`
	Shares           int64 `json:"shares"`
	FundingCompleted bool  `json:"funding_completed"`
	TotalRaised      int64 `json:"total_raised,omitempty"`
	DepositorCount   int   `json:"depositor_count,omitempty"`
}

func buildDepositResponse(res ledger.DepositResult) depositResponse {
	out := depositResponse{
		Assets:           res.Assets,
		Shares:           res.Shares,
		FundingCompleted: res.FundingCompleted,
	}
	if res.FundingCompleted {
		out.TotalRaised = res.TotalRaised
		out.DepositorCount = res.DepositorCount
	}
	return out
}

// DepositHandler moves assets from the caller into a vault.
func (h *Handlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	var req domain.DepositRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.Deposit(r.Context(), actor, vaultID, req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildDepositResponse(res))
}

// MintHandler deposits exactly enough assets to mint the requested shares.
func (h *Handlers) MintHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	var req domain.DepositRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.Mint(r.Context(), actor, vaultID, req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, buildDepositResponse(res))
}

// WithdrawHandler burns shares to pay an exact asset amount out.
func (h *Handlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	var req domain.WithdrawRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.Withdraw(r.Context(), actor, vaultID, req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"assets": res.Assets, "shares": res.Shares})
}

// RedeemHandler burns an exact share amount for the converted assets.
func (h *Handlers) RedeemHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	var req domain.WithdrawRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := h.service.Redeem(r.Context(), actor, vaultID, req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"assets": res.Assets, "shares": res.Shares})
}

// ApproveSharesHandler grants a spender withdraw/redeem rights over the
// caller's shares.
func (h *Handlers) ApproveSharesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	var req domain.ApproveSharesRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.service.ApproveShares(actor, vaultID, req); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// GetVaultHandler returns one vault snapshot.
func (h *Handlers) GetVaultHandler(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	state, err := h.service.VaultState(vaultID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// GetVaultLimitsHandler returns the four deposit/withdraw caps for an owner.
// The owner defaults to the authenticated actor and may be overridden with
// the `owner` query parameter.
func (h *Handlers) GetVaultLimitsHandler(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	owner := uuid.Nil
	if actor, ok := GetActorID(r.Context()); ok {
		owner = actor
	}
	if raw := r.URL.Query().Get("owner"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid owner")
			return
		}
		owner = parsed
	}

	limits, err := h.service.VaultLimits(vaultID, owner)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, limits)
}

// TransferVaultAdminHandler hands vault administration to a new account.
// Only the current admin may call it.
func (h *Handlers) TransferVaultAdminHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	var req struct {
		NewAdmin uuid.UUID `json:"new_admin"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.NewAdmin == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "Invalid new admin")
		return
	}

	if err := h.service.TransferVaultAdmin(r.Context(), actor, vaultID, req.NewAdmin); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"admin": req.NewAdmin.String()})
}

// PreviewConversionHandler quotes a conversion at the current share price.
// Query parameters: op (deposit|mint|withdraw|redeem) and amount.
func (h *Handlers) PreviewConversionHandler(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	op := r.URL.Query().Get("op")
	amount, err := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	result, err := h.service.PreviewConversion(vaultID, op, amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"op":     op,
		"amount": amount,
		"result": result,
	})
}

// ListVaultPositionsHandler returns every position in a vault.
func (h *Handlers) ListVaultPositionsHandler(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	positions, err := h.service.VaultPositions(vaultID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, positions)
}

// ListVaultSessionsHandler returns a vault's deployment sessions.
func (h *Handlers) ListVaultSessionsHandler(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	sessions, err := h.service.VaultSessions(vaultID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sessions)
}

// ExpireVaultHandler expires a vault past its unfunded deadline. Callable by
// anyone; the vault decides eligibility.
func (h *Handlers) ExpireVaultHandler(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultIDParam(w, r)
	if !ok {
		return
	}

	ev, err := h.service.ExpireVault(r.Context(), vaultID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ev)
}
