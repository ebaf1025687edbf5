/**
 * @description
 * This file contains the HTTP handlers for the fractional note endpoints:
 * note type administration, purchases, yield distribution, and claims.
 */

package api

import (
	"net/http"

	"github.com/fundra/financing-service/internal/domain"
)

// CreateNoteTypeHandler creates a note portfolio over a set of invoices.
func (h *Handlers) CreateNoteTypeHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}

	var req domain.CreateNoteTypeRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	nt, err := h.service.CreateNoteType(r.Context(), actor, req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, nt)
}

// ListNoteTypesHandler returns every note type.
func (h *Handlers) ListNoteTypesHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.NoteTypes())
}

// GetNoteTypeHandler returns one note type.
func (h *Handlers) GetNoteTypeHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.int64Param(w, r, "noteTypeID")
	if !ok {
		return
	}

	nt, err := h.service.NoteTypeByID(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nt)
}

// PurchaseNotesHandler sells note units to the authenticated buyer.
func (h *Handlers) PurchaseNotesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.int64Param(w, r, "noteTypeID")
	if !ok {
		return
	}

	var req domain.PurchaseNotesRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	cost, err := h.service.PurchaseNotes(r.Context(), actor, id, req.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"units": req.Amount, "cost": cost})
}

// DistributeNoteYieldHandler pulls yield into a note type's claim pool.
func (h *Handlers) DistributeNoteYieldHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.int64Param(w, r, "noteTypeID")
	if !ok {
		return
	}

	var req domain.DistributeYieldRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.service.DistributeNoteYield(r.Context(), actor, id, req.Amount); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"distributed": req.Amount})
}

// ClaimableNoteYieldHandler previews the caller's claimable yield.
func (h *Handlers) ClaimableNoteYieldHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.int64Param(w, r, "noteTypeID")
	if !ok {
		return
	}

	amount, err := h.service.ClaimableNoteYield(id, actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int64{"claimable": amount})
}

// ClaimNoteYieldHandler settles the caller's claimable yield.
func (h *Handlers) ClaimNoteYieldHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.int64Param(w, r, "noteTypeID")
	if !ok {
		return
	}

	res, err := h.service.ClaimNoteYield(r.Context(), actor, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// GetNoteHoldingHandler returns the caller's holding in a note type.
func (h *Handlers) GetNoteHoldingHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.int64Param(w, r, "noteTypeID")
	if !ok {
		return
	}

	holding, err := h.service.NoteHolding(id, actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, holding)
}

// SetNoteTypeActiveHandler toggles a note type's sale window.
func (h *Handlers) SetNoteTypeActiveHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.int64Param(w, r, "noteTypeID")
	if !ok {
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.service.SetNoteTypeActive(r.Context(), actor, id, req.Active); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"active": req.Active})
}

// PlatformStatsHandler returns the aggregate-on-read platform view.
func (h *Handlers) PlatformStatsHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.PlatformStats())
}
