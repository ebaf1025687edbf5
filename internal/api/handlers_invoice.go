/**
 * @description
 * This file contains the HTTP handlers for the invoice registry endpoints:
 * invoice-and-vault creation, lookups, issuer listings, and authorized status
 * writes.
 */

package api

import (
	"log"
	"net/http"

	"github.com/fundra/financing-service/internal/domain"
)

// createInvoiceResponse is sent back after an invoice and its vault are created.
type createInvoiceResponse struct {
	Invoice *domain.Invoice   `json:"invoice"`
	Vault   domain.VaultState `json:"vault"`
}

// CreateInvoiceHandler handles invoice-and-vault creation by an issuer.
func (h *Handlers) CreateInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}

	var req domain.CreateInvoiceRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	inv, vault, err := h.service.CreateInvoiceAndVault(r.Context(), actor, req)
	if err != nil {
		log.Printf("level=warn component=api msg=\"invoice creation rejected\" issuer=%s err=%v", actor, err)
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, createInvoiceResponse{Invoice: inv, Vault: vault})
}

// GetInvoiceHandler returns one invoice record.
func (h *Handlers) GetInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.int64Param(w, r, "invoiceID")
	if !ok {
		return
	}

	inv, err := h.service.GetInvoice(id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inv)
}

// ListMyInvoicesHandler returns the authenticated issuer's invoices.
func (h *Handlers) ListMyInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.service.ListInvoicesByIssuer(actor))
}

// UpdateInvoiceStatusHandler writes an invoice status on behalf of the issuer
// or a platform admin.
func (h *Handlers) UpdateInvoiceStatusHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := h.int64Param(w, r, "invoiceID")
	if !ok {
		return
	}

	var req domain.UpdateInvoiceStatusRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.service.UpdateInvoiceStatus(r.Context(), actor, id, req.Status); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}
