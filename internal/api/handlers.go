/**
 * @description
 * This file contains the shared pieces of the HTTP handler layer: the Handlers
 * struct, JSON response helpers, and the mapping from the domain error taxonomy
 * to HTTP status codes. Handlers are responsible for parsing incoming requests,
 * calling the appropriate methods on the application service, and writing the
 * HTTP response.
 *
 * @dependencies
 * - encoding/json, errors, net/http: Standard Go libraries.
 * - internal/app, internal/domain: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fundra/financing-service/internal/app"
	"github.com/fundra/financing-service/internal/domain"
)

// Handlers holds the application service that handlers will use.
type Handlers struct {
	service *app.Service
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service *app.Service) *Handlers {
	return &Handlers{service: service}
}

// writeJSON is a helper for writing JSON responses.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps a domain error to its HTTP status and writes it.
func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	h.writeError(w, statusForError(err), err.Error())
}

// statusForError maps the domain error taxonomy to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvoiceNotFound),
		errors.Is(err, domain.ErrVaultNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNoteTypeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrBelowMinimum),
		errors.Is(err, domain.ErrAboveMaximum),
		errors.Is(err, domain.ErrExceedsTarget),
		errors.Is(err, domain.ErrFundingClosed),
		errors.Is(err, domain.ErrVaultPaused),
		errors.Is(err, domain.ErrExceedsLimit),
		errors.Is(err, domain.ErrInsufficientAllowance),
		errors.Is(err, domain.ErrInsufficientReturn),
		errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, domain.ErrNoteTypeInactive):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// actorFromRequest resolves the authenticated actor id for a protected route.
func (h *Handlers) actorFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor, ok := GetActorID(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return actor, true
}

// vaultIDParam parses the {vaultID} path parameter.
func (h *Handlers) vaultIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "vaultID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid vault id")
		return uuid.Nil, false
	}
	return id, true
}

// int64Param parses an int64 path parameter.
func (h *Handlers) int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON request body into dst.
func (h *Handlers) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
