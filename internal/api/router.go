/**
 * @description
 * This file sets up the HTTP router for the financing-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and applies
 * the middleware stack: logging, panic recovery, timeouts, CORS, metrics, JWT
 * authentication for investor/issuer routes, internal key authentication for
 * executor/operator routes, and Redis rate limiting on public reads.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/fundra/financing-service/internal/app"
)

// RouterOptions bundles the router's cross-cutting dependencies.
type RouterOptions struct {
	JWKSURL            string
	InternalAPIKey     string
	RateLimiter        *app.RedisReadRateLimiter
	ReadLimitPerMinute int
}

// FinancingRoutes creates and returns the router for the financing service.
func FinancingRoutes(h *Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Internal-API-Key", "X-Actor-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(MetricsMiddleware)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", MetricsHandler())

	// Public read endpoints, rate limited per caller.
	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(opts.RateLimiter, "public_read", opts.ReadLimitPerMinute))

		r.Get("/invoices/{invoiceID}", h.GetInvoiceHandler)
		r.Get("/vaults/{vaultID}", h.GetVaultHandler)
		r.Get("/vaults/{vaultID}/positions", h.ListVaultPositionsHandler)
		r.Get("/vaults/{vaultID}/sessions", h.ListVaultSessionsHandler)
		r.Get("/vaults/{vaultID}/limits", h.GetVaultLimitsHandler)
		r.Get("/vaults/{vaultID}/preview", h.PreviewConversionHandler)
		r.Get("/notes", h.ListNoteTypesHandler)
		r.Get("/notes/{noteTypeID}", h.GetNoteTypeHandler)
		r.Get("/platform/stats", h.PlatformStatsHandler)
	})

	// Anyone may trigger expiry of a vault past its unfunded deadline.
	r.Post("/vaults/{vaultID}/expire", h.ExpireVaultHandler)

	// Authenticated investor/issuer endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(opts.JWKSURL))

		r.Post("/invoices", h.CreateInvoiceHandler)
		r.Get("/invoices", h.ListMyInvoicesHandler)
		r.Patch("/invoices/{invoiceID}/status", h.UpdateInvoiceStatusHandler)

		r.Post("/vaults/{vaultID}/deposit", h.DepositHandler)
		r.Post("/vaults/{vaultID}/mint", h.MintHandler)
		r.Post("/vaults/{vaultID}/withdraw", h.WithdrawHandler)
		r.Post("/vaults/{vaultID}/redeem", h.RedeemHandler)
		r.Post("/vaults/{vaultID}/approve", h.ApproveSharesHandler)
		r.Post("/vaults/{vaultID}/admin", h.TransferVaultAdminHandler)

		r.Post("/notes/{noteTypeID}/purchase", h.PurchaseNotesHandler)
		r.Get("/notes/{noteTypeID}/claimable", h.ClaimableNoteYieldHandler)
		r.Post("/notes/{noteTypeID}/claim", h.ClaimNoteYieldHandler)
		r.Get("/notes/{noteTypeID}/holding", h.GetNoteHoldingHandler)
	})

	// Internal executor/operator endpoints (server-to-server).
	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(opts.InternalAPIKey))

		r.Post("/vaults/{vaultID}/deploy", h.DeployFundsHandler)
		r.Post("/vaults/{vaultID}/return", h.ReturnYieldHandler)
		r.Post("/vaults/{vaultID}/emergency-withdraw", h.EmergencyWithdrawHandler)
		r.Post("/vaults/{vaultID}/emergency-return", h.EmergencyReturnHandler)
		r.Post("/vaults/{vaultID}/pause", h.PauseVaultHandler)
		r.Post("/vaults/{vaultID}/resume", h.ResumeVaultHandler)

		r.Post("/batch/deploy", h.BatchDeployHandler)
		r.Post("/batch/return", h.BatchReturnHandler)
		r.Post("/batch/emergency-withdraw", h.EmergencyWithdrawAllHandler)
		r.Post("/batch/emergency-return", h.BatchEmergencyReturnHandler)
		r.Post("/batch/resume", h.ResumeAllHandler)

		r.Post("/notes", h.CreateNoteTypeHandler)
		r.Post("/notes/{noteTypeID}/distribute", h.DistributeNoteYieldHandler)
		r.Patch("/notes/{noteTypeID}/active", h.SetNoteTypeActiveHandler)

		r.Get("/monitoring", h.MonitoringFeedHandler)
	})

	return r
}
