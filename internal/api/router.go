/**
 * @description
 * This file sets up the HTTP router for the remittance-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RemittanceRoutes creates and returns a new router for the remittance service.
func RemittanceRoutes(h *RemittanceHandlers, auth AuthConfig) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Provider callbacks authenticate by HMAC signature, not by JWT.
	r.Post("/webhooks/{provider}", h.WebhookHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(auth))

		r.Post("/remittances", h.InitiateRemittanceHandler)
		r.Get("/remittances", h.ListRemittancesHandler)
		r.Post("/remittances/quote", h.QuoteHandler)
		r.Get("/remittances/{id}", h.GetRemittanceHandler)
		r.Post("/remittances/{id}/cancel", h.CancelRemittanceHandler)
		r.Post("/remittances/{id}/exemption", h.RequestExemptionHandler)

		r.Get("/transactions/{id}", h.GetTransactionHandler)

		// Operator-only endpoints.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Post("/remittances/{id}/exemption/approve", h.ApproveExemptionHandler)
			r.Post("/remittances/{id}/exemption/reject", h.RejectExemptionHandler)
			r.Post("/remittances/{id}/exemption/revoke", h.RevokeExemptionHandler)
			r.Post("/remittances/{id}/admin/override-status", h.OverrideStatusHandler)
		})
	})

	return r
}
