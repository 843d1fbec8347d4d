/**
 * @description
 * This file contains the HTTP handlers for the remittance-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sikaremit/remittance-service/internal/app"
	"github.com/sikaremit/remittance-service/internal/domain"
	"github.com/sikaremit/remittance-service/internal/fees"
	"github.com/sikaremit/remittance-service/internal/gateway"
	"github.com/sikaremit/remittance-service/internal/store"
)

// RemittanceHandlers holds the application service that handlers will use.
type RemittanceHandlers struct {
	service  *app.Service
	adminIDs map[string]struct{}
	webhooks map[string]gateway.WebhookConfig
}

// NewRemittanceHandlers creates a new instance of RemittanceHandlers.
// webhooks maps the URL provider segment to its verification config.
func NewRemittanceHandlers(service *app.Service, adminIDs map[string]struct{}, webhooks map[string]gateway.WebhookConfig) *RemittanceHandlers {
	if adminIDs == nil {
		adminIDs = map[string]struct{}{}
	}
	if webhooks == nil {
		webhooks = map[string]gateway.WebhookConfig{}
	}
	return &RemittanceHandlers{service: service, adminIDs: adminIDs, webhooks: webhooks}
}

func (h *RemittanceHandlers) isAdmin(userID uuid.UUID) bool {
	_, ok := h.adminIDs[userID.String()]
	return ok
}

// callerID extracts and parses the authenticated user ID, writing the error
// response itself when that fails.
func (h *RemittanceHandlers) callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		log.Printf("level=warn component=api outcome=reject reason=invalid_user_id user_id=%s", userIDStr)
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid %s", name), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// InitiateRemittanceHandler handles requests to start a cross-border transfer.
func (h *RemittanceHandlers) InitiateRemittanceHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req domain.InitiateRemittanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=initiate_remittance outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	rem, err := h.service.InitiateRemittance(r.Context(), senderID, req)
	if err != nil {
		h.writeServiceError(w, "initiate_remittance", err)
		return
	}

	log.Printf("level=info component=api endpoint=initiate_remittance outcome=accepted remittance_id=%s sender_id=%s amount=%d", rem.ID, senderID, rem.AmountSent)
	h.writeJSON(w, http.StatusCreated, rem)
}

// GetRemittanceHandler returns one remittance with its full current state.
func (h *RemittanceHandlers) GetRemittanceHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	remittanceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	rem, err := h.service.GetRemittance(r.Context(), callerID, h.isAdmin(callerID), remittanceID)
	if err != nil {
		h.writeServiceError(w, "get_remittance", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rem)
}

// ListRemittancesHandler returns the caller's transfer history.
func (h *RemittanceHandlers) ListRemittancesHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	remittances, err := h.service.ListRemittances(r.Context(), senderID, limit, offset)
	if err != nil {
		h.writeServiceError(w, "list_remittances", err)
		return
	}
	if remittances == nil {
		remittances = []domain.CrossBorderRemittance{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"remittances": remittances})
}

// CancelRemittanceHandler stops an undelivered transfer.
func (h *RemittanceHandlers) CancelRemittanceHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	remittanceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	rem, err := h.service.CancelRemittance(r.Context(), callerID, h.isAdmin(callerID), remittanceID)
	if err != nil {
		h.writeServiceError(w, "cancel_remittance", err)
		return
	}

	log.Printf("level=info component=api endpoint=cancel_remittance outcome=accepted remittance_id=%s caller_id=%s", rem.ID, callerID)
	h.writeJSON(w, http.StatusOK, rem)
}

// QuoteHandler prices a prospective transfer without creating anything.
func (h *RemittanceHandlers) QuoteHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req domain.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	preview, err := h.service.PreviewQuote(r.Context(), senderID, req)
	if err != nil {
		h.writeServiceError(w, "quote", err)
		return
	}
	h.writeJSON(w, http.StatusOK, preview)
}

// GetTransactionHandler returns one gateway attempt.
func (h *RemittanceHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	transactionID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), callerID, h.isAdmin(callerID), transactionID)
	if err != nil {
		h.writeServiceError(w, "get_transaction", err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

// writeServiceError maps service-layer errors onto the API's error taxonomy.
func (h *RemittanceHandlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	var validationErr *app.ValidationError
	if errors.As(err, &validationErr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Message,
			"code":  "validation_error",
			"field": validationErr.Field,
		})
		return
	}

	var complianceErr *app.ComplianceBlockedError
	if errors.As(err, &complianceErr) {
		h.writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":              complianceErr.Result.Reason,
			"code":               "compliance_blocked",
			"flags":              complianceErr.Result.Flags,
			"remediation_action": complianceErr.Result.RemediationAction,
		})
		return
	}

	switch {
	case errors.Is(err, store.ErrRemittanceNotFound),
		errors.Is(err, store.ErrTransactionNotFound),
		errors.Is(err, store.ErrPaymentMethodNotFound):
		h.writeErrorCode(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, app.ErrForbidden):
		h.writeErrorCode(w, http.StatusForbidden, "forbidden", "Remittance does not belong to caller")
	case errors.Is(err, app.ErrPaymentMethodUnusable):
		h.writeErrorCode(w, http.StatusBadRequest, "payment_method_unusable", "Payment method is inactive or unverified")
	case errors.Is(err, app.ErrReasonRequired):
		h.writeErrorCode(w, http.StatusBadRequest, "reason_required", "A non-empty reason is required")
	case errors.Is(err, app.ErrStateConflict), errors.Is(err, app.ErrExemptionConflict):
		// The wrapped message names the conflicting current state.
		h.writeErrorCode(w, http.StatusBadRequest, "state_conflict", err.Error())
	case errors.Is(err, fees.ErrRateNotConfigured):
		// A missing rate is an operator problem, not a caller problem.
		h.writeErrorCode(w, http.StatusInternalServerError, "rate_not_configured", "No exchange rate is configured for this currency pair")
	case errors.Is(err, fees.ErrUnknownDeliveryMethod):
		h.writeErrorCode(w, http.StatusBadRequest, "validation_error", err.Error())
	case gateway.IsRejected(err):
		h.writeErrorCode(w, http.StatusPaymentRequired, "payment_rejected", err.Error())
	case errors.Is(err, gateway.ErrUnsupportedMethod):
		h.writeErrorCode(w, http.StatusBadRequest, "unsupported_payment_method", err.Error())
	case errors.Is(err, gateway.ErrAllGatewaysFailed), errors.Is(err, gateway.ErrCircuitOpen), gateway.IsTransient(err):
		h.writeErrorCode(w, http.StatusBadGateway, "gateway_unavailable", "Payment providers are currently unavailable, please retry later")
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"unhandled service error\" err=%v", endpoint, err)
		h.writeErrorCode(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *RemittanceHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *RemittanceHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *RemittanceHandlers) writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{"error": message, "code": code})
}
