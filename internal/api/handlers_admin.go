/**
 * @description
 * Handlers for the exemption workflow and privileged operator actions.
 * Exemption requests come from the remittance owner; decisions and status
 * overrides are operator-only and always require a reason.
 */

package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/sikaremit/remittance-service/internal/domain"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

// RequireAdmin guards operator-only routes. The admin set comes from
// configuration; everyone else gets a 403 regardless of token validity.
func (h *RemittanceHandlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callerID, ok := h.callerID(w, r)
		if !ok {
			return
		}
		if !h.isAdmin(callerID) {
			log.Printf("level=warn component=api outcome=reject reason=not_admin user_id=%s path=%s", callerID, r.URL.Path)
			h.writeErrorCode(w, http.StatusForbidden, "forbidden", "Operator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestExemptionHandler lets a sender ask for a reporting exemption on
// their remittance.
func (h *RemittanceHandlers) RequestExemptionHandler(w http.ResponseWriter, r *http.Request) {
	senderID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	remittanceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	rem, err := h.service.RequestExemption(r.Context(), senderID, remittanceID, req.Reason)
	if err != nil {
		h.writeServiceError(w, "request_exemption", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rem)
}

// ApproveExemptionHandler grants a pending exemption request.
func (h *RemittanceHandlers) ApproveExemptionHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	remittanceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	rem, err := h.service.ApproveExemption(r.Context(), actorID, remittanceID)
	if err != nil {
		h.writeServiceError(w, "approve_exemption", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rem)
}

// RejectExemptionHandler denies a pending exemption request with a reason.
func (h *RemittanceHandlers) RejectExemptionHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	remittanceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	rem, err := h.service.RejectExemption(r.Context(), actorID, remittanceID, req.Reason)
	if err != nil {
		h.writeServiceError(w, "reject_exemption", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rem)
}

// RevokeExemptionHandler withdraws a previously granted exemption.
func (h *RemittanceHandlers) RevokeExemptionHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	remittanceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	rem, err := h.service.RevokeExemption(r.Context(), actorID, remittanceID, req.Reason)
	if err != nil {
		h.writeServiceError(w, "revoke_exemption", err)
		return
	}
	h.writeJSON(w, http.StatusOK, rem)
}

type overrideStatusRequest struct {
	Status domain.RemittanceStatus `json:"status"`
	Reason string                  `json:"reason"`
}

// OverrideStatusHandler forces a remittance status. Operator-only; the
// transition graph does not apply but the reason and actor are audit-logged.
func (h *RemittanceHandlers) OverrideStatusHandler(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	remittanceID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req overrideStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	rem, err := h.service.AdminOverrideStatus(r.Context(), actorID, remittanceID, req.Status, req.Reason)
	if err != nil {
		h.writeServiceError(w, "override_status", err)
		return
	}

	log.Printf("level=warn component=api endpoint=override_status outcome=applied remittance_id=%s status=%s actor_id=%s", rem.ID, req.Status, actorID)
	h.writeJSON(w, http.StatusOK, rem)
}
