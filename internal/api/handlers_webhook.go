/**
 * @description
 * This file contains the webhook endpoint for asynchronous provider
 * callbacks. The raw body is verified against the provider's shared-secret
 * HMAC signature BEFORE any parsing happens; an unverified payload is never
 * deserialized. Verified payloads are normalized into a GatewayEvent and
 * applied by the application service.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sikaremit/remittance-service/internal/domain"
	"github.com/sikaremit/remittance-service/internal/gateway"
	"github.com/sikaremit/remittance-service/internal/store"
)

// maxWebhookBody bounds how much we read from a provider callback.
const maxWebhookBody = 1 << 20

// WebhookHandler receives POST /webhooks/{provider}.
func (h *RemittanceHandlers) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	cfg, ok := h.webhooks[provider]
	if !ok {
		log.Printf("level=warn component=webhook outcome=reject reason=unknown_provider provider=%s", provider)
		http.Error(w, "Unknown provider", http.StatusNotFound)
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	signature := r.Header.Get(cfg.SignatureHeader)
	if !gateway.VerifyWebhookSignature(rawBody, signature, cfg.Secret) {
		log.Printf("level=warn component=webhook outcome=reject reason=signature_mismatch provider=%s", provider)
		http.Error(w, "Invalid signature", http.StatusForbidden)
		return
	}

	event, err := normalizeProviderEvent(cfg.Gateway, provider, rawBody)
	if err != nil {
		log.Printf("level=warn component=webhook outcome=reject reason=unparseable_payload provider=%s err=%v", provider, err)
		http.Error(w, "Unparseable payload", http.StatusBadRequest)
		return
	}
	if event == nil {
		// Verified but irrelevant event type; acknowledge so the provider
		// stops redelivering.
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.service.HandleGatewayEvent(r.Context(), *event); err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) || errors.Is(err, store.ErrRemittanceNotFound) {
			log.Printf("level=warn component=webhook outcome=drop reason=unknown_reference provider=%s provider_ref=%s reference=%s",
				provider, event.ProviderRef, event.Reference)
			// Acknowledge: redelivery will never make this resolvable.
			w.WriteHeader(http.StatusOK)
			return
		}
		log.Printf("level=error component=webhook msg=\"event application failed\" provider=%s type=%s err=%v", provider, event.Type, err)
		http.Error(w, "Event processing failed", http.StatusInternalServerError)
		return
	}

	log.Printf("level=info component=webhook outcome=applied provider=%s type=%s provider_ref=%s", provider, event.Type, event.ProviderRef)
	w.WriteHeader(http.StatusOK)
}

// normalizeProviderEvent maps each provider's payload shape onto the internal
// GatewayEvent. Returns (nil, nil) for verified events we deliberately ignore.
func normalizeProviderEvent(gatewayName, provider string, rawBody []byte) (*domain.GatewayEvent, error) {
	switch provider {
	case "paystack":
		return normalizePaystackEvent(gatewayName, rawBody)
	case "mtn_momo":
		return normalizeMomoEvent(gatewayName, rawBody)
	case "aggregator":
		return normalizeAggregatorEvent(gatewayName, rawBody)
	case "bank_switch":
		return normalizeBankSwitchEvent(gatewayName, rawBody)
	}
	return nil, fmt.Errorf("no payload mapping for provider %s", provider)
}

func normalizePaystackEvent(gatewayName string, rawBody []byte) (*domain.GatewayEvent, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			Reference      string `json:"reference"`
			GatewayMessage string `json:"gateway_response"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, err
	}

	event := &domain.GatewayEvent{
		Gateway:     gatewayName,
		ProviderRef: payload.Data.Reference,
		Reference:   payload.Data.Reference,
		Reason:      payload.Data.GatewayMessage,
	}
	switch payload.Event {
	case "charge.success":
		event.Type = domain.EventPaymentSuccess
	case "charge.failed":
		event.Type = domain.EventPaymentFailed
	case "refund.processed":
		event.Type = domain.EventRefundProcessed
	case "charge.dispute.create":
		event.Type = domain.EventDisputeOpened
	default:
		return nil, nil
	}
	return event, nil
}

func normalizeMomoEvent(gatewayName string, rawBody []byte) (*domain.GatewayEvent, error) {
	var payload struct {
		Status                 string `json:"status"`
		ExternalID             string `json:"externalId"`
		FinancialTransactionID string `json:"financialTransactionId"`
		Reason                 struct {
			Message string `json:"message"`
		} `json:"reason"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, err
	}

	event := &domain.GatewayEvent{
		Gateway:     gatewayName,
		ProviderRef: payload.FinancialTransactionID,
		Reference:   payload.ExternalID,
		Reason:      payload.Reason.Message,
	}
	switch strings.ToUpper(payload.Status) {
	case "SUCCESSFUL":
		event.Type = domain.EventPaymentSuccess
	case "FAILED", "REJECTED", "TIMEOUT":
		event.Type = domain.EventPaymentFailed
	default:
		return nil, nil
	}
	return event, nil
}

func normalizeAggregatorEvent(gatewayName string, rawBody []byte) (*domain.GatewayEvent, error) {
	var payload struct {
		Event string `json:"event"`
		Data  struct {
			ID              json.Number `json:"id"`
			Reference       string      `json:"reference"`
			Status          string      `json:"status"`
			CompleteMessage string      `json:"complete_message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, err
	}

	event := &domain.GatewayEvent{
		Gateway:     gatewayName,
		ProviderRef: payload.Data.ID.String(),
		Reference:   payload.Data.Reference,
		Reason:      payload.Data.CompleteMessage,
	}
	switch payload.Event {
	case "transfer.completed":
		if strings.EqualFold(payload.Data.Status, "SUCCESSFUL") {
			event.Type = domain.EventPaymentSuccess
		} else {
			event.Type = domain.EventPaymentFailed
		}
	case "charge.completed":
		if strings.EqualFold(payload.Data.Status, "successful") {
			event.Type = domain.EventPaymentSuccess
		} else {
			event.Type = domain.EventPaymentFailed
		}
	case "refund.completed":
		event.Type = domain.EventRefundProcessed
	default:
		return nil, nil
	}
	return event, nil
}

func normalizeBankSwitchEvent(gatewayName string, rawBody []byte) (*domain.GatewayEvent, error) {
	var payload struct {
		Data struct {
			Type       string `json:"type"`
			Attributes struct {
				Reference string `json:"reference"`
				SessionID string `json:"session_id"`
				Status    string `json:"status"`
				Message   string `json:"message"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, err
	}

	event := &domain.GatewayEvent{
		Gateway:     gatewayName,
		ProviderRef: payload.Data.Attributes.SessionID,
		Reference:   payload.Data.Attributes.Reference,
		Reason:      payload.Data.Attributes.Message,
	}
	switch payload.Data.Type {
	case "transfer.settled":
		event.Type = domain.EventPaymentSuccess
	case "transfer.failed", "transfer.returned":
		event.Type = domain.EventPaymentFailed
	case "transfer.reversed":
		event.Type = domain.EventRefundProcessed
	default:
		return nil, nil
	}
	return event, nil
}
