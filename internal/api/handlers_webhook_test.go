package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sikaremit/remittance-service/internal/domain"
	"github.com/sikaremit/remittance-service/internal/gateway"
)

func webhookTestHandlers() *RemittanceHandlers {
	// No service calls happen on these paths; verification and normalization
	// run before the application layer is touched.
	return NewRemittanceHandlers(nil, nil, map[string]gateway.WebhookConfig{
		"paystack": {Gateway: "paystack", SignatureHeader: "X-Paystack-Signature", Secret: "whsec_test"},
	})
}

func postWebhook(h *RemittanceHandlers, provider string, body []byte, header, signature string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Post("/webhooks/{provider}", h.WebhookHandler)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, bytes.NewReader(body))
	if header != "" {
		req.Header.Set(header, signature)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestWebhookHandlerRejectsBadSignatureBeforeParsing(t *testing.T) {
	h := webhookTestHandlers()

	// Deliberately malformed JSON: with a bad signature it must never be
	// parsed, so the response is 403, not 400.
	body := []byte(`{"event": "charge.success", "data": {broken`)
	rec := postWebhook(h, "paystack", body, "X-Paystack-Signature", "deadbeef")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a bad signature, got %d", rec.Code)
	}

	rec = postWebhook(h, "paystack", body, "", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for a missing signature, got %d", rec.Code)
	}
}

func TestWebhookHandlerUnknownProvider(t *testing.T) {
	h := webhookTestHandlers()
	rec := postWebhook(h, "carrier_pigeon", []byte(`{}`), "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown provider, got %d", rec.Code)
	}
}

func TestWebhookHandlerAcknowledgesIrrelevantVerifiedEvent(t *testing.T) {
	h := webhookTestHandlers()

	body := []byte(`{"event":"subscription.create","data":{"reference":"sr_1"}}`)
	signature := gateway.SignWebhookBody(body, "whsec_test")
	rec := postWebhook(h, "paystack", body, "X-Paystack-Signature", signature)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a verified but irrelevant event, got %d", rec.Code)
	}
}

func TestNormalizePaystackEvent(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"sr_abc","gateway_response":"Approved"}}`)
	event, err := normalizePaystackEvent("paystack", body)
	if err != nil {
		t.Fatalf("normalizePaystackEvent returned error: %v", err)
	}
	if event.Type != domain.EventPaymentSuccess || event.Reference != "sr_abc" {
		t.Fatalf("unexpected event: %+v", event)
	}

	body = []byte(`{"event":"charge.dispute.create","data":{"reference":"sr_abc"}}`)
	event, err = normalizePaystackEvent("paystack", body)
	if err != nil || event.Type != domain.EventDisputeOpened {
		t.Fatalf("expected dispute event, got %+v err=%v", event, err)
	}
}

func TestNormalizeMomoEvent(t *testing.T) {
	body := []byte(`{"status":"SUCCESSFUL","externalId":"sr_abc_payout","financialTransactionId":"363440463"}`)
	event, err := normalizeMomoEvent("mtn_momo", body)
	if err != nil {
		t.Fatalf("normalizeMomoEvent returned error: %v", err)
	}
	if event.Type != domain.EventPaymentSuccess || event.ProviderRef != "363440463" || event.Reference != "sr_abc_payout" {
		t.Fatalf("unexpected event: %+v", event)
	}

	body = []byte(`{"status":"TIMEOUT","externalId":"sr_abc","reason":{"message":"payee timed out"}}`)
	event, err = normalizeMomoEvent("mtn_momo", body)
	if err != nil || event.Type != domain.EventPaymentFailed || event.Reason != "payee timed out" {
		t.Fatalf("expected failure with reason, got %+v err=%v", event, err)
	}
}

func TestNormalizeAggregatorEvent(t *testing.T) {
	// Numeric transfer ids arrive as JSON numbers.
	body := []byte(`{"event":"transfer.completed","data":{"id":511734,"reference":"sr_abc_payout","status":"SUCCESSFUL"}}`)
	event, err := normalizeAggregatorEvent("aggregator", body)
	if err != nil {
		t.Fatalf("normalizeAggregatorEvent returned error: %v", err)
	}
	if event.Type != domain.EventPaymentSuccess || event.ProviderRef != "511734" {
		t.Fatalf("unexpected event: %+v", event)
	}

	body = []byte(`{"event":"transfer.completed","data":{"id":511735,"reference":"sr_abc_payout","status":"FAILED","complete_message":"beneficiary invalid"}}`)
	event, err = normalizeAggregatorEvent("aggregator", body)
	if err != nil || event.Type != domain.EventPaymentFailed {
		t.Fatalf("expected failure, got %+v err=%v", event, err)
	}
}

func TestNormalizeBankSwitchEvent(t *testing.T) {
	body := []byte(`{"data":{"type":"transfer.settled","attributes":{"reference":"sr_abc_payout","session_id":"090000211234","status":"settled"}}}`)
	event, err := normalizeBankSwitchEvent("bank_switch", body)
	if err != nil {
		t.Fatalf("normalizeBankSwitchEvent returned error: %v", err)
	}
	if event.Type != domain.EventPaymentSuccess || event.ProviderRef != "090000211234" {
		t.Fatalf("unexpected event: %+v", event)
	}

	body = []byte(`{"data":{"type":"transfer.reversed","attributes":{"reference":"sr_abc","session_id":"090000211235"}}}`)
	event, err = normalizeBankSwitchEvent("bank_switch", body)
	if err != nil || event.Type != domain.EventRefundProcessed {
		t.Fatalf("expected refund event, got %+v err=%v", event, err)
	}
}
