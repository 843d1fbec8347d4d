/**
 * @description
 * Card rail client (Paystack-style charge API). Charges a previously
 * tokenized card authorization and supports refunds by transaction
 * reference. The caller's idempotency token travels as the charge reference,
 * which the provider deduplicates on.
 */
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// PaystackClient implements the Client contract for the card rail.
type PaystackClient struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewPaystackClient creates a card gateway client.
func NewPaystackClient(baseURL, secretKey string) *PaystackClient {
	return &PaystackClient{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		SecretKey:  secretKey,
		HTTPClient: newGatewayHTTPClient(),
	}
}

func (c *PaystackClient) Name() string { return "paystack" }

type paystackChargeRequest struct {
	AuthorizationCode string            `json:"authorization_code"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Reference         string            `json:"reference"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type paystackChargeResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"message"`
	Data   struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// Pay charges the sender's tokenized card.
func (c *PaystackClient) Pay(ctx context.Context, instr PaymentInstruction) (*Result, error) {
	payload := paystackChargeRequest{
		AuthorizationCode: instr.MethodToken,
		Amount:            instr.Amount,
		Currency:          instr.Currency,
		Reference:         instr.Reference,
		Metadata:          instr.Metadata,
	}

	body, err := doJSON(ctx, c.HTTPClient, c.Name(), http.MethodPost,
		c.BaseURL+"/transaction/charge_authorization", c.authHeaders(), payload)
	if err != nil {
		return nil, err
	}

	var resp paystackChargeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, Transient(c.Name(), "failed to decode charge response", err)
	}
	if !resp.Status || resp.Data.Status == "failed" {
		return nil, Rejected(c.Name(), "charge_declined", resp.Msg)
	}

	return &Result{ProviderRef: resp.Data.Reference, Status: resp.Data.Status, Raw: body}, nil
}

type paystackRefundRequest struct {
	Transaction string `json:"transaction"`
	Amount      int64  `json:"amount,omitempty"`
}

// Refund reverses a charge. amount <= 0 refunds the full charge.
func (c *PaystackClient) Refund(ctx context.Context, providerRef string, amount int64) (*Result, error) {
	payload := paystackRefundRequest{Transaction: providerRef}
	if amount > 0 {
		payload.Amount = amount
	}

	body, err := doJSON(ctx, c.HTTPClient, c.Name(), http.MethodPost, c.BaseURL+"/refund", c.authHeaders(), payload)
	if err != nil {
		return nil, err
	}

	var resp paystackChargeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, Transient(c.Name(), "failed to decode refund response", err)
	}
	if !resp.Status {
		return nil, Rejected(c.Name(), "refund_declined", resp.Msg)
	}
	return &Result{ProviderRef: resp.Data.Reference, Status: "refund_pending", Raw: body}, nil
}

func (c *PaystackClient) authHeaders() map[string]string {
	return map[string]string{"Authorization": fmt.Sprintf("Bearer %s", c.SecretKey)}
}
