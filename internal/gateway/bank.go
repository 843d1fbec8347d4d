/**
 * @description
 * Direct bank rail client. Models the instant-transfer API of the partner
 * banking switch: debits a mandated account for funding, credits a named
 * account for payout. JSON:API-style envelope, mirrored from the switch's
 * documentation.
 */
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// BankClient implements the Client contract against the banking switch.
type BankClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewBankClient creates a bank gateway client.
func NewBankClient(baseURL, apiKey string) *BankClient {
	return &BankClient{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:     apiKey,
		HTTPClient: newGatewayHTTPClient(),
	}
}

func (c *BankClient) Name() string { return "bank_switch" }

type bankTransferRequest struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Amount      int64  `json:"amount"`
			Currency    string `json:"currency"`
			Reference   string `json:"reference"`
			Narration   string `json:"narration,omitempty"`
			AccountName string `json:"accountName,omitempty"`
			AccountNo   string `json:"accountNumber"`
			BankName    string `json:"bankName,omitempty"`
		} `json:"attributes"`
	} `json:"data"`
}

type bankTransferResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Status string `json:"status"`
			Reason string `json:"reason,omitempty"`
		} `json:"attributes"`
	} `json:"data"`
}

// Pay executes a transfer on the banking rail. For the funding leg the
// method token is the mandated account number; for payout the recipient's
// declared account is credited.
func (c *BankClient) Pay(ctx context.Context, instr PaymentInstruction) (*Result, error) {
	payload := bankTransferRequest{}
	payload.Data.Type = "InstantTransfer"
	payload.Data.Attributes.Amount = instr.Amount
	payload.Data.Attributes.Currency = instr.Currency
	payload.Data.Attributes.Reference = instr.Reference
	payload.Data.Attributes.Narration = instr.Narration
	payload.Data.Attributes.AccountName = instr.Recipient.Name
	payload.Data.Attributes.AccountNo = instr.Recipient.AccountNumber
	payload.Data.Attributes.BankName = instr.Recipient.BankName
	if payload.Data.Attributes.AccountNo == "" {
		payload.Data.Attributes.AccountNo = instr.MethodToken
	}

	body, err := doJSON(ctx, c.HTTPClient, c.Name(), http.MethodPost,
		c.BaseURL+"/api/v1/transfers", c.authHeaders(), payload)
	if err != nil {
		return nil, err
	}

	var resp bankTransferResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, Transient(c.Name(), "failed to decode transfer response", err)
	}
	if strings.EqualFold(resp.Data.Attributes.Status, "failed") {
		return nil, Rejected(c.Name(), "transfer_failed", resp.Data.Attributes.Reason)
	}

	return &Result{ProviderRef: resp.Data.ID, Status: strings.ToLower(resp.Data.Attributes.Status), Raw: body}, nil
}

// Refund reverses an earlier transfer by id.
func (c *BankClient) Refund(ctx context.Context, providerRef string, amount int64) (*Result, error) {
	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"type": "TransferReversal",
			"attributes": map[string]interface{}{
				"transferId": providerRef,
				"amount":     amount,
			},
		},
	}

	body, err := doJSON(ctx, c.HTTPClient, c.Name(), http.MethodPost,
		c.BaseURL+"/api/v1/transfers/reversals", c.authHeaders(), payload)
	if err != nil {
		return nil, err
	}

	var resp bankTransferResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, Transient(c.Name(), "failed to decode reversal response", err)
	}
	return &Result{ProviderRef: resp.Data.ID, Status: "reversal_pending", Raw: body}, nil
}

func (c *BankClient) authHeaders() map[string]string {
	return map[string]string{"x-switch-key": c.APIKey}
}
