/**
 * @description
 * Generic mobile-money/cash-payout aggregator client (Flutterwave transfer
 * API style). Serves as the fallback behind the direct operator integration
 * and as the primary rail for cash-pickup disbursements, which only the
 * aggregator network supports.
 */
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// AggregatorClient implements the Client contract against the payout aggregator.
type AggregatorClient struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewAggregatorClient creates an aggregator gateway client.
func NewAggregatorClient(baseURL, secretKey string) *AggregatorClient {
	return &AggregatorClient{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		SecretKey:  secretKey,
		HTTPClient: newGatewayHTTPClient(),
	}
}

func (c *AggregatorClient) Name() string { return "aggregator" }

type aggregatorTransferRequest struct {
	AccountBank     string            `json:"account_bank,omitempty"`
	AccountNumber   string            `json:"account_number"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency"`
	Reference       string            `json:"reference"`
	Narration       string            `json:"narration,omitempty"`
	BeneficiaryName string            `json:"beneficiary_name,omitempty"`
	Meta            map[string]string `json:"meta,omitempty"`
}

type aggregatorTransferResponse struct {
	Status string `json:"status"`
	Msg    string `json:"message"`
	Data   struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// Pay initiates a payout through the aggregator network.
func (c *AggregatorClient) Pay(ctx context.Context, instr PaymentInstruction) (*Result, error) {
	payload := aggregatorTransferRequest{
		AccountBank:     instr.Recipient.BankName,
		AccountNumber:   instr.Recipient.AccountNumber,
		Amount:          instr.Amount,
		Currency:        instr.Currency,
		Reference:       instr.Reference,
		Narration:       instr.Narration,
		BeneficiaryName: instr.Recipient.Name,
		Meta:            instr.Metadata,
	}
	if payload.AccountNumber == "" {
		payload.AccountNumber = instr.Recipient.Phone
	}

	body, err := doJSON(ctx, c.HTTPClient, c.Name(), http.MethodPost, c.BaseURL+"/transfers", c.authHeaders(), payload)
	if err != nil {
		return nil, err
	}

	var resp aggregatorTransferResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, Transient(c.Name(), "failed to decode transfer response", err)
	}
	if !strings.EqualFold(resp.Status, "success") {
		return nil, Rejected(c.Name(), "transfer_declined", resp.Msg)
	}

	providerRef := resp.Data.Reference
	if providerRef == "" {
		providerRef = strconv.FormatInt(resp.Data.ID, 10)
	}
	return &Result{ProviderRef: providerRef, Status: strings.ToLower(resp.Data.Status), Raw: body}, nil
}

// Refund asks the aggregator to reverse a payout.
func (c *AggregatorClient) Refund(ctx context.Context, providerRef string, amount int64) (*Result, error) {
	payload := map[string]interface{}{"reference": providerRef}
	if amount > 0 {
		payload["amount"] = amount
	}

	body, err := doJSON(ctx, c.HTTPClient, c.Name(), http.MethodPost,
		fmt.Sprintf("%s/transfers/%s/reverse", c.BaseURL, providerRef), c.authHeaders(), payload)
	if err != nil {
		return nil, err
	}

	var resp aggregatorTransferResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, Transient(c.Name(), "failed to decode reversal response", err)
	}
	if !strings.EqualFold(resp.Status, "success") {
		return nil, Rejected(c.Name(), "reversal_declined", resp.Msg)
	}
	return &Result{ProviderRef: providerRef, Status: "reversal_pending", Raw: body}, nil
}

func (c *AggregatorClient) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.SecretKey}
}
