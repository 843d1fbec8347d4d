/**
 * @description
 * Direct mobile-money operator client (MTN MoMo disbursement API style). The
 * operator keys idempotency on the X-Reference-Id header, which carries the
 * caller's token verbatim.
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

// MomoClient implements the Client contract against a mobile-money operator.
type MomoClient struct {
	BaseURL         string
	SubscriptionKey string
	HTTPClient      *http.Client
}

// NewMomoClient creates a direct mobile-money gateway client.
func NewMomoClient(baseURL, subscriptionKey string) *MomoClient {
	return &MomoClient{
		BaseURL:         strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		SubscriptionKey: subscriptionKey,
		HTTPClient:      newGatewayHTTPClient(),
	}
}

func (c *MomoClient) Name() string { return "mtn_momo" }

type momoTransferRequest struct {
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	ExternalID string `json:"externalId"`
	Payee      struct {
		PartyIDType string `json:"partyIdType"`
		PartyID     string `json:"partyId"`
	} `json:"payee"`
	PayerMessage string `json:"payerMessage,omitempty"`
	PayeeNote    string `json:"payeeNote,omitempty"`
}

type momoTransferResponse struct {
	ReferenceID string `json:"referenceId"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// Pay initiates a disbursement to the recipient's mobile wallet. Collection
// from a sender's momo wallet uses the same wire shape with the method token
// as the party id.
func (c *MomoClient) Pay(ctx context.Context, instr PaymentInstruction) (*Result, error) {
	payload := momoTransferRequest{
		Amount:     formatMinorAmount(instr.Amount),
		Currency:   instr.Currency,
		ExternalID: instr.Reference,
	}
	payload.Payee.PartyIDType = "MSISDN"
	payload.Payee.PartyID = instr.Recipient.Phone
	if payload.Payee.PartyID == "" {
		payload.Payee.PartyID = instr.MethodToken
	}
	payload.PayeeNote = instr.Narration

	headers := map[string]string{
		"X-Reference-Id":            instr.Reference,
		"Ocp-Apim-Subscription-Key": c.SubscriptionKey,
	}

	body, err := doJSON(ctx, c.HTTPClient, c.Name(), http.MethodPost, c.BaseURL+"/disbursement/v1_0/transfer", headers, payload)
	if err != nil {
		return nil, err
	}

	resp := momoTransferResponse{ReferenceID: instr.Reference, Status: "PENDING"}
	if len(body) > 0 {
		// The operator returns 202 with an empty body on accept; a body
		// means it echoed state back.
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, Transient(c.Name(), "failed to decode transfer response", err)
		}
		if resp.ReferenceID == "" {
			resp.ReferenceID = instr.Reference
		}
	}
	if strings.EqualFold(resp.Status, "FAILED") {
		return nil, Rejected(c.Name(), "transfer_failed", resp.Reason)
	}

	return &Result{ProviderRef: resp.ReferenceID, Status: strings.ToLower(resp.Status), Raw: body}, nil
}

// Refund reverses a disbursement. The operator models this as a new transfer
// referencing the original, keyed on a derived idempotency id.
func (c *MomoClient) Refund(ctx context.Context, providerRef string, amount int64) (*Result, error) {
	headers := map[string]string{
		"X-Reference-Id":            providerRef + "-reversal",
		"Ocp-Apim-Subscription-Key": c.SubscriptionKey,
	}

	body, err := doJSON(ctx, c.HTTPClient, c.Name(), http.MethodPost,
		c.BaseURL+"/disbursement/v1_0/transfer/"+providerRef+"/reversal", headers, nil)
	if err != nil {
		return nil, err
	}
	return &Result{ProviderRef: providerRef + "-reversal", Status: "pending", Raw: body}, nil
}

// formatMinorAmount renders a minor-unit amount as the major-unit decimal
// string the operator API expects.
func formatMinorAmount(minor int64) string {
	major := minor / 100
	cents := minor % 100
	if cents == 0 {
		return strconv.FormatInt(major, 10)
	}
	return fmt.Sprintf("%d.%02d", major, cents)
}
