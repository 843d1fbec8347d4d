/**
 * @description
 * This package contains the payment gateway abstraction: the uniform Client
 * contract every external rail implements, the resilience wrapper (bounded
 * retry + circuit breaker), the category router with fallback, and the
 * webhook signature verifier.
 *
 * Gateways own the outbound HTTP call, its timeout, and response
 * normalization. All state changes happen in the caller; a gateway call has
 * no side effects beyond the wire.
 */
package gateway

import (
	"context"
	"encoding/json"

	"github.com/sikaremit/remittance-service/internal/domain"
)

// PaymentInstruction is the normalized request handed to a gateway. The
// Reference field is the caller-generated idempotency token; every client
// forwards it to the provider so a retried or replayed call cannot duplicate
// its effect.
type PaymentInstruction struct {
	Reference   string
	Amount      int64 // minor units
	Currency    string
	MethodToken string // provider-side instrument reference (funding leg)
	SenderID    string
	Recipient   domain.RecipientDetails
	Narration   string
	Metadata    map[string]string
}

// Result is the normalized outcome of a successful gateway call. Failures are
// reported through typed *GatewayError values, never through a Result.
type Result struct {
	ProviderRef string
	Status      string
	Raw         json.RawMessage
}

// Client is the capability contract toward one external rail. Implementations
// must be idempotent-safe given the instruction's Reference token.
type Client interface {
	// Name identifies the gateway in logs, health tracking, and transactions.
	Name() string
	// Pay executes a debit (funding leg) or disbursement (payout leg).
	Pay(ctx context.Context, instr PaymentInstruction) (*Result, error)
	// Refund reverses a previous payment identified by its provider reference.
	// amount <= 0 means a full refund.
	Refund(ctx context.Context, providerRef string, amount int64) (*Result, error)
}
