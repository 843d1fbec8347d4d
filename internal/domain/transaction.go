/**
 * @description
 * Transaction and payment-method models. A Transaction is one funding or
 * payout attempt against an external gateway; a PaymentMethod identifies the
 * funding instrument a sender pays with.
 *
 * @notes
 * - Transactions are created by the orchestrator and mutated only by
 *   gateway-result handling or an explicit admin override. They are never
 *   deleted.
 * - A PaymentMethod is immutable once verified, except for deactivation.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus enumerates the lifecycle of a single gateway attempt.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionRefunded  TransactionStatus = "refunded"
)

// TransactionLeg distinguishes the sender debit from the recipient credit.
type TransactionLeg string

const (
	LegFunding TransactionLeg = "funding"
	LegPayout  TransactionLeg = "payout"
)

// Transaction is one funding or payout attempt. Maps to the `transactions` table.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	RemittanceID    uuid.UUID         `json:"remittance_id"`
	Leg             TransactionLeg    `json:"leg"`
	PaymentMethodID *uuid.UUID        `json:"payment_method_id,omitempty"`
	Gateway         string            `json:"gateway"` // name of the gateway that handled (or last attempted) the call
	ProviderRef     *string           `json:"provider_ref,omitempty"`
	Amount          int64             `json:"amount"` // minor units
	Currency        string            `json:"currency"`
	Status          TransactionStatus `json:"status"`
	FailureReason   *string           `json:"failure_reason,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// PaymentMethodCategory keys the gateway routing table.
type PaymentMethodCategory string

const (
	CategoryCard        PaymentMethodCategory = "card"
	CategoryBank        PaymentMethodCategory = "bank"
	CategoryMobileMoney PaymentMethodCategory = "mobile_money"
	// CategoryCashPickup is a payout-only routing key; no funding instrument
	// carries it.
	CategoryCashPickup PaymentMethodCategory = "cash_pickup"
)

// PaymentMethod identifies a funding instrument. Maps to `payment_methods`.
type PaymentMethod struct {
	ID       uuid.UUID             `json:"id"`
	OwnerID  uuid.UUID             `json:"owner_id"`
	Category PaymentMethodCategory `json:"category"`
	Label    string                `json:"label"`
	// Token is the provider-side instrument reference (card authorization
	// token, momo wallet number, bank mandate) charged by the gateway.
	Token    string `json:"-"`
	Active   bool   `json:"active"`
	Verified bool   `json:"verified"`
}

// Usable reports whether the instrument may fund a remittance.
func (m *PaymentMethod) Usable() bool {
	return m.Active && m.Verified
}

// GatewayEventType enumerates the internal events a verified provider
// callback maps to.
type GatewayEventType string

const (
	EventPaymentSuccess  GatewayEventType = "payment_success"
	EventPaymentFailed   GatewayEventType = "payment_failed"
	EventRefundProcessed GatewayEventType = "refund_processed"
	EventDisputeOpened   GatewayEventType = "dispute_opened"
)

// GatewayEvent is the normalized form of a verified provider webhook.
type GatewayEvent struct {
	Type        GatewayEventType `json:"type"`
	Gateway     string           `json:"gateway"`
	ProviderRef string           `json:"provider_ref"`
	Reference   string           `json:"reference,omitempty"` // our idempotency token, when the provider echoes it
	Reason      string           `json:"reason,omitempty"`
}

// RemittanceStatusEvent is the payload published to RabbitMQ on every status
// transition so the notification service can fan out to the sender.
type RemittanceStatusEvent struct {
	RemittanceID uuid.UUID        `json:"remittance_id"`
	Reference    string           `json:"reference"`
	SenderID     uuid.UUID        `json:"sender_id"`
	Status       RemittanceStatus `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}
