/**
 * @description
 * This file defines the core domain models for the remittance-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (pesewas/cents),
 *   which avoids floating-point inaccuracies with financial data. Exchange rates
 *   are the only float in the model and are applied with explicit rounding.
 * - Remittance status is forward-only: once a remittance reaches a terminal
 *   state it can only move again through an explicit admin override, which is
 *   always audit-logged with a reason.
 */

package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// RemittanceStatus enumerates the states of the delivery state machine.
type RemittanceStatus string

const (
	RemittancePending        RemittanceStatus = "pending"
	RemittanceProcessing     RemittanceStatus = "processing"
	RemittanceAwaitingPickup RemittanceStatus = "awaiting_pickup"
	RemittanceCompleted      RemittanceStatus = "completed"
	RemittanceFailed         RemittanceStatus = "failed"
	RemittanceCancelled      RemittanceStatus = "cancelled"
	RemittanceRefunded       RemittanceStatus = "refunded"
)

// remittanceTransitions is the full transition graph. Anything not listed here
// is rejected by CanTransition; admin overrides bypass the graph but are
// recorded in the audit log.
var remittanceTransitions = map[RemittanceStatus][]RemittanceStatus{
	RemittancePending:        {RemittanceProcessing, RemittanceFailed, RemittanceCancelled},
	RemittanceProcessing:     {RemittanceAwaitingPickup, RemittanceCompleted, RemittanceFailed, RemittanceCancelled},
	RemittanceAwaitingPickup: {RemittanceCompleted, RemittanceFailed},
	RemittanceCompleted:      {RemittanceRefunded},
}

// IsTerminal reports whether a remittance in this status may not advance on
// its own. completed -> refunded is the one admin-only exception.
func (s RemittanceStatus) IsTerminal() bool {
	switch s {
	case RemittanceCompleted, RemittanceFailed, RemittanceCancelled, RemittanceRefunded:
		return true
	}
	return false
}

// CanTransition reports whether the state machine permits moving from one
// status to another.
func CanTransition(from, to RemittanceStatus) bool {
	for _, allowed := range remittanceTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ExemptionState is the regulatory-reporting exemption sub-state. It is
// independent of the main state machine and, unlike it, may cycle:
// rejected/revoked exemptions can be re-requested.
type ExemptionState string

const (
	ExemptionNone     ExemptionState = "none"
	ExemptionPending  ExemptionState = "pending"
	ExemptionApproved ExemptionState = "approved"
	ExemptionRejected ExemptionState = "rejected"
	ExemptionRevoked  ExemptionState = "revoked"
)

// DeliveryMethod enumerates how recipient funds are made available.
type DeliveryMethod string

const (
	DeliveryMobileMoney  DeliveryMethod = "mobile_money"
	DeliveryBankTransfer DeliveryMethod = "bank_transfer"
	DeliveryCashPickup   DeliveryMethod = "cash_pickup"
	DeliveryWallet       DeliveryMethod = "wallet" // recipient is a SikaRemit user
)

// KnownDeliveryMethod reports whether the value is one we can fulfil.
func KnownDeliveryMethod(m DeliveryMethod) bool {
	switch m {
	case DeliveryMobileMoney, DeliveryBankTransfer, DeliveryCashPickup, DeliveryWallet:
		return true
	}
	return false
}

// RecipientDetails is the declared recipient descriptor on a remittance.
// Which fields are required depends on the delivery method.
type RecipientDetails struct {
	Name           string     `json:"name"`
	Phone          string     `json:"phone,omitempty"`
	Country        string     `json:"country"`
	MobileProvider string     `json:"mobile_provider,omitempty"`
	AccountNumber  string     `json:"account_number,omitempty"`
	BankName       string     `json:"bank_name,omitempty"`
	Address        string     `json:"address,omitempty"`
	City           string     `json:"city,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"` // set for wallet delivery
}

// CrossBorderRemittance is a money-movement intent. It maps directly to the
// `remittances` table.
type CrossBorderRemittance struct {
	ID                  uuid.UUID        `json:"id"`
	Reference           string           `json:"reference"` // client-facing, doubles as idempotency token toward gateways
	SenderID            uuid.UUID        `json:"sender_id"`
	Recipient           RecipientDetails `json:"recipient"`
	AmountSent          int64            `json:"amount_sent"`     // minor units, source currency
	AmountReceived      int64            `json:"amount_received"` // minor units, destination currency
	Fee                 int64            `json:"fee"`             // minor units, source currency
	ExchangeRate        float64          `json:"exchange_rate"`
	SourceCurrency      string           `json:"source_currency"`
	DestinationCurrency string           `json:"destination_currency"`
	DeliveryMethod      DeliveryMethod   `json:"delivery_method"`
	PaymentMethodID     uuid.UUID        `json:"payment_method_id"`
	Purpose             string           `json:"purpose"`
	Status              RemittanceStatus `json:"status"`
	ComplianceFlags     []string         `json:"compliance_flags,omitempty"`
	ComplianceNotes     *string          `json:"compliance_notes,omitempty"`
	ExemptionState      ExemptionState   `json:"exemption_state"`
	ExemptionReason     *string          `json:"exemption_reason,omitempty"`
	ExemptionActorID    *uuid.UUID       `json:"exemption_actor_id,omitempty"`
	PickupCode          *string          `json:"pickup_code,omitempty"`
	PickupExpiresAt     *time.Time       `json:"pickup_expires_at,omitempty"`
	FailureReason       *string          `json:"failure_reason,omitempty"`
	FundingTxID         *uuid.UUID       `json:"funding_transaction_id,omitempty"`
	PayoutTxID          *uuid.UUID       `json:"payout_transaction_id,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// FeeQuote is the ephemeral pricing result for one request. It is recomputed
// per request and never cached, because admin-set rates change.
type FeeQuote struct {
	PercentFee       int64   `json:"percent_fee"`
	FixedFee         int64   `json:"fixed_fee"`
	TotalFee         int64   `json:"total_fee"`
	ExchangeRate     float64 `json:"exchange_rate"`
	AmountReceived   int64   `json:"amount_received"`
	DeliveryEstimate string  `json:"delivery_estimate"`
}

// ComplianceCheckResult is the ephemeral outcome of a compliance evaluation.
// It is never persisted as its own entity; the flags and reason are embedded
// in the remittance record's compliance notes.
type ComplianceCheckResult struct {
	Passed            bool     `json:"passed"`
	Flags             []string `json:"flags,omitempty"`
	Reason            string   `json:"reason,omitempty"`
	RemediationAction string   `json:"remediation_action,omitempty"`
}

// HasFlag reports whether the result carries the given flag.
func (r *ComplianceCheckResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// ConvertMinor applies an exchange rate to a minor-unit amount, rounding half
// away from zero. This is the single conversion point used by the fee engine
// so the amount_received invariant holds everywhere.
func ConvertMinor(amount int64, rate float64) int64 {
	return int64(math.Round(float64(amount) * rate))
}

// InitiateRemittanceRequest is the DTO for incoming remittance initiation.
type InitiateRemittanceRequest struct {
	Recipient           RecipientDetails `json:"recipient"`
	Amount              int64            `json:"amount"` // minor units
	SourceCurrency      string           `json:"source_currency"`
	DestinationCurrency string           `json:"destination_currency"`
	DeliveryMethod      DeliveryMethod   `json:"delivery_method"`
	PaymentMethodID     uuid.UUID        `json:"payment_method_id"`
	Purpose             string           `json:"purpose"`
}

// QuoteRequest is the DTO for the side-effect-free compliance/fee preview.
type QuoteRequest struct {
	Amount              int64          `json:"amount"`
	SourceCurrency      string         `json:"source_currency"`
	DestinationCurrency string         `json:"destination_currency"`
	DeliveryMethod      DeliveryMethod `json:"delivery_method"`
}

// AuditEntry records a privileged action (admin override, exemption decision).
type AuditEntry struct {
	ID           uuid.UUID `json:"id"`
	RemittanceID uuid.UUID `json:"remittance_id"`
	ActorID      uuid.UUID `json:"actor_id"`
	Action       string    `json:"action"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}
