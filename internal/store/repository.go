/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the remittance-service needs. The interface decouples business
 * logic from PostgreSQL and lets the orchestrator and engines be tested
 * against in-memory stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sikaremit/remittance-service/internal/domain"
)

var (
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrRemittanceNotFound    = errors.New("remittance not found")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrWalletNotFound        = errors.New("wallet not found")
	// ErrDailyLimitExceeded and ErrMonthlyLimitExceeded are raised by the
	// atomic check-and-reserve when the re-aggregated totals under the
	// per-sender lock would breach a velocity limit.
	ErrDailyLimitExceeded   = errors.New("daily velocity limit exceeded")
	ErrMonthlyLimitExceeded = errors.New("monthly velocity limit exceeded")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Payment methods
	FindPaymentMethod(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*domain.PaymentMethod, error)

	// Exchange rates (administrator-maintained). Missing pairs fail closed
	// with fees.ErrRateNotConfigured.
	GetExchangeRate(ctx context.Context, sourceCurrency, destinationCurrency string) (float64, error)

	// Sanctions/PEP list
	IsSanctionedName(ctx context.Context, name string) (bool, error)

	// Velocity aggregation (advisory reads for Evaluate/preview)
	SenderVolumeSince(ctx context.Context, senderID uuid.UUID, since time.Time) (int64, error)

	// CreateRemittanceReserved is the binding velocity enforcement: inside
	// one transaction it serializes on the sender, re-aggregates the daily
	// and monthly totals, fails with ErrDailyLimitExceeded or
	// ErrMonthlyLimitExceeded if this remittance would breach a limit, and
	// otherwise inserts the pending remittance row.
	CreateRemittanceReserved(ctx context.Context, r *domain.CrossBorderRemittance, dailyLimit, monthlyLimit int64) error

	FindRemittanceByID(ctx context.Context, id uuid.UUID) (*domain.CrossBorderRemittance, error)
	FindRemittanceByReference(ctx context.Context, reference string) (*domain.CrossBorderRemittance, error)
	ListRemittancesBySender(ctx context.Context, senderID uuid.UUID, limit, offset int) ([]domain.CrossBorderRemittance, error)

	// AdvanceRemittanceStatus moves a remittance to `to` only if its current
	// status is in `from`; it reports whether a row changed. This is the
	// idempotency guard for webhook-driven advances: a duplicate callback
	// finds no matching row and becomes a no-op.
	AdvanceRemittanceStatus(ctx context.Context, id uuid.UUID, from []domain.RemittanceStatus, to domain.RemittanceStatus, failureReason *string) (bool, error)

	SetRemittancePickup(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error
	SetRemittanceCompliance(ctx context.Context, id uuid.UUID, flags []string, notes string) error
	SetRemittanceLegs(ctx context.Context, id uuid.UUID, fundingTxID, payoutTxID *uuid.UUID) error

	// OverrideRemittanceStatus is the admin escape hatch out of a terminal
	// state. It writes the status and the audit entry in one transaction.
	OverrideRemittanceStatus(ctx context.Context, id uuid.UUID, to domain.RemittanceStatus, actorID uuid.UUID, reason string) error

	// UpdateExemptionState applies the exemption sub-state machine with the
	// same conditional-from guard as status advances.
	UpdateExemptionState(ctx context.Context, id uuid.UUID, from []domain.ExemptionState, to domain.ExemptionState, reason *string, actorID *uuid.UUID) (bool, error)

	// Transactions
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	UpdateTransactionResult(ctx context.Context, id uuid.UUID, gateway string, providerRef *string, status domain.TransactionStatus, failureReason *string) error
	AdvanceTransactionStatus(ctx context.Context, id uuid.UUID, from []domain.TransactionStatus, to domain.TransactionStatus, failureReason *string) (bool, error)
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindTransactionByProviderRef(ctx context.Context, providerRef string) (*domain.Transaction, error)

	// Wallets (in-platform balance delivery)
	CreditWallet(ctx context.Context, userID uuid.UUID, amount int64) error
	WalletBalance(ctx context.Context, userID uuid.UUID) (int64, error)

	// Audit
	RecordAuditEntry(ctx context.Context, entry *domain.AuditEntry) error
}
