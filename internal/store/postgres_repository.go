/**
 * @description
 * PostgreSQL implementation of the `Repository` interface. Contains all SQL
 * for remittances, transactions, payment methods, exchange rates, the
 * sanctions list, wallets, and the audit log.
 *
 * @notes
 * - Status advances use conditional UPDATE ... WHERE status = ANY(...) so a
 *   replayed webhook or a racing admin action simply matches zero rows.
 * - The velocity reservation takes a per-sender advisory lock inside its
 *   transaction; see CreateRemittanceReserved.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/domain: Domain models.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sikaremit/remittance-service/internal/domain"
	"github.com/sikaremit/remittance-service/internal/fees"
)

// PostgresRepository is the concrete Repository backed by a pgx pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// --- Payment methods ---

// FindPaymentMethod retrieves a funding instrument scoped to its owner.
func (r *PostgresRepository) FindPaymentMethod(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*domain.PaymentMethod, error) {
	var m domain.PaymentMethod
	query := `SELECT id, owner_id, category, label, token, active, verified
	          FROM payment_methods WHERE id = $1 AND owner_id = $2`
	err := r.db.QueryRow(ctx, query, id, ownerID).Scan(
		&m.ID, &m.OwnerID, &m.Category, &m.Label, &m.Token, &m.Active, &m.Verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentMethodNotFound
		}
		return nil, err
	}
	return &m, nil
}

// --- Exchange rates ---

// GetExchangeRate resolves the administrator-set rate for a currency pair.
// Missing pairs fail closed; there is no default rate.
func (r *PostgresRepository) GetExchangeRate(ctx context.Context, sourceCurrency, destinationCurrency string) (float64, error) {
	var rate float64
	query := `SELECT rate FROM exchange_rates WHERE source_currency = $1 AND destination_currency = $2`
	err := r.db.QueryRow(ctx, query, strings.ToUpper(sourceCurrency), strings.ToUpper(destinationCurrency)).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s/%s", fees.ErrRateNotConfigured, sourceCurrency, destinationCurrency)
		}
		return 0, err
	}
	return rate, nil
}

// --- Sanctions ---

// IsSanctionedName checks a declared name against the sanctions/PEP list.
// Matching is case- and whitespace-insensitive on the normalized name.
func (r *PostgresRepository) IsSanctionedName(ctx context.Context, name string) (bool, error) {
	normalized := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if normalized == "" {
		return false, nil
	}
	var match bool
	query := `SELECT EXISTS(SELECT 1 FROM sanctions_entries WHERE normalized_name = $1)`
	if err := r.db.QueryRow(ctx, query, normalized).Scan(&match); err != nil {
		return false, err
	}
	return match, nil
}

// --- Velocity ---

// velocityStatuses are the remittance states that count toward a sender's
// rolling totals: everything that has moved or may still move money.
var velocityStatuses = []string{
	string(domain.RemittancePending),
	string(domain.RemittanceProcessing),
	string(domain.RemittanceAwaitingPickup),
	string(domain.RemittanceCompleted),
}

// SenderVolumeSince sums a sender's counted remittance volume created at or
// after the given instant.
func (r *PostgresRepository) SenderVolumeSince(ctx context.Context, senderID uuid.UUID, since time.Time) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(amount_sent), 0) FROM remittances
	          WHERE sender_id = $1 AND created_at >= $2 AND status = ANY($3)`
	if err := r.db.QueryRow(ctx, query, senderID, since, velocityStatuses).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// CreateRemittanceReserved performs the serialized check-and-reserve: take a
// per-sender advisory lock, re-aggregate the daily and monthly totals under
// it, and insert the pending row only if both limits hold. Two concurrent
// requests from the same sender serialize here, so neither can pass the
// check against totals the other is about to change.
func (r *PostgresRepository) CreateRemittanceReserved(ctx context.Context, rem *domain.CrossBorderRemittance, dailyLimit, monthlyLimit int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reservation: %w", err)
	}
	defer tx.Rollback(ctx)

	// The lock key is derived from the sender UUID; it is held until commit.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, rem.SenderID); err != nil {
		return fmt.Errorf("acquire sender lock: %w", err)
	}

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	sumQuery := `SELECT COALESCE(SUM(amount_sent), 0) FROM remittances
	             WHERE sender_id = $1 AND created_at >= $2 AND status = ANY($3)`

	var dailyTotal int64
	if err := tx.QueryRow(ctx, sumQuery, rem.SenderID, dayStart, velocityStatuses).Scan(&dailyTotal); err != nil {
		return fmt.Errorf("aggregate daily volume: %w", err)
	}
	if dailyTotal+rem.AmountSent > dailyLimit {
		return ErrDailyLimitExceeded
	}

	var monthlyTotal int64
	if err := tx.QueryRow(ctx, sumQuery, rem.SenderID, monthStart, velocityStatuses).Scan(&monthlyTotal); err != nil {
		return fmt.Errorf("aggregate monthly volume: %w", err)
	}
	if monthlyTotal+rem.AmountSent > monthlyLimit {
		return ErrMonthlyLimitExceeded
	}

	recipientJSON, err := json.Marshal(rem.Recipient)
	if err != nil {
		return fmt.Errorf("marshal recipient: %w", err)
	}

	insert := `INSERT INTO remittances (
	        id, reference, sender_id, recipient, amount_sent, amount_received, fee,
	        exchange_rate, source_currency, destination_currency, delivery_method,
	        payment_method_id, purpose, status, compliance_flags, compliance_notes,
	        exemption_state, created_at, updated_at
	    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())`
	if _, err := tx.Exec(ctx, insert,
		rem.ID, rem.Reference, rem.SenderID, recipientJSON, rem.AmountSent, rem.AmountReceived,
		rem.Fee, rem.ExchangeRate, rem.SourceCurrency, rem.DestinationCurrency, rem.DeliveryMethod,
		rem.PaymentMethodID, rem.Purpose, rem.Status, rem.ComplianceFlags, rem.ComplianceNotes,
		rem.ExemptionState,
	); err != nil {
		return fmt.Errorf("insert remittance: %w", err)
	}

	return tx.Commit(ctx)
}

// --- Remittance reads ---

const remittanceColumns = `id, reference, sender_id, recipient, amount_sent, amount_received, fee,
	exchange_rate, source_currency, destination_currency, delivery_method, payment_method_id,
	purpose, status, compliance_flags, compliance_notes, exemption_state, exemption_reason,
	exemption_actor_id, pickup_code, pickup_expires_at, failure_reason, funding_tx_id,
	payout_tx_id, created_at, updated_at`

func scanRemittance(row pgx.Row) (*domain.CrossBorderRemittance, error) {
	var rem domain.CrossBorderRemittance
	var recipientJSON []byte
	err := row.Scan(
		&rem.ID, &rem.Reference, &rem.SenderID, &recipientJSON, &rem.AmountSent, &rem.AmountReceived,
		&rem.Fee, &rem.ExchangeRate, &rem.SourceCurrency, &rem.DestinationCurrency, &rem.DeliveryMethod,
		&rem.PaymentMethodID, &rem.Purpose, &rem.Status, &rem.ComplianceFlags, &rem.ComplianceNotes,
		&rem.ExemptionState, &rem.ExemptionReason, &rem.ExemptionActorID, &rem.PickupCode,
		&rem.PickupExpiresAt, &rem.FailureReason, &rem.FundingTxID, &rem.PayoutTxID,
		&rem.CreatedAt, &rem.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(recipientJSON) > 0 {
		if err := json.Unmarshal(recipientJSON, &rem.Recipient); err != nil {
			return nil, fmt.Errorf("unmarshal recipient: %w", err)
		}
	}
	return &rem, nil
}

// FindRemittanceByID retrieves one remittance.
func (r *PostgresRepository) FindRemittanceByID(ctx context.Context, id uuid.UUID) (*domain.CrossBorderRemittance, error) {
	row := r.db.QueryRow(ctx, `SELECT `+remittanceColumns+` FROM remittances WHERE id = $1`, id)
	rem, err := scanRemittance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRemittanceNotFound
		}
		return nil, err
	}
	return rem, nil
}

// FindRemittanceByReference retrieves one remittance by its client-facing
// reference.
func (r *PostgresRepository) FindRemittanceByReference(ctx context.Context, reference string) (*domain.CrossBorderRemittance, error) {
	row := r.db.QueryRow(ctx, `SELECT `+remittanceColumns+` FROM remittances WHERE reference = $1`, reference)
	rem, err := scanRemittance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRemittanceNotFound
		}
		return nil, err
	}
	return rem, nil
}

// ListRemittancesBySender returns a sender's remittances, newest first.
func (r *PostgresRepository) ListRemittancesBySender(ctx context.Context, senderID uuid.UUID, limit, offset int) ([]domain.CrossBorderRemittance, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+remittanceColumns+` FROM remittances WHERE sender_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		senderID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CrossBorderRemittance
	for rows.Next() {
		rem, err := scanRemittance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rem)
	}
	return result, rows.Err()
}

// --- Remittance writes ---

func statusStrings(statuses []domain.RemittanceStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// AdvanceRemittanceStatus conditionally moves a remittance forward.
func (r *PostgresRepository) AdvanceRemittanceStatus(ctx context.Context, id uuid.UUID, from []domain.RemittanceStatus, to domain.RemittanceStatus, failureReason *string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE remittances SET status = $1, failure_reason = COALESCE($2, failure_reason), updated_at = now()
		 WHERE id = $3 AND status = ANY($4)`,
		to, failureReason, id, statusStrings(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetRemittancePickup stores the cash-pickup code and its expiry.
func (r *PostgresRepository) SetRemittancePickup(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE remittances SET pickup_code = $1, pickup_expires_at = $2, updated_at = now() WHERE id = $3`,
		code, expiresAt, id)
	return err
}

// SetRemittanceCompliance embeds the evaluation outcome in the record.
func (r *PostgresRepository) SetRemittanceCompliance(ctx context.Context, id uuid.UUID, flags []string, notes string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE remittances SET compliance_flags = $1, compliance_notes = $2, updated_at = now() WHERE id = $3`,
		flags, notes, id)
	return err
}

// SetRemittanceLegs links the funding and payout transactions.
func (r *PostgresRepository) SetRemittanceLegs(ctx context.Context, id uuid.UUID, fundingTxID, payoutTxID *uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE remittances SET funding_tx_id = COALESCE($1, funding_tx_id),
		        payout_tx_id = COALESCE($2, payout_tx_id), updated_at = now()
		 WHERE id = $3`,
		fundingTxID, payoutTxID, id)
	return err
}

// OverrideRemittanceStatus forces a status and records the audit entry in
// one transaction, so an override can never land without its reason.
func (r *PostgresRepository) OverrideRemittanceStatus(ctx context.Context, id uuid.UUID, to domain.RemittanceStatus, actorID uuid.UUID, reason string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE remittances SET status = $1, updated_at = now() WHERE id = $2`, to, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRemittanceNotFound
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO audit_log (id, remittance_id, actor_id, action, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())`,
		uuid.New(), id, actorID, "status_override:"+string(to), reason); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// UpdateExemptionState applies the exemption sub-state machine.
func (r *PostgresRepository) UpdateExemptionState(ctx context.Context, id uuid.UUID, from []domain.ExemptionState, to domain.ExemptionState, reason *string, actorID *uuid.UUID) (bool, error) {
	fromStrings := make([]string, len(from))
	for i, s := range from {
		fromStrings[i] = string(s)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE remittances SET exemption_state = $1, exemption_reason = $2, exemption_actor_id = $3, updated_at = now()
		 WHERE id = $4 AND exemption_state = ANY($5)`,
		to, reason, actorID, id, fromStrings)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// --- Transactions ---

// CreateTransaction persists a new funding or payout attempt.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	metadataJSON, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO transactions (id, remittance_id, leg, payment_method_id, gateway, provider_ref,
		        amount, currency, status, failure_reason, metadata, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())`,
		t.ID, t.RemittanceID, t.Leg, t.PaymentMethodID, t.Gateway, t.ProviderRef,
		t.Amount, t.Currency, t.Status, t.FailureReason, metadataJSON)
	return err
}

// UpdateTransactionResult records a gateway outcome on an attempt.
func (r *PostgresRepository) UpdateTransactionResult(ctx context.Context, id uuid.UUID, gateway string, providerRef *string, status domain.TransactionStatus, failureReason *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE transactions SET gateway = $1, provider_ref = COALESCE($2, provider_ref),
		        status = $3, failure_reason = $4, updated_at = now()
		 WHERE id = $5`,
		gateway, providerRef, status, failureReason, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// AdvanceTransactionStatus conditionally moves a transaction forward; the
// idempotency guard for webhook-driven updates.
func (r *PostgresRepository) AdvanceTransactionStatus(ctx context.Context, id uuid.UUID, from []domain.TransactionStatus, to domain.TransactionStatus, failureReason *string) (bool, error) {
	fromStrings := make([]string, len(from))
	for i, s := range from {
		fromStrings[i] = string(s)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE transactions SET status = $1, failure_reason = COALESCE($2, failure_reason), updated_at = now()
		 WHERE id = $3 AND status = ANY($4)`,
		to, failureReason, id, fromStrings)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const transactionColumns = `id, remittance_id, leg, payment_method_id, gateway, provider_ref,
	amount, currency, status, failure_reason, metadata, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var metadataJSON []byte
	err := row.Scan(&t.ID, &t.RemittanceID, &t.Leg, &t.PaymentMethodID, &t.Gateway, &t.ProviderRef,
		&t.Amount, &t.Currency, &t.Status, &t.FailureReason, &metadataJSON, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &t.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &t, nil
}

// FindTransactionByID retrieves one attempt.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// FindTransactionByProviderRef resolves the attempt a provider callback is
// about. Falls back to the remittance reference because several providers
// echo our idempotency token instead of their own id.
func (r *PostgresRepository) FindTransactionByProviderRef(ctx context.Context, providerRef string) (*domain.Transaction, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE provider_ref = $1 ORDER BY created_at DESC LIMIT 1`,
		providerRef)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// --- Wallets ---

// CreditWallet adds to a user's in-platform balance.
func (r *PostgresRepository) CreditWallet(ctx context.Context, userID uuid.UUID, amount int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE wallets SET balance = balance + $1, updated_at = now() WHERE user_id = $2`,
		amount, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// WalletBalance reads a user's in-platform balance.
func (r *PostgresRepository) WalletBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrWalletNotFound
		}
		return 0, err
	}
	return balance, nil
}

// --- Audit ---

// RecordAuditEntry appends a privileged-action record.
func (r *PostgresRepository) RecordAuditEntry(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_log (id, remittance_id, actor_id, action, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())`,
		entry.ID, entry.RemittanceID, entry.ActorID, entry.Action, entry.Reason)
	return err
}
