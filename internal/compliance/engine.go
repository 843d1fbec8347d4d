/**
 * @description
 * Compliance engine: the gate every remittance passes before funds move.
 * Five checks run in order, short-circuiting on the first failure:
 *
 *   1. daily velocity      2. monthly velocity      3. sanctions/PEP screen
 *   4. KYC tier gate       5. high-value flag (informational only)
 *
 * Every check reads current data at evaluation time; nothing here is cached,
 * because velocity limits must reflect the latest committed state. This
 * evaluation is advisory: the binding daily/monthly enforcement happens in
 * the store's atomic check-and-reserve, so two concurrent requests from one
 * sender cannot both pass on stale totals.
 */
package compliance

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sikaremit/remittance-service/internal/domain"
)

// Flag values carried on a ComplianceCheckResult.
const (
	FlagDailyLimitExceeded   = "daily_limit_exceeded"
	FlagMonthlyLimitExceeded = "monthly_limit_exceeded"
	FlagSanctionsMatch       = "sanctions_match"
	FlagKYCRequired          = "kyc_required"
	FlagHighValue            = "high_value"
)

// KYC tier names as reported by the account service.
const (
	KYCTierUnverified = "unverified"
	KYCTierPending    = "pending"
	KYCTierVerified   = "verified"
)

// Limits holds the velocity and threshold configuration, in minor units of
// the sender's base currency.
type Limits struct {
	Daily              int64
	Monthly            int64
	KYCAmountThreshold int64
	HighValueThreshold int64
}

// VelocityReader aggregates a sender's committed transfer volume.
type VelocityReader interface {
	// SenderVolumeSince sums amounts of the sender's pending, processing,
	// awaiting_pickup, and completed remittances created at or after `since`.
	SenderVolumeSince(ctx context.Context, senderID uuid.UUID, since time.Time) (int64, error)
}

// SanctionsScreen checks declared names against the sanctions/PEP list.
type SanctionsScreen interface {
	IsSanctionedName(ctx context.Context, name string) (bool, error)
}

// AccountDirectory looks up the sender's KYC standing from the account
// service collaborator.
type AccountDirectory interface {
	AccountStatus(ctx context.Context, userID uuid.UUID) (*AccountStatus, error)
}

// AccountStatus is the slice of account data compliance needs.
type AccountStatus struct {
	KYCTier  string
	FullName string
	Active   bool
}

// Engine evaluates the compliance gate.
type Engine struct {
	velocity  VelocityReader
	sanctions SanctionsScreen
	accounts  AccountDirectory
	limits    Limits
	now       func() time.Time
}

// NewEngine creates a compliance engine.
func NewEngine(velocity VelocityReader, sanctions SanctionsScreen, accounts AccountDirectory, limits Limits) *Engine {
	return &Engine{
		velocity:  velocity,
		sanctions: sanctions,
		accounts:  accounts,
		limits:    limits,
		now:       time.Now,
	}
}

// Evaluate runs the ordered checks for one proposed transfer. A returned
// error means a check could not run (infrastructure failure), which is
// distinct from a failed result.
func (e *Engine) Evaluate(ctx context.Context, senderID uuid.UUID, recipientName string, amount int64, purpose string) (*domain.ComplianceCheckResult, error) {
	nowUTC := e.now().UTC()

	// 1. Daily velocity against the calendar day.
	dayStart := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 0, 0, 0, 0, time.UTC)
	dailyTotal, err := e.velocity.SenderVolumeSince(ctx, senderID, dayStart)
	if err != nil {
		return nil, fmt.Errorf("daily velocity lookup: %w", err)
	}
	if dailyTotal+amount > e.limits.Daily {
		return failed(FlagDailyLimitExceeded,
			fmt.Sprintf("daily transfer limit exceeded: %d sent today, %d requested, limit %d", dailyTotal, amount, e.limits.Daily),
			""), nil
	}

	// 2. Monthly velocity against the calendar month.
	monthStart := time.Date(nowUTC.Year(), nowUTC.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthlyTotal, err := e.velocity.SenderVolumeSince(ctx, senderID, monthStart)
	if err != nil {
		return nil, fmt.Errorf("monthly velocity lookup: %w", err)
	}
	if monthlyTotal+amount > e.limits.Monthly {
		return failed(FlagMonthlyLimitExceeded,
			fmt.Sprintf("monthly transfer limit exceeded: %d sent this month, %d requested, limit %d", monthlyTotal, amount, e.limits.Monthly),
			""), nil
	}

	// 3. Sanctions/PEP screen: recipient's declared name and the sender's
	// registered name. A match is a hard block, never just a flag.
	account, err := e.accounts.AccountStatus(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("account status lookup: %w", err)
	}
	for _, name := range []string{recipientName, account.FullName} {
		if strings.TrimSpace(name) == "" {
			continue
		}
		match, err := e.sanctions.IsSanctionedName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("sanctions screen: %w", err)
		}
		if match {
			return failed(FlagSanctionsMatch, "transfer blocked by sanctions screening", ""), nil
		}
	}

	// 4. KYC gate.
	if account.KYCTier != KYCTierVerified && amount > e.limits.KYCAmountThreshold {
		action := "start_kyc"
		if account.KYCTier == KYCTierPending {
			action = "continue_kyc"
		}
		return failed(FlagKYCRequired,
			fmt.Sprintf("identity verification required for amounts above %d", e.limits.KYCAmountThreshold),
			action), nil
	}

	// 5. High-value flag: recorded for audit, never blocks.
	result := &domain.ComplianceCheckResult{Passed: true}
	if amount > e.limits.HighValueThreshold {
		result.Flags = append(result.Flags, FlagHighValue)
		log.Printf("level=info component=compliance msg=\"high value transfer flagged\" sender_id=%s amount=%d purpose=%q", senderID, amount, purpose)
	}

	return result, nil
}

func failed(flag, reason, remediation string) *domain.ComplianceCheckResult {
	return &domain.ComplianceCheckResult{
		Passed:            false,
		Flags:             []string{flag},
		Reason:            reason,
		RemediationAction: remediation,
	}
}
