package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

type velocityStub struct {
	// keyed by the window start to distinguish the daily and monthly lookups
	volumes map[time.Time]int64
}

func (s *velocityStub) SenderVolumeSince(ctx context.Context, senderID uuid.UUID, since time.Time) (int64, error) {
	return s.volumes[since], nil
}

type sanctionsStub struct {
	names map[string]bool
}

func (s *sanctionsStub) IsSanctionedName(ctx context.Context, name string) (bool, error) {
	return s.names[name], nil
}

type accountsStub struct {
	status AccountStatus
}

func (s *accountsStub) AccountStatus(ctx context.Context, userID uuid.UUID) (*AccountStatus, error) {
	status := s.status
	return &status, nil
}

func testLimits() Limits {
	// Whole-unit limits of 10,000 / 50,000 / 1,000 / 5,000 in minor units.
	return Limits{
		Daily:              1000000,
		Monthly:            5000000,
		KYCAmountThreshold: 100000,
		HighValueThreshold: 500000,
	}
}

// fixedEngine builds an engine with a pinned clock so window starts are
// predictable.
func fixedEngine(daily, monthly int64, sanctions map[string]bool, account AccountStatus) *Engine {
	now := time.Date(2026, time.March, 15, 14, 30, 0, 0, time.UTC)
	dayStart := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	e := NewEngine(
		&velocityStub{volumes: map[time.Time]int64{dayStart: daily, monthStart: monthly}},
		&sanctionsStub{names: sanctions},
		&accountsStub{status: account},
		testLimits(),
	)
	e.now = func() time.Time { return now }
	return e
}

func verifiedAccount() AccountStatus {
	return AccountStatus{KYCTier: KYCTierVerified, FullName: "Ama Mensah", Active: true}
}

func TestEvaluateBlocksWhenDailyLimitWouldBeExceeded(t *testing.T) {
	// 9,500 sent today; 600 more breaches the 10,000 daily limit.
	e := fixedEngine(950000, 950000, nil, verifiedAccount())

	result, err := e.Evaluate(context.Background(), uuid.New(), "Kwame Boateng", 60000, "family support")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.Passed {
		t.Fatal("expected the daily limit check to fail")
	}
	if !result.HasFlag(FlagDailyLimitExceeded) {
		t.Fatalf("expected %s flag, got %v", FlagDailyLimitExceeded, result.Flags)
	}
}

func TestEvaluatePassesJustUnderDailyLimit(t *testing.T) {
	// 9,500 sent today; 400 more lands exactly under the limit boundary.
	e := fixedEngine(950000, 950000, nil, verifiedAccount())

	result, err := e.Evaluate(context.Background(), uuid.New(), "Kwame Boateng", 40000, "family support")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !result.Passed {
		t.Fatalf("expected pass, got failure: %s", result.Reason)
	}
}

func TestEvaluateBlocksWhenMonthlyLimitWouldBeExceeded(t *testing.T) {
	e := fixedEngine(0, 4990000, nil, verifiedAccount())

	result, err := e.Evaluate(context.Background(), uuid.New(), "Kwame Boateng", 20000, "rent")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.Passed || !result.HasFlag(FlagMonthlyLimitExceeded) {
		t.Fatalf("expected monthly limit failure, got passed=%t flags=%v", result.Passed, result.Flags)
	}
}

func TestEvaluateSanctionsMatchIsHardBlock(t *testing.T) {
	e := fixedEngine(0, 0, map[string]bool{"Bad Actor": true}, verifiedAccount())

	result, err := e.Evaluate(context.Background(), uuid.New(), "Bad Actor", 10000, "gift")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.Passed || !result.HasFlag(FlagSanctionsMatch) {
		t.Fatalf("expected sanctions block, got passed=%t flags=%v", result.Passed, result.Flags)
	}
	if result.RemediationAction != "" {
		t.Fatalf("a sanctions match has no remediation, got %q", result.RemediationAction)
	}
}

func TestEvaluateScreensSenderNameToo(t *testing.T) {
	account := verifiedAccount()
	account.FullName = "Listed Sender"
	e := fixedEngine(0, 0, map[string]bool{"Listed Sender": true}, account)

	result, err := e.Evaluate(context.Background(), uuid.New(), "Kwame Boateng", 10000, "gift")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.Passed || !result.HasFlag(FlagSanctionsMatch) {
		t.Fatalf("expected sender-side sanctions block, got passed=%t flags=%v", result.Passed, result.Flags)
	}
}

func TestEvaluateKYCGateAboveThreshold(t *testing.T) {
	account := AccountStatus{KYCTier: KYCTierUnverified, FullName: "Ama Mensah", Active: true}
	e := fixedEngine(0, 0, nil, account)

	result, err := e.Evaluate(context.Background(), uuid.New(), "Kwame Boateng", 150000, "school fees")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.Passed || !result.HasFlag(FlagKYCRequired) {
		t.Fatalf("expected KYC gate, got passed=%t flags=%v", result.Passed, result.Flags)
	}
	if result.RemediationAction != "start_kyc" {
		t.Fatalf("expected start_kyc remediation, got %q", result.RemediationAction)
	}
}

func TestEvaluateKYCPendingGetsContinueAction(t *testing.T) {
	account := AccountStatus{KYCTier: KYCTierPending, FullName: "Ama Mensah", Active: true}
	e := fixedEngine(0, 0, nil, account)

	result, err := e.Evaluate(context.Background(), uuid.New(), "Kwame Boateng", 150000, "school fees")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if result.Passed || result.RemediationAction != "continue_kyc" {
		t.Fatalf("expected continue_kyc remediation, got passed=%t action=%q", result.Passed, result.RemediationAction)
	}
}

func TestEvaluateUnverifiedUnderThresholdPasses(t *testing.T) {
	account := AccountStatus{KYCTier: KYCTierUnverified, FullName: "Ama Mensah", Active: true}
	e := fixedEngine(0, 0, nil, account)

	result, err := e.Evaluate(context.Background(), uuid.New(), "Kwame Boateng", 50000, "gift")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !result.Passed {
		t.Fatalf("expected pass under the KYC threshold, got %s", result.Reason)
	}
}

func TestEvaluateHighValueFlagsButNeverBlocks(t *testing.T) {
	e := fixedEngine(0, 0, nil, verifiedAccount())

	result, err := e.Evaluate(context.Background(), uuid.New(), "Kwame Boateng", 600000, "land purchase")
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !result.Passed {
		t.Fatalf("high value must not block, got %s", result.Reason)
	}
	if !result.HasFlag(FlagHighValue) {
		t.Fatalf("expected %s flag, got %v", FlagHighValue, result.Flags)
	}
}
