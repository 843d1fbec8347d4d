package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sikaremit/remittance-service/internal/domain"
)

func seedForExemption(repo *repoStub, senderID uuid.UUID, state domain.ExemptionState) *domain.CrossBorderRemittance {
	rem := &domain.CrossBorderRemittance{
		ID:             uuid.New(),
		Reference:      "sr_" + uuid.New().String()[:8],
		SenderID:       senderID,
		Status:         domain.RemittancePending,
		AmountSent:     10000,
		ExemptionState: state,
	}
	repo.remittances[rem.ID] = rem
	repo.byReference[rem.Reference] = rem.ID
	return rem
}

func TestRequestExemptionRequiresReason(t *testing.T) {
	senderID := uuid.New()
	repo := newRepoStub()
	env := newTestEnv(repo, nil)
	rem := seedForExemption(repo, senderID, domain.ExemptionNone)

	if _, err := env.service.RequestExemption(context.Background(), senderID, rem.ID, "   "); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	if repo.remittances[rem.ID].ExemptionState != domain.ExemptionNone {
		t.Fatal("a refused request must not change the exemption state")
	}
}

func TestExemptionLifecycle(t *testing.T) {
	senderID := uuid.New()
	adminID := uuid.New()
	repo := newRepoStub()
	env := newTestEnv(repo, nil)
	rem := seedForExemption(repo, senderID, domain.ExemptionNone)
	ctx := context.Background()

	got, err := env.service.RequestExemption(ctx, senderID, rem.ID, "recurring family support above the limit")
	if err != nil {
		t.Fatalf("RequestExemption returned error: %v", err)
	}
	if got.ExemptionState != domain.ExemptionPending {
		t.Fatalf("expected pending, got %s", got.ExemptionState)
	}

	got, err = env.service.ApproveExemption(ctx, adminID, rem.ID)
	if err != nil {
		t.Fatalf("ApproveExemption returned error: %v", err)
	}
	if got.ExemptionState != domain.ExemptionApproved {
		t.Fatalf("expected approved, got %s", got.ExemptionState)
	}

	got, err = env.service.RevokeExemption(ctx, adminID, rem.ID, "pattern changed, needs re-review")
	if err != nil {
		t.Fatalf("RevokeExemption returned error: %v", err)
	}
	if got.ExemptionState != domain.ExemptionRevoked {
		t.Fatalf("expected revoked, got %s", got.ExemptionState)
	}

	// A revoked exemption may be requested again.
	got, err = env.service.RequestExemption(ctx, senderID, rem.ID, "circumstances documented, re-applying")
	if err != nil {
		t.Fatalf("re-request after revoke returned error: %v", err)
	}
	if got.ExemptionState != domain.ExemptionPending {
		t.Fatalf("expected pending on re-request, got %s", got.ExemptionState)
	}

	got, err = env.service.RejectExemption(ctx, adminID, rem.ID, "documentation insufficient")
	if err != nil {
		t.Fatalf("RejectExemption returned error: %v", err)
	}
	if got.ExemptionState != domain.ExemptionRejected {
		t.Fatalf("expected rejected, got %s", got.ExemptionState)
	}

	// Each decision leaves an audit trail entry.
	wantActions := []string{"exemption_approved", "exemption_revoked", "exemption_rejected"}
	if len(repo.audit) != len(wantActions) {
		t.Fatalf("expected %d audit entries, got %d", len(wantActions), len(repo.audit))
	}
	for i, want := range wantActions {
		if repo.audit[i].Action != want {
			t.Fatalf("audit entry %d: expected %s, got %s", i, want, repo.audit[i].Action)
		}
	}
}

func TestExemptionDecisionConflicts(t *testing.T) {
	senderID := uuid.New()
	adminID := uuid.New()
	repo := newRepoStub()
	env := newTestEnv(repo, nil)
	ctx := context.Background()

	// Approving without a pending request conflicts.
	rem := seedForExemption(repo, senderID, domain.ExemptionNone)
	if _, err := env.service.ApproveExemption(ctx, adminID, rem.ID); !errors.Is(err, ErrExemptionConflict) {
		t.Fatalf("expected ErrExemptionConflict, got %v", err)
	}

	// Requesting while one is already pending conflicts.
	pending := seedForExemption(repo, senderID, domain.ExemptionPending)
	if _, err := env.service.RequestExemption(ctx, senderID, pending.ID, "again"); !errors.Is(err, ErrExemptionConflict) {
		t.Fatalf("expected ErrExemptionConflict, got %v", err)
	}

	// Revoking a never-granted exemption conflicts.
	if _, err := env.service.RevokeExemption(ctx, adminID, rem.ID, "cleanup"); !errors.Is(err, ErrExemptionConflict) {
		t.Fatalf("expected ErrExemptionConflict, got %v", err)
	}

	// A stranger cannot open a request on someone else's transfer.
	if _, err := env.service.RequestExemption(ctx, uuid.New(), rem.ID, "not mine"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAdminOverrideStatus(t *testing.T) {
	senderID := uuid.New()
	adminID := uuid.New()
	repo := newRepoStub()
	env := newTestEnv(repo, nil)
	ctx := context.Background()

	rem := seedForExemption(repo, senderID, domain.ExemptionNone)
	rem.Status = domain.RemittanceFailed

	if _, err := env.service.AdminOverrideStatus(ctx, adminID, rem.ID, domain.RemittanceCompleted, ""); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}

	var verr *ValidationError
	if _, err := env.service.AdminOverrideStatus(ctx, adminID, rem.ID, "exploded", "typo"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for an unknown status, got %v", err)
	}

	got, err := env.service.AdminOverrideStatus(ctx, adminID, rem.ID, domain.RemittanceCompleted, "provider settled out of band")
	if err != nil {
		t.Fatalf("AdminOverrideStatus returned error: %v", err)
	}
	if got.Status != domain.RemittanceCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if len(repo.audit) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(repo.audit))
	}
	if repo.audit[0].Action != "status_override:completed" || repo.audit[0].ActorID != adminID {
		t.Fatalf("unexpected audit entry: %+v", repo.audit[0])
	}
	// The forced transition is announced like any other.
	last := env.publisher.events[len(env.publisher.events)-1]
	if last.Status != domain.RemittanceCompleted {
		t.Fatalf("expected a completed status event, got %s", last.Status)
	}
}
