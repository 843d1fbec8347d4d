/**
 * @description
 * Exemption workflow and privileged admin operations. The exemption sub-state
 * is independent of the delivery state machine and may cycle: a rejected or
 * revoked exemption can be requested again. Every admin decision is written
 * to the audit log with its reason.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/sikaremit/remittance-service/internal/domain"
)

// RequestExemption opens (or reopens) an exemption request on the caller's
// remittance. The stated reason is mandatory.
func (s *Service) RequestExemption(ctx context.Context, senderID uuid.UUID, remittanceID uuid.UUID, reason string) (*domain.CrossBorderRemittance, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	rem, err := s.getOwned(ctx, senderID, false, remittanceID)
	if err != nil {
		return nil, err
	}

	from := []domain.ExemptionState{domain.ExemptionNone, domain.ExemptionRejected, domain.ExemptionRevoked}
	changed, err := s.repo.UpdateExemptionState(ctx, rem.ID, from, domain.ExemptionPending, &reason, &senderID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: exemption already %s", ErrExemptionConflict, rem.ExemptionState)
	}

	log.Printf("level=info component=remittance_service msg=\"exemption requested\" remittance_id=%s sender_id=%s", rem.ID, senderID)
	return s.repo.FindRemittanceByID(ctx, rem.ID)
}

// ApproveExemption grants a pending exemption request.
func (s *Service) ApproveExemption(ctx context.Context, actorID uuid.UUID, remittanceID uuid.UUID) (*domain.CrossBorderRemittance, error) {
	return s.decideExemption(ctx, actorID, remittanceID,
		[]domain.ExemptionState{domain.ExemptionPending}, domain.ExemptionApproved, nil)
}

// RejectExemption denies a pending exemption request. Rejections must state
// why; an empty reason is refused.
func (s *Service) RejectExemption(ctx context.Context, actorID uuid.UUID, remittanceID uuid.UUID, reason string) (*domain.CrossBorderRemittance, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.decideExemption(ctx, actorID, remittanceID,
		[]domain.ExemptionState{domain.ExemptionPending}, domain.ExemptionRejected, &reason)
}

// RevokeExemption withdraws a previously granted exemption.
func (s *Service) RevokeExemption(ctx context.Context, actorID uuid.UUID, remittanceID uuid.UUID, reason string) (*domain.CrossBorderRemittance, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	return s.decideExemption(ctx, actorID, remittanceID,
		[]domain.ExemptionState{domain.ExemptionApproved}, domain.ExemptionRevoked, &reason)
}

func (s *Service) decideExemption(ctx context.Context, actorID uuid.UUID, remittanceID uuid.UUID, from []domain.ExemptionState, to domain.ExemptionState, reason *string) (*domain.CrossBorderRemittance, error) {
	rem, err := s.repo.FindRemittanceByID(ctx, remittanceID)
	if err != nil {
		return nil, err
	}

	changed, err := s.repo.UpdateExemptionState(ctx, rem.ID, from, to, reason, &actorID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: exemption is %s", ErrExemptionConflict, rem.ExemptionState)
	}

	auditReason := ""
	if reason != nil {
		auditReason = *reason
	}
	if err := s.repo.RecordAuditEntry(ctx, &domain.AuditEntry{
		RemittanceID: rem.ID,
		ActorID:      actorID,
		Action:       "exemption_" + string(to),
		Reason:       auditReason,
	}); err != nil {
		log.Printf("level=error component=remittance_service msg=\"failed to write exemption audit entry\" remittance_id=%s err=%v", rem.ID, err)
	}

	log.Printf("level=info component=remittance_service msg=\"exemption decided\" remittance_id=%s state=%s actor_id=%s", rem.ID, to, actorID)
	return s.repo.FindRemittanceByID(ctx, rem.ID)
}

// AdminOverrideStatus forces a remittance into an arbitrary status, bypassing
// the transition graph. This is the operator escape hatch for stuck or
// mis-settled transfers; the reason is mandatory and audit-logged.
func (s *Service) AdminOverrideStatus(ctx context.Context, actorID uuid.UUID, remittanceID uuid.UUID, to domain.RemittanceStatus, reason string) (*domain.CrossBorderRemittance, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	switch to {
	case domain.RemittancePending, domain.RemittanceProcessing, domain.RemittanceAwaitingPickup,
		domain.RemittanceCompleted, domain.RemittanceFailed, domain.RemittanceCancelled, domain.RemittanceRefunded:
	default:
		return nil, &ValidationError{Field: "status", Message: "unknown remittance status"}
	}

	rem, err := s.repo.FindRemittanceByID(ctx, remittanceID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.OverrideRemittanceStatus(ctx, rem.ID, to, actorID, reason); err != nil {
		return nil, err
	}
	s.publishStatus(ctx, rem, to, &reason)
	log.Printf("level=warn component=remittance_service msg=\"admin status override\" remittance_id=%s from=%s to=%s actor_id=%s", rem.ID, rem.Status, to, actorID)

	return s.repo.FindRemittanceByID(ctx, rem.ID)
}
