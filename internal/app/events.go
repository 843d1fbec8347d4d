/**
 * @description
 * Handling of verified gateway events. The API layer authenticates the
 * provider callback (HMAC signature) and normalizes it into a GatewayEvent;
 * this file applies it to the owning transaction and remittance.
 *
 * All effects ride on conditional status advances, so a replayed or
 * duplicated callback matches zero rows and changes nothing. In particular a
 * wallet can never be credited twice for one remittance.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/sikaremit/remittance-service/internal/domain"
	"github.com/sikaremit/remittance-service/internal/store"
)

// HandleGatewayEvent applies one verified provider callback. Returning nil
// for an already-applied event is deliberate: providers redeliver webhooks
// until they get a 2xx.
func (s *Service) HandleGatewayEvent(ctx context.Context, event domain.GatewayEvent) error {
	tx, rem, err := s.resolveEvent(ctx, event)
	if err != nil {
		return err
	}

	switch event.Type {
	case domain.EventPaymentSuccess:
		return s.applyPaymentSuccess(ctx, event, tx, rem)
	case domain.EventPaymentFailed:
		return s.applyPaymentFailed(ctx, event, tx, rem)
	case domain.EventRefundProcessed:
		return s.applyRefundProcessed(ctx, event, tx, rem)
	case domain.EventDisputeOpened:
		log.Printf("level=warn component=gateway_events msg=\"dispute opened\" remittance_id=%s gateway=%s provider_ref=%s reason=%q",
			rem.ID, event.Gateway, event.ProviderRef, event.Reason)
		return s.repo.RecordAuditEntry(ctx, &domain.AuditEntry{
			RemittanceID: rem.ID,
			ActorID:      uuid.Nil, // system-recorded, no human actor
			Action:       "dispute_opened",
			Reason:       event.Reason,
		})
	}

	log.Printf("level=warn component=gateway_events msg=\"ignoring unknown event type\" type=%s gateway=%s", event.Type, event.Gateway)
	return nil
}

// resolveEvent locates the transaction a callback is about: first by the
// provider's own reference, then by our echoed idempotency token.
func (s *Service) resolveEvent(ctx context.Context, event domain.GatewayEvent) (*domain.Transaction, *domain.CrossBorderRemittance, error) {
	if event.ProviderRef != "" {
		tx, err := s.repo.FindTransactionByProviderRef(ctx, event.ProviderRef)
		if err == nil {
			rem, rerr := s.repo.FindRemittanceByID(ctx, tx.RemittanceID)
			if rerr != nil {
				return nil, nil, rerr
			}
			return tx, rem, nil
		}
		if !errors.Is(err, store.ErrTransactionNotFound) {
			return nil, nil, err
		}
	}

	if event.Reference == "" {
		return nil, nil, store.ErrTransactionNotFound
	}

	isPayout := strings.HasSuffix(event.Reference, "_payout")
	rem, err := s.repo.FindRemittanceByReference(ctx, strings.TrimSuffix(event.Reference, "_payout"))
	if err != nil {
		return nil, nil, err
	}

	var txID *uuid.UUID
	if isPayout {
		txID = rem.PayoutTxID
	} else {
		txID = rem.FundingTxID
	}
	if txID == nil {
		return nil, nil, store.ErrTransactionNotFound
	}
	tx, err := s.repo.FindTransactionByID(ctx, *txID)
	if err != nil {
		return nil, nil, err
	}
	return tx, rem, nil
}

func (s *Service) applyPaymentSuccess(ctx context.Context, event domain.GatewayEvent, tx *domain.Transaction, rem *domain.CrossBorderRemittance) error {
	changed, err := s.repo.AdvanceTransactionStatus(ctx, tx.ID,
		[]domain.TransactionStatus{domain.TransactionPending}, domain.TransactionCompleted, nil)
	if err != nil {
		return err
	}
	if !changed {
		log.Printf("level=info component=gateway_events msg=\"duplicate success event ignored\" transaction_id=%s gateway=%s", tx.ID, event.Gateway)
		return nil
	}

	if tx.Leg == domain.LegFunding {
		if _, err := s.advanceAndPublish(ctx, rem, []domain.RemittanceStatus{domain.RemittancePending}, domain.RemittanceProcessing, nil); err != nil {
			return err
		}
		fundingRef := event.ProviderRef
		if fundingRef == "" && tx.ProviderRef != nil {
			fundingRef = *tx.ProviderRef
		}
		return s.executeDelivery(ctx, rem, tx.Gateway, fundingRef)
	}

	// Payout confirmed: a momo/bank disbursement settled or a cash order was
	// collected.
	from := []domain.RemittanceStatus{domain.RemittanceProcessing, domain.RemittanceAwaitingPickup}
	_, err = s.advanceAndPublish(ctx, rem, from, domain.RemittanceCompleted, nil)
	return err
}

func (s *Service) applyPaymentFailed(ctx context.Context, event domain.GatewayEvent, tx *domain.Transaction, rem *domain.CrossBorderRemittance) error {
	reason := event.Reason
	if reason == "" {
		reason = "payment failed at " + event.Gateway
	}
	changed, err := s.repo.AdvanceTransactionStatus(ctx, tx.ID,
		[]domain.TransactionStatus{domain.TransactionPending}, domain.TransactionFailed, &reason)
	if err != nil {
		return err
	}
	if !changed {
		log.Printf("level=info component=gateway_events msg=\"duplicate failure event ignored\" transaction_id=%s gateway=%s", tx.ID, event.Gateway)
		return nil
	}

	if tx.Leg == domain.LegPayout && rem.FundingTxID != nil {
		if fundingTx, ferr := s.repo.FindTransactionByID(ctx, *rem.FundingTxID); ferr == nil &&
			fundingTx.Status == domain.TransactionCompleted && fundingTx.ProviderRef != nil {
			s.refundFunding(ctx, rem, fundingTx.Gateway, *fundingTx.ProviderRef, reason)
		}
	}

	s.failRemittance(ctx, rem, reason)
	return nil
}

func (s *Service) applyRefundProcessed(ctx context.Context, event domain.GatewayEvent, tx *domain.Transaction, rem *domain.CrossBorderRemittance) error {
	reason := event.Reason
	changed, err := s.repo.AdvanceTransactionStatus(ctx, tx.ID,
		[]domain.TransactionStatus{domain.TransactionPending, domain.TransactionCompleted}, domain.TransactionRefunded, &reason)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	// Only a delivered remittance moves to refunded; refunds that reverse a
	// failed or cancelled transfer leave the terminal status as-is.
	_, err = s.advanceAndPublish(ctx, rem, []domain.RemittanceStatus{domain.RemittanceCompleted}, domain.RemittanceRefunded, &reason)
	return err
}
