/**
 * @description
 * This file contains the core business logic for the remittance-service. The
 * Service orchestrates the full lifecycle of a cross-border transfer: request
 * validation, pricing, the compliance gate, the atomic velocity reservation,
 * the funding leg through the gateway router, and delivery per method.
 *
 * @notes
 * - Every state change goes through the store's conditional advance, so a
 *   racing webhook or admin action cannot double-apply an effect.
 * - Status events are published best-effort; a broker outage never fails a
 *   money movement that already happened.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sikaremit/remittance-service/internal/compliance"
	"github.com/sikaremit/remittance-service/internal/domain"
	"github.com/sikaremit/remittance-service/internal/fees"
	"github.com/sikaremit/remittance-service/internal/gateway"
	"github.com/sikaremit/remittance-service/internal/store"
	"github.com/sikaremit/remittance-service/pkg/rabbitmq"
)

var (
	// ErrStateConflict is returned when an operation is not valid for the
	// remittance's current status.
	ErrStateConflict = errors.New("operation conflicts with current remittance state")
	// ErrReasonRequired is returned when a privileged action arrives without
	// a non-empty reason.
	ErrReasonRequired = errors.New("a non-empty reason is required")
	// ErrExemptionConflict is returned when an exemption action does not
	// match the current exemption state.
	ErrExemptionConflict = errors.New("operation conflicts with current exemption state")
	// ErrPaymentMethodUnusable is returned when the funding instrument is
	// inactive or unverified.
	ErrPaymentMethodUnusable = errors.New("payment method is inactive or unverified")
	// ErrForbidden is returned when a caller addresses a remittance they do
	// not own.
	ErrForbidden = errors.New("remittance does not belong to caller")
)

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ComplianceBlockedError carries the full check result so the API layer can
// return the flag and remediation action to the client.
type ComplianceBlockedError struct {
	Result *domain.ComplianceCheckResult
}

func (e *ComplianceBlockedError) Error() string {
	return fmt.Sprintf("compliance check failed: %s", e.Result.Reason)
}

// Config carries the business parameters the orchestrator needs.
type Config struct {
	BaseCurrency       string
	DailyLimit         int64 // minor units
	MonthlyLimit       int64 // minor units
	PickupCodeTTL      time.Duration
	WalletGatewayName  string
	CashPayoutCategory domain.PaymentMethodCategory
}

// Service provides the remittance orchestration operations.
type Service struct {
	repo       store.Repository
	router     *gateway.Router
	compliance *compliance.Engine
	fees       *fees.Engine
	publisher  rabbitmq.Publisher
	cfg        Config
	now        func() time.Time
}

// NewService creates a new remittance service.
func NewService(repo store.Repository, router *gateway.Router, complianceEngine *compliance.Engine, feeEngine *fees.Engine, publisher rabbitmq.Publisher, cfg Config) *Service {
	if cfg.PickupCodeTTL <= 0 {
		cfg.PickupCodeTTL = 7 * 24 * time.Hour
	}
	if cfg.WalletGatewayName == "" {
		cfg.WalletGatewayName = "internal_wallet"
	}
	if cfg.CashPayoutCategory == "" {
		cfg.CashPayoutCategory = domain.CategoryCashPickup
	}
	if publisher == nil {
		publisher = &rabbitmq.EventProducerFallback{}
	}
	return &Service{
		repo:       repo,
		router:     router,
		compliance: complianceEngine,
		fees:       feeEngine,
		publisher:  publisher,
		cfg:        cfg,
		now:        time.Now,
	}
}

// InitiateRemittance runs the full initiation pipeline and, when the funding
// charge succeeds synchronously, carries the transfer through delivery.
func (s *Service) InitiateRemittance(ctx context.Context, senderID uuid.UUID, req domain.InitiateRemittanceRequest) (*domain.CrossBorderRemittance, error) {
	if err := validateInitiateRequest(&req); err != nil {
		return nil, err
	}

	method, err := s.repo.FindPaymentMethod(ctx, req.PaymentMethodID, senderID)
	if err != nil {
		return nil, err
	}
	if !method.Usable() {
		return nil, ErrPaymentMethodUnusable
	}

	quote, err := s.fees.Quote(ctx, req.Amount, req.DeliveryMethod, req.SourceCurrency, req.DestinationCurrency)
	if err != nil {
		return nil, err
	}

	check, err := s.compliance.Evaluate(ctx, senderID, req.Recipient.Name, req.Amount, req.Purpose)
	if err != nil {
		return nil, fmt.Errorf("compliance evaluation: %w", err)
	}
	if !check.Passed {
		return nil, &ComplianceBlockedError{Result: check}
	}

	rem := &domain.CrossBorderRemittance{
		ID:                  uuid.New(),
		Reference:           newReference(),
		SenderID:            senderID,
		Recipient:           req.Recipient,
		AmountSent:          req.Amount,
		AmountReceived:      quote.AmountReceived,
		Fee:                 quote.TotalFee,
		ExchangeRate:        quote.ExchangeRate,
		SourceCurrency:      strings.ToUpper(req.SourceCurrency),
		DestinationCurrency: strings.ToUpper(req.DestinationCurrency),
		DeliveryMethod:      req.DeliveryMethod,
		PaymentMethodID:     req.PaymentMethodID,
		Purpose:             req.Purpose,
		Status:              domain.RemittancePending,
		ComplianceFlags:     check.Flags,
		ExemptionState:      domain.ExemptionNone,
	}

	// The binding velocity enforcement. The advisory evaluation above can
	// race a concurrent request; this cannot.
	if err := s.repo.CreateRemittanceReserved(ctx, rem, s.cfg.DailyLimit, s.cfg.MonthlyLimit); err != nil {
		if errors.Is(err, store.ErrDailyLimitExceeded) {
			return nil, &ComplianceBlockedError{Result: &domain.ComplianceCheckResult{
				Passed: false,
				Flags:  []string{compliance.FlagDailyLimitExceeded},
				Reason: "daily transfer limit exceeded",
			}}
		}
		if errors.Is(err, store.ErrMonthlyLimitExceeded) {
			return nil, &ComplianceBlockedError{Result: &domain.ComplianceCheckResult{
				Passed: false,
				Flags:  []string{compliance.FlagMonthlyLimitExceeded},
				Reason: "monthly transfer limit exceeded",
			}}
		}
		return nil, fmt.Errorf("failed to reserve remittance: %w", err)
	}

	log.Printf("level=info component=remittance_service msg=\"remittance created\" remittance_id=%s reference=%s sender_id=%s amount=%d method=%s",
		rem.ID, rem.Reference, senderID, rem.AmountSent, rem.DeliveryMethod)

	if check.HasFlag(compliance.FlagHighValue) {
		// High-value transfers proceed but carry a note for regulatory reporting.
		note := fmt.Sprintf("high-value transfer: %d %s flagged for reporting", rem.AmountSent, rem.SourceCurrency)
		if err := s.repo.SetRemittanceCompliance(ctx, rem.ID, rem.ComplianceFlags, note); err != nil {
			log.Printf("level=error component=remittance_service msg=\"failed to record compliance note\" remittance_id=%s err=%v", rem.ID, err)
		} else {
			rem.ComplianceNotes = &note
		}
	}

	if err := s.executeFunding(ctx, rem, method); err != nil {
		return nil, err
	}

	return s.repo.FindRemittanceByID(ctx, rem.ID)
}

// executeFunding charges the sender's instrument through the router and, if
// the charge is final, moves on to delivery.
func (s *Service) executeFunding(ctx context.Context, rem *domain.CrossBorderRemittance, method *domain.PaymentMethod) error {
	fundingTx := &domain.Transaction{
		ID:              uuid.New(),
		RemittanceID:    rem.ID,
		Leg:             domain.LegFunding,
		PaymentMethodID: &method.ID,
		Amount:          rem.AmountSent,
		Currency:        rem.SourceCurrency,
		Status:          domain.TransactionPending,
	}
	if err := s.repo.CreateTransaction(ctx, fundingTx); err != nil {
		return fmt.Errorf("failed to create funding transaction: %w", err)
	}
	if err := s.repo.SetRemittanceLegs(ctx, rem.ID, &fundingTx.ID, nil); err != nil {
		return err
	}
	rem.FundingTxID = &fundingTx.ID

	instr := gateway.PaymentInstruction{
		Reference:   rem.Reference,
		Amount:      rem.AmountSent,
		Currency:    rem.SourceCurrency,
		MethodToken: method.Token,
		SenderID:    rem.SenderID.String(),
		Recipient:   rem.Recipient,
		Narration:   "SikaRemit transfer " + rem.Reference,
	}

	res, gatewayName, dispatchErr := s.router.Dispatch(ctx, method.Category, instr)
	if dispatchErr != nil {
		reason := dispatchErr.Error()
		if err := s.repo.UpdateTransactionResult(ctx, fundingTx.ID, gatewayNameFromError(dispatchErr), nil, domain.TransactionFailed, &reason); err != nil {
			log.Printf("level=error component=remittance_service msg=\"failed to record funding failure\" transaction_id=%s err=%v", fundingTx.ID, err)
		}
		s.failRemittance(ctx, rem, "funding failed: "+reason)
		return dispatchErr
	}

	fundingStatus := domain.TransactionPending
	if isFinalGatewayStatus(res.Status) {
		fundingStatus = domain.TransactionCompleted
	}
	if err := s.repo.UpdateTransactionResult(ctx, fundingTx.ID, gatewayName, &res.ProviderRef, fundingStatus, nil); err != nil {
		return fmt.Errorf("failed to record funding result: %w", err)
	}

	if fundingStatus != domain.TransactionCompleted {
		// Async rail: the provider accepted the charge and will confirm by
		// webhook. The remittance stays pending until then.
		log.Printf("level=info component=remittance_service msg=\"funding accepted, awaiting provider confirmation\" remittance_id=%s gateway=%s", rem.ID, gatewayName)
		return nil
	}

	if _, err := s.advanceAndPublish(ctx, rem, []domain.RemittanceStatus{domain.RemittancePending}, domain.RemittanceProcessing, nil); err != nil {
		return err
	}
	return s.executeDelivery(ctx, rem, gatewayName, res.ProviderRef)
}

// executeDelivery runs the payout leg for a funded remittance.
// fundingGateway and fundingRef identify the debit for refund-on-failure.
func (s *Service) executeDelivery(ctx context.Context, rem *domain.CrossBorderRemittance, fundingGateway, fundingRef string) error {
	switch rem.DeliveryMethod {
	case domain.DeliveryWallet:
		return s.deliverToWallet(ctx, rem)
	case domain.DeliveryCashPickup:
		return s.deliverCashPickup(ctx, rem, fundingGateway, fundingRef)
	case domain.DeliveryMobileMoney:
		return s.deliverViaGateway(ctx, rem, domain.CategoryMobileMoney, fundingGateway, fundingRef)
	case domain.DeliveryBankTransfer:
		return s.deliverViaGateway(ctx, rem, domain.CategoryBank, fundingGateway, fundingRef)
	}
	return &ValidationError{Field: "delivery_method", Message: "unknown delivery method"}
}

// deliverToWallet credits a recipient who is a platform user. No external
// rail is involved, so the remittance completes synchronously.
func (s *Service) deliverToWallet(ctx context.Context, rem *domain.CrossBorderRemittance) error {
	payoutTx := &domain.Transaction{
		ID:           uuid.New(),
		RemittanceID: rem.ID,
		Leg:          domain.LegPayout,
		Gateway:      s.cfg.WalletGatewayName,
		Amount:       rem.AmountReceived,
		Currency:     rem.DestinationCurrency,
		Status:       domain.TransactionPending,
	}
	if err := s.repo.CreateTransaction(ctx, payoutTx); err != nil {
		return err
	}
	if err := s.repo.SetRemittanceLegs(ctx, rem.ID, nil, &payoutTx.ID); err != nil {
		return err
	}
	rem.PayoutTxID = &payoutTx.ID

	if err := s.repo.CreditWallet(ctx, *rem.Recipient.UserID, rem.AmountReceived); err != nil {
		reason := "wallet credit failed: " + err.Error()
		if _, uerr := s.repo.AdvanceTransactionStatus(ctx, payoutTx.ID, []domain.TransactionStatus{domain.TransactionPending}, domain.TransactionFailed, &reason); uerr != nil {
			log.Printf("level=error component=remittance_service msg=\"failed to record payout failure\" transaction_id=%s err=%v", payoutTx.ID, uerr)
		}
		s.failRemittance(ctx, rem, reason)
		return err
	}

	if _, err := s.repo.AdvanceTransactionStatus(ctx, payoutTx.ID, []domain.TransactionStatus{domain.TransactionPending}, domain.TransactionCompleted, nil); err != nil {
		return err
	}

	if balance, err := s.repo.WalletBalance(ctx, *rem.Recipient.UserID); err == nil {
		log.Printf("level=info component=remittance_service msg=\"wallet credited\" remittance_id=%s recipient_id=%s amount=%d balance=%d",
			rem.ID, *rem.Recipient.UserID, rem.AmountReceived, balance)
	}

	_, err := s.advanceAndPublish(ctx, rem, []domain.RemittanceStatus{domain.RemittanceProcessing}, domain.RemittanceCompleted, nil)
	return err
}

// deliverCashPickup places a cash order with the payout partner, stores the
// pickup code, and parks the remittance in awaiting_pickup. Collection is
// confirmed later by the partner's webhook.
func (s *Service) deliverCashPickup(ctx context.Context, rem *domain.CrossBorderRemittance, fundingGateway, fundingRef string) error {
	code, err := newPickupCode()
	if err != nil {
		return fmt.Errorf("failed to generate pickup code: %w", err)
	}

	payoutTx := &domain.Transaction{
		ID:           uuid.New(),
		RemittanceID: rem.ID,
		Leg:          domain.LegPayout,
		Amount:       rem.AmountReceived,
		Currency:     rem.DestinationCurrency,
		Status:       domain.TransactionPending,
		Metadata:     map[string]string{"pickup_code": code},
	}
	if err := s.repo.CreateTransaction(ctx, payoutTx); err != nil {
		return err
	}
	if err := s.repo.SetRemittanceLegs(ctx, rem.ID, nil, &payoutTx.ID); err != nil {
		return err
	}
	rem.PayoutTxID = &payoutTx.ID

	instr := gateway.PaymentInstruction{
		Reference: rem.Reference + "_payout",
		Amount:    rem.AmountReceived,
		Currency:  rem.DestinationCurrency,
		SenderID:  rem.SenderID.String(),
		Recipient: rem.Recipient,
		Narration: "SikaRemit cash pickup " + rem.Reference,
		Metadata:  map[string]string{"pickup_code": code},
	}
	res, gatewayName, dispatchErr := s.router.Dispatch(ctx, s.cfg.CashPayoutCategory, instr)
	if dispatchErr != nil {
		s.handlePayoutFailure(ctx, rem, payoutTx.ID, dispatchErr, fundingGateway, fundingRef)
		return dispatchErr
	}

	if err := s.repo.UpdateTransactionResult(ctx, payoutTx.ID, gatewayName, &res.ProviderRef, domain.TransactionPending, nil); err != nil {
		return err
	}

	expiresAt := s.now().UTC().Add(s.cfg.PickupCodeTTL)
	if err := s.repo.SetRemittancePickup(ctx, rem.ID, code, expiresAt); err != nil {
		return err
	}
	_, err = s.advanceAndPublish(ctx, rem, []domain.RemittanceStatus{domain.RemittanceProcessing}, domain.RemittanceAwaitingPickup, nil)
	return err
}

// deliverViaGateway disburses through an external payout rail (momo or bank).
func (s *Service) deliverViaGateway(ctx context.Context, rem *domain.CrossBorderRemittance, category domain.PaymentMethodCategory, fundingGateway, fundingRef string) error {
	payoutTx := &domain.Transaction{
		ID:           uuid.New(),
		RemittanceID: rem.ID,
		Leg:          domain.LegPayout,
		Amount:       rem.AmountReceived,
		Currency:     rem.DestinationCurrency,
		Status:       domain.TransactionPending,
	}
	if err := s.repo.CreateTransaction(ctx, payoutTx); err != nil {
		return err
	}
	if err := s.repo.SetRemittanceLegs(ctx, rem.ID, nil, &payoutTx.ID); err != nil {
		return err
	}
	rem.PayoutTxID = &payoutTx.ID

	instr := gateway.PaymentInstruction{
		Reference: rem.Reference + "_payout",
		Amount:    rem.AmountReceived,
		Currency:  rem.DestinationCurrency,
		SenderID:  rem.SenderID.String(),
		Recipient: rem.Recipient,
		Narration: "SikaRemit payout " + rem.Reference,
	}
	res, gatewayName, dispatchErr := s.router.Dispatch(ctx, category, instr)
	if dispatchErr != nil {
		s.handlePayoutFailure(ctx, rem, payoutTx.ID, dispatchErr, fundingGateway, fundingRef)
		return dispatchErr
	}

	payoutStatus := domain.TransactionPending
	if isFinalGatewayStatus(res.Status) {
		payoutStatus = domain.TransactionCompleted
	}
	if err := s.repo.UpdateTransactionResult(ctx, payoutTx.ID, gatewayName, &res.ProviderRef, payoutStatus, nil); err != nil {
		return err
	}

	if payoutStatus != domain.TransactionCompleted {
		log.Printf("level=info component=remittance_service msg=\"payout accepted, awaiting provider confirmation\" remittance_id=%s gateway=%s", rem.ID, gatewayName)
		return nil
	}
	_, err := s.advanceAndPublish(ctx, rem, []domain.RemittanceStatus{domain.RemittanceProcessing}, domain.RemittanceCompleted, nil)
	return err
}

// handlePayoutFailure records the failed payout, refunds the sender's debit,
// and fails the remittance.
func (s *Service) handlePayoutFailure(ctx context.Context, rem *domain.CrossBorderRemittance, payoutTxID uuid.UUID, dispatchErr error, fundingGateway, fundingRef string) {
	reason := "payout failed: " + dispatchErr.Error()
	if _, err := s.repo.AdvanceTransactionStatus(ctx, payoutTxID, []domain.TransactionStatus{domain.TransactionPending}, domain.TransactionFailed, &reason); err != nil {
		log.Printf("level=error component=remittance_service msg=\"failed to record payout failure\" transaction_id=%s err=%v", payoutTxID, err)
	}
	s.refundFunding(ctx, rem, fundingGateway, fundingRef, reason)
	s.failRemittance(ctx, rem, reason)
}

// refundFunding reverses a completed sender debit. Best-effort: a refund
// failure is logged and left for operator reconciliation, it does not mask
// the original payout error.
func (s *Service) refundFunding(ctx context.Context, rem *domain.CrossBorderRemittance, fundingGateway, fundingRef, reason string) {
	if fundingGateway == "" || fundingRef == "" {
		return
	}
	if _, err := s.router.RefundVia(ctx, fundingGateway, fundingRef, rem.AmountSent); err != nil {
		log.Printf("level=error component=remittance_service msg=\"funding refund failed, needs reconciliation\" remittance_id=%s gateway=%s provider_ref=%s err=%v",
			rem.ID, fundingGateway, fundingRef, err)
		return
	}
	if rem.FundingTxID != nil {
		if _, err := s.repo.AdvanceTransactionStatus(ctx, *rem.FundingTxID, []domain.TransactionStatus{domain.TransactionCompleted}, domain.TransactionRefunded, &reason); err != nil {
			log.Printf("level=error component=remittance_service msg=\"failed to record funding refund\" transaction_id=%s err=%v", *rem.FundingTxID, err)
		}
	}
	log.Printf("level=info component=remittance_service msg=\"funding refunded\" remittance_id=%s gateway=%s", rem.ID, fundingGateway)
}

// failRemittance moves any non-terminal remittance to failed.
func (s *Service) failRemittance(ctx context.Context, rem *domain.CrossBorderRemittance, reason string) {
	from := []domain.RemittanceStatus{domain.RemittancePending, domain.RemittanceProcessing, domain.RemittanceAwaitingPickup}
	if _, err := s.advanceAndPublish(ctx, rem, from, domain.RemittanceFailed, &reason); err != nil {
		log.Printf("level=error component=remittance_service msg=\"failed to mark remittance failed\" remittance_id=%s err=%v", rem.ID, err)
	}
}

// advanceAndPublish applies a conditional status advance and, when it took
// effect, publishes the status event.
func (s *Service) advanceAndPublish(ctx context.Context, rem *domain.CrossBorderRemittance, from []domain.RemittanceStatus, to domain.RemittanceStatus, reason *string) (bool, error) {
	changed, err := s.repo.AdvanceRemittanceStatus(ctx, rem.ID, from, to, reason)
	if err != nil {
		return false, err
	}
	if changed {
		s.publishStatus(ctx, rem, to, reason)
	}
	return changed, nil
}

func (s *Service) publishStatus(ctx context.Context, rem *domain.CrossBorderRemittance, status domain.RemittanceStatus, reason *string) {
	event := domain.RemittanceStatusEvent{
		RemittanceID: rem.ID,
		Reference:    rem.Reference,
		SenderID:     rem.SenderID,
		Status:       status,
		Timestamp:    s.now().UTC(),
	}
	if reason != nil {
		event.Reason = *reason
	}
	if err := s.publisher.PublishRemittanceStatusEvent(ctx, event); err != nil {
		log.Printf("level=warn component=remittance_service msg=\"status event publish failed\" remittance_id=%s status=%s err=%v", rem.ID, status, err)
	}
}

// CancelRemittance stops a transfer that has not been delivered. Allowed from
// pending and processing; a completed funding debit is refunded.
func (s *Service) CancelRemittance(ctx context.Context, callerID uuid.UUID, isAdmin bool, remittanceID uuid.UUID) (*domain.CrossBorderRemittance, error) {
	rem, err := s.getOwned(ctx, callerID, isAdmin, remittanceID)
	if err != nil {
		return nil, err
	}

	from := []domain.RemittanceStatus{domain.RemittancePending, domain.RemittanceProcessing}
	reason := "cancelled by sender"
	if isAdmin && callerID != rem.SenderID {
		reason = "cancelled by operator"
	}
	changed, err := s.advanceAndPublish(ctx, rem, from, domain.RemittanceCancelled, &reason)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: cannot cancel remittance in status %s", ErrStateConflict, rem.Status)
	}

	// Reverse a sender debit that already settled.
	if rem.FundingTxID != nil {
		if fundingTx, ferr := s.repo.FindTransactionByID(ctx, *rem.FundingTxID); ferr == nil &&
			fundingTx.Status == domain.TransactionCompleted && fundingTx.ProviderRef != nil {
			s.refundFunding(ctx, rem, fundingTx.Gateway, *fundingTx.ProviderRef, reason)
		}
	}

	return s.repo.FindRemittanceByID(ctx, rem.ID)
}

// GetRemittance retrieves a remittance, enforcing sender ownership for
// non-admin callers.
func (s *Service) GetRemittance(ctx context.Context, callerID uuid.UUID, isAdmin bool, remittanceID uuid.UUID) (*domain.CrossBorderRemittance, error) {
	return s.getOwned(ctx, callerID, isAdmin, remittanceID)
}

// ListRemittances returns the caller's remittance history, newest first.
func (s *Service) ListRemittances(ctx context.Context, senderID uuid.UUID, limit, offset int) ([]domain.CrossBorderRemittance, error) {
	return s.repo.ListRemittancesBySender(ctx, senderID, limit, offset)
}

// GetTransaction retrieves one gateway attempt, enforcing ownership through
// its parent remittance.
func (s *Service) GetTransaction(ctx context.Context, callerID uuid.UUID, isAdmin bool, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.getOwned(ctx, callerID, isAdmin, tx.RemittanceID); err != nil {
		return nil, err
	}
	return tx, nil
}

// QuotePreview is the side-effect-free pricing and compliance preview.
type QuotePreview struct {
	Quote      *domain.FeeQuote              `json:"quote"`
	Compliance *domain.ComplianceCheckResult `json:"compliance"`
}

// PreviewQuote prices a prospective transfer and runs the compliance checks
// without creating anything.
func (s *Service) PreviewQuote(ctx context.Context, senderID uuid.UUID, req domain.QuoteRequest) (*QuotePreview, error) {
	if req.Amount <= 0 {
		return nil, &ValidationError{Field: "amount", Message: "must be a positive amount in minor units"}
	}
	if !domain.KnownDeliveryMethod(req.DeliveryMethod) {
		return nil, &ValidationError{Field: "delivery_method", Message: "unknown delivery method"}
	}

	quote, err := s.fees.Quote(ctx, req.Amount, req.DeliveryMethod, req.SourceCurrency, req.DestinationCurrency)
	if err != nil {
		return nil, err
	}
	check, err := s.compliance.Evaluate(ctx, senderID, "", req.Amount, "")
	if err != nil {
		return nil, fmt.Errorf("compliance evaluation: %w", err)
	}
	return &QuotePreview{Quote: quote, Compliance: check}, nil
}

func (s *Service) getOwned(ctx context.Context, callerID uuid.UUID, isAdmin bool, remittanceID uuid.UUID) (*domain.CrossBorderRemittance, error) {
	rem, err := s.repo.FindRemittanceByID(ctx, remittanceID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && rem.SenderID != callerID {
		return nil, ErrForbidden
	}
	return rem, nil
}

func validateInitiateRequest(req *domain.InitiateRemittanceRequest) error {
	if req.Amount <= 0 {
		return &ValidationError{Field: "amount", Message: "must be a positive amount in minor units"}
	}
	if !domain.KnownDeliveryMethod(req.DeliveryMethod) {
		return &ValidationError{Field: "delivery_method", Message: "unknown delivery method"}
	}
	if req.PaymentMethodID == uuid.Nil {
		return &ValidationError{Field: "payment_method_id", Message: "required"}
	}
	if len(req.SourceCurrency) != 3 || len(req.DestinationCurrency) != 3 {
		return &ValidationError{Field: "currency", Message: "currencies must be ISO 4217 codes"}
	}
	if strings.TrimSpace(req.Recipient.Name) == "" {
		return &ValidationError{Field: "recipient.name", Message: "required"}
	}
	if strings.TrimSpace(req.Recipient.Country) == "" {
		return &ValidationError{Field: "recipient.country", Message: "required"}
	}

	switch req.DeliveryMethod {
	case domain.DeliveryMobileMoney:
		if strings.TrimSpace(req.Recipient.Phone) == "" {
			return &ValidationError{Field: "recipient.phone", Message: "required for mobile money delivery"}
		}
		if strings.TrimSpace(req.Recipient.MobileProvider) == "" {
			return &ValidationError{Field: "recipient.mobile_provider", Message: "required for mobile money delivery"}
		}
	case domain.DeliveryBankTransfer:
		if strings.TrimSpace(req.Recipient.AccountNumber) == "" {
			return &ValidationError{Field: "recipient.account_number", Message: "required for bank delivery"}
		}
		if strings.TrimSpace(req.Recipient.BankName) == "" {
			return &ValidationError{Field: "recipient.bank_name", Message: "required for bank delivery"}
		}
	case domain.DeliveryWallet:
		if req.Recipient.UserID == nil || *req.Recipient.UserID == uuid.Nil {
			return &ValidationError{Field: "recipient.user_id", Message: "required for wallet delivery"}
		}
	case domain.DeliveryCashPickup:
		if strings.TrimSpace(req.Recipient.Address) == "" {
			return &ValidationError{Field: "recipient.address", Message: "required for cash pickup delivery"}
		}
		if strings.TrimSpace(req.Recipient.City) == "" {
			return &ValidationError{Field: "recipient.city", Message: "required for cash pickup delivery"}
		}
	}
	return nil
}

// isFinalGatewayStatus reports whether a normalized provider status means the
// money already moved, as opposed to an accepted-for-processing ack.
func isFinalGatewayStatus(status string) bool {
	switch strings.ToLower(status) {
	case "success", "successful", "completed", "refunded":
		return true
	}
	return false
}

func gatewayNameFromError(err error) string {
	var gerr *gateway.GatewayError
	if errors.As(err, &gerr) {
		return gerr.Gateway
	}
	return ""
}

func newReference() string {
	return "sr_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// newPickupCode generates the 8-digit code a recipient presents at a cash
// pickup point alongside their ID.
func newPickupCode() (string, error) {
	const digits = "0123456789"
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = digits[int(buf[i])%len(digits)]
	}
	return string(buf), nil
}
