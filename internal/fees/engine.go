/**
 * @description
 * Fee and exchange-rate engine. Computes the transfer fee from a static
 * per-delivery-method schedule (percentage in basis points + fixed minor
 * units) and resolves the exchange rate from the administrator-maintained
 * rate table.
 *
 * Rate resolution fails closed: a currency pair without a configured rate is
 * a typed error that requires operator action. There is no 1.0 default
 * anywhere, because silently mis-pricing a transfer is worse than refusing it.
 */
package fees

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sikaremit/remittance-service/internal/domain"
)

// ErrRateNotConfigured is returned when no administrator-set rate exists for
// a currency pair.
var ErrRateNotConfigured = errors.New("exchange rate not configured for currency pair")

// ErrUnknownDeliveryMethod is returned for a delivery method with no fee
// schedule entry.
var ErrUnknownDeliveryMethod = errors.New("no fee schedule for delivery method")

// MethodFees is one static fee schedule entry.
type MethodFees struct {
	PercentBps       int64 // fee percentage in basis points (125 = 1.25%)
	Fixed            int64 // minor units, source currency
	DeliveryEstimate string
}

// Schedule maps each delivery method to its fee entry.
type Schedule map[domain.DeliveryMethod]MethodFees

// DefaultSchedule is the production fee table. Estimates are static copy,
// not computed.
func DefaultSchedule() Schedule {
	return Schedule{
		domain.DeliveryMobileMoney:  {PercentBps: 150, Fixed: 100, DeliveryEstimate: "within minutes"},
		domain.DeliveryBankTransfer: {PercentBps: 100, Fixed: 300, DeliveryEstimate: "1-2 business days"},
		domain.DeliveryCashPickup:   {PercentBps: 200, Fixed: 500, DeliveryEstimate: "ready in 1 hour"},
		domain.DeliveryWallet:       {PercentBps: 50, Fixed: 0, DeliveryEstimate: "instant"},
	}
}

// RateSource resolves administrator-set exchange rates. The store's
// implementation returns ErrRateNotConfigured for missing pairs.
type RateSource interface {
	GetExchangeRate(ctx context.Context, sourceCurrency, destinationCurrency string) (float64, error)
}

// Engine computes fee quotes.
type Engine struct {
	schedule Schedule
	rates    RateSource
}

// NewEngine creates a fee engine over a schedule and rate source.
func NewEngine(schedule Schedule, rates RateSource) *Engine {
	if schedule == nil {
		schedule = DefaultSchedule()
	}
	return &Engine{schedule: schedule, rates: rates}
}

// Quote prices one transfer: fee = amount * percentageRate(method) + fixedFee(method),
// and amount_received = amount_sent * exchange_rate - fee, rounded to minor units.
func (e *Engine) Quote(ctx context.Context, amount int64, method domain.DeliveryMethod, sourceCurrency, destinationCurrency string) (*domain.FeeQuote, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("quote amount must be positive, got %d", amount)
	}

	entry, ok := e.schedule[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDeliveryMethod, method)
	}

	src := strings.ToUpper(strings.TrimSpace(sourceCurrency))
	dst := strings.ToUpper(strings.TrimSpace(destinationCurrency))

	var rate float64
	if src == dst {
		rate = 1.0
	} else {
		var err error
		rate, err = e.rates.GetExchangeRate(ctx, src, dst)
		if err != nil {
			return nil, err
		}
		if rate <= 0 {
			return nil, fmt.Errorf("%w: %s/%s resolved to non-positive rate", ErrRateNotConfigured, src, dst)
		}
	}

	// Round the percentage component half up before adding the fixed part.
	percentFee := (amount*entry.PercentBps + 5000) / 10000
	totalFee := percentFee + entry.Fixed

	received := domain.ConvertMinor(amount, rate) - totalFee
	if received <= 0 {
		return nil, fmt.Errorf("amount %d %s is too small to cover the %d fee for %s delivery", amount, src, totalFee, method)
	}

	return &domain.FeeQuote{
		PercentFee:       percentFee,
		FixedFee:         entry.Fixed,
		TotalFee:         totalFee,
		ExchangeRate:     rate,
		AmountReceived:   received,
		DeliveryEstimate: entry.DeliveryEstimate,
	}, nil
}
