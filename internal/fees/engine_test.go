package fees

import (
	"context"
	"errors"
	"testing"

	"github.com/sikaremit/remittance-service/internal/domain"
)

type rateSourceStub struct {
	rate float64
	err  error
}

func (s *rateSourceStub) GetExchangeRate(ctx context.Context, src, dst string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.rate, nil
}

func TestQuoteComputesFeeAndReceivedAmount(t *testing.T) {
	engine := NewEngine(nil, &rateSourceStub{rate: 12.5})

	// 100.00 GHS via mobile money: 1.5% = 150 + fixed 100 = 250 minor units.
	quote, err := engine.Quote(context.Background(), 10000, domain.DeliveryMobileMoney, "GHS", "NGN")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if quote.PercentFee != 150 {
		t.Fatalf("expected percent fee 150, got %d", quote.PercentFee)
	}
	if quote.FixedFee != 100 {
		t.Fatalf("expected fixed fee 100, got %d", quote.FixedFee)
	}
	if quote.TotalFee != 250 {
		t.Fatalf("expected total fee 250, got %d", quote.TotalFee)
	}
	if quote.ExchangeRate != 12.5 {
		t.Fatalf("expected rate 12.5, got %v", quote.ExchangeRate)
	}

	// amount_received = amount_sent * rate - fee.
	want := domain.ConvertMinor(10000, 12.5) - quote.TotalFee
	if quote.AmountReceived != want {
		t.Fatalf("expected received %d, got %d", want, quote.AmountReceived)
	}
	if quote.DeliveryEstimate == "" {
		t.Fatal("expected a delivery estimate")
	}
}

func TestQuoteSameCurrencySkipsRateLookup(t *testing.T) {
	engine := NewEngine(nil, &rateSourceStub{err: errors.New("must not be called")})

	quote, err := engine.Quote(context.Background(), 10000, domain.DeliveryWallet, "GHS", "ghs")
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if quote.ExchangeRate != 1.0 {
		t.Fatalf("expected identity rate for same-currency transfer, got %v", quote.ExchangeRate)
	}
}

func TestQuoteFailsClosedOnMissingRate(t *testing.T) {
	engine := NewEngine(nil, &rateSourceStub{err: ErrRateNotConfigured})

	_, err := engine.Quote(context.Background(), 10000, domain.DeliveryMobileMoney, "GHS", "KES")
	if !errors.Is(err, ErrRateNotConfigured) {
		t.Fatalf("expected ErrRateNotConfigured, got %v", err)
	}
}

func TestQuoteRejectsNonPositiveRate(t *testing.T) {
	engine := NewEngine(nil, &rateSourceStub{rate: 0})

	_, err := engine.Quote(context.Background(), 10000, domain.DeliveryMobileMoney, "GHS", "KES")
	if !errors.Is(err, ErrRateNotConfigured) {
		t.Fatalf("expected ErrRateNotConfigured for zero rate, got %v", err)
	}
}

func TestQuoteUnknownDeliveryMethod(t *testing.T) {
	engine := NewEngine(nil, &rateSourceStub{rate: 1})

	_, err := engine.Quote(context.Background(), 10000, "carrier_pigeon", "GHS", "NGN")
	if !errors.Is(err, ErrUnknownDeliveryMethod) {
		t.Fatalf("expected ErrUnknownDeliveryMethod, got %v", err)
	}
}

func TestQuoteRejectsAmountSmallerThanFee(t *testing.T) {
	engine := NewEngine(nil, &rateSourceStub{rate: 1.0})

	// Cash pickup: 2% of 400 = 8 + fixed 500 = 508 > 400 received.
	if _, err := engine.Quote(context.Background(), 400, domain.DeliveryCashPickup, "GHS", "NGN"); err == nil {
		t.Fatal("expected an error when the fee exceeds the converted amount")
	}
}

func TestQuoteRejectsNonPositiveAmount(t *testing.T) {
	engine := NewEngine(nil, &rateSourceStub{rate: 1})
	if _, err := engine.Quote(context.Background(), 0, domain.DeliveryWallet, "GHS", "GHS"); err == nil {
		t.Fatal("expected an error for a zero amount")
	}
}
