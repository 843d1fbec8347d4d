package gateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fastPolicy keeps retries but never sleeps in router tests.
func fastWrap(client Client) *ResilienceWrapper {
	w := Wrap(client, testPolicy(), nil)
	w.sleep = func(time.Duration) {}
	return w
}

func TestDispatchNoRouteForCategory(t *testing.T) {
	r := NewRouter(nil)
	_, _, err := r.Dispatch(context.Background(), "card", PaymentInstruction{Reference: "sr_1"})
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestDispatchFallsBackOnHardFailureWithSameReference(t *testing.T) {
	primary := &scriptedClient{
		name: "mtn_momo",
		errs: []error{
			Transient("mtn_momo", "down", nil),
			Transient("mtn_momo", "down", nil),
			Transient("mtn_momo", "down", nil),
		},
	}
	var fallbackRef string
	fallback := &captureClient{name: "aggregator", onPay: func(instr PaymentInstruction) { fallbackRef = instr.Reference }}

	r := NewRouter(nil)
	r.Register("mobile_money", fastWrap(primary), fastWrap(fallback))

	res, gatewayName, err := r.Dispatch(context.Background(), "mobile_money", PaymentInstruction{Reference: "sr_fb"})
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if gatewayName != "aggregator" {
		t.Fatalf("expected fallback gateway to handle the payment, got %s", gatewayName)
	}
	if fallbackRef != "sr_fb" {
		t.Fatalf("fallback must receive the same idempotency token, got %q", fallbackRef)
	}
	if res == nil || res.ProviderRef == "" {
		t.Fatal("expected a provider reference from the fallback")
	}
}

func TestDispatchRejectionFallsThroughOnce(t *testing.T) {
	primary := &scriptedClient{
		name: "paystack",
		errs: []error{Rejected("paystack", "card_declined", "do not honor")},
	}
	fallback := &captureClient{name: "aggregator"}

	r := NewRouter(nil)
	r.Register("card", fastWrap(primary), fastWrap(fallback))

	_, gatewayName, err := r.Dispatch(context.Background(), "card", PaymentInstruction{Reference: "sr_rj"})
	if err != nil {
		t.Fatalf("expected the alternate gateway to accept, got %v", err)
	}
	if gatewayName != "aggregator" {
		t.Fatalf("expected alternate gateway, got %s", gatewayName)
	}
}

func TestDispatchSecondRejectionSurfaces(t *testing.T) {
	first := &scriptedClient{
		name: "paystack",
		errs: []error{Rejected("paystack", "card_declined", "do not honor")},
	}
	second := &scriptedClient{
		name: "aggregator",
		errs: []error{Rejected("aggregator", "charge_declined", "risk block")},
	}

	r := NewRouter(nil)
	r.Register("card", fastWrap(first), fastWrap(second))

	_, _, err := r.Dispatch(context.Background(), "card", PaymentInstruction{Reference: "sr_rj2"})
	if !IsRejected(err) {
		t.Fatalf("two independent rejections are a business decline, got %v", err)
	}
	var gerr *GatewayError
	if !errors.As(err, &gerr) || gerr.Gateway != "aggregator" {
		t.Fatalf("expected the second rejection to surface, got %v", err)
	}
}

func TestDispatchExhaustedChainReturnsTypedError(t *testing.T) {
	down := func(name string) *scriptedClient {
		return &scriptedClient{name: name, errs: []error{
			Transient(name, "down", nil),
			Transient(name, "down", nil),
			Transient(name, "down", nil),
		}}
	}

	r := NewRouter(nil)
	r.Register("mobile_money", fastWrap(down("mtn_momo")), fastWrap(down("aggregator")))

	_, _, err := r.Dispatch(context.Background(), "mobile_money", PaymentInstruction{Reference: "sr_ex"})
	if !errors.Is(err, ErrAllGatewaysFailed) {
		t.Fatalf("expected ErrAllGatewaysFailed, got %v", err)
	}
}

func TestSelectGatewaysDemotesOpenBreaker(t *testing.T) {
	primary := fastWrap(&scriptedClient{name: "mtn_momo"})
	fallback := fastWrap(&scriptedClient{name: "aggregator"})
	// Trip the primary's breaker directly.
	for i := 0; i < 5; i++ {
		primary.breaker.recordFailure()
	}

	r := NewRouter(nil)
	r.Register("mobile_money", primary, fallback)

	chain, err := r.SelectGateways(context.Background(), "mobile_money")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 2 || chain[0].Name() != "aggregator" || chain[1].Name() != "mtn_momo" {
		t.Fatalf("expected healthy gateway first, got %s then %s", chain[0].Name(), chain[1].Name())
	}
}

func TestRefundViaUnknownGateway(t *testing.T) {
	r := NewRouter(nil)
	if _, err := r.RefundVia(context.Background(), "nope", "ref", 100); err == nil {
		t.Fatal("expected an error for an unregistered gateway name")
	}
}

// captureClient always succeeds and records the instruction it saw.
type captureClient struct {
	name  string
	onPay func(PaymentInstruction)
}

func (c *captureClient) Name() string { return c.name }

func (c *captureClient) Pay(ctx context.Context, instr PaymentInstruction) (*Result, error) {
	if c.onPay != nil {
		c.onPay(instr)
	}
	return &Result{ProviderRef: c.name + "_" + instr.Reference, Status: "success"}, nil
}

func (c *captureClient) Refund(ctx context.Context, providerRef string, amount int64) (*Result, error) {
	return &Result{ProviderRef: providerRef + "_refund", Status: "refunded"}, nil
}
