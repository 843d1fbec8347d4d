package gateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedClient returns one scripted error per call, then succeeds.
type scriptedClient struct {
	name    string
	errs    []error
	calls   int
	refunds int
}

func (c *scriptedClient) Name() string { return c.name }

func (c *scriptedClient) Pay(ctx context.Context, instr PaymentInstruction) (*Result, error) {
	c.calls++
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &Result{ProviderRef: "ref_" + instr.Reference, Status: "success"}, nil
}

func (c *scriptedClient) Refund(ctx context.Context, providerRef string, amount int64) (*Result, error) {
	c.refunds++
	return &Result{ProviderRef: providerRef + "_refund", Status: "refunded"}, nil
}

func testPolicy() ResiliencePolicy {
	return ResiliencePolicy{
		MaxRetries:       3,
		BaseDelay:        2 * time.Second,
		MaxDelay:         10 * time.Second,
		BreakerThreshold: 5,
		BreakerCoolDown:  30 * time.Second,
	}
}

func wrapWithRecordedSleep(client Client, policy ResiliencePolicy) (*ResilienceWrapper, *[]time.Duration) {
	w := Wrap(client, policy, nil)
	var slept []time.Duration
	w.sleep = func(d time.Duration) { slept = append(slept, d) }
	return w, &slept
}

func TestWrapperRetriesTransientFailuresWithBackoff(t *testing.T) {
	client := &scriptedClient{
		name: "momo",
		errs: []error{
			Transient("momo", "timeout", nil),
			Transient("momo", "timeout", nil),
		},
	}
	w, slept := wrapWithRecordedSleep(client, testPolicy())

	res, err := w.Pay(context.Background(), PaymentInstruction{Reference: "sr_1", Amount: 100})
	if err != nil {
		t.Fatalf("expected third attempt to succeed, got %v", err)
	}
	if res.ProviderRef != "ref_sr_1" {
		t.Fatalf("unexpected provider ref %q", res.ProviderRef)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", client.calls)
	}
	if len(*slept) != 2 || (*slept)[0] != 2*time.Second || (*slept)[1] != 4*time.Second {
		t.Fatalf("unexpected backoff sequence %v", *slept)
	}
}

func TestWrapperBackoffIsCapped(t *testing.T) {
	policy := testPolicy()
	policy.MaxRetries = 5
	policy.BreakerThreshold = 10
	client := &scriptedClient{
		name: "momo",
		errs: []error{
			Transient("momo", "timeout", nil),
			Transient("momo", "timeout", nil),
			Transient("momo", "timeout", nil),
			Transient("momo", "timeout", nil),
		},
	}
	w, slept := wrapWithRecordedSleep(client, policy)

	if _, err := w.Pay(context.Background(), PaymentInstruction{Reference: "sr_2"}); err != nil {
		t.Fatalf("expected final attempt to succeed, got %v", err)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), *slept)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Fatalf("sleep %d: expected %v, got %v (full: %v)", i, d, (*slept)[i], *slept)
		}
	}
}

func TestWrapperDoesNotRetryRejections(t *testing.T) {
	client := &scriptedClient{
		name: "paystack",
		errs: []error{Rejected("paystack", "card_declined", "insufficient funds")},
	}
	w, slept := wrapWithRecordedSleep(client, testPolicy())

	_, err := w.Pay(context.Background(), PaymentInstruction{Reference: "sr_3"})
	if !IsRejected(err) {
		t.Fatalf("expected rejection to surface, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("rejection must not be retried, got %d attempts", client.calls)
	}
	if len(*slept) != 0 {
		t.Fatalf("rejection must not back off, slept %v", *slept)
	}
	if w.Open() {
		t.Fatal("a rejection must not trip the breaker")
	}
}

func TestWrapperExhaustsRetriesAndReturnsLastError(t *testing.T) {
	client := &scriptedClient{
		name: "momo",
		errs: []error{
			Transient("momo", "timeout 1", nil),
			Transient("momo", "timeout 2", nil),
			Transient("momo", "timeout 3", nil),
		},
	}
	w, _ := wrapWithRecordedSleep(client, testPolicy())

	_, err := w.Pay(context.Background(), PaymentInstruction{Reference: "sr_4"})
	if !IsTransient(err) {
		t.Fatalf("expected transient error after exhaustion, got %v", err)
	}
	if client.calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", client.calls)
	}
}

func TestWrapperShortCircuitsWhenBreakerOpen(t *testing.T) {
	policy := testPolicy()
	policy.BreakerThreshold = 3
	client := &scriptedClient{
		name: "bank_switch",
		errs: []error{
			Transient("bank_switch", "down", nil),
			Transient("bank_switch", "down", nil),
			Transient("bank_switch", "down", nil),
		},
	}
	w, _ := wrapWithRecordedSleep(client, policy)

	if _, err := w.Pay(context.Background(), PaymentInstruction{Reference: "sr_5"}); err == nil {
		t.Fatal("expected failure")
	}
	if !w.Open() {
		t.Fatal("expected breaker open after threshold failures")
	}

	callsBefore := client.calls
	_, err := w.Pay(context.Background(), PaymentInstruction{Reference: "sr_6"})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if client.calls != callsBefore {
		t.Fatal("open breaker must fail without touching the client")
	}
}
