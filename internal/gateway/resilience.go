/**
 * @description
 * ResilienceWrapper composes bounded retry and a circuit breaker around any
 * gateway Client. Composition, not inheritance: the wrapper satisfies the
 * Client interface itself, so the router holds wrappers and never needs to
 * know which concrete provider sits underneath.
 *
 * Retry policy: transient failures only, 3 attempts, exponential backoff
 * starting at 2s and capped at 10s between attempts. Rejections surface
 * immediately. An open breaker short-circuits with ErrCircuitOpen before any
 * network call is made.
 */
package gateway

import (
	"context"
	"log"
	"time"
)

// ResiliencePolicy bounds retry behavior for a wrapped gateway.
type ResiliencePolicy struct {
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	BreakerThreshold int
	BreakerCoolDown  time.Duration
}

// DefaultPolicy is the production policy from the resilience design.
func DefaultPolicy() ResiliencePolicy {
	return ResiliencePolicy{
		MaxRetries:       3,
		BaseDelay:        2 * time.Second,
		MaxDelay:         10 * time.Second,
		BreakerThreshold: 5,
		BreakerCoolDown:  30 * time.Second,
	}
}

// ResilienceWrapper wraps a Client with retry, a breaker, and shared health
// reporting.
type ResilienceWrapper struct {
	client  Client
	policy  ResiliencePolicy
	breaker *circuitBreaker
	health  *HealthStore
	sleep   func(time.Duration)
}

// Wrap builds a ResilienceWrapper around a client. health may be nil.
func Wrap(client Client, policy ResiliencePolicy, health *HealthStore) *ResilienceWrapper {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 2 * time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 10 * time.Second
	}
	return &ResilienceWrapper{
		client:  client,
		policy:  policy,
		breaker: newCircuitBreaker(policy.BreakerThreshold, policy.BreakerCoolDown),
		health:  health,
		sleep:   time.Sleep,
	}
}

// Name returns the wrapped gateway's name.
func (w *ResilienceWrapper) Name() string { return w.client.Name() }

// Pay executes the wrapped client's Pay under the resilience policy.
func (w *ResilienceWrapper) Pay(ctx context.Context, instr PaymentInstruction) (*Result, error) {
	return w.execute(ctx, func() (*Result, error) {
		return w.client.Pay(ctx, instr)
	})
}

// Refund executes the wrapped client's Refund under the resilience policy.
func (w *ResilienceWrapper) Refund(ctx context.Context, providerRef string, amount int64) (*Result, error) {
	return w.execute(ctx, func() (*Result, error) {
		return w.client.Refund(ctx, providerRef, amount)
	})
}

func (w *ResilienceWrapper) execute(ctx context.Context, call func() (*Result, error)) (*Result, error) {
	if !w.breaker.allow() {
		log.Printf("level=warn component=resilience gateway=%s msg=\"short-circuited by open breaker\"", w.client.Name())
		return nil, &GatewayError{Kind: KindUnavailable, Gateway: w.client.Name(), Message: "circuit open", Err: ErrCircuitOpen}
	}

	delay := w.policy.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= w.policy.MaxRetries; attempt++ {
		res, err := call()
		if err == nil {
			w.breaker.recordSuccess()
			w.health.RecordSuccess(ctx, w.client.Name())
			return res, nil
		}
		lastErr = err

		if !IsTransient(err) {
			// Rejections are provider decisions, not degradation; they
			// neither retry nor trip the breaker.
			return nil, err
		}

		w.breaker.recordFailure()
		w.health.RecordFailure(ctx, w.client.Name())
		log.Printf("level=warn component=resilience gateway=%s attempt=%d max=%d msg=\"transient gateway failure\" err=%v",
			w.client.Name(), attempt, w.policy.MaxRetries, err)

		if attempt == w.policy.MaxRetries || !w.breaker.allow() {
			break
		}
		if ctx.Err() != nil {
			return nil, Transient(w.client.Name(), "context cancelled during retry", ctx.Err())
		}

		w.sleep(delay)
		delay *= 2
		if delay > w.policy.MaxDelay {
			delay = w.policy.MaxDelay
		}
	}

	return nil, lastErr
}

// Open reports whether the wrapper's breaker is currently open. The router
// uses this to skip a known-dead gateway without burning its fast failure.
func (w *ResilienceWrapper) Open() bool { return w.breaker.isOpen() }
