/**
 * @description
 * The Router maps a payment-method category to an ordered chain of resilient
 * gateways (primary + fallback) and carries a single logical payment across
 * the chain. Provider outages are routine in multi-provider payment systems;
 * the fallback chain is the single most important resilience property of this
 * core.
 *
 * Dispatch rules:
 * - A hard primary failure (open breaker, exhausted transient retries) moves
 *   to the fallback with the SAME idempotency token, so at most one payment
 *   can succeed provider-side.
 * - A rejection falls through to one different gateway, since rejections can
 *   be provider-specific; a second rejection surfaces as-is.
 * - No route or a fully exhausted chain yields a typed error, never a silent
 *   success.
 */
package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/sikaremit/remittance-service/internal/domain"
)

// Router holds the routing table and the shared health store.
type Router struct {
	routes map[domain.PaymentMethodCategory][]*ResilienceWrapper
	health *HealthStore
}

// NewRouter creates an empty router. health may be nil.
func NewRouter(health *HealthStore) *Router {
	return &Router{
		routes: make(map[domain.PaymentMethodCategory][]*ResilienceWrapper),
		health: health,
	}
}

// Register appends candidates for a category, in priority order.
func (r *Router) Register(category domain.PaymentMethodCategory, candidates ...*ResilienceWrapper) {
	r.routes[category] = append(r.routes[category], candidates...)
}

// SelectGateways returns the candidate chain for a category, with candidates
// the shared health store considers degraded demoted behind healthy ones.
// Relative order within each group is preserved.
func (r *Router) SelectGateways(ctx context.Context, category domain.PaymentMethodCategory) ([]*ResilienceWrapper, error) {
	chain, ok := r.routes[category]
	if !ok || len(chain) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, category)
	}

	healthy := make([]*ResilienceWrapper, 0, len(chain))
	degraded := make([]*ResilienceWrapper, 0, len(chain))
	for _, candidate := range chain {
		if candidate.Open() || !r.health.Healthy(ctx, candidate.Name()) {
			degraded = append(degraded, candidate)
			continue
		}
		healthy = append(healthy, candidate)
	}
	return append(healthy, degraded...), nil
}

// Dispatch runs one logical payment down the category's chain. On success it
// returns the result and the name of the gateway that handled it.
func (r *Router) Dispatch(ctx context.Context, category domain.PaymentMethodCategory, instr PaymentInstruction) (*Result, string, error) {
	chain, err := r.SelectGateways(ctx, category)
	if err != nil {
		return nil, "", err
	}

	var lastErr error
	rejectionSeen := false

	for _, candidate := range chain {
		res, callErr := candidate.Pay(ctx, instr)
		if callErr == nil {
			return res, candidate.Name(), nil
		}
		lastErr = callErr

		if IsRejected(callErr) {
			if rejectionSeen {
				// Two independent providers rejected the same payment;
				// this is a business decline, not an outage.
				return nil, "", callErr
			}
			rejectionSeen = true
			log.Printf("level=warn component=gateway_router category=%s gateway=%s msg=\"rejected; trying one alternate gateway\" reference=%s err=%v",
				category, candidate.Name(), instr.Reference, callErr)
			continue
		}

		log.Printf("level=warn component=gateway_router category=%s gateway=%s msg=\"hard failure; moving to fallback\" reference=%s err=%v",
			category, candidate.Name(), instr.Reference, callErr)
	}

	if lastErr != nil && IsRejected(lastErr) {
		return nil, "", lastErr
	}
	return nil, "", fmt.Errorf("%w %s (reference %s): %v", ErrAllGatewaysFailed, category, instr.Reference, lastErr)
}

// RefundVia issues a refund against a specific gateway by name, used when
// reversing a debit that a known gateway processed earlier.
func (r *Router) RefundVia(ctx context.Context, gatewayName, providerRef string, amount int64) (*Result, error) {
	for _, chain := range r.routes {
		for _, candidate := range chain {
			if candidate.Name() == gatewayName {
				return candidate.Refund(ctx, providerRef, amount)
			}
		}
	}
	return nil, fmt.Errorf("no registered gateway named %q for refund", gatewayName)
}
