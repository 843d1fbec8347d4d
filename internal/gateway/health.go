package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// failureWindowScript increments a gateway's failure counter and stamps its
// expiry in one round trip, so concurrent writers from several service
// instances cannot race the counter and its TTL apart.
var failureWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// HealthStore keeps per-gateway health in Redis so every instance of the
// service sees the same picture. The resilience wrapper writes an outcome
// after each call; the router reads health before dispatch to order
// candidates. State resets naturally on deploy because keys carry a TTL.
//
// All operations are best-effort: a Redis outage degrades routing to the
// local breaker state, it never blocks a payment.
type HealthStore struct {
	client        redis.UniversalClient
	prefix        string
	failureWindow time.Duration
	downThreshold int64
}

// NewHealthStore creates a Redis-backed gateway health store.
func NewHealthStore(client redis.UniversalClient, prefix string) *HealthStore {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = "sikaremit:gateway_health"
	}
	trimmed = strings.TrimSuffix(trimmed, ":")

	return &HealthStore{
		client:        client,
		prefix:        trimmed,
		failureWindow: 2 * time.Minute,
		downThreshold: 5,
	}
}

func (h *HealthStore) key(gatewayName string) string {
	return fmt.Sprintf("%s:%s:failures", h.prefix, gatewayName)
}

// RecordSuccess clears the gateway's failure window.
func (h *HealthStore) RecordSuccess(ctx context.Context, gatewayName string) {
	if h == nil || h.client == nil {
		return
	}
	if err := h.client.Del(ctx, h.key(gatewayName)).Err(); err != nil {
		log.Printf("level=warn component=gateway_health msg=\"failure reset skipped\" gateway=%s err=%v", gatewayName, err)
	}
}

// RecordFailure bumps the gateway's failure counter inside the rolling window.
func (h *HealthStore) RecordFailure(ctx context.Context, gatewayName string) {
	if h == nil || h.client == nil {
		return
	}
	windowMs := h.failureWindow.Milliseconds()
	if _, err := failureWindowScript.Run(ctx, h.client, []string{h.key(gatewayName)}, windowMs).Result(); err != nil {
		log.Printf("level=warn component=gateway_health msg=\"failure record skipped\" gateway=%s err=%v", gatewayName, err)
	}
}

// Healthy reports whether the gateway is below the shared failure threshold.
// Unknown (or unreachable store) counts as healthy so routing can proceed.
func (h *HealthStore) Healthy(ctx context.Context, gatewayName string) bool {
	if h == nil || h.client == nil {
		return true
	}
	count, err := h.client.Get(ctx, h.key(gatewayName)).Int64()
	if err != nil {
		if err != redis.Nil {
			log.Printf("level=warn component=gateway_health msg=\"health read failed; assuming healthy\" gateway=%s err=%v", gatewayName, err)
		}
		return true
	}
	return count < h.downThreshold
}
