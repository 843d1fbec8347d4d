package gateway

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := newCircuitBreaker(5, 30*time.Second)

	for i := 0; i < 4; i++ {
		b.recordFailure()
		if !b.allow() {
			t.Fatalf("breaker opened after %d failures, threshold is 5", i+1)
		}
	}

	b.recordFailure()
	if b.allow() {
		t.Fatal("expected breaker to be open after 5 consecutive failures")
	}
	if !b.isOpen() {
		t.Fatal("isOpen should report true inside the cool-down window")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := newCircuitBreaker(5, 30*time.Second)

	for i := 0; i < 4; i++ {
		b.recordFailure()
	}
	b.recordSuccess()

	// The counter restarted, so four more failures must not open it.
	for i := 0; i < 4; i++ {
		b.recordFailure()
	}
	if !b.allow() {
		t.Fatal("breaker opened even though a success reset the failure count")
	}
}

func TestBreakerHalfOpenProbeAfterCoolDown(t *testing.T) {
	current := time.Unix(1000, 0)
	b := newCircuitBreaker(2, 30*time.Second)
	b.now = func() time.Time { return current }

	b.recordFailure()
	b.recordFailure()
	if b.allow() {
		t.Fatal("expected open breaker to fast-fail during cool-down")
	}

	current = current.Add(31 * time.Second)
	if !b.allow() {
		t.Fatal("expected a half-open probe after the cool-down elapsed")
	}

	// A failed probe reopens immediately, regardless of the threshold.
	b.recordFailure()
	if b.allow() {
		t.Fatal("expected breaker to reopen after a failed half-open probe")
	}

	current = current.Add(31 * time.Second)
	if !b.allow() {
		t.Fatal("expected another probe after the second cool-down")
	}
	b.recordSuccess()
	if !b.allow() || b.isOpen() {
		t.Fatal("expected breaker to close after a successful probe")
	}
}
