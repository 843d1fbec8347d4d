/**
 * @description
 * Deterministic no-op gateway for environments without live provider
 * credentials. Succeeds synchronously with a provider reference derived from
 * the instruction's idempotency token, so replays produce the same reference
 * and downstream idempotency handling can be exercised end to end.
 */
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
)

// MockClient is a credential-free gateway.
type MockClient struct {
	GatewayName string
}

// NewMockClient creates a mock gateway. name defaults to "mock".
func NewMockClient(name string) *MockClient {
	if name == "" {
		name = "mock"
	}
	return &MockClient{GatewayName: name}
}

func (c *MockClient) Name() string { return c.GatewayName }

// Pay succeeds deterministically. Setting metadata["mock_outcome"] to
// "declined" or "unreachable" forces the matching failure, which keeps the
// full error path testable without live rails.
func (c *MockClient) Pay(ctx context.Context, instr PaymentInstruction) (*Result, error) {
	switch instr.Metadata["mock_outcome"] {
	case "declined":
		return nil, Rejected(c.GatewayName, "mock_declined", "simulated provider decline")
	case "unreachable":
		return nil, Transient(c.GatewayName, "simulated connection failure", nil)
	}

	raw, _ := json.Marshal(map[string]string{
		"reference": instr.Reference,
		"status":    "success",
	})
	return &Result{
		ProviderRef: fmt.Sprintf("mock_%s", instr.Reference),
		Status:      "success",
		Raw:         raw,
	}, nil
}

// Refund succeeds deterministically against any reference.
func (c *MockClient) Refund(ctx context.Context, providerRef string, amount int64) (*Result, error) {
	raw, _ := json.Marshal(map[string]string{
		"reference": providerRef,
		"status":    "refunded",
	})
	return &Result{ProviderRef: providerRef + "_refund", Status: "refunded", Raw: raw}, nil
}
