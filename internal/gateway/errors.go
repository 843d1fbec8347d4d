package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a gateway failure for retry and fallback decisions.
type ErrorKind int

const (
	// KindTransient covers connection timeouts, refused connections, and
	// provider 5xx responses. Transient failures are retried with backoff.
	KindTransient ErrorKind = iota
	// KindRejected covers declined payments and provider-side validation
	// failures. Never retried against the same gateway; the router attempts
	// one different gateway because a rejection can be provider-specific.
	KindRejected
	// KindUnavailable is a synthetic fast failure (open circuit breaker).
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRejected:
		return "rejected"
	case KindUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// GatewayError is the typed failure every gateway call surfaces.
type GatewayError struct {
	Kind    ErrorKind
	Gateway string
	Code    string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s: %s failure (%s): %s", e.Gateway, e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s failure: %s", e.Gateway, e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Transient builds a retryable failure.
func Transient(gatewayName, message string, cause error) *GatewayError {
	return &GatewayError{Kind: KindTransient, Gateway: gatewayName, Message: message, Err: cause}
}

// Rejected builds a non-retryable provider rejection.
func Rejected(gatewayName, code, message string) *GatewayError {
	return &GatewayError{Kind: KindRejected, Gateway: gatewayName, Code: code, Message: message}
}

// IsTransient reports whether err is a retryable gateway failure.
func IsTransient(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == KindTransient
}

// IsRejected reports whether err is a provider rejection.
func IsRejected(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == KindRejected
}

var (
	// ErrCircuitOpen is returned without a network call while a gateway's
	// breaker is in its cool-down window.
	ErrCircuitOpen = errors.New("gateway circuit breaker is open")
	// ErrUnsupportedMethod is returned when no route exists for a payment
	// method category.
	ErrUnsupportedMethod = errors.New("unsupported payment method category")
	// ErrAllGatewaysFailed is returned after the full fallback chain for a
	// category has been exhausted.
	ErrAllGatewaysFailed = errors.New("all gateways failed for category")
)
