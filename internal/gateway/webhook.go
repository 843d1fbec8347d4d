/**
 * @description
 * Webhook signature verification for inbound provider callbacks. Each
 * provider integration declares its own signature header name and shared
 * secret; verification itself is provider-agnostic: an HMAC-SHA256 over the
 * raw request body, compared in constant time.
 *
 * Verification MUST run before any body parsing or dispatch. Parsing first
 * and verifying later hands attacker-controlled JSON to business code before
 * authentication, which is exactly the ordering bug this layer exists to
 * prevent.
 */
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// WebhookConfig names the signature header and secret for one provider.
type WebhookConfig struct {
	Gateway         string
	SignatureHeader string
	Secret          string
}

// VerifyWebhookSignature checks a provider callback signature against the raw
// body. The header value may be a bare hex digest or carry a "sha256="
// prefix, which several providers use.
func VerifyWebhookSignature(rawBody []byte, signatureHeader, secret string) bool {
	if secret == "" || strings.TrimSpace(signatureHeader) == "" {
		return false
	}

	provided := strings.TrimSpace(signatureHeader)
	provided = strings.TrimPrefix(provided, "sha256=")

	providedBytes, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	return hmac.Equal(providedBytes, expected)
}

// SignWebhookBody computes the hex HMAC-SHA256 digest a provider would send
// for a body. Exposed for the mock gateway and tests.
func SignWebhookBody(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
