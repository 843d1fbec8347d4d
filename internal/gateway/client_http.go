package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// gatewayCallTimeout bounds every outbound provider call.
const gatewayCallTimeout = 10 * time.Second

func newGatewayHTTPClient() *http.Client {
	return &http.Client{Timeout: gatewayCallTimeout}
}

// doJSON executes one provider HTTP call and classifies the outcome.
// Network-level failures (timeout, refused connection) come back as transient
// gateway errors; non-2xx responses are classified by status code: 5xx and
// 429 are transient, everything else is a provider rejection.
func doJSON(ctx context.Context, client *http.Client, gatewayName, method, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", gatewayName, err)
		}
		bodyReader = bytes.NewBuffer(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", gatewayName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError(gatewayName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(gatewayName, "failed to read response body", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	message := extractProviderMessage(respBody)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, Transient(gatewayName, fmt.Sprintf("provider returned status %d: %s", resp.StatusCode, message), nil)
	}
	return nil, Rejected(gatewayName, fmt.Sprintf("http_%d", resp.StatusCode), message)
}

func classifyTransportError(gatewayName string, err error) *GatewayError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient(gatewayName, "connection timeout", err)
	}
	// Refused/reset connections and DNS failures surface as *url.Error
	// wrapping an op error; all of them are infrastructure, not a decline.
	return Transient(gatewayName, "connection failure", err)
}

// extractProviderMessage pulls a human-readable message out of the common
// provider error envelopes without committing to any one schema.
func extractProviderMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Errors  []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
		if len(envelope.Errors) > 0 {
			return fmt.Sprintf("%s - %s", envelope.Errors[0].Title, envelope.Errors[0].Detail)
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
