/**
 * @description
 * This package provides a client for communicating with the account-service.
 * It encapsulates the API calls the remittance-service needs, specifically
 * looking up a sender's account standing and KYC tier for compliance checks.
 */
package accountclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sikaremit/remittance-service/internal/compliance"
)

// Client is a client for the account service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new account service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// accountStatusResponse defines the response from the account status lookup.
type accountStatusResponse struct {
	UserID   string `json:"user_id"`
	KYCTier  string `json:"kyc_tier"`
	FullName string `json:"full_name"`
	Active   bool   `json:"active"`
}

// AccountStatus calls the account-service for a user's KYC standing. It
// satisfies the compliance engine's AccountDirectory interface.
func (c *Client) AccountStatus(ctx context.Context, userID uuid.UUID) (*compliance.AccountStatus, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("account service base url is empty")
	}

	url := fmt.Sprintf("%s/internal/accounts/%s/status", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to account service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("account service returned error status %d", resp.StatusCode)
	}

	var response accountStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &compliance.AccountStatus{
		KYCTier:  response.KYCTier,
		FullName: response.FullName,
		Active:   response.Active,
	}, nil
}
