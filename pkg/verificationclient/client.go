/**
 * @description
 * Client for the verification service, which decides whether a user may file
 * adoption requests and whether a shelter may open campaigns.
 */
package verificationclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a client for the verification service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new verification service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// MayRequestAdoption reports whether userID is verified for adoption requests.
func (c *Client) MayRequestAdoption(ctx context.Context, userID uuid.UUID) (bool, error) {
	return c.eligible(ctx, fmt.Sprintf("/internal/verification/users/%s/adoption-eligibility", userID))
}

// MayCreateCampaign reports whether shelterID is verified for fundraising campaigns.
func (c *Client) MayCreateCampaign(ctx context.Context, shelterID uuid.UUID) (bool, error) {
	return c.eligible(ctx, fmt.Sprintf("/internal/verification/shelters/%s/campaign-eligibility", shelterID))
}

func (c *Client) eligible(ctx context.Context, path string) (bool, error) {
	if c.baseURL == "" {
		return false, fmt.Errorf("verification service base URL is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Internal-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute request to verification service: %w", err)
	}
	defer resp.Body.Close()

	// Unknown subjects are simply not verified.
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("verification service returned status %d", resp.StatusCode)
	}

	var response struct {
		Eligible bool `json:"eligible"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return false, fmt.Errorf("failed to parse verification response: %w", err)
	}
	return response.Eligible, nil
}
