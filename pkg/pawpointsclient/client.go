/**
 * @description
 * Client for the user-profile service that owns PawPoints balances.
 * The fundraising service never stores balances itself; it asks this service
 * to debit points when an adoption request is placed and to refund them when a
 * request is denied.
 */
package pawpointsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInsufficientPoints = errors.New("insufficient paw points")

// Client is a client for the PawPoints owner.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new PawPoints client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type pointsPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	Points    int       `json:"points"`
	Reference string    `json:"reference"`
	Reason    string    `json:"reason"`
}

// Debit removes points from a user's balance. reference makes retries idempotent
// on the owner's side.
func (c *Client) Debit(ctx context.Context, userID uuid.UUID, points int, reference string) error {
	return c.post(ctx, "/internal/pawpoints/debit", pointsPayload{
		UserID:    userID,
		Points:    points,
		Reference: reference,
		Reason:    "Adoption fee reduction",
	})
}

// Refund returns points to a user's balance.
func (c *Client) Refund(ctx context.Context, userID uuid.UUID, points int, reference string) error {
	return c.post(ctx, "/internal/pawpoints/refund", pointsPayload{
		UserID:    userID,
		Points:    points,
		Reference: reference,
		Reason:    "Adoption request refund",
	})
}

func (c *Client) post(ctx context.Context, path string, payload pointsPayload) error {
	if c.baseURL == "" {
		return fmt.Errorf("pawpoints service base URL is not configured")
	}
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user ID is required")
	}
	if payload.Points <= 0 {
		return fmt.Errorf("points must be positive")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Internal-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to pawpoints service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusConflict {
		return ErrInsufficientPoints
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("pawpoints service returned status %d", resp.StatusCode)
	}

	return nil
}
