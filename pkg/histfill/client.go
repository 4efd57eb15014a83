// Package histfill provides a small Go client for the histfill serve API.
package histfill

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"histfill/internal/domain"
)

// Client talks to a running histfill serve instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client. Backfill runs can be slow, so the
// client does not time out on its own; pass a context with a deadline to
// bound a call.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// TriggerBackfill starts a backfill run and returns its summary once the run
// completes. Per-symbol failures are reported inside the summary, not as an
// error.
func (c *Client) TriggerBackfill(ctx context.Context) (*domain.RunSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/backfill", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("backfill failed: %s", apiErr.Error)
		}
		return nil, fmt.Errorf("backfill failed: status %d", resp.StatusCode)
	}

	summary := &domain.RunSummary{}
	if err := json.NewDecoder(resp.Body).Decode(summary); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	return summary, nil
}

// Healthz checks that the server is up.
func (c *Client) Healthz(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/healthz", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz: status %d", resp.StatusCode)
	}
	return nil
}
