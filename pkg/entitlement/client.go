package entitlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnexpectedResponse is returned for any answer that is not a 200 carrying
// a boolean hasActiveSubscription field.
var ErrUnexpectedResponse = errors.New("unexpected subscription check response")

type Client struct {
	URL        string
	HTTPClient *http.Client
}

type CheckRequest struct {
	Email string `json:"email"`
}

type CheckResponse struct {
	HasActiveSubscription *bool  `json:"hasActiveSubscription"`
	Error                 string `json:"error,omitempty"`
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		URL: url,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// HasActiveSubscription asks the verifier whether email has an active paid
// subscription. Every failure reports false together with the cause.
func (c *Client) HasActiveSubscription(ctx context.Context, email string) (bool, error) {
	jsonData, err := json.Marshal(CheckRequest{Email: email})
	if err != nil {
		return false, fmt.Errorf("failed to marshal request data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: status %d: %s", ErrUnexpectedResponse, resp.StatusCode, string(body))
	}

	var response CheckResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if response.HasActiveSubscription == nil {
		return false, fmt.Errorf("%w: missing hasActiveSubscription", ErrUnexpectedResponse)
	}

	return *response.HasActiveSubscription, nil
}
