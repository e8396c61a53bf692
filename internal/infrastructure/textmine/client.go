package textmine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"circularscan/internal/domain"
	"circularscan/internal/ports"
)

// Client talks to an external text-mining service for HS-code and
// product-name extraction, standing in for the built-in engine when a
// deployment runs a dedicated model.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Extractor = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Extract posts the raw text and decodes the mined entities.
func (c *Client) Extract(ctx context.Context, rawText string) (domain.Extraction, error) {
	payload := map[string]any{
		"text": rawText,
	}

	var resp struct {
		HSCodes      []string `json:"hsCodes"`
		ProductNames []string `json:"productNames"`
	}
	if err := c.post(ctx, "/extract", payload, &resp); err != nil {
		return domain.Extraction{}, err
	}

	return domain.Extraction{
		Success:      true,
		HSCodes:      resp.HSCodes,
		ProductNames: resp.ProductNames,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
