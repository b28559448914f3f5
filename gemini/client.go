// Package gemini wraps the hosted generative-language collaborator.
// One prompt in, one text blob out; no streaming and no conversation
// state held across calls.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is used when the config leaves the model empty.
const DefaultModel = "gemini-2.0-flash"

// DefaultTimeout bounds a single generate call.
const DefaultTimeout = 30 * time.Second

// Client is a thin wrapper over the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient builds a Gemini client. The timeout applies per request via
// the underlying HTTP client; pass 0 for DefaultTimeout.
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// GenerateText sends one prompt and returns the generated text.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty response")
	}
	return text, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }
