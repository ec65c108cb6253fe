// Package llm provides a typed HTTP client for the OpenAI API.
// The updater uses it to turn a change request plus repo context into a
// structured patch plan.
package llm

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

// DefaultBaseURL is the stock OpenAI endpoint. Override BaseURL to point at a
// compatible proxy.
const DefaultBaseURL = "https://api.openai.com/v1"

// ErrMissingAPIKey is returned before any request is made when no key is
// configured.
var ErrMissingAPIKey = errors.New("missing OPENAI_API_KEY: set the environment variable or put the key in .autoupdater.yaml")

// Client wraps the OpenAI HTTP API.
type Client struct {
	BaseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client authenticated with apiKey.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			// Planning a patch over a large context can take a while,
			// but should never take this long.
			Timeout: 5 * time.Minute,
		},
	}
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// chatMessage is a single chat turn (role + content).
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// jsonSchemaFormat constrains the model to schema-valid JSON output.
type jsonSchemaFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema"`
}

// chatRequest maps to POST /chat/completions.
type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat *jsonSchemaFormat `json:"response_format,omitempty"`
}

// chatResponse is the subset of the completion response the planner needs.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// modelEntry is one item from GET /models.
type modelEntry struct {
	ID string `json:"id"`
}

// ---------------------------------------------------------------------------
// Methods
// ---------------------------------------------------------------------------

// Ping lists available models; used as a reachability and key check.
func (c *Client) Ping(ctx context.Context) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai %d: %s", resp.StatusCode, truncate(string(b), 200))
	}
	return nil
}

// complete sends one chat completion request and returns the raw message
// content of the first choice.
func (c *Client) complete(ctx context.Context, req chatRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openai %d: %s", resp.StatusCode, truncate(string(b), 500))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
