// Package advisor produces LLM-generated weather summaries and travel advice
// for a destination, with retrying transport and a TTL-checked cache in front.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/voyagesur/backend/internal/domain"
)

// ClientConfig configures the chat-completions client.
type ClientConfig struct {
	BaseURL string // e.g. https://api.openai.com/v1
	APIKey  string
	Model   string

	// MaxRetries bounds how often a 429 is retried. BaseDelay is the first
	// backoff step; each retry doubles it.
	MaxRetries uint64
	BaseDelay  time.Duration

	HTTPClient *http.Client
}

// Client talks to an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient constructs a Client. Zero retry settings get the defaults of
// 3 retries starting at 500ms.
func NewClient(cfg ClientConfig) *Client {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: hc}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the assistant's content.
// Failures are *domain.UpstreamError: 429 is retried with exponential backoff
// and reported as UpstreamRateLimited once retries run out; 401 and 403 are
// UpstreamUnauthorized and never retried; everything else is UpstreamUnavailable.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", upstream(domain.UpstreamUnavailable, errors.New("llm api key not configured"))
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.4,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", upstream(domain.UpstreamUnavailable, err)
	}

	backoff := retry.NewExponential(c.cfg.BaseDelay)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(c.cfg.MaxRetries, backoff)

	var content string
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		content, err = c.post(ctx, body)
		if domain.UpstreamKindOf(err) == domain.UpstreamRateLimited {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		var ue *domain.UpstreamError
		if errors.As(err, &ue) {
			return "", err
		}
		// Context cancelled or deadline hit while waiting between attempts.
		return "", upstream(domain.UpstreamUnavailable, err)
	}
	return content, nil
}

// post performs a single attempt.
func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", upstream(domain.UpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", upstream(domain.UpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", upstream(domain.UpstreamRateLimited, statusError(resp))
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", upstream(domain.UpstreamUnauthorized, statusError(resp))
	case resp.StatusCode != http.StatusOK:
		return "", upstream(domain.UpstreamUnavailable, statusError(resp))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", upstream(domain.UpstreamUnavailable, fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", upstream(domain.UpstreamUnavailable, errors.New("no choices in response"))
	}
	return out.Choices[0].Message.Content, nil
}

func upstream(kind domain.UpstreamKind, err error) error {
	return &domain.UpstreamError{Service: "llm", Kind: kind, Err: err}
}

// statusError keeps a short prefix of the body for the logs.
func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
