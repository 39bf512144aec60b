package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/roadsense/companiond/internal/capability"
	"github.com/roadsense/companiond/internal/reliability"
)

const fallbackReply = "I couldn't generate a response."

// OpenRouterClient talks to an OpenRouter-compatible chat completions
// endpoint. Failures are reported as typed capability failures so the
// controller can surface them as conversational error messages.
type OpenRouterClient struct {
	endpoint string
	apiKey   string
	model    string
	referer  string
	title    string
	client   *http.Client
}

type OpenRouterConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Referer  string
	Title    string
	Timeout  time.Duration
}

func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenRouterClient{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		model:    strings.TrimSpace(cfg.Model),
		referer:  strings.TrimSpace(cfg.Referer),
		title:    strings.TrimSpace(cfg.Title),
		client:   &http.Client{Timeout: timeout},
	}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenRouterClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", capability.NewFailure(capability.CodeAuthMissing,
			"API key is missing, please check the configuration")
	}

	payload, err := json.Marshal(completionRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	res, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", capability.Normalize(ctx.Err())
		}
		return "", &capability.Failure{
			Code:      capability.CodeNetworkError,
			Detail:    "the network request failed",
			Retryable: true,
		}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return "", &capability.Failure{Code: capability.CodeNetworkError, Detail: "reading the response failed"}
	}

	var parsed completionResponse
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail := fmt.Sprintf("upstream status %d", res.StatusCode)
		if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil && parsed.Error.Message != "" {
			detail = parsed.Error.Message
		}
		return "", &capability.Failure{
			Code:      capability.CodeRemoteError,
			Detail:    detail,
			Retryable: reliability.IsRetryableHTTPStatus(res.StatusCode),
		}
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &capability.Failure{Code: capability.CodeRemoteError, Detail: "unexpected response format"}
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return fallbackReply, nil
	}
	return parsed.Choices[0].Message.Content, nil
}
