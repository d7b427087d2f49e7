package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/edgard/cloudsignal/internal/config"
)

// APIError represents an error response from the Workers AI REST API.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("workers ai error: status %d: %s (code %d)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("workers ai error: status %d: %s", e.Status, e.Message)
}

// Retriable reports whether the call may succeed if repeated.
func (e *APIError) Retriable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

type runRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type runResponse struct {
	Result *struct {
		Response *string `json:"response"`
	} `json:"result"`
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// WorkersAI calls the Cloudflare Workers AI "run model" endpoint.
type WorkersAI struct {
	httpClient *http.Client
	baseURL    string
	accountID  string
	token      string
	model      string
	guard      guard
	log        *slog.Logger
}

// NewWorkersAI creates a Workers AI client from cfg.
func NewWorkersAI(cfg config.GatewayConfig, log *slog.Logger) (*WorkersAI, error) {
	if cfg.WorkersAI.AccountID == "" || cfg.WorkersAI.APIToken == "" {
		return nil, fmt.Errorf("%w: workers ai needs account_id and api_token", ErrNoCredentials)
	}

	log = log.With("component", "workersai_client")
	return &WorkersAI{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.WorkersAI.BaseURL, "/"),
		accountID:  cfg.WorkersAI.AccountID,
		token:      cfg.WorkersAI.APIToken,
		model:      cfg.Model,
		guard: newGuard("workersai", cfg, func(err error) bool {
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.Retriable()
		}, log),
		log: log,
	}, nil
}

// Run sends prompt with the given output budget.
func (c *WorkersAI) Run(ctx context.Context, prompt string, maxTokens int) (string, error) {
	c.log.DebugContext(ctx, "Running model", "model", c.model, "prompt_len", len(prompt), "max_tokens", maxTokens)

	return c.guard.do(ctx, func(ctx context.Context) (string, error) {
		var resp runResponse
		if err := c.doRequest(ctx, runRequest{Prompt: prompt, MaxTokens: maxTokens}, &resp); err != nil {
			return "", err
		}
		if resp.Result == nil || resp.Result.Response == nil {
			c.log.WarnContext(ctx, "Workers AI response has no response field", "success", resp.Success)
			return "", nil
		}
		return *resp.Result.Response, nil
	})
}

func (c *WorkersAI) endpoint() string {
	// Model ids look like "@cf/meta/llama-3.1-8b-instruct"; the slashes are path segments.
	return fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, url.PathEscape(c.accountID), c.model)
}

// doRequest handles the HTTP request/response cycle with proper error handling
func (c *WorkersAI) doRequest(ctx context.Context, body runRequest, response *runResponse) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var decoded runResponse
		if json.Unmarshal(raw, &decoded) == nil && len(decoded.Errors) > 0 {
			apiErr.Code = decoded.Errors[0].Code
			apiErr.Message = decoded.Errors[0].Message
		}
		return apiErr
	}

	if err := json.Unmarshal(raw, response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
