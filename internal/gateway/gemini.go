package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/cloudsignal/internal/config"
)

// Gemini calls Google's Gemini API through the genai SDK.
type Gemini struct {
	genaiClient *genai.Client
	modelName   string
	temperature float32
	timeout     time.Duration
	guard       guard
	log         *slog.Logger
}

// NewGemini creates a Gemini client from cfg.
func NewGemini(ctx context.Context, cfg config.GatewayConfig, log *slog.Logger) (*Gemini, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini needs api_key", ErrNoCredentials)
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.Gemini.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.Gemini.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log = log.With("component", "gemini_client")
	log.Info("Gemini client initialized successfully", "model", cfg.Model)
	return &Gemini{
		genaiClient: gi,
		modelName:   cfg.Model,
		temperature: cfg.Gemini.Temperature,
		timeout:     cfg.Timeout,
		guard:       newGuard("gemini", cfg, isRetriableGenaiError, log),
		log:         log,
	}, nil
}

// Run sends prompt as a single user turn with the given output budget.
func (c *Gemini) Run(ctx context.Context, prompt string, maxTokens int) (string, error) {
	c.log.DebugContext(ctx, "Running model", "model", c.modelName, "prompt_len", len(prompt), "max_tokens", maxTokens)

	temperature := c.temperature
	//nolint:gosec // maxTokens is bounded by config validation
	contentCfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(maxTokens),
	}

	return c.guard.do(ctx, func(ctx context.Context) (string, error) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		resp, err := c.genaiClient.Models.GenerateContent(ctx, c.modelName, genai.Text(prompt), contentCfg)
		if err != nil {
			return "", fmt.Errorf("gemini API call failed: %w", err)
		}
		return c.extractText(ctx, resp), nil
	})
}

// extractText returns the response text, or "" for blocked or empty responses.
func (c *Gemini) extractText(ctx context.Context, resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		c.log.WarnContext(ctx, "Gemini request blocked",
			"reason", resp.PromptFeedback.BlockReason,
			"message", resp.PromptFeedback.BlockReasonMessage)
		return ""
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return ""
	}

	return strings.TrimSpace(resp.Text())
}

func isRetriableGenaiError(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusInternalServerError || apiErr.Code == http.StatusServiceUnavailable
}
