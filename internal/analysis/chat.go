package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edgard/cloudsignal/internal/database"
	"github.com/edgard/cloudsignal/internal/feedback"
	"github.com/edgard/cloudsignal/internal/gateway"
	"github.com/edgard/cloudsignal/internal/logger"
	"github.com/edgard/cloudsignal/internal/text"
)

// Defaults used when the chat responder is created with non-positive limits.
const (
	DefaultChatMaxTokens   = 500
	DefaultChatContextSize = 20
)

// ChatResponder answers free-text questions about the most recent feedback.
// Each question is answered independently.
type ChatResponder struct {
	store       database.Store
	gateway     gateway.Client
	maxTokens   int
	contextSize int
	log         *slog.Logger
}

// NewChatResponder creates a ChatResponder.
func NewChatResponder(store database.Store, gw gateway.Client, maxTokens, contextSize int, log *slog.Logger) *ChatResponder {
	if log == nil {
		log = logger.Discard()
	}
	if maxTokens <= 0 {
		maxTokens = DefaultChatMaxTokens
	}
	if contextSize <= 0 {
		contextSize = DefaultChatContextSize
	}
	return &ChatResponder{
		store:       store,
		gateway:     gw,
		maxTokens:   maxTokens,
		contextSize: contextSize,
		log:         log.With("component", "chat_responder"),
	}
}

// Respond builds the prompt from recent feedback and returns the model
// answer unchanged. Store and gateway failures yield ChatErrorReply and an
// empty answer yields ChatEmptyReply. The error return is always nil.
func (r *ChatResponder) Respond(ctx context.Context, question string) (string, error) {
	items, err := r.store.RecentFeedback(ctx, r.contextSize)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to load chat context", "error", err)
		return ChatErrorReply, nil
	}

	prompt := fmt.Sprintf(ChatPrompt, FormatContext(items), question)
	r.log.DebugContext(ctx, "Answering question", "context_rows", len(items), "question_len", len(question))

	answer, err := r.gateway.Run(ctx, prompt, r.maxTokens)
	if err != nil {
		r.log.ErrorContext(ctx, "Chat call failed", "error", err)
		return ChatErrorReply, nil
	}
	if answer == "" {
		r.log.WarnContext(ctx, "Chat call returned no text")
		return ChatEmptyReply, nil
	}
	return answer, nil
}

// FormatContext renders one line per item, in the given order.
func FormatContext(items []feedback.Item) string {
	lines := make([]string, 0, len(items))
	for i := range items {
		lines = append(lines, FormatContextLine(&items[i]))
	}
	return strings.Join(lines, "\n")
}

// FormatContextLine renders an item as
// "[source] content (Priority: P, Category: C, Sentiment: S, Impact: I)".
// Missing priority and category read "unset"; missing sentiment and impact
// read "unknown". Content is folded onto a single line.
func FormatContextLine(item *feedback.Item) string {
	return fmt.Sprintf("[%s] %s (Priority: %s, Category: %s, Sentiment: %s, Impact: %s)",
		text.SingleLine(item.Source),
		text.SingleLine(item.Content),
		labelOr(item.Priority, "unset"),
		labelOr(item.Category, "unset"),
		labelOr(item.Sentiment, "unknown"),
		labelOr(item.Impact, "unknown"),
	)
}

func labelOr[T ~string](v *T, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return string(*v)
}
