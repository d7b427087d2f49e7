package analysis

// ClassificationPrompt asks the model for a single JSON object describing one
// feedback item. The format string expects the feedback content.
const ClassificationPrompt = `Analyze this customer feedback and respond in JSON format only:

Feedback: "%s"

Respond with exactly this JSON structure (no other text):
{
  "sentiment": "positive" or "negative" or "neutral",
  "priority": "P0" or "P1" or "P2" or "P3",
  "category": "bug" or "feature-request" or "documentation" or "performance" or "billing" or "ux" or "general",
  "impact": "critical" or "high" or "medium" or "low",
  "themes": ["theme1", "theme2"]
}

Rules for Priority:
- P0: Critical - System down, security issue, data loss, blocking all users
- P1: High - Major functionality broken, billing issues, blocking many users
- P2: Medium - Feature requests, non-critical bugs, documentation gaps
- P3: Low - Minor improvements, nice-to-haves, cosmetic issues

Rules for Category:
- bug: Something is broken or not working as expected
- feature-request: User wants new functionality
- documentation: Confusion about docs, guides, or instructions
- performance: Speed, latency, or resource issues
- billing: Payment, pricing, or subscription issues
- ux: User interface or experience feedback
- general: Other feedback that doesn't fit above`

// ChatPrompt is the product-manager assistant persona. The format string
// expects the rendered feedback context followed by the user question.
const ChatPrompt = `You are CloudSignal, an AI-powered feedback analysis system for Product Managers. You help PMs understand customer feedback patterns, prioritize issues, and make data-driven decisions.

Here is the current feedback data:
%s

User Question: %s

Respond as a professional PM tool would:
- Be concise and actionable
- Use data from the feedback to support your analysis
- Prioritize by impact and urgency
- Group related issues together
- Suggest next steps when appropriate

FORMATTING RULES:
- NO markdown (no **, no *, no #)
- Use plain text only
- Use numbers (1. 2. 3.) for lists
- Keep responses professional and concise`

// Fixed replies returned by the chat responder instead of model text.
const (
	ChatErrorReply = "Error processing your question. Please try again."
	ChatEmptyReply = "Unable to process request. Please try again."
)
