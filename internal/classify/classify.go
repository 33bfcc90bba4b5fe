// Package classify adapts the Claude API into the intent classifications
// the state machine consumes. The oracle is fallible: transport errors are
// returned for the engine's fallback path, while malformed output degrades
// to a typed default here.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

// Classifier classifies inbound replies and payment screenshots.
type Classifier interface {
	ClassifyReply(ctx context.Context, lead model.Lead, body string) (model.ReplyClassification, error)
	VerifyPayment(ctx context.Context, lead model.Lead, image anthropic.Image) (model.PaymentVerdict, error)
}

const replySystemPrompt = `You are a freelance sales assistant negotiating on behalf of the studio. Classify the client's reply and draft the next email.

Respond with a single valid JSON object:
{"intent": "ordered" | "negotiating" | "stop", "reply": "<email body to send>", "requirements": "<summary of order requirements if the client agreed, else empty>"}

Rules:
- "ordered" when the client agrees to proceed at an acceptable price or supplies order details.
- "stop" when the client clearly declines or asks not to be contacted.
- "negotiating" otherwise. Negotiate politely toward closing.
- Never go below the floor price. Offer the free gift to close when useful.
- The reply must be a complete, plain-text email body with no status lines.`

const replyUserPrompt = `Client: %s
Service: %s
Starting price: %s
Current offer: %s
Floor price: %s
Free gift on close: %s

The client replied:
"""
%s
"""`

const paymentSystemPrompt = `You verify payment confirmation screenshots. Decide whether the image clearly shows a successful, completed payment (transaction reference, amount, success state).

Respond with a single valid JSON object:
{"verified": true | false, "reply": "<email body to send>"}

If verified, the reply thanks the client and confirms delivery is on its way.
If not clearly verified, the reply politely asks for a clearer, complete screenshot of the successful transaction.`

// claude implements Classifier on the Anthropic wrapper.
type claude struct {
	ai  anthropic.Client
	cfg config.AnthropicConfig
}

// New creates a Claude-backed classifier.
func New(ai anthropic.Client, cfg config.AnthropicConfig) Classifier {
	return &claude{ai: ai, cfg: cfg}
}

func (c *claude) ClassifyReply(ctx context.Context, lead model.Lead, body string) (model.ReplyClassification, error) {
	prompt := fmt.Sprintf(replyUserPrompt,
		lead.ClientName,
		lead.SelectedSkill,
		lead.FirstPrice,
		lead.OfferPrice,
		lead.FinalPrice,
		lead.FreeGift,
		body,
	)

	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.cfg.SonnetModel,
		MaxTokens: 1024,
		System:    anthropic.BuildCachedSystemBlocks(replySystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return model.ReplyClassification{}, eris.Wrap(err, "classify: reply")
	}
	resp.Usage.LogCost(c.cfg.SonnetModel, "reply")

	return parseReply(resp.Text()), nil
}

func (c *claude) VerifyPayment(ctx context.Context, lead model.Lead, image anthropic.Image) (model.PaymentVerdict, error) {
	resp, err := c.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.cfg.SonnetModel,
		MaxTokens: 512,
		System:    anthropic.BuildCachedSystemBlocks(paymentSystemPrompt),
		Messages: []anthropic.Message{
			{
				Role:    "user",
				Content: fmt.Sprintf("Client %s was asked to pay %s.", lead.ClientName, lead.OfferPrice),
				Images:  []anthropic.Image{image},
			},
		},
	})
	if err != nil {
		return model.PaymentVerdict{}, eris.Wrap(err, "classify: payment")
	}
	resp.Usage.LogCost(c.cfg.SonnetModel, "payment")

	return parsePayment(resp.Text()), nil
}

// parseReply validates model output against the reply schema. Malformed
// output degrades to a negotiating default rather than failing the lead.
func parseReply(text string) model.ReplyClassification {
	cleaned := CleanJSON(text)

	var result model.ReplyClassification
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		zap.L().Warn("classify: unparsable reply classification", zap.Error(err))
		return defaultReplyClassification()
	}

	switch result.Intent {
	case model.IntentOrdered, model.IntentNegotiating, model.IntentStop:
	default:
		zap.L().Warn("classify: unknown intent", zap.String("intent", string(result.Intent)))
		result.Intent = model.IntentNegotiating
	}
	if strings.TrimSpace(result.Reply) == "" && result.Intent != model.IntentStop {
		result.Reply = FallbackReply
	}
	return result
}

func parsePayment(text string) model.PaymentVerdict {
	cleaned := CleanJSON(text)

	var result model.PaymentVerdict
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		zap.L().Warn("classify: unparsable payment verdict", zap.Error(err))
		return model.PaymentVerdict{Verified: false, Reply: ResendScreenshotReply}
	}
	if strings.TrimSpace(result.Reply) == "" {
		if result.Verified {
			result.Reply = "Payment received, thank you! Your delivery is on its way."
		} else {
			result.Reply = ResendScreenshotReply
		}
	}
	return result
}

// Fixed copy used when the oracle fails or returns nothing usable.
const (
	FallbackReply = "Thanks for getting back to us! Let me double-check the details on our side and follow up shortly. " +
		"If you have any questions in the meantime, just reply here."

	ResendScreenshotReply = "Thanks for the screenshot! We couldn't clearly verify the transaction from it. " +
		"Could you resend a clear, complete screenshot of the successful payment?"
)

// DefaultReplyClassification is the safe fallback applied when the oracle
// call itself fails: keep negotiating with a fixed generic reply.
func DefaultReplyClassification() model.ReplyClassification {
	return defaultReplyClassification()
}

func defaultReplyClassification() model.ReplyClassification {
	return model.ReplyClassification{
		Intent: model.IntentNegotiating,
		Reply:  FallbackReply,
	}
}

// CleanJSON strips markdown fences and surrounding prose, keeping the
// outermost JSON object.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
