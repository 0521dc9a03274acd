package creative

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-cli/internal/cost"
	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/internal/resilience"
	"github.com/sells-group/campaign-cli/pkg/anthropic"
)

const systemPrompt = `You are a performance marketing copywriter planning creative tests for one ad set.
Return ONLY a JSON object of the form:
{"primary_metric": "CTR|CVR|ENGAGEMENT",
 "variants": [{"angle": "...", "expected_metric": "CTR|CVR|ENGAGEMENT", "hypothesis": "...",
   "headline": "...", "primary_text": "...", "description": "...", "call_to_action": "LEARN_MORE|SHOP_NOW|SIGN_UP",
   "asset_id": "...", "predicted_ctr": 0.01}]}
Use only the allowed angles, write exactly target_count variants, keep headlines under 40 characters
and primary text under 125 characters, and respect the brand guidelines.`

// AnthropicGenerator produces variants with a Claude model behind a circuit breaker.
type AnthropicGenerator struct {
	client    anthropic.Client
	breaker   *resilience.Breaker
	calc      *cost.Calculator
	model     string
	maxTokens int64
}

// NewAnthropicGenerator wires a generator. calc may be nil to skip pricing.
func NewAnthropicGenerator(client anthropic.Client, breaker *resilience.Breaker, calc *cost.Calculator, model string, maxTokens int64) *AnthropicGenerator {
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.BreakerConfig{Name: "anthropic"})
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicGenerator{client: client, breaker: breaker, calc: calc, model: model, maxTokens: maxTokens}
}

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, brief Brief) (*Generated, error) {
	payload, err := json.Marshal(brief)
	if err != nil {
		return nil, eris.Wrap(err, "creative: encode brief")
	}

	temp := 0.7
	resp, err := resilience.Call(ctx, g.breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return g.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       g.model,
			MaxTokens:   g.maxTokens,
			System:      systemPrompt,
			Messages:    []anthropic.Message{{Role: "user", Content: string(payload)}},
			Temperature: &temp,
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "creative: generate for %s", brief.AdSetID)
	}

	usage := &model.GenerationUsage{
		Model:        g.model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	if g.calc != nil {
		usage.CostUSD = g.calc.Price(g.model, cost.TokenCounts{
			Input:      resp.Usage.InputTokens,
			Output:     resp.Usage.OutputTokens,
			CacheWrite: resp.Usage.CacheCreationInputTokens,
			CacheRead:  resp.Usage.CacheReadInputTokens,
		})
	}

	zap.L().Info("creative: generation cost",
		zap.String("adset_id", brief.AdSetID),
		zap.String("model", g.model),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens),
		zap.Float64("cost_usd", usage.CostUSD),
	)

	var out Generated
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &out); err != nil {
		return nil, &UsageError{Err: eris.Wrapf(ErrInvalidResponse, "decode: %v", err), Usage: usage}
	}
	out.Usage = usage
	return &out, nil
}

// cleanJSON strips markdown fences and surrounding prose from a model reply.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
