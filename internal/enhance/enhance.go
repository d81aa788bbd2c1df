// Package enhance infers and upgrades component fields with an LLM.
package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bom-enrich/internal/model"
	"github.com/sells-group/bom-enrich/pkg/anthropic"
)

// Enhancer produces inferred fields and per-field confidence from
// normalized and supplier-aggregated data.
type Enhancer interface {
	Enhance(ctx context.Context, normalized *model.NormalizedComponent, aggregated *model.AggregatedData) (*model.EnhancementResult, error)
}

const systemPrompt = `You are an electronic component data specialist. Given a normalized part reference and merged supplier data, you fill in missing fields and rate the quality of what is already there.

Respond with ONLY a JSON object, no prose, matching:
{
  "enhanced_fields": ["category", ...],
  "confidence_scores": {"category": 0.9, ...},
  "suggested_category": "op-amp",
  "description_quality": 0.8,
  "data": {"description": "...", ...}
}

Rules:
- enhanced_fields lists only fields you inferred or improved.
- confidence_scores holds a 0..1 score per enhanced field.
- description_quality rates the best available description, 0..1.
- Never invent electrical parameters that contradict the supplier data.`

// ClaudeEnhancer implements Enhancer with a single structured completion
// per component.
type ClaudeEnhancer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// Config configures the enhancer.
type Config struct {
	Model     string
	MaxTokens int64
}

// NewClaudeEnhancer creates an enhancer over the given API client.
func NewClaudeEnhancer(client anthropic.Client, cfg Config) *ClaudeEnhancer {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &ClaudeEnhancer{client: client, model: cfg.Model, maxTokens: cfg.MaxTokens}
}

// Enhance sends one completion request and parses the structured result.
func (e *ClaudeEnhancer) Enhance(ctx context.Context, normalized *model.NormalizedComponent, aggregated *model.AggregatedData) (*model.EnhancementResult, error) {
	prompt, err := buildPrompt(normalized, aggregated)
	if err != nil {
		return nil, err
	}

	temp := 0.0
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: systemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "enhancement completion")
	}
	resp.Usage.LogCost(e.model, "ai_enhancement")

	result, err := ParseResult(resp.Text())
	if err != nil {
		return nil, err
	}

	zap.L().Debug("enhancement parsed",
		zap.String("mpn", normalized.MPN),
		zap.Strings("enhanced_fields", result.EnhancedFields),
		zap.Float64("description_quality", result.DescriptionQuality),
	)
	return result, nil
}

// buildPrompt renders the step inputs as a compact JSON document. Only the
// merged supplier record and per-supplier statuses go in; raw response
// bodies stay out of the context window.
func buildPrompt(normalized *model.NormalizedComponent, aggregated *model.AggregatedData) (string, error) {
	input := map[string]any{
		"normalized": normalized,
	}
	if aggregated != nil {
		statuses := make(map[string]string, len(aggregated.Responses))
		for _, r := range aggregated.Responses {
			statuses[r.Supplier] = string(r.Status)
		}
		input["merged_supplier_data"] = aggregated.MergedData
		input["supplier_statuses"] = statuses
	}

	doc, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "marshal enhancement input")
	}
	return fmt.Sprintf("Component to enhance:\n\n%s", doc), nil
}

// ParseResult decodes the model's JSON reply, tolerating markdown fences.
func ParseResult(text string) (*model.EnhancementResult, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result model.EnhancementResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, eris.Wrapf(err, "parse enhancement reply: %.80s", cleaned)
	}

	for field, score := range result.ConfidenceScores {
		if score < 0 || score > 1 {
			return nil, eris.Errorf("confidence for %s out of range: %v", field, score)
		}
	}
	if result.DescriptionQuality < 0 || result.DescriptionQuality > 1 {
		return nil, eris.Errorf("description_quality out of range: %v", result.DescriptionQuality)
	}
	return &result, nil
}
