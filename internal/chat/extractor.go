package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/luxelabs/concierge/internal/telemetry"
	"github.com/luxelabs/concierge/models"
	"github.com/luxelabs/concierge/provider"
)

const (
	maxRecommended  = 4
	extractorWindow = 6 // history turns shown to the extractor
)

// Extractor parses the completed exchange into machine-actionable
// product references. It degrades to the zero outcome rather than
// failing the turn: a missing structured outcome costs UI affordances,
// not the reply itself.
type Extractor struct {
	llm    provider.Completer
	models []string
	logger *log.Logger
}

func NewExtractor(llm provider.Completer, modelList []string, logger *log.Logger) *Extractor {
	return &Extractor{llm: llm, models: modelList, logger: logger}
}

type extractPayload struct {
	ProductIDs        json.RawMessage `json:"productIds"`
	CartProductIDs    json.RawMessage `json:"cartProductIds"`
	CompareProductIDs json.RawMessage `json:"compareProductIds"`
}

// Extract runs after generation completes. Model output is never
// trusted: ids are filtered against the candidate set, productIds is
// truncated, and compareProductIds must be exactly two ids or nothing.
func (e *Extractor) Extract(ctx context.Context, userMessage, assistantMessage string, candidates []models.Product, history []models.ConversationTurn) models.StructuredOutcome {
	zero := models.StructuredOutcome{
		ProductIDs:        []string{},
		CartProductIDs:    []string{},
		CompareProductIDs: []string{},
	}

	userPrompt := fmt.Sprintf("Conversation:\nUser: %q\nAssistant: %q\n\nAvailable product IDs:\n%s\n\nExtract the structured data from this conversation.",
		userMessage, assistantMessage, buildProductList(candidates))

	recent := history
	if len(recent) > extractorWindow {
		recent = recent[len(recent)-extractorWindow:]
	}
	msgs := make([]provider.Message, 0, len(recent)+1)
	for _, turn := range recent {
		msgs = append(msgs, provider.Message{Role: turn.Role, Content: turn.Content})
	}
	msgs = append(msgs, provider.Message{Role: models.RoleUser, Content: userPrompt})

	known := make(map[string]bool, len(candidates))
	for _, p := range candidates {
		known[p.ID] = true
	}

	var lastErr error
	for _, model := range e.models {
		raw, err := e.llm.CompleteJSON(ctx, model, extractSystemPrompt, msgs,
			provider.Options{Temperature: 0.1, MaxTokens: 256})
		if err != nil {
			lastErr = err
			e.logger.Printf("extract model %s failed: %v", model, err)
			telemetry.ProviderFallbacks.WithLabelValues("extract", model).Inc()
			continue
		}
		var payload extractPayload
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			lastErr = err
			e.logger.Printf("extract model %s returned malformed JSON: %v", model, err)
			telemetry.ProviderFallbacks.WithLabelValues("extract", model).Inc()
			continue
		}

		recommended := filterIDs(payload.ProductIDs, known)
		if len(recommended) > maxRecommended {
			recommended = recommended[:maxRecommended]
		}
		compare := filterIDs(payload.CompareProductIDs, known)
		if len(compare) != 2 {
			compare = []string{}
		}
		return models.StructuredOutcome{
			ProductIDs:        recommended,
			CartProductIDs:    filterIDs(payload.CartProductIDs, known),
			CompareProductIDs: compare,
		}
	}

	e.logger.Printf("all extract models failed: %v", lastErr)
	return zero
}

// filterIDs decodes a JSON array of ids and keeps only known, distinct
// ones. Anything that is not an array of strings collapses to empty.
func filterIDs(raw json.RawMessage, known map[string]bool) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return out
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if known[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
