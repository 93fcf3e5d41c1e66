package chat

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/luxelabs/concierge/models"
	"github.com/luxelabs/concierge/provider"
)

// Classifier determines the conversational category of a message and
// extracts any embedded constraints.
type Classifier struct {
	llm    provider.Completer
	model  string
	logger *log.Logger
}

func NewClassifier(llm provider.Completer, model string, logger *log.Logger) *Classifier {
	return &Classifier{llm: llm, model: model, logger: logger}
}

type intentPayload struct {
	Intent         string   `json:"intent"`
	CorrectedQuery string   `json:"corrected_query"`
	Budget         *float64 `json:"budget"`
	Category       *string  `json:"category"`
}

// Classify never fails outward: any provider or parse error collapses
// into the product_search default so the user still reaches retrieval.
// Single attempt, no retry.
func (c *Classifier) Classify(ctx context.Context, message string) models.IntentResult {
	fallback := models.IntentResult{
		Intent:         models.IntentProductSearch,
		CorrectedQuery: message,
	}

	raw, err := c.llm.CompleteJSON(ctx, c.model, intentSystemPrompt,
		[]provider.Message{{Role: models.RoleUser, Content: message}},
		provider.Options{Temperature: 0.1, MaxTokens: 200})
	if err != nil {
		c.logger.Printf("intent classification failed, defaulting to product_search: %v", err)
		return fallback
	}

	var payload intentPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		c.logger.Printf("intent response not parseable, defaulting to product_search: %v", err)
		return fallback
	}

	result := fallback
	switch models.Intent(payload.Intent) {
	case models.IntentProductSearch, models.IntentPriceFilter, models.IntentGreeting,
		models.IntentStoreInfo, models.IntentOffTopic:
		result.Intent = models.Intent(payload.Intent)
	default:
		return fallback
	}
	if q := strings.TrimSpace(payload.CorrectedQuery); q != "" {
		result.CorrectedQuery = q
	}
	if payload.Budget != nil && *payload.Budget > 0 {
		result.Budget = *payload.Budget
	}
	if payload.Category != nil {
		result.Category = strings.TrimSpace(*payload.Category)
	}
	return result
}
