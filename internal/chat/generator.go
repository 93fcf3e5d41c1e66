package chat

import (
	"context"
	"fmt"
	"log"

	"github.com/luxelabs/concierge/internal/telemetry"
	"github.com/luxelabs/concierge/models"
	"github.com/luxelabs/concierge/provider"
)

// Generator produces the streamed, catalog-grounded reply. Backends are
// tried in priority order; a backend that fails before emitting anything
// is skipped, a backend that fails after its first forwarded fragment is
// terminal for the turn (switching models mid-reply would contradict
// text the client has already seen).
type Generator struct {
	llm    provider.Completer
	models []string
	logger *log.Logger
}

func NewGenerator(llm provider.Completer, modelList []string, logger *log.Logger) *Generator {
	return &Generator{llm: llm, models: modelList, logger: logger}
}

// Generate streams the reply, invoking onToken synchronously per
// fragment, and returns the full accumulated text. streamed reports
// whether any fragment reached onToken, so the caller can distinguish a
// pre-stream failure (plain error response) from a mid-stream one
// (terminal error event).
func (g *Generator) Generate(ctx context.Context, userMessage, correctedQuery string, candidates []models.Product, budget float64, category string, history []models.ConversationTurn, onToken func(string) error) (text string, streamed bool, err error) {
	userPrompt := fmt.Sprintf("%s\n\nAvailable products:\n%s",
		buildContextHeader(userMessage, correctedQuery, budget, category),
		buildProductContext(candidates))

	msgs := make([]provider.Message, 0, len(history)+1)
	for _, turn := range history {
		msgs = append(msgs, provider.Message{Role: turn.Role, Content: turn.Content})
	}
	msgs = append(msgs, provider.Message{Role: models.RoleUser, Content: userPrompt})

	var lastErr error
	var tokenErr error
	for _, model := range g.models {
		full, streamErr := g.llm.StreamChat(ctx, model, streamSystemPrompt, msgs,
			provider.Options{Temperature: 0.45, MaxTokens: 512},
			func(delta string) {
				if tokenErr != nil {
					return
				}
				streamed = true
				tokenErr = onToken(delta)
			})
		if tokenErr != nil {
			// client write failed; nothing further to deliver
			return "", streamed, tokenErr
		}
		if streamErr == nil {
			return full, streamed, nil
		}
		lastErr = streamErr
		if streamed {
			return "", true, fmt.Errorf("stream model %s failed mid-stream: %w", model, streamErr)
		}
		g.logger.Printf("stream model %s failed: %v", model, streamErr)
		telemetry.ProviderFallbacks.WithLabelValues("generate", model).Inc()
	}
	return "", streamed, fmt.Errorf("%w: %v", ErrGenerationUnavailable, lastErr)
}
