// Package provider defines the model capabilities consumed by the
// discovery pipeline. Implementations are plain HTTP clients constructed
// at startup and injected; nothing in here is process-global.
package provider

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned when a capability is invoked with no text.
var ErrEmptyInput = errors.New("empty input text")

// Message is a single chat message sent to a completion model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Completer is the text-generation capability. Model names are passed
// per call so fallback lists stay in the caller's hands.
type Completer interface {
	// Complete returns the full completion text.
	Complete(ctx context.Context, model, system string, msgs []Message, opts Options) (string, error)
	// CompleteJSON requests a JSON-object-constrained completion and
	// returns the raw JSON text.
	CompleteJSON(ctx context.Context, model, system string, msgs []Message, opts Options) (string, error)
	// StreamChat streams the completion, invoking onDelta for every
	// fragment in arrival order, and returns the accumulated text.
	StreamChat(ctx context.Context, model, system string, msgs []Message, opts Options, onDelta func(string)) (string, error)
}

// EmbedMode distinguishes content-to-index from search-query embeddings.
type EmbedMode string

const (
	EmbedPassage EmbedMode = "passage"
	EmbedQuery   EmbedMode = "query"
)

// Embedder converts text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error)
}
