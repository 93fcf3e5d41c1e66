// Package chat implements the conversational product-discovery pipeline:
// intent classification, semantic retrieval, streamed generation,
// structured extraction, and the turn orchestration that ties them to a
// session.
package chat

import (
	"errors"

	"github.com/luxelabs/concierge/models"
)

// ErrGenerationUnavailable is returned when every completion backend
// failed before any output reached the client. The HTTP layer maps it to
// a plain error response; it never appears inside a stream.
var ErrGenerationUnavailable = errors.New("all completion backends failed")

// DonePayload is the terminal event body for a successful exchange:
// the structured outcome resolved back to full product records.
type DonePayload struct {
	Products        []models.Product `json:"products"`
	CartProducts    []models.Product `json:"cartProducts"`
	CompareProducts []models.Product `json:"compareProducts"`
}

// Sink receives stream events in order: zero or more Token calls, then
// exactly one Done or Error. Implementations own the transport framing.
type Sink interface {
	Token(text string) error
	Done(p DonePayload) error
	Error(message string) error
}

func emptyDone() DonePayload {
	return DonePayload{
		Products:        []models.Product{},
		CartProducts:    []models.Product{},
		CompareProducts: []models.Product{},
	}
}
