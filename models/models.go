package models

import (
	"errors"
	"time"
)

// ErrProductNotFound is returned when a product is not found
var ErrProductNotFound = errors.New("product not found")

// Product is a catalog record as presented to the discovery pipeline.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Sizes       []string  `json:"sizes,omitempty"`
	ShoeSizes   []string  `json:"shoeSizes,omitempty"`
	ImageURL    string    `json:"image,omitempty"`
	IsFeatured  bool      `json:"isFeatured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Turn roles as stored in session history and sent to completion models.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is a single utterance in a chat session. Immutable
// once appended to history.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Intent is the coarse category of a user message.
type Intent string

const (
	IntentProductSearch Intent = "product_search"
	IntentPriceFilter   Intent = "price_filter"
	IntentGreeting      Intent = "greeting"
	IntentStoreInfo     Intent = "store_info"
	IntentOffTopic      Intent = "off_topic"
)

// ShortCircuits reports whether the intent skips retrieval and
// generation entirely.
func (i Intent) ShortCircuits() bool {
	switch i {
	case IntentGreeting, IntentStoreInfo, IntentOffTopic:
		return true
	}
	return false
}

// IntentResult is the per-message classification outcome. Never persisted.
type IntentResult struct {
	Intent         Intent  `json:"intent"`
	CorrectedQuery string  `json:"corrected_query"`
	Budget         float64 `json:"budget"`   // 0 = no budget mentioned
	Category       string  `json:"category"` // "" = no category mentioned
}

// StructuredOutcome is the machine-actionable result extracted from a
// completed exchange. All identifiers are guaranteed to come from the
// candidate set presented to the generator.
type StructuredOutcome struct {
	ProductIDs        []string `json:"productIds"`
	CartProductIDs    []string `json:"cartProductIds"`
	CompareProductIDs []string `json:"compareProductIds"`
}
