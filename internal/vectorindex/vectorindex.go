// Package vectorindex defines the nearest-neighbor index capability used
// for semantic product retrieval.
package vectorindex

import "context"

// Metadata stored alongside each product vector.
type Metadata struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Price     float64 `json:"price"`
}

// Match is a similarity-ranked query hit.
type Match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Index is the vector index capability: query by embedding, keep the
// index in sync with the catalog.
type Index interface {
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Upsert(ctx context.Context, id string, vector []float32, meta Metadata) error
	Delete(ctx context.Context, id string) error
}
