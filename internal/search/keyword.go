// Package search keeps an in-process keyword index over the catalog.
// Retrieval falls back to it when the embedding or vector providers are
// unavailable, so a degraded deployment still answers product queries.
package search

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/luxelabs/concierge/models"
)

// productDoc is the indexed projection of a product.
type productDoc struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// KeywordIndex is a memory-only bleve index of product text.
type KeywordIndex struct {
	mu  sync.RWMutex
	idx bleve.Index
}

func NewKeywordIndex() (*KeywordIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &KeywordIndex{idx: idx}, nil
}

// Index adds or replaces a product document.
func (k *KeywordIndex) Index(p models.Product) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.idx.Index(p.ID, productDoc{
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
	})
}

// Remove drops a product from the index.
func (k *KeywordIndex) Remove(id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.idx.Delete(id)
}

// Search returns up to limit product ids ranked by keyword relevance.
func (k *KeywordIndex) Search(query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 8
	}
	k.mu.RLock()
	defer k.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
	res, err := k.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
