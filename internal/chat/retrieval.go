package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/luxelabs/concierge/internal/search"
	"github.com/luxelabs/concierge/internal/store"
	"github.com/luxelabs/concierge/internal/telemetry"
	"github.com/luxelabs/concierge/internal/vectorindex"
	"github.com/luxelabs/concierge/models"
	"github.com/luxelabs/concierge/provider"
)

// Retriever turns a natural-language query into a ranked,
// constraint-filtered candidate product set.
type Retriever struct {
	embedder provider.Embedder
	index    vectorindex.Index
	catalog  store.Catalog
	keyword  *search.KeywordIndex // optional degraded-mode fallback
	logger   *log.Logger
}

func NewRetriever(embedder provider.Embedder, index vectorindex.Index, catalog store.Catalog, keyword *search.KeywordIndex, logger *log.Logger) *Retriever {
	return &Retriever{embedder: embedder, index: index, catalog: catalog, keyword: keyword, logger: logger}
}

// Retrieve embeds the query, fetches the top-k nearest products, resolves
// them against the catalog, and applies the budget and category filters.
// Either filter is ignored when it would empty the set: an over-eager
// constraint must never turn a successful semantic match into a dead end.
// matched reports whether the search itself found anything; matched with
// an empty product slice means hits that no longer resolve in the catalog.
func (r *Retriever) Retrieve(ctx context.Context, query string, budget float64, category string, k int) (products []models.Product, matched bool, err error) {
	ids, err := r.semanticIDs(ctx, query, k)
	if err != nil {
		r.logger.Printf("semantic retrieval failed, trying keyword fallback: %v", err)
		ids, err = r.keywordIDs(query, k)
		if err != nil {
			return nil, false, err
		}
	}
	if len(ids) == 0 {
		return nil, false, nil
	}

	products, err = r.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, true, fmt.Errorf("resolve candidates: %w", err)
	}

	if budget > 0 {
		filtered := make([]models.Product, 0, len(products))
		for _, p := range products {
			if p.Price <= budget {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) > 0 {
			products = filtered
		}
	}

	if category != "" {
		filtered := make([]models.Product, 0, len(products))
		for _, p := range products {
			if strings.EqualFold(p.Category, category) {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) > 0 {
			products = filtered
		}
	}

	return products, true, nil
}

func (r *Retriever) semanticIDs(ctx context.Context, query string, k int) ([]string, error) {
	vector, err := r.embedder.Embed(ctx, query, provider.EmbedQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := r.index.Query(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m.Metadata.ProductID
		if id == "" {
			id = m.ID
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// keywordIDs serves retrieval from the in-process keyword index when the
// semantic providers are down. Only reached on provider failure, never
// on an empty semantic result.
func (r *Retriever) keywordIDs(query string, k int) ([]string, error) {
	if r.keyword == nil {
		return nil, fmt.Errorf("semantic retrieval unavailable and no keyword fallback configured")
	}
	telemetry.RetrievalFallbacks.Inc()
	ids, err := r.keyword.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("keyword fallback: %w", err)
	}
	return ids, nil
}
