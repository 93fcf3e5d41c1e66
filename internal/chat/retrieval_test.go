package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/luxelabs/concierge/internal/search"
	"github.com/luxelabs/concierge/internal/vectorindex"
	"github.com/luxelabs/concierge/models"
	"github.com/luxelabs/concierge/provider"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	mode   provider.EmbedMode
}

func (f *fakeEmbedder) Embed(_ context.Context, text string, mode provider.EmbedMode) ([]float32, error) {
	f.mode = mode
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type fakeIndex struct {
	matches []vectorindex.Match
	err     error
	queries int
}

func (f *fakeIndex) Query(_ context.Context, vector []float32, topK int) ([]vectorindex.Match, error) {
	f.queries++
	return f.matches, f.err
}

func (f *fakeIndex) Upsert(_ context.Context, id string, vector []float32, meta vectorindex.Metadata) error {
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, id string) error { return nil }

type fakeCatalog struct {
	products map[string]models.Product
	err      error
}

func (f *fakeCatalog) GetByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) ListAll(_ context.Context) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, f.err
}

func (f *fakeCatalog) Upsert(_ context.Context, p models.Product) (models.Product, error) {
	return p, nil
}

func (f *fakeCatalog) Delete(_ context.Context, id string) error { return nil }

func testProducts() map[string]models.Product {
	return map[string]models.Product{
		"p1": {ID: "p1", Name: "Wireless Earbuds", Category: "electronics", Price: 89},
		"p2": {ID: "p2", Name: "Smart Watch", Category: "electronics", Price: 199},
		"p3": {ID: "p3", Name: "Leather Belt", Category: "accessories", Price: 45},
	}
}

func matchesFor(ids ...string) []vectorindex.Match {
	out := make([]vectorindex.Match, 0, len(ids))
	for _, id := range ids {
		out = append(out, vectorindex.Match{ID: id, Score: 0.9, Metadata: vectorindex.Metadata{ProductID: id}})
	}
	return out
}

func TestRetrieveBudgetExcludingAllIsIgnored(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{0.1}}
	idx := &fakeIndex{matches: matchesFor("p1", "p2")}
	cat := &fakeCatalog{products: testProducts()}
	r := NewRetriever(emb, idx, cat, nil, discardLogger())

	products, matched, err := r.Retrieve(context.Background(), "electronics under $10", 10, "", 8)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !matched {
		t.Fatal("expected matched")
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2 (budget ignored when it empties the set)", len(products))
	}
}

func TestRetrieveBudgetAppliedWhenSatisfiable(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{0.1}}
	idx := &fakeIndex{matches: matchesFor("p1", "p2")}
	cat := &fakeCatalog{products: testProducts()}
	r := NewRetriever(emb, idx, cat, nil, discardLogger())

	products, _, err := r.Retrieve(context.Background(), "earbuds", 100, "", 8)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(products) != 1 || products[0].ID != "p1" {
		t.Fatalf("got %+v, want only p1", products)
	}
}

func TestRetrieveCategoryFilterCaseInsensitive(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{0.1}}
	idx := &fakeIndex{matches: matchesFor("p1", "p3")}
	cat := &fakeCatalog{products: testProducts()}
	r := NewRetriever(emb, idx, cat, nil, discardLogger())

	products, _, err := r.Retrieve(context.Background(), "something nice", 0, "Accessories", 8)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(products) != 1 || products[0].ID != "p3" {
		t.Fatalf("got %+v, want only p3", products)
	}
}

func TestRetrieveEmptyVectorResultIsNotAnError(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{0.1}}
	idx := &fakeIndex{}
	cat := &fakeCatalog{products: testProducts()}
	keyword := mustKeywordIndex(t)
	r := NewRetriever(emb, idx, cat, keyword, discardLogger())

	products, matched, err := r.Retrieve(context.Background(), "submarine", 0, "", 8)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if matched || products != nil {
		t.Fatalf("expected empty non-matched result, got matched=%v products=%v", matched, products)
	}
}

func TestRetrieveFallsBackToKeywordOnProviderFailure(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("embedding provider down")}
	idx := &fakeIndex{}
	cat := &fakeCatalog{products: testProducts()}
	keyword := mustKeywordIndex(t)
	for _, p := range testProducts() {
		if err := keyword.Index(p); err != nil {
			t.Fatalf("seed keyword index: %v", err)
		}
	}
	r := NewRetriever(emb, idx, cat, keyword, discardLogger())

	products, matched, err := r.Retrieve(context.Background(), "watch", 0, "", 8)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !matched || len(products) == 0 {
		t.Fatal("expected keyword fallback to produce candidates")
	}
	for _, p := range products {
		if p.ID == "" {
			t.Fatal("fallback returned unresolved product")
		}
	}
}

func TestRetrieveNoFallbackConfigured(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("embedding provider down")}
	r := NewRetriever(emb, &fakeIndex{}, &fakeCatalog{products: testProducts()}, nil, discardLogger())

	_, _, err := r.Retrieve(context.Background(), "watch", 0, "", 8)
	if err == nil {
		t.Fatal("expected error when semantic retrieval fails with no fallback")
	}
}

func TestRetrieveQueryModeEmbedding(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{0.1}}
	idx := &fakeIndex{matches: matchesFor("p1")}
	cat := &fakeCatalog{products: testProducts()}
	r := NewRetriever(emb, idx, cat, nil, discardLogger())

	if _, _, err := r.Retrieve(context.Background(), "earbuds", 0, "", 8); err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if emb.mode != provider.EmbedQuery {
		t.Fatalf("embed mode = %s, want query", emb.mode)
	}
}

func mustKeywordIndex(t *testing.T) *search.KeywordIndex {
	t.Helper()
	idx, err := search.NewKeywordIndex()
	if err != nil {
		t.Fatalf("NewKeywordIndex: %v", err)
	}
	return idx
}
