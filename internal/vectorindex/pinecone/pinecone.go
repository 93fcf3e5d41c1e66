// Package pinecone is a minimal REST client to a Pinecone index.
// It talks directly to the index host (not the control plane).
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/luxelabs/concierge/internal/vectorindex"
)

type Client struct {
	host   string
	apiKey string
	http   *http.Client
}

type Config struct {
	Host    string // e.g. https://products-xxxx.svc.aped-4627-b74a.pinecone.io
	APIKey  string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		host:   strings.TrimRight(cfg.Host, "/"),
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: timeout},
	}
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string               `json:"id"`
		Score    float64              `json:"score"`
		Metadata vectorindex.Metadata `json:"metadata"`
	} `json:"matches"`
}

// Query returns the topK nearest product vectors with metadata,
// similarity-descending as ranked by the index.
func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error) {
	if topK <= 0 {
		topK = 5
	}
	var resp queryResponse
	if err := c.postJSON(ctx, c.host+"/query", queryRequest{
		Vector:          vector,
		TopK:            topK,
		IncludeMetadata: true,
	}, &resp); err != nil {
		return nil, err
	}
	matches := make([]vectorindex.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, vectorindex.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}
	return matches, nil
}

// Upsert writes a single product vector with its metadata.
func (c *Client) Upsert(ctx context.Context, id string, vector []float32, meta vectorindex.Metadata) error {
	body := map[string]any{
		"vectors": []map[string]any{{
			"id":       id,
			"values":   vector,
			"metadata": meta,
		}},
	}
	return c.postJSON(ctx, c.host+"/vectors/upsert", body, nil)
}

// Delete removes a product vector by id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.postJSON(ctx, c.host+"/vectors/delete", map[string]any{"ids": []string{id}}, nil)
}

func (c *Client) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("pinecone POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}
	return nil
}
