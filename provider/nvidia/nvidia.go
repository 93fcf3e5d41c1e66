// Package nvidia implements provider.Embedder against NVIDIA's retrieval
// embedding API (nv-embedqa models, asymmetric passage/query modes).
package nvidia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/luxelabs/concierge/provider"
)

// Dimension of vectors produced by nv-embedqa-e5-v5.
const Dimension = 1024

const defaultModel = "nvidia/nv-embedqa-e5-v5"

// Client talks to the NVIDIA embeddings endpoint.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	dims    int // expected vector length, 0 = unchecked
	http    *http.Client
}

// NewClient creates an embedding client. baseURL and model default to
// the public nv-embedqa-e5-v5 deployment.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://integrate.api.nvidia.com/v1"
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dims := 0
	if model == defaultModel {
		dims = Dimension
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		dims:    dims,
		http:    &http.Client{Timeout: timeout},
	}
}

type embedRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	InputType      string   `json:"input_type"`
	EncodingFormat string   `json:"encoding_format"`
	Truncate       string   `json:"truncate"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed converts text into a vector. mode selects the asymmetric input
// type: passage for content to index, query for search queries.
func (c *Client) Embed(ctx context.Context, text string, mode provider.EmbedMode) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, provider.ErrEmptyInput
	}

	body, err := json.Marshal(embedRequest{
		Input:          []string{text},
		Model:          c.model,
		InputType:      string(mode),
		EncodingFormat: "float",
		Truncate:       "END",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/embeddings", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nvidia status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	// catch a truncated or wrong-model response before it reaches the index
	if c.dims > 0 && len(out.Data[0].Embedding) != c.dims {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(out.Data[0].Embedding), c.dims)
	}
	return out.Data[0].Embedding, nil
}
