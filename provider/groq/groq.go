// Package groq implements provider.Completer against Groq's
// OpenAI-compatible chat completions API.
package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/luxelabs/concierge/provider"
)

// Client talks to the Groq chat completions endpoint.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Groq client. baseURL defaults to the public API.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// streamChunk is one decoded SSE data frame from a streaming completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *Client) messages(system string, msgs []provider.Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, chatMessage{Role: "system", Content: system})
	}
	for _, m := range msgs {
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// Complete returns the full completion text for the given messages.
func (c *Client) Complete(ctx context.Context, model, system string, msgs []provider.Message, opts provider.Options) (string, error) {
	return c.complete(ctx, chatRequest{
		Model:       model,
		Messages:    c.messages(system, msgs),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
}

// CompleteJSON requests a JSON-object-constrained completion.
func (c *Client) CompleteJSON(ctx context.Context, model, system string, msgs []provider.Message, opts provider.Options) (string, error) {
	return c.complete(ctx, chatRequest{
		Model:          model,
		Messages:       c.messages(system, msgs),
		Temperature:    opts.Temperature,
		MaxTokens:      opts.MaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
}

func (c *Client) complete(ctx context.Context, reqBody chatRequest) (string, error) {
	resp, err := c.post(ctx, reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return out.Choices[0].Message.Content, nil
}

// StreamChat streams the completion, invoking onDelta for every fragment
// in arrival order, and returns the accumulated text. The stream is
// decoded from OpenAI-style SSE frames ("data: {...}" lines, terminated
// by "data: [DONE]").
func (c *Client) StreamChat(ctx context.Context, model, system string, msgs []provider.Message, opts provider.Options, onDelta func(string)) (string, error) {
	reqBody := chatRequest{
		Model:       model,
		Messages:    c.messages(system, msgs),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}
	resp, err := c.post(ctx, reqBody)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return "", fmt.Errorf("decode stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return full.String(), nil
}

func (c *Client) post(ctx context.Context, reqBody chatRequest) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("groq status %d", resp.StatusCode)
	}
	return resp, nil
}
