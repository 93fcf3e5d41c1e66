package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/luxelabs/concierge/provider"
)

// fakeCompleter scripts the three completion capabilities. JSON calls
// are routed by system prompt so one fake can serve the whole pipeline.
type fakeCompleter struct {
	intentJSON string
	intentErr  error

	extractJSON    string
	extractErr     error
	extractJSONSeq []string // per-model responses; "" means error
	extractCalls   int

	streamScript []streamAttempt
	streamCalls  int

	lastJSONMsgs   []provider.Message
	lastStreamMsgs []provider.Message
}

type streamAttempt struct {
	deltas   []string
	err      error
	errAfter bool // fail after emitting deltas
}

func (f *fakeCompleter) Complete(ctx context.Context, model, system string, msgs []provider.Message, opts provider.Options) (string, error) {
	return "", errors.New("not scripted")
}

func (f *fakeCompleter) CompleteJSON(ctx context.Context, model, system string, msgs []provider.Message, opts provider.Options) (string, error) {
	f.lastJSONMsgs = msgs
	if system == intentSystemPrompt {
		return f.intentJSON, f.intentErr
	}
	if len(f.extractJSONSeq) > 0 {
		i := f.extractCalls
		f.extractCalls++
		if i >= len(f.extractJSONSeq) || f.extractJSONSeq[i] == "" {
			return "", errors.New("extract backend down")
		}
		return f.extractJSONSeq[i], nil
	}
	f.extractCalls++
	return f.extractJSON, f.extractErr
}

func (f *fakeCompleter) StreamChat(ctx context.Context, model, system string, msgs []provider.Message, opts provider.Options, onDelta func(string)) (string, error) {
	f.lastStreamMsgs = msgs
	i := f.streamCalls
	f.streamCalls++
	if i >= len(f.streamScript) {
		return "", errors.New("no stream scripted")
	}
	attempt := f.streamScript[i]
	if attempt.err != nil && !attempt.errAfter {
		return "", attempt.err
	}
	var full string
	for _, d := range attempt.deltas {
		full += d
		onDelta(d)
	}
	if attempt.err != nil {
		return "", attempt.err
	}
	return full, nil
}

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestClassifyParsesIntent(t *testing.T) {
	llm := &fakeCompleter{intentJSON: `{"intent":"price_filter","corrected_query":"headphones under $50","budget":50,"category":"electronics"}`}
	cl := NewClassifier(llm, "test-model", discardLogger())

	res := cl.Classify(context.Background(), "hedphones under $50")
	if res.Intent != "price_filter" {
		t.Fatalf("intent = %s, want price_filter", res.Intent)
	}
	if res.CorrectedQuery != "headphones under $50" {
		t.Fatalf("corrected query = %q", res.CorrectedQuery)
	}
	if res.Budget != 50 {
		t.Fatalf("budget = %g, want 50", res.Budget)
	}
	if res.Category != "electronics" {
		t.Fatalf("category = %q", res.Category)
	}
}

func TestClassifyProviderFailureFailsClosed(t *testing.T) {
	llm := &fakeCompleter{intentErr: errors.New("provider down")}
	cl := NewClassifier(llm, "test-model", discardLogger())

	res := cl.Classify(context.Background(), "running shoes")
	if res.Intent != "product_search" {
		t.Fatalf("intent = %s, want product_search default", res.Intent)
	}
	if res.CorrectedQuery != "running shoes" {
		t.Fatalf("corrected query = %q, want original message", res.CorrectedQuery)
	}
	if res.Budget != 0 || res.Category != "" {
		t.Fatalf("expected empty constraints, got budget=%g category=%q", res.Budget, res.Category)
	}
}

func TestClassifyMalformedJSONFailsClosed(t *testing.T) {
	llm := &fakeCompleter{intentJSON: `not json at all`}
	cl := NewClassifier(llm, "test-model", discardLogger())

	res := cl.Classify(context.Background(), "a nice watch")
	if res.Intent != "product_search" || res.CorrectedQuery != "a nice watch" {
		t.Fatalf("unexpected fallback result: %+v", res)
	}
}

func TestClassifyUnknownIntentFailsClosed(t *testing.T) {
	llm := &fakeCompleter{intentJSON: `{"intent":"purchase_now","corrected_query":"gold ring"}`}
	cl := NewClassifier(llm, "test-model", discardLogger())

	res := cl.Classify(context.Background(), "gold ring")
	if res.Intent != "product_search" {
		t.Fatalf("intent = %s, want product_search for unknown enum", res.Intent)
	}
	if res.CorrectedQuery != "gold ring" {
		t.Fatalf("corrected query = %q", res.CorrectedQuery)
	}
}
