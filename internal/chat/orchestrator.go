package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/luxelabs/concierge/internal/session"
	"github.com/luxelabs/concierge/internal/telemetry"
	"github.com/luxelabs/concierge/models"
)

// ErrInvalidRequest rejects an exchange before any streaming starts.
var ErrInvalidRequest = errors.New("message and sessionId are required")

// Orchestrator sequences one exchange: classify, retrieve, generate,
// extract, persist. Exchanges within a session are serialized; separate
// sessions run concurrently.
type Orchestrator struct {
	classifier *Classifier
	retriever  *Retriever
	generator  *Generator
	extractor  *Extractor
	sessions   session.Store
	topK       int
	logger     *log.Logger

	flightsMu sync.Mutex
	flights   map[string]*flight // session id -> in-use lock, evicted when idle
}

// flight serializes exchanges within one session. refs counts lockers
// (holder plus waiters) so the entry can be dropped once nobody needs it.
type flight struct {
	mu   sync.Mutex
	refs int
}

func NewOrchestrator(classifier *Classifier, retriever *Retriever, generator *Generator, extractor *Extractor, sessions session.Store, topK int, logger *log.Logger) *Orchestrator {
	if topK <= 0 {
		topK = 8
	}
	return &Orchestrator{
		classifier: classifier,
		retriever:  retriever,
		generator:  generator,
		extractor:  extractor,
		sessions:   sessions,
		topK:       topK,
		logger:     logger,
		flights:    make(map[string]*flight),
	}
}

// HandleMessage runs a single exchange, emitting stream events on sink.
// A non-nil return means nothing was streamed and the caller should
// reply with a plain HTTP error; once any event has been emitted all
// failures surface as a terminal error event instead.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, message string, sink Sink) error {
	message = strings.TrimSpace(message)
	if message == "" || strings.TrimSpace(sessionID) == "" {
		return ErrInvalidRequest
	}

	unlock := o.lockSession(sessionID)
	defer unlock()

	start := time.Now()
	defer func() { telemetry.ExchangeDuration.Observe(time.Since(start).Seconds()) }()

	intent := o.classifier.Classify(ctx, message)
	o.logger.Printf("intent=%s corrected=%q budget=%g category=%q", intent.Intent, intent.CorrectedQuery, intent.Budget, intent.Category)

	if intent.Intent.ShortCircuits() {
		reply := shortCircuitResponse(intent.Intent)
		o.finishCanned(ctx, sessionID, message, reply, sink)
		telemetry.ExchangesTotal.WithLabelValues(string(intent.Intent), "short_circuit").Inc()
		return nil
	}

	query := intent.CorrectedQuery
	if query == "" {
		query = message
	}

	candidates, matched, err := o.retriever.Retrieve(ctx, query, intent.Budget, intent.Category, o.topK)
	if err != nil {
		telemetry.ExchangesTotal.WithLabelValues(string(intent.Intent), "errored").Inc()
		return fmt.Errorf("retrieval: %w", err)
	}
	if !matched {
		o.finishCanned(ctx, sessionID, message, noMatchesResponse, sink)
		telemetry.ExchangesTotal.WithLabelValues(string(intent.Intent), "no_matches").Inc()
		return nil
	}
	if len(candidates) == 0 {
		o.finishCanned(ctx, sessionID, message, unresolvedMatchesResponse, sink)
		telemetry.ExchangesTotal.WithLabelValues(string(intent.Intent), "no_matches").Inc()
		return nil
	}

	history := o.loadHistory(ctx, sessionID)

	reply, streamed, err := o.generator.Generate(ctx, message, query, candidates, intent.Budget, intent.Category, history, sink.Token)
	if err != nil {
		if !streamed {
			telemetry.ExchangesTotal.WithLabelValues(string(intent.Intent), "errored").Inc()
			return err
		}
		// Tokens already reached the client; the only honest move is a
		// terminal error event. The exchange is not persisted.
		o.logger.Printf("generation failed mid-stream: %v", err)
		if sinkErr := sink.Error(UserSafeErrorMessage); sinkErr != nil {
			o.logger.Printf("error event not delivered: %v", sinkErr)
		}
		telemetry.ExchangesTotal.WithLabelValues(string(intent.Intent), "streamed_error").Inc()
		return nil
	}

	outcome := o.extractor.Extract(ctx, message, reply, candidates, history)
	if err := sink.Done(resolveOutcome(outcome, candidates)); err != nil {
		o.logger.Printf("done event not delivered: %v", err)
	}

	o.persist(ctx, sessionID, message, reply)
	telemetry.ExchangesTotal.WithLabelValues(string(intent.Intent), "complete").Inc()
	return nil
}

// finishCanned emits a single templated token plus an empty done event,
// then persists the turn like any completed exchange.
func (o *Orchestrator) finishCanned(ctx context.Context, sessionID, message, reply string, sink Sink) {
	if err := sink.Token(reply); err != nil {
		o.logger.Printf("token event not delivered: %v", err)
		return
	}
	if err := sink.Done(emptyDone()); err != nil {
		o.logger.Printf("done event not delivered: %v", err)
	}
	o.persist(ctx, sessionID, message, reply)
}

// loadHistory treats a failing session store like an absent session:
// stale personalization is better than a dead turn.
func (o *Orchestrator) loadHistory(ctx context.Context, sessionID string) []models.ConversationTurn {
	history, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		o.logger.Printf("session read failed, continuing with empty history: %v", err)
		return nil
	}
	return history
}

// persist appends exactly one user and one assistant turn. Runs after
// the terminal event, still under the session lock so the next message
// for this session observes the write.
func (o *Orchestrator) persist(ctx context.Context, sessionID, userMessage, assistantMessage string) {
	history := o.loadHistory(ctx, sessionID)
	history = append(history,
		models.ConversationTurn{Role: models.RoleUser, Content: userMessage},
		models.ConversationTurn{Role: models.RoleAssistant, Content: assistantMessage},
	)
	if err := o.sessions.Set(ctx, sessionID, history); err != nil {
		o.logger.Printf("session write failed for %s: %v", sessionID, err)
	}
}

// lockSession blocks until this session's exchange slot is free and
// returns the release func. The flight entry is removed once the last
// locker releases, so idle sessions hold no memory.
func (o *Orchestrator) lockSession(sessionID string) func() {
	o.flightsMu.Lock()
	f := o.flights[sessionID]
	if f == nil {
		f = &flight{}
		o.flights[sessionID] = f
	}
	f.refs++
	o.flightsMu.Unlock()

	f.mu.Lock()
	return func() {
		f.mu.Unlock()
		o.flightsMu.Lock()
		f.refs--
		if f.refs == 0 {
			delete(o.flights, sessionID)
		}
		o.flightsMu.Unlock()
	}
}

// resolveOutcome maps extracted ids back to full product records from
// the candidate set.
func resolveOutcome(outcome models.StructuredOutcome, candidates []models.Product) DonePayload {
	byID := make(map[string]models.Product, len(candidates))
	for _, p := range candidates {
		byID[p.ID] = p
	}
	pick := func(ids []string) []models.Product {
		out := make([]models.Product, 0, len(ids))
		for _, id := range ids {
			if p, ok := byID[id]; ok {
				out = append(out, p)
			}
		}
		return out
	}
	payload := DonePayload{
		Products:        pick(outcome.ProductIDs),
		CartProducts:    pick(outcome.CartProductIDs),
		CompareProducts: pick(outcome.CompareProductIDs),
	}
	if len(payload.CompareProducts) != 2 {
		payload.CompareProducts = []models.Product{}
	}
	return payload
}
