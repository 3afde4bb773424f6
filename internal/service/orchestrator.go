// Package service coordinates one question end to end: resolve the access
// scope, load history, retrieve, classify intent, compose the answer, and
// persist the exchange.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ragchat/internal/access"
	"ragchat/internal/answer"
	"ragchat/internal/domain"
	"ragchat/internal/intent"
	"ragchat/internal/retrieval"
)

const (
	defaultTopK         = 4
	appendWriteDeadline = 5 * time.Second
)

// Request is one question against the corpus.
type Request struct {
	Question       string
	SessionID      string // generated when empty
	Role           string // parsed leniently; unknown roles get the most restrictive scope
	IncludeSources bool
	TopK           int // 0 means the configured default
}

// Orchestrator wires the history store, retrieval aggregator, and answer
// composer into the public answering surface.
type Orchestrator struct {
	history  domain.HistoryStore
	retrieve *retrieval.Aggregator
	compose  *answer.Composer
	topK     int
}

// New creates an orchestrator. topK is the default candidate count used
// when a request does not specify one.
func New(history domain.HistoryStore, aggregator *retrieval.Aggregator, composer *answer.Composer, topK int) *Orchestrator {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Orchestrator{history: history, retrieve: aggregator, compose: composer, topK: topK}
}

// Answer runs the full pipeline for one question. Retrieval and generation
// failures surface as typed errors; history failures are logged and never
// block answer delivery.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (domain.AnswerResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return domain.AnswerResult{}, &domain.ValidationError{Field: "question", Reason: "must not be empty"}
	}
	topK := req.TopK
	if topK == 0 {
		topK = o.topK
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "anon_" + uuid.NewString()
	}

	role := access.ParseRole(req.Role)
	pred := access.Resolve(role)
	log.Debug().Str("session_id", sessionID).Str("role", string(role)).Msg("resolved access scope")

	history, err := o.history.Load(ctx, sessionID)
	if err != nil {
		// The original question is worth more than one lost read.
		log.Warn().Err(err).Str("session_id", sessionID).Msg("history load failed, continuing without history")
		history = nil
	}

	candidates, stats, err := o.retrieve.Retrieve(ctx, question, pred, topK)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	label := intent.Classify(question)

	result, err := o.compose.Compose(ctx, answer.Request{
		Question:         question,
		Candidates:       candidates,
		History:          history,
		Intent:           label,
		RequestedSources: req.IncludeSources,
		Role:             role,
	})
	if err != nil {
		return domain.AnswerResult{}, err
	}
	result.SessionID = sessionID
	result.Stats = stats

	o.appendExchange(ctx, sessionID, question, result.Answer)

	log.Info().
		Str("session_id", sessionID).
		Str("intent", string(label)).
		Int("candidates", result.Candidates).
		Int("citations", len(result.Citations)).
		Msg("answered question")
	return result, nil
}

// appendExchange persists the new turn pair best-effort. The answer is
// already composed at this point, so a failed or cancelled write must not
// fail the request; the write gets its own deadline detached from the
// caller's cancellation.
func (o *Orchestrator) appendExchange(ctx context.Context, sessionID, question, answerText string) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendWriteDeadline)
	defer cancel()
	now := time.Now().UTC()
	err := o.history.Append(actx, sessionID,
		domain.Turn{Role: domain.TurnHuman, Content: question, Timestamp: now},
		domain.Turn{Role: domain.TurnAssistant, Content: answerText, Timestamp: now},
	)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("history append failed, answer delivered anyway")
	}
}

// GetHistory returns the session's turns, oldest first.
func (o *Orchestrator) GetHistory(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	return o.history.Load(ctx, sessionID)
}

// SessionInfo returns session metadata without touching its TTL.
func (o *Orchestrator) SessionInfo(ctx context.Context, sessionID string) (domain.SessionInfo, error) {
	return o.history.Info(ctx, sessionID)
}

// ClearHistory removes a session and reports whether it existed.
func (o *Orchestrator) ClearHistory(ctx context.Context, sessionID string) (bool, error) {
	return o.history.Clear(ctx, sessionID)
}

// ListSessions returns stored session identifiers.
func (o *Orchestrator) ListSessions(ctx context.Context, limit int) ([]string, error) {
	return o.history.ListSessions(ctx, limit)
}
