package domain

import (
	"context"
	"time"
)

// Visibility classifies how widely an indexed fragment may be shown.
type Visibility string

const (
	VisibilityPublic       Visibility = "public"
	VisibilityInternal     Visibility = "internal"
	VisibilityConfidential Visibility = "confidential"
)

// ContentType describes the kind of content a fragment carries.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentTable ContentType = "table"
	ContentImage ContentType = "image"
)

// TurnRole identifies who produced a conversation turn.
type TurnRole string

const (
	TurnHuman     TurnRole = "human"
	TurnAssistant TurnRole = "assistant"
)

// Turn is one message within a session. Immutable once appended.
type Turn struct {
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Intent is the coarse classification of a question governing citation policy.
type Intent string

const (
	IntentSmallTalk     Intent = "small_talk"
	IntentSourceRequest Intent = "source_request"
	IntentInformational Intent = "informational"
)

// Candidate is one retrieved fragment with its similarity score and body.
// Candidates exist only for the duration of a single query.
type Candidate struct {
	FragmentID   string
	DocumentID   string
	DocumentName string
	ContentType  ContentType
	SourceLink   string
	Score        float64
	Body         string
}

// Match is a raw similarity hit returned by a vector index, before the
// fragment body has been fetched.
type Match struct {
	FragmentID string
	Score      float64
}

// Fragment is the stored record behind a fragment identifier.
type Fragment struct {
	Body         string      `json:"body"`
	DocumentID   string      `json:"document_id"`
	DocumentName string      `json:"document_name"`
	ContentType  ContentType `json:"content_type"`
	SourceLink   string      `json:"source_link"`
}

// ScoreStats summarizes similarity scores across a candidate set.
type ScoreStats struct {
	Max float64
	Min float64
	Avg float64
}

// AnswerResult is the final outcome of one question.
type AnswerResult struct {
	Answer     string
	SessionID  string
	Citations  []string
	Candidates int
	Stats      *ScoreStats // nil when no candidates were retrieved
	Intent     Intent
}

// SessionInfo is metadata about a stored session. Reading it never loads
// turn bodies and never alters the session's TTL.
type SessionInfo struct {
	Exists    bool
	TurnCount int
	TTL       time.Duration // zero when the session does not exist
}

// Predicate restricts which visibility classes a similarity search may
// return. It is constructed per request from the caller's role and handed
// unmodified to the vector index; the orchestrator never filters locally.
type Predicate struct {
	all     bool
	classes []Visibility
}

// UnrestrictedPredicate permits every visibility class.
func UnrestrictedPredicate() Predicate { return Predicate{all: true} }

// PredicateOf permits exactly the given visibility classes.
func PredicateOf(classes ...Visibility) Predicate {
	return Predicate{classes: append([]Visibility(nil), classes...)}
}

// Unrestricted reports whether the predicate permits everything, meaning no
// filter should be sent to the index at all.
func (p Predicate) Unrestricted() bool { return p.all }

// Classes returns the permitted visibility classes. Empty for an
// unrestricted predicate.
func (p Predicate) Classes() []Visibility {
	return append([]Visibility(nil), p.classes...)
}

// Allows reports whether a fragment with the given visibility passes.
func (p Predicate) Allows(v Visibility) bool {
	if p.all {
		return true
	}
	for _, c := range p.classes {
		if c == v {
			return true
		}
	}
	return false
}

// Prompt is the assembled input for one generation call.
type Prompt struct {
	System   string
	Messages []Turn // trailing history plus the current question, oldest first
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// VectorIndex performs similarity search over indexed fragments. Scores are
// normalized to [0,1] and returned in descending order.
type VectorIndex interface {
	Search(ctx context.Context, vector []float64, pred Predicate, topK int) ([]Match, error)
}

// FragmentStore resolves fragment identifiers to their stored records.
// A missing fragment returns ok=false, not an error.
type FragmentStore interface {
	GetFragment(ctx context.Context, fragmentID string) (Fragment, bool, error)
}

// Generator produces an answer text from an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// HistoryStore keeps the bounded, TTL-expiring message log per session.
// Operations on the same session are linearizable; operations on different
// sessions do not contend.
type HistoryStore interface {
	// Load returns the session's turns oldest first, or an empty slice if
	// the session is absent or expired. Loading never refreshes the TTL.
	Load(ctx context.Context, sessionID string) ([]Turn, error)

	// Append adds turns at the tail, evicts from the head down to the
	// configured window, and refreshes the TTL to the full window from now.
	Append(ctx context.Context, sessionID string, turns ...Turn) error

	// Info returns session metadata without loading turn bodies.
	Info(ctx context.Context, sessionID string) (SessionInfo, error)

	// Clear removes a session and reports whether it existed.
	Clear(ctx context.Context, sessionID string) (bool, error)

	// ListSessions returns stored session identifiers, sorted. A limit of
	// zero or less means no limit.
	ListSessions(ctx context.Context, limit int) ([]string, error)
}
