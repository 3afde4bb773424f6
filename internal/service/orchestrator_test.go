package service

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"ragchat/internal/answer"
	"ragchat/internal/domain"
	"ragchat/internal/retrieval"
)

type fakeEmbedder struct{ err error }

func (f *fakeEmbedder) Embed(context.Context, string) ([]float64, error) {
	return []float64{1, 0}, f.err
}

type fakeIndex struct {
	matches  []domain.Match
	lastPred domain.Predicate
}

func (f *fakeIndex) Search(_ context.Context, _ []float64, pred domain.Predicate, _ int) ([]domain.Match, error) {
	f.lastPred = pred
	return f.matches, nil
}

type fakeFragments struct{ records map[string]domain.Fragment }

func (f *fakeFragments) GetFragment(_ context.Context, id string) (domain.Fragment, bool, error) {
	frag, ok := f.records[id]
	return frag, ok, nil
}

type fakeGenerator struct {
	text  string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(context.Context, domain.Prompt) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeHistory struct {
	turns     map[string][]domain.Turn
	loadErr   error
	appendErr error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{turns: make(map[string][]domain.Turn)}
}

func (f *fakeHistory) Load(_ context.Context, id string) ([]domain.Turn, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.turns[id], nil
}

func (f *fakeHistory) Append(_ context.Context, id string, turns ...domain.Turn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns[id] = append(f.turns[id], turns...)
	return nil
}

func (f *fakeHistory) Info(_ context.Context, id string) (domain.SessionInfo, error) {
	t, ok := f.turns[id]
	return domain.SessionInfo{Exists: ok, TurnCount: len(t)}, nil
}

func (f *fakeHistory) Clear(_ context.Context, id string) (bool, error) {
	_, ok := f.turns[id]
	delete(f.turns, id)
	return ok, nil
}

func (f *fakeHistory) ListSessions(context.Context, int) ([]string, error) { return nil, nil }

type fixture struct {
	orch    *Orchestrator
	history *fakeHistory
	index   *fakeIndex
	gen     *fakeGenerator
}

func newFixture(matches []domain.Match, records map[string]domain.Fragment) *fixture {
	history := newFakeHistory()
	index := &fakeIndex{matches: matches}
	gen := &fakeGenerator{text: "generated answer"}
	agg := retrieval.New(&fakeEmbedder{}, index, &fakeFragments{records: records})
	return &fixture{
		orch:    New(history, agg, answer.New(gen), 4),
		history: history,
		index:   index,
		gen:     gen,
	}
}

func oneCandidate() ([]domain.Match, map[string]domain.Fragment) {
	return []domain.Match{{FragmentID: "a", Score: 0.9}},
		map[string]domain.Fragment{"a": {
			Body:         "caching stores results",
			DocumentID:   "doc-a",
			DocumentName: "Caching Guide",
			ContentType:  domain.ContentText,
			SourceLink:   "https://x/a",
		}}
}

func TestAnswer_GeneratesSessionID(t *testing.T) {
	f := newFixture(oneCandidate())
	res, err := f.orch.Answer(context.Background(), Request{Question: "what is caching"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(res.SessionID, "anon_"))
	require.Len(t, f.history.turns[res.SessionID], 2)
}

func TestAnswer_AppendsExchangeInOrder(t *testing.T) {
	f := newFixture(oneCandidate())
	_, err := f.orch.Answer(context.Background(), Request{Question: "what is caching", SessionID: "s1"})
	require.NoError(t, err)

	turns := f.history.turns["s1"]
	require.Len(t, turns, 2)
	require.Equal(t, domain.TurnHuman, turns[0].Role)
	require.Equal(t, "what is caching", turns[0].Content)
	require.Equal(t, domain.TurnAssistant, turns[1].Role)
}

func TestAnswer_EmptyQuestionRejected(t *testing.T) {
	f := newFixture(oneCandidate())
	_, err := f.orch.Answer(context.Background(), Request{Question: "   "})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Zero(t, f.gen.calls)
}

func TestAnswer_RoleScopesRetrieval(t *testing.T) {
	f := newFixture(oneCandidate())

	_, err := f.orch.Answer(context.Background(), Request{Question: "q", Role: "student"})
	require.NoError(t, err)
	require.False(t, f.index.lastPred.Allows(domain.VisibilityConfidential))

	_, err = f.orch.Answer(context.Background(), Request{Question: "q", Role: "admin"})
	require.NoError(t, err)
	require.True(t, f.index.lastPred.Unrestricted())
}

func TestAnswer_ZeroCandidatesSkipsGeneration(t *testing.T) {
	f := newFixture(nil, nil)
	res, err := f.orch.Answer(context.Background(), Request{Question: "unknown topic", SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, answer.NoRelevantInfo, res.Answer)
	require.Zero(t, f.gen.calls)
	require.Nil(t, res.Stats)
	// The exchange is still recorded.
	require.Len(t, f.history.turns["s1"], 2)
}

func TestAnswer_SmallTalkHasNoTrailer(t *testing.T) {
	f := newFixture(oneCandidate())
	res, err := f.orch.Answer(context.Background(), Request{
		Question:       "halo",
		IncludeSources: true,
	})
	require.NoError(t, err)
	require.Equal(t, domain.IntentSmallTalk, res.Intent)
	require.Empty(t, res.Citations)
	require.NotContains(t, res.Answer, answer.CitationHeader)
}

func TestAnswer_SourceKeywordForcesCitations(t *testing.T) {
	f := newFixture(oneCandidate())
	res, err := f.orch.Answer(context.Background(), Request{
		Question:       "what is caching? give me the source",
		IncludeSources: false,
	})
	require.NoError(t, err)
	require.Equal(t, domain.IntentSourceRequest, res.Intent)
	require.Equal(t, []string{"https://x/a"}, res.Citations)
}

func TestAnswer_StatsAttached(t *testing.T) {
	f := newFixture(oneCandidate())
	res, err := f.orch.Answer(context.Background(), Request{Question: "what is caching"})
	require.NoError(t, err)
	require.NotNil(t, res.Stats)
	require.InDelta(t, 0.9, res.Stats.Max, 1e-9)
	require.Equal(t, 1, res.Candidates)
}

func TestAnswer_HistoryLoadFailureIsTolerated(t *testing.T) {
	f := newFixture(oneCandidate())
	f.history.loadErr = &domain.HistoryError{Op: "load", Err: errors.New("redis down")}
	res, err := f.orch.Answer(context.Background(), Request{Question: "what is caching"})
	require.NoError(t, err)
	require.Equal(t, "generated answer", res.Answer)
}

func TestAnswer_AppendFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(oneCandidate())
	f.history.appendErr = &domain.HistoryError{Op: "append", Err: errors.New("redis down")}
	res, err := f.orch.Answer(context.Background(), Request{Question: "what is caching"})
	require.NoError(t, err)
	require.Equal(t, "generated answer", res.Answer)
}

func TestAnswer_GenerationFailureSkipsAppend(t *testing.T) {
	f := newFixture(oneCandidate())
	f.gen.err = errors.New("quota")
	_, err := f.orch.Answer(context.Background(), Request{Question: "what is caching", SessionID: "s1"})
	var gerr *domain.GenerationError
	require.ErrorAs(t, err, &gerr)
	require.Empty(t, f.history.turns["s1"])
}

func TestAnswer_TopKOutOfRangeRejected(t *testing.T) {
	f := newFixture(oneCandidate())
	_, err := f.orch.Answer(context.Background(), Request{Question: "q", TopK: 50})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSessionManagement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(oneCandidate())

	_, err := f.orch.Answer(ctx, Request{Question: "what is caching", SessionID: "s1"})
	require.NoError(t, err)

	turns, err := f.orch.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)

	info, err := f.orch.SessionInfo(ctx, "s1")
	require.NoError(t, err)
	require.True(t, info.Exists)
	require.Equal(t, 2, info.TurnCount)

	removed, err := f.orch.ClearHistory(ctx, "s1")
	require.NoError(t, err)
	require.True(t, removed)

	info, err = f.orch.SessionInfo(ctx, "s1")
	require.NoError(t, err)
	require.False(t, info.Exists)
}
