package answer

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"ragchat/internal/access"
	"ragchat/internal/domain"
)

type fakeGenerator struct {
	text   string
	err    error
	calls  int
	prompt domain.Prompt
}

func (f *fakeGenerator) Generate(_ context.Context, p domain.Prompt) (string, error) {
	f.calls++
	f.prompt = p
	return f.text, f.err
}

func candidate(id, link string, score float64) domain.Candidate {
	return domain.Candidate{
		FragmentID:   id,
		DocumentID:   "doc-" + id,
		DocumentName: "Doc " + id,
		ContentType:  domain.ContentText,
		SourceLink:   link,
		Score:        score,
		Body:         "body " + id,
	}
}

func TestCompose_ZeroCandidatesShortCircuits(t *testing.T) {
	gen := &fakeGenerator{text: "should not be used"}
	c := New(gen)

	res, err := c.Compose(context.Background(), Request{
		Question: "what is caching?",
		Intent:   domain.IntentInformational,
	})
	require.NoError(t, err)
	require.Equal(t, NoRelevantInfo, res.Answer)
	require.Empty(t, res.Citations)
	require.Zero(t, gen.calls, "generator must not be invoked without candidates")
}

func TestCompose_SmallTalkNeverCarriesCitations(t *testing.T) {
	gen := &fakeGenerator{text: "Halo! Ada yang bisa saya bantu?"}
	c := New(gen)

	res, err := c.Compose(context.Background(), Request{
		Question:         "halo",
		Candidates:       []domain.Candidate{candidate("a", "https://x/a", 0.9)},
		Intent:           domain.IntentSmallTalk,
		RequestedSources: true,
	})
	require.NoError(t, err)
	require.Empty(t, res.Citations)
	require.NotContains(t, res.Answer, CitationHeader)
}

func TestCompose_SourceRequestForcesCitations(t *testing.T) {
	gen := &fakeGenerator{text: "Caching stores results for reuse."}
	c := New(gen)

	res, err := c.Compose(context.Background(), Request{
		Question: "what is caching? give me the source",
		Candidates: []domain.Candidate{
			candidate("a", "https://x/a", 0.9),
			candidate("b", "https://x/b", 0.8),
		},
		Intent:           domain.IntentSourceRequest,
		RequestedSources: false,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://x/a", "https://x/b"}, res.Citations)
	require.True(t, strings.HasSuffix(res.Answer, CitationHeader+"\n- https://x/a\n- https://x/b"))
}

func TestCompose_CitationsDeduplicatedFirstSeen(t *testing.T) {
	gen := &fakeGenerator{text: "answer"}
	c := New(gen)

	res, err := c.Compose(context.Background(), Request{
		Question: "q",
		Candidates: []domain.Candidate{
			candidate("a", "https://x/shared", 0.9),
			candidate("b", "https://x/b", 0.8),
			candidate("c", "https://x/shared", 0.7),
			candidate("d", "", 0.6),
		},
		Intent:           domain.IntentInformational,
		RequestedSources: true,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://x/shared", "https://x/b"}, res.Citations)
}

func TestCompose_NoCitationsWhenNotRequested(t *testing.T) {
	gen := &fakeGenerator{text: "answer"}
	c := New(gen)

	res, err := c.Compose(context.Background(), Request{
		Question:   "q",
		Candidates: []domain.Candidate{candidate("a", "https://x/a", 0.9)},
		Intent:     domain.IntentInformational,
	})
	require.NoError(t, err)
	require.Empty(t, res.Citations)
	require.Equal(t, "answer", res.Answer)
}

func TestCompose_GenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota")}
	c := New(gen)

	_, err := c.Compose(context.Background(), Request{
		Question:   "q",
		Candidates: []domain.Candidate{candidate("a", "https://x/a", 0.9)},
		Intent:     domain.IntentInformational,
	})
	var gerr *domain.GenerationError
	require.ErrorAs(t, err, &gerr)
}

func TestCompose_PromptGroundsOnCandidatesAndHistory(t *testing.T) {
	gen := &fakeGenerator{text: "answer"}
	c := New(gen)

	history := []domain.Turn{
		{Role: domain.TurnHuman, Content: "earlier question"},
		{Role: domain.TurnAssistant, Content: "earlier answer"},
	}
	_, err := c.Compose(context.Background(), Request{
		Question:   "current question",
		Candidates: []domain.Candidate{candidate("a", "https://x/a", 0.9)},
		History:    history,
		Intent:     domain.IntentInformational,
		Role:       access.RoleStudent,
	})
	require.NoError(t, err)
	require.Contains(t, gen.prompt.System, "Source: Doc a")
	require.Contains(t, gen.prompt.System, "body a")
	require.Len(t, gen.prompt.Messages, 3)
	require.Equal(t, "earlier question", gen.prompt.Messages[0].Content)
	require.Equal(t, "current question", gen.prompt.Messages[2].Content)
	require.Equal(t, domain.TurnHuman, gen.prompt.Messages[2].Role)
}

func TestSplitCitations(t *testing.T) {
	body, links := SplitCitations("the answer\n\nSumber:\n- https://x/a\n- https://x/b")
	require.Equal(t, "the answer", body)
	require.Equal(t, []string{"https://x/a", "https://x/b"}, links)

	body, links = SplitCitations("plain answer")
	require.Equal(t, "plain answer", body)
	require.Nil(t, links)
}
