// Package retrieval turns a question into a ranked, scored candidate set:
// embed the question, run the scoped similarity search, hydrate fragment
// bodies, and sort.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ragchat/internal/domain"
)

// Bounds on how many fragments one query may request.
const (
	MinTopK = 1
	MaxTopK = 20
)

// How many fragment bodies are fetched concurrently per query.
const fetchConcurrency = 8

// Aggregator coordinates the embedding, index, and fragment collaborators.
type Aggregator struct {
	embedder  domain.Embedder
	index     domain.VectorIndex
	fragments domain.FragmentStore
}

// New creates an aggregator over the given collaborators.
func New(embedder domain.Embedder, index domain.VectorIndex, fragments domain.FragmentStore) *Aggregator {
	return &Aggregator{embedder: embedder, index: index, fragments: fragments}
}

// Retrieve returns candidates ordered by descending score (ties keep index
// order) together with score statistics, nil when nothing was retrieved.
// topK outside [MinTopK, MaxTopK] is rejected; zero candidates is a valid
// outcome, not an error.
func (a *Aggregator) Retrieve(ctx context.Context, question string, pred domain.Predicate, topK int) ([]domain.Candidate, *domain.ScoreStats, error) {
	if topK < MinTopK || topK > MaxTopK {
		return nil, nil, &domain.ValidationError{
			Field:  "top_k",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinTopK, MaxTopK, topK),
		}
	}

	vector, err := a.embedder.Embed(ctx, question)
	if err != nil {
		return nil, nil, &domain.RetrievalError{Stage: domain.StageEmbed, Err: err}
	}

	matches, err := a.index.Search(ctx, vector, pred, topK)
	if err != nil {
		return nil, nil, &domain.RetrievalError{Stage: domain.StageSearch, Err: err}
	}
	if len(matches) == 0 {
		return nil, nil, nil
	}

	// Hydrate bodies concurrently, keeping the index order by slot. A
	// fragment whose backing record has gone missing is dropped with a
	// warning; a store error fails the whole retrieval.
	candidates := make([]domain.Candidate, len(matches))
	found := make([]bool, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, m := range matches {
		i, m := i, m
		g.Go(func() error {
			frag, ok, err := a.fragments.GetFragment(gctx, m.FragmentID)
			if err != nil {
				return err
			}
			if !ok {
				log.Warn().Str("fragment_id", m.FragmentID).Msg("fragment body missing, dropping candidate")
				return nil
			}
			candidates[i] = domain.Candidate{
				FragmentID:   m.FragmentID,
				DocumentID:   frag.DocumentID,
				DocumentName: frag.DocumentName,
				ContentType:  frag.ContentType,
				SourceLink:   frag.SourceLink,
				Score:        m.Score,
				Body:         frag.Body,
			}
			found[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, &domain.RetrievalError{Stage: domain.StageFragments, Err: err}
	}

	out := make([]domain.Candidate, 0, len(candidates))
	for i, c := range candidates {
		if found[i] {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, stats(out), nil
}

func stats(candidates []domain.Candidate) *domain.ScoreStats {
	if len(candidates) == 0 {
		return nil
	}
	st := &domain.ScoreStats{Max: candidates[0].Score, Min: candidates[0].Score}
	sum := 0.0
	for _, c := range candidates {
		if c.Score > st.Max {
			st.Max = c.Score
		}
		if c.Score < st.Min {
			st.Min = c.Score
		}
		sum += c.Score
	}
	st.Avg = sum / float64(len(candidates))
	return st
}
