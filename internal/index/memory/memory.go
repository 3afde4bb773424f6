// Package memory is a brute-force cosine similarity index for local runs
// and tests. Vectors are assumed L2-normalized.
package memory

import (
	"context"
	"sort"
	"sync"

	"ragchat/internal/domain"
)

// Entry is one indexed fragment vector with its visibility class.
type Entry struct {
	FragmentID string
	Vector     []float64
	Visibility domain.Visibility
}

// Index holds entries in memory and scans them all on every search.
type Index struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewIndex creates an empty in-memory index.
func NewIndex() *Index { return &Index{} }

// Upsert adds entries to the index.
func (x *Index) Upsert(entries ...Entry) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = append(x.entries, entries...)
}

// Search returns up to topK entries passing the visibility predicate,
// best first, scores clamped to [0,1]. Ties keep insertion order.
func (x *Index) Search(_ context.Context, vector []float64, pred domain.Predicate, topK int) ([]domain.Match, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	matches := make([]domain.Match, 0, len(x.entries))
	for _, e := range x.entries {
		if !pred.Allows(e.Visibility) {
			continue
		}
		matches = append(matches, domain.Match{FragmentID: e.FragmentID, Score: clamp01(dot(e.Vector, vector))})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func clamp01(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
