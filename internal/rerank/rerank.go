// Package rerank rescores retrieval candidates against the query text.
// The deep tier feeds its fused top-N through a Reranker for a final
// relevance ordering.
package rerank

import (
	"context"
	"sort"
	"strings"
)

// Candidate is one fused retrieval hit to be rescored.
type Candidate struct {
	NodeID int64
	Text   string
}

// Scored is a candidate with its reranker relevance score.
type Scored struct {
	NodeID int64
	Score  float64
}

// Reranker produces a relevance ordering of candidates for a query.
// Implementations must respect ctx cancellation.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Scored, error)
}

// TermOverlap is a local pointwise reranker scoring candidates by raw
// term overlap with the query. It is deterministic and
// dependency-free, which keeps the deep tier functional when no
// cross-encoder endpoint is configured.
type TermOverlap struct{}

// Rerank scores each candidate by Jaccard overlap between query terms
// and candidate terms, keeping input order among equals.
func (t TermOverlap) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Scored, error) {
	queryTerms := termSet(query)

	scored := make([]Scored, len(candidates))
	order := make(map[int64]int, len(candidates))
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scored[i] = Scored{NodeID: c.NodeID, Score: jaccard(queryTerms, termSet(c.Text))}
		order[c.NodeID] = i
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return order[scored[i].NodeID] < order[scored[j].NodeID]
	})
	return scored, nil
}

func termSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if len(f) > 1 {
			set[f] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if b[t] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
