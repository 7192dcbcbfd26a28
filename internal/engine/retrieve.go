package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/oakmoss/lineage/internal/rerank"
	"github.com/oakmoss/lineage/internal/store"
)

// Query is one retrieval request.
type Query struct {
	Text           string
	Tier           string
	AnchorID       int64    // graph-expansion anchor; 0 = none
	Types          []string // restrict hits to these node types
	Tags           []string // require at least one of these tags
	IncludeDeleted bool     // surface soft-deleted and superseded nodes
}

// Hit is one retrieval result with its provenance.
type Hit struct {
	Node        store.Node     `json:"node"`
	Score       float64        `json:"score"`
	Signals     []string       `json:"signals"`
	Ranks       map[string]int `json:"ranks,omitempty"`
	Reranked    bool           `json:"reranked,omitempty"`
	Explanation string         `json:"explanation,omitempty"`
}

// Result is the response of one retrieval call.
type Result struct {
	Hits     []Hit         `json:"results"`
	Tier     string        `json:"tier_used"`
	Degraded bool          `json:"degraded"`
	Elapsed  time.Duration `json:"-"`
}

// branchResult is one branch's output, collected over a buffered channel
// so a branch finishing after the deadline never blocks on send.
type branchResult struct {
	signal string
	hits   []rankedID
	err    error
}

// Retrieve runs the tiered hybrid pipeline: candidate branches fan out
// concurrently under an absolute deadline derived from the tier budget,
// ranked outputs fuse with reciprocal rank fusion, and the deep tier
// rescores the fused head with the configured reranker. A branch that
// misses the deadline is dropped and marks the result degraded rather
// than stalling the call.
func (e *Engine) Retrieve(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()

	spec, err := e.Tiers.Spec(q.Tier)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Text) == "" && q.AnchorID == 0 {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	for _, t := range q.Types {
		if !store.ValidNodeType(t) {
			return nil, fmt.Errorf("%w: unknown node type %q", ErrInvalidQuery, t)
		}
	}

	deadline := start.Add(spec.Budget)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// Over-fetch per branch so post-fusion filtering and reranking have
	// candidates to work with.
	branchLimit := spec.Limit * 10
	if branchLimit < 30 {
		branchLimit = 30
	}
	if spec.RerankDepth > branchLimit {
		branchLimit = spec.RerankDepth
	}

	results := make(chan branchResult, 3)
	launched := 0

	if strings.TrimSpace(q.Text) != "" {
		launched++
		go func() {
			hits, err := e.lexicalBranch(ctx, q.Text, branchLimit)
			results <- branchResult{signal: SignalLexical, hits: hits, err: err}
		}()

		launched++
		go func() {
			hits, err := e.vectorBranch(ctx, q.Text, branchLimit)
			results <- branchResult{signal: SignalVector, hits: hits, err: err}
		}()
	}

	if q.AnchorID != 0 && spec.GraphHops > 0 {
		launched++
		hops := spec.GraphHops
		go func() {
			hits, err := e.graphBranch(ctx, q.AnchorID, hops, branchLimit)
			results <- branchResult{signal: SignalGraph, hits: hits, err: err}
		}()
	}

	// Anchor-only queries need a tier with graph expansion. Without it
	// nothing runs, and an empty result here would be indistinguishable
	// from a successful search with no matches.
	if launched == 0 {
		return nil, fmt.Errorf("%w: tier %q cannot serve an anchor-only query", ErrInvalidQuery, spec.Name)
	}

	branches := make(map[string][]rankedID)
	degraded := false
	failures := 0

collect:
	for i := 0; i < launched; i++ {
		select {
		case r := <-results:
			if r.err != nil {
				log.Printf("retrieve: %s branch: %v", r.signal, r.err)
				degraded = true
				failures++
				continue
			}
			branches[r.signal] = r.hits
		case <-ctx.Done():
			// Remaining branches are late; their sends land in the
			// buffered channel and are discarded when it is collected.
			degraded = true
			failures += launched - i
			break collect
		}
	}
	if launched > 0 && failures == launched {
		return nil, ErrRetrievalUnavailable
	}

	fused := fuseRRF(branches)
	if len(fused) == 0 {
		return &Result{Tier: spec.Name, Degraded: degraded, Elapsed: time.Since(start)}, nil
	}

	ids := make([]int64, len(fused))
	for i, c := range fused {
		ids[i] = c.NodeID
	}
	nodes, err := e.DB.GetNodesByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	byID := make(map[int64]store.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	kept := fused[:0]
	for _, c := range fused {
		node, ok := byID[c.NodeID]
		if !ok || !matchesFilters(node, q) {
			continue
		}
		c.UpdatedAt = node.UpdatedAt
		kept = append(kept, c)
	}
	sortFused(kept)

	if spec.Rerank && len(kept) > 0 {
		kept, degraded = e.applyRerank(ctx, q.Text, kept, byID, spec.RerankDepth, degraded)
	}

	if len(kept) > spec.Limit {
		kept = kept[:spec.Limit]
	}

	hits := make([]Hit, len(kept))
	for i, c := range kept {
		hits[i] = Hit{
			Node:        byID[c.NodeID],
			Score:       c.Score,
			Signals:     c.Signals,
			Ranks:       c.Ranks,
			Reranked:    c.Reranked,
			Explanation: explain(c),
		}
	}

	return &Result{
		Hits:     hits,
		Tier:     spec.Name,
		Degraded: degraded,
		Elapsed:  time.Since(start),
	}, nil
}

// lexicalBranch ranks nodes by BM25 over the inverted index.
func (e *Engine) lexicalBranch(ctx context.Context, text string, limit int) ([]rankedID, error) {
	hits, err := e.DB.SearchLexical(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	out := make([]rankedID, len(hits))
	for i, h := range hits {
		out[i] = rankedID{NodeID: h.NodeID, Score: h.Score}
	}
	return out, nil
}

// vectorBranch embeds the query in the prose lane and ranks nodes by
// their best chunk's cosine similarity.
func (e *Engine) vectorBranch(ctx context.Context, text string, limit int) ([]rankedID, error) {
	emb := e.embedderFor(store.LaneProse)
	if emb == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	qvec, err := emb.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := e.DB.ActiveChunks(ctx)
	if err != nil {
		return nil, err
	}

	best := make(map[int64]float64)
	for _, ch := range chunks {
		sim := CosineSimilarity(qvec, ch.Vector)
		if sim > best[ch.NodeID] {
			best[ch.NodeID] = sim
		}
	}

	out := make([]rankedID, 0, len(best))
	for id, score := range best {
		out = append(out, rankedID{NodeID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// graphBranch expands from the anchor and ranks reached nodes by hop
// distance. Traversal output is already ordered by hop then id.
func (e *Engine) graphBranch(ctx context.Context, anchor int64, hops, limit int) ([]rankedID, error) {
	neighbors, err := e.DB.Neighbors(ctx, anchor, store.NeighborOpts{
		MaxHops:    hops,
		MaxResults: limit,
	})
	if err != nil {
		return nil, err
	}
	out := make([]rankedID, len(neighbors))
	for i, n := range neighbors {
		out[i] = rankedID{NodeID: n.Node.ID, Score: 1.0 / float64(1+n.HopDistance)}
	}
	return out, nil
}

// applyRerank rescores the fused head with the configured reranker and
// splices the rescored order back in front of the tail. A reranker
// failure degrades the result instead of failing retrieval.
func (e *Engine) applyRerank(ctx context.Context, query string, fused []fusedCandidate, byID map[int64]store.Node, depth int, degraded bool) ([]fusedCandidate, bool) {
	if e.Reranker == nil {
		return fused, degraded
	}
	if depth <= 0 || depth > len(fused) {
		depth = len(fused)
	}

	head := fused[:depth]
	cands := make([]rerank.Candidate, len(head))
	for i, c := range head {
		cands[i] = rerank.Candidate{NodeID: c.NodeID, Text: byID[c.NodeID].Text}
	}

	scored, err := e.Reranker.Rerank(ctx, query, cands)
	if err != nil {
		log.Printf("retrieve: rerank: %v", err)
		return fused, true
	}

	headByID := make(map[int64]fusedCandidate, len(head))
	for _, c := range head {
		headByID[c.NodeID] = c
	}

	reordered := make([]fusedCandidate, 0, len(fused))
	seen := make(map[int64]bool, len(scored))
	for _, s := range scored {
		c, ok := headByID[s.NodeID]
		if !ok || seen[s.NodeID] {
			continue
		}
		seen[s.NodeID] = true
		c.Score = s.Score
		c.Reranked = true
		reordered = append(reordered, c)
	}
	// Head candidates the reranker dropped, then the untouched tail,
	// both in fused order.
	for _, c := range head {
		if !seen[c.NodeID] {
			reordered = append(reordered, c)
		}
	}
	reordered = append(reordered, fused[depth:]...)
	return reordered, degraded
}

// matchesFilters applies the query's type, tag, and status filters.
func matchesFilters(node store.Node, q Query) bool {
	if !q.IncludeDeleted && node.Status != store.StatusActive {
		return false
	}
	if len(q.Types) > 0 {
		found := false
		for _, t := range q.Types {
			if node.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Tags) > 0 {
		found := false
		for _, want := range q.Tags {
			for _, have := range node.Tags {
				if want == have {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// explain renders a hit's per-signal ranks into a short provenance line.
func explain(c fusedCandidate) string {
	var b strings.Builder
	for _, signal := range []string{SignalLexical, SignalVector, SignalGraph} {
		rank, ok := c.Ranks[signal]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s#%d", signal, rank)
	}
	fmt.Fprintf(&b, " score=%.4f", c.Score)
	return b.String()
}
