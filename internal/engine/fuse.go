package engine

import (
	"sort"
)

// Retrieval signals. Provenance per hit records which branches
// contributed to its fused rank.
const (
	SignalLexical = "lexical"
	SignalVector  = "vector"
	SignalGraph   = "graph"
)

// rrfK dampens the weight of top ranks in reciprocal rank fusion.
const rrfK = 60.0

// rankedID is one entry of a branch's ranked output.
type rankedID struct {
	NodeID int64
	Score  float64 // branch-native score, kept only for explanations
}

// fusedCandidate carries a candidate's fused score and provenance.
type fusedCandidate struct {
	NodeID    int64
	Score     float64
	Signals   []string
	Ranks     map[string]int // signal -> 1-indexed rank in that branch
	UpdatedAt int64          // filled before tie-breaking
	Reranked  bool           // set when the reranker rescored this candidate
}

// fuseRRF combines per-branch ranked lists with reciprocal rank fusion:
// a candidate at rank r in a branch contributes 1/(r+k) to its fused
// score. Candidates need not appear in every branch. Missing branches
// simply contribute nothing.
func fuseRRF(branches map[string][]rankedID) []fusedCandidate {
	byID := make(map[int64]*fusedCandidate)

	// Deterministic branch iteration keeps the Signals slice ordering
	// stable across identical calls.
	for _, signal := range []string{SignalLexical, SignalVector, SignalGraph} {
		list, ok := branches[signal]
		if !ok {
			continue
		}
		for i, r := range list {
			c, ok := byID[r.NodeID]
			if !ok {
				c = &fusedCandidate{NodeID: r.NodeID, Ranks: make(map[string]int)}
				byID[r.NodeID] = c
			}
			c.Score += 1.0 / (float64(i+1) + rrfK)
			c.Signals = append(c.Signals, signal)
			c.Ranks[signal] = i + 1
		}
	}

	out := make([]fusedCandidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	return out
}

// sortFused orders candidates by fused score, breaking ties by most
// recent update and then lowest id so identical calls return identical
// orderings.
func sortFused(candidates []fusedCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].UpdatedAt != candidates[j].UpdatedAt {
			return candidates[i].UpdatedAt > candidates[j].UpdatedAt
		}
		return candidates[i].NodeID < candidates[j].NodeID
	})
}
