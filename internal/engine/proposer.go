package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/oakmoss/lineage/internal/store"
)

// ProposerConfig tunes the automatic relationship builder.
type ProposerConfig struct {
	SimilarityFloor float64 `toml:"similarity_floor"` // minimum mean-chunk cosine to consider a pair
	AcceptThreshold float64 `toml:"accept_threshold"` // confidence at or above this commits the edge
	TagBoost        float64 `toml:"tag_boost"`        // added per shared tag, capped
	RecencyBoost    float64 `toml:"recency_boost"`    // added when created within RecencyWindow
	RecencyWindow   int64   `toml:"recency_window"`   // seconds
	MaxPerNode      int     `toml:"max_per_node"`     // candidate edges considered per node
}

// DefaultProposerConfig returns the stock relationship-builder tuning.
func DefaultProposerConfig() ProposerConfig {
	return ProposerConfig{
		SimilarityFloor: 0.55,
		AcceptThreshold: 0.8,
		TagBoost:        0.05,
		RecencyBoost:    0.05,
		RecencyWindow:   6 * 3600,
		MaxPerNode:      5,
	}
}

// relationPairs maps (from type, to type) to the relation an automatic
// proposal carries. Pairs not listed fall back to "references".
var relationPairs = map[[2]string]string{
	{"decision", "decision"}: "builds_upon",
	{"task", "decision"}:     "fulfills",
	{"message", "decision"}:  "discusses",
	{"conversation", "decision"}: "discusses",
	{"file", "task"}:         "implements",
	{"file", "decision"}:     "implements",
	{"answer", "question"}:   "answers",
	{"experiment", "insight"}: "validates",
	{"task", "requirement"}:  "fulfills",
}

func guessRelation(fromType, toType string) string {
	if rel, ok := relationPairs[[2]string{fromType, toType}]; ok {
		return rel
	}
	return "references"
}

// proposalCandidate is a scored pair under consideration.
type proposalCandidate struct {
	toID       int64
	confidence float64
	similarity float64
	shared     int
	recent     bool
}

// ProposeEdges builds relationship candidates for a node from embedding
// similarity, shared tags, and creation-time proximity. Candidates at or
// above the accept threshold are committed as edges immediately; the rest
// are recorded as proposals for explicit review. Returns (committed,
// proposed) counts.
func (e *Engine) ProposeEdges(ctx context.Context, nodeID int64) (int, int, error) {
	node, err := e.DB.GetNode(nodeID)
	if err != nil {
		return 0, 0, err
	}
	if node.Status != store.StatusActive {
		return 0, 0, nil
	}

	centroids, err := e.laneCentroids(ctx)
	if err != nil {
		return 0, 0, err
	}
	self, ok := centroids[nodeID]
	if !ok {
		// No stored vectors yet; similarity has nothing to work with.
		return 0, 0, nil
	}

	// Pairs the node already links to are not re-proposed.
	linked := map[int64]bool{nodeID: true}
	out, err := e.DB.EdgesFrom(nodeID)
	if err != nil {
		return 0, 0, err
	}
	for _, edge := range out {
		linked[edge.ToID] = true
	}
	in, err := e.DB.EdgesTo(nodeID)
	if err != nil {
		return 0, 0, err
	}
	for _, edge := range in {
		linked[edge.FromID] = true
	}

	var cands []proposalCandidate
	for otherID, vec := range centroids {
		if linked[otherID] {
			continue
		}
		sim := CosineSimilarity(self, vec)
		if sim < e.Proposer.SimilarityFloor {
			continue
		}
		cands = append(cands, proposalCandidate{toID: otherID, similarity: sim})
	}
	if len(cands) == 0 {
		return 0, 0, nil
	}

	selfTags := map[string]bool{}
	for _, t := range node.Tags {
		selfTags[t] = true
	}

	committed, proposed := 0, 0
	for i := range cands {
		other, err := e.DB.GetNode(cands[i].toID)
		if err != nil {
			continue
		}
		for _, t := range other.Tags {
			if selfTags[t] {
				cands[i].shared++
			}
		}
		delta := node.CreatedAt - other.CreatedAt
		if delta < 0 {
			delta = -delta
		}
		cands[i].recent = delta <= e.Proposer.RecencyWindow

		conf := cands[i].similarity
		boost := float64(cands[i].shared) * e.Proposer.TagBoost
		if boost > 0.15 {
			boost = 0.15
		}
		conf += boost
		if cands[i].recent {
			conf += e.Proposer.RecencyBoost
		}
		if conf > 1 {
			conf = 1
		}
		cands[i].confidence = conf
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].confidence != cands[j].confidence {
			return cands[i].confidence > cands[j].confidence
		}
		return cands[i].toID < cands[j].toID
	})
	if e.Proposer.MaxPerNode > 0 && len(cands) > e.Proposer.MaxPerNode {
		cands = cands[:e.Proposer.MaxPerNode]
	}

	for _, cand := range cands {
		other, err := e.DB.GetNode(cand.toID)
		if err != nil {
			continue
		}
		relation := guessRelation(node.Type, other.Type)
		evidence := fmt.Sprintf("similarity=%.2f shared_tags=%d recent=%t",
			cand.similarity, cand.shared, cand.recent)

		if cand.confidence >= e.Proposer.AcceptThreshold {
			_, err := e.DB.PutEdge(&store.Edge{
				FromID:      nodeID,
				ToID:        cand.toID,
				Relation:    relation,
				Description: evidence,
				Confidence:  cand.confidence,
			})
			if err != nil {
				return committed, proposed, fmt.Errorf("commit proposed edge: %w", err)
			}
			committed++
			continue
		}

		err = e.DB.CreateProposal(&store.EdgeProposal{
			FromID:     nodeID,
			ToID:       cand.toID,
			Relation:   relation,
			Confidence: cand.confidence,
			Evidence:   evidence,
		})
		if err != nil {
			return committed, proposed, fmt.Errorf("record proposal: %w", err)
		}
		proposed++
	}
	return committed, proposed, nil
}

// laneCentroids loads every active node's chunks and averages them into
// one vector per node. Lanes are averaged together: a node embeds in
// exactly one lane, so the mean never mixes models.
func (e *Engine) laneCentroids(ctx context.Context) (map[int64][]float64, error) {
	chunks, err := e.DB.ActiveChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active chunks: %w", err)
	}

	sums := make(map[int64][]float64)
	counts := make(map[int64]int)
	for _, ch := range chunks {
		sum := sums[ch.NodeID]
		if sum == nil {
			sum = make([]float64, len(ch.Vector))
			sums[ch.NodeID] = sum
		}
		if len(sum) != len(ch.Vector) {
			continue
		}
		for i, v := range ch.Vector {
			sum[i] += v
		}
		counts[ch.NodeID]++
	}
	for id, sum := range sums {
		n := float64(counts[id])
		for i := range sum {
			sum[i] /= n
		}
	}
	return sums, nil
}
