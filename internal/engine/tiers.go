package engine

import (
	"fmt"
	"time"
)

// Tier names accepted by the retrieval API.
const (
	TierOverview    = "overview"
	TierExploration = "exploration"
	TierDeep        = "deep"
)

// TierSpec is one progressive-disclosure contract: which branches run,
// how many results come back, and the hard latency budget.
type TierSpec struct {
	Name        string
	Budget      time.Duration
	Limit       int
	GraphHops   int  // 0 disables the graph-expansion branch
	Rerank      bool // cross-encoder rescoring of the fused top-N
	RerankDepth int  // fused candidates fed to the reranker
}

// TierSet holds the three tier contracts.
type TierSet struct {
	Overview    TierSpec
	Exploration TierSpec
	Deep        TierSpec
}

// DefaultTiers returns the standard tier contracts.
func DefaultTiers() TierSet {
	return TierSet{
		Overview: TierSpec{
			Name:   TierOverview,
			Budget: 50 * time.Millisecond,
			Limit:  3,
		},
		Exploration: TierSpec{
			Name:      TierExploration,
			Budget:    150 * time.Millisecond,
			Limit:     20,
			GraphHops: 2,
		},
		Deep: TierSpec{
			Name:        TierDeep,
			Budget:      500 * time.Millisecond,
			Limit:       50,
			GraphHops:   3,
			Rerank:      true,
			RerankDepth: 200,
		},
	}
}

// Spec resolves a tier name, rejecting unknown values.
func (t TierSet) Spec(name string) (TierSpec, error) {
	switch name {
	case TierOverview, "":
		return t.Overview, nil
	case TierExploration:
		return t.Exploration, nil
	case TierDeep:
		return t.Deep, nil
	default:
		return TierSpec{}, fmt.Errorf("%w: unknown tier %q", ErrInvalidQuery, name)
	}
}
