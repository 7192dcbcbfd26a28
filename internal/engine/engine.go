package engine

import (
	"context"
	"log"
	"time"

	"github.com/oakmoss/lineage/internal/rerank"
	"github.com/oakmoss/lineage/internal/store"
)

// Engine owns the embedding subsystem, the hybrid retrieval pipeline, and
// the relationship builder. Writes to a given node are serialized by the
// store transaction; the engine itself keeps no per-node locks.
type Engine struct {
	DB       *store.DB
	Lanes    map[string]Embedder // lane -> embedder
	Reranker rerank.Reranker
	Tiers    TierSet
	Proposer ProposerConfig

	rootIDs []int64 // decision nodes used as hop-distance roots
	hops    hopCache
	stopCh  chan struct{}
}

// New creates an Engine with the given per-lane embedders. A nil or
// partial lane map is tolerated: missing lanes fall back to the prose
// embedder, and a missing prose embedder disables embedding entirely.
func New(db *store.DB, lanes map[string]Embedder) *Engine {
	if lanes == nil {
		lanes = map[string]Embedder{}
	}
	return &Engine{
		DB:       db,
		Lanes:    lanes,
		Tiers:    DefaultTiers(),
		Proposer: DefaultProposerConfig(),
		stopCh:   make(chan struct{}),
	}
}

// SetReranker configures the deep-tier relevance rescorer.
func (e *Engine) SetReranker(r rerank.Reranker) {
	e.Reranker = r
}

// SetRoots configures the decision ids used as the hop-distance root set.
func (e *Engine) SetRoots(ids []int64) {
	e.rootIDs = ids
	e.hops.invalidate()
}

// embedderFor returns the lane embedder, falling back to prose.
func (e *Engine) embedderFor(lane string) Embedder {
	if emb, ok := e.Lanes[lane]; ok && emb != nil {
		return emb
	}
	return e.Lanes[store.LaneProse]
}

// StartRetryTimer embeds pending nodes now and then on an interval.
// Embedding failures never block writers; this loop is the async half of
// that contract.
func (e *Engine) StartRetryTimer(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if n, err := e.EmbedPending(ctx); err != nil {
			log.Printf("embed retry: %v", err)
		} else if n > 0 {
			log.Printf("embed retry: embedded %d pending nodes", n)
		}
	}
	run()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				run()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}
