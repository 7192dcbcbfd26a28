package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/oakmoss/lineage/internal/store"
)

// maxParallelEmbeds bounds concurrent embedding calls for one node.
const maxParallelEmbeds = 4

// EmbedNode chunks a node's text for its lane, embeds every chunk, and
// atomically replaces the node's chunk set for that lane. On any failure
// no chunk is written and the node stays pending for the retry loop;
// partial chunk sets never reach the store.
func (e *Engine) EmbedNode(ctx context.Context, node *store.Node) error {
	if strings.TrimSpace(node.Text) == "" {
		return e.DB.SetEmbedStatus(node.ID, store.EmbedNone)
	}

	lane := SelectLane(node.Type, node.Text)
	emb := e.embedderFor(lane)
	if emb == nil {
		return fmt.Errorf("embed node %d: no embedder for lane %s", node.ID, lane)
	}

	chunks := ChunkForLane(lane, node.Text)
	if len(chunks) == 0 {
		return e.DB.SetEmbedStatus(node.ID, store.EmbedNone)
	}

	records := make([]store.EmbeddingChunk, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelEmbeds)
	for i, c := range chunks {
		g.Go(func() error {
			vec, err := emb.Embed(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %d of node %d: %w", i, node.ID, err)
			}
			records[i] = store.EmbeddingChunk{
				NodeID:    node.ID,
				Lane:      lane,
				Vector:    vec,
				SpanStart: c.Start,
				SpanEnd:   c.End,
				Model:     emb.Model(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Leave the prior chunk set intact and queue for retry.
		if markErr := e.DB.SetEmbedStatus(node.ID, store.EmbedPending); markErr != nil {
			log.Printf("mark node %d pending: %v", node.ID, markErr)
		}
		return err
	}

	if err := e.DB.ReplaceChunks(node.ID, lane, records); err != nil {
		return err
	}
	return e.DB.SetEmbedStatus(node.ID, store.EmbedOK)
}

// EmbedPending embeds every node queued by failed or deferred writes.
// Returns how many nodes were embedded; individual failures are logged
// and left pending for the next sweep.
func (e *Engine) EmbedPending(ctx context.Context) (int, error) {
	nodes, err := e.DB.PendingEmbeds(0)
	if err != nil {
		return 0, err
	}

	embedded := 0
	for i := range nodes {
		if err := ctx.Err(); err != nil {
			return embedded, err
		}
		if err := e.EmbedNode(ctx, &nodes[i]); err != nil {
			log.Printf("embed pending node %d: %v", nodes[i].ID, err)
			continue
		}
		embedded++
	}
	return embedded, nil
}
