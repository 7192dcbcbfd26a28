package engine

import (
	"context"
	"sync"

	"github.com/oakmoss/lineage/internal/store"
)

// hopCache memoizes hop distances from the root set. The graph version
// is the cache key: any committed node or edge write bumps it, so a
// stale snapshot is never served after a mutation.
type hopCache struct {
	mu      sync.Mutex
	version int64
	dist    map[int64]int
}

func (c *hopCache) invalidate() {
	c.mu.Lock()
	c.dist = nil
	c.mu.Unlock()
}

// HopDistance reports the minimum hop count from the configured root
// decision set to the node, or ok=false when no root set is configured
// or the node is unreachable from it.
func (e *Engine) HopDistance(ctx context.Context, id int64) (int, bool, error) {
	dist, err := e.hops.distances(ctx, e.DB, e.rootIDs)
	if err != nil {
		return 0, false, err
	}
	d, ok := dist[id]
	return d, ok, nil
}

// distances returns hop distances from roots, recomputing only when the
// graph version moved since the cached snapshot.
func (c *hopCache) distances(ctx context.Context, db *store.DB, roots []int64) (map[int64]int, error) {
	if len(roots) == 0 {
		return nil, nil
	}

	version := db.GraphVersion()

	c.mu.Lock()
	if c.dist != nil && c.version == version {
		dist := c.dist
		c.mu.Unlock()
		return dist, nil
	}
	c.mu.Unlock()

	dist, err := db.HopDistances(ctx, roots)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.version = version
	c.dist = dist
	c.mu.Unlock()
	return dist, nil
}
