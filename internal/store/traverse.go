package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Traversal hop caps. DefaultMaxHops keeps exploration-tier latency
// bounded; anything above it must be explicitly elevated, and HardMaxHops
// is never exceeded.
const (
	DefaultMaxHops = 3
	HardMaxHops    = 6
)

// Traversal directions.
const (
	DirOut  = "out"
	DirIn   = "in"
	DirBoth = "both"
)

// NeighborOpts controls a breadth-first neighbor expansion.
type NeighborOpts struct {
	Relation   string // filter to one relation, empty = all
	Direction  string // out | in | both (default both)
	MaxHops    int    // default DefaultMaxHops
	MaxResults int    // default 50
	Elevated   bool   // required for MaxHops > DefaultMaxHops
}

// Neighbor is one node reached by traversal, with the path that reached it.
type Neighbor struct {
	Node        Node    `json:"node"`
	Path        []int64 `json:"path"` // node ids from start to this node, inclusive
	Relations   []string `json:"relations"`
	HopDistance int     `json:"hop_distance"`
}

// Neighbors performs a breadth-first expansion from start. Traversal
// dedups on a visited set so it terminates on cyclic graphs, and results
// are ranked by hop distance then node id. Soft-deleted nodes are included:
// historical edges must stay resolvable from live nodes.
func (db *DB) Neighbors(ctx context.Context, start int64, opts NeighborOpts) ([]Neighbor, error) {
	if opts.Direction == "" {
		opts.Direction = DirBoth
	}
	switch opts.Direction {
	case DirOut, DirIn, DirBoth:
	default:
		return nil, fmt.Errorf("neighbors: unknown direction %q", opts.Direction)
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}
	if opts.MaxHops > DefaultMaxHops && !opts.Elevated {
		return nil, fmt.Errorf("neighbors: %d hops: %w", opts.MaxHops, ErrHopsNotElevated)
	}
	if opts.MaxHops > HardMaxHops {
		opts.MaxHops = HardMaxHops
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 50
	}
	if opts.Relation != "" && !ValidRelation(opts.Relation) {
		return nil, fmt.Errorf("neighbors: unknown relation %q", opts.Relation)
	}

	if _, err := db.GetNode(start); err != nil {
		return nil, err
	}

	type visit struct {
		path      []int64
		relations []string
		hops      int
	}

	visited := map[int64]bool{start: true}
	frontier := []int64{start}
	trail := map[int64]visit{start: {path: []int64{start}, hops: 0}}
	var found []Neighbor

	for hop := 1; hop <= opts.MaxHops && len(frontier) > 0 && len(found) < opts.MaxResults; hop++ {
		steps, err := db.expandFrontier(ctx, frontier, opts)
		if err != nil {
			return nil, err
		}

		var next []int64
		for _, s := range steps {
			if visited[s.neighbor] {
				continue
			}
			visited[s.neighbor] = true

			prev := trail[s.from]
			path := make([]int64, len(prev.path), len(prev.path)+1)
			copy(path, prev.path)
			path = append(path, s.neighbor)
			rels := make([]string, len(prev.relations), len(prev.relations)+1)
			copy(rels, prev.relations)
			rels = append(rels, s.relation)

			trail[s.neighbor] = visit{path: path, relations: rels, hops: hop}
			next = append(next, s.neighbor)
		}
		frontier = next

		if len(next) == 0 {
			break
		}

		nodes, err := db.GetNodesByIDs(next)
		if err != nil {
			return nil, err
		}
		nodeByID := make(map[int64]Node, len(nodes))
		for _, n := range nodes {
			nodeByID[n.ID] = n
		}
		for _, id := range next {
			n, ok := nodeByID[id]
			if !ok {
				continue
			}
			v := trail[id]
			found = append(found, Neighbor{
				Node:        n,
				Path:        v.path,
				Relations:   v.relations,
				HopDistance: v.hops,
			})
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].HopDistance != found[j].HopDistance {
			return found[i].HopDistance < found[j].HopDistance
		}
		return found[i].Node.ID < found[j].Node.ID
	})
	if len(found) > opts.MaxResults {
		found = found[:opts.MaxResults]
	}
	return found, nil
}

type frontierStep struct {
	from     int64
	neighbor int64
	relation string
}

// expandFrontier fetches the one-hop edge set for a frontier in a single
// query per direction.
func (db *DB) expandFrontier(ctx context.Context, frontier []int64, opts NeighborOpts) ([]frontierStep, error) {
	placeholders := make([]string, len(frontier))
	args := make([]any, 0, len(frontier)+1)
	for i, id := range frontier {
		placeholders[i] = "?"
		args = append(args, id)
	}
	in := strings.Join(placeholders, ",")

	relFilter := ""
	if opts.Relation != "" {
		relFilter = " AND relation = ?"
	}

	var steps []frontierStep
	collect := func(query string, fromCol bool) error {
		qargs := args
		if opts.Relation != "" {
			qargs = append(append([]any{}, args...), opts.Relation)
		}
		rows, err := db.QueryContext(ctx, query, qargs...)
		if err != nil {
			return fmt.Errorf("expand frontier: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var from, to int64
			var rel string
			if err := rows.Scan(&from, &to, &rel); err != nil {
				return fmt.Errorf("scan frontier edge: %w", err)
			}
			if fromCol {
				steps = append(steps, frontierStep{from: from, neighbor: to, relation: rel})
			} else {
				steps = append(steps, frontierStep{from: to, neighbor: from, relation: rel})
			}
		}
		return rows.Err()
	}

	if opts.Direction == DirOut || opts.Direction == DirBoth {
		q := "SELECT from_id, to_id, relation FROM edges WHERE from_id IN (" + in + ")" + relFilter
		if err := collect(q, true); err != nil {
			return nil, err
		}
	}
	if opts.Direction == DirIn || opts.Direction == DirBoth {
		q := "SELECT from_id, to_id, relation FROM edges WHERE to_id IN (" + in + ")" + relFilter
		if err := collect(q, false); err != nil {
			return nil, err
		}
	}
	return steps, nil
}

// HopDistances computes BFS distance from a root id set over edges in
// both directions. Derived data: callers cache it keyed on GraphVersion.
func (db *DB) HopDistances(ctx context.Context, roots []int64) (map[int64]int, error) {
	dist := make(map[int64]int, len(roots))
	var frontier []int64
	for _, r := range roots {
		if _, ok := dist[r]; !ok {
			dist[r] = 0
			frontier = append(frontier, r)
		}
	}

	opts := NeighborOpts{Direction: DirBoth}
	for hop := 1; len(frontier) > 0; hop++ {
		steps, err := db.expandFrontier(ctx, frontier, opts)
		if err != nil {
			return nil, err
		}
		var next []int64
		for _, s := range steps {
			if _, seen := dist[s.neighbor]; seen {
				continue
			}
			dist[s.neighbor] = hop
			next = append(next, s.neighbor)
		}
		frontier = next
	}
	return dist, nil
}
