package store

import (
	"database/sql"
	"fmt"
	"time"
)

// relations is the fixed, versioned set of edge relations.
var relations = map[string]bool{
	"builds_upon": true, "implements": true, "validates": true,
	"extends": true, "depends_on": true, "corrects": true,
	"fulfills": true, "discusses": true, "references": true,
	"supersedes": true, "blocks": true, "derives_from": true,
	"answers": true, "mentions": true, "authored_by": true,
}

// ValidRelation reports whether r is in the fixed relation set.
func ValidRelation(r string) bool {
	return relations[r]
}

// Edge is a first-class directed relationship record between two nodes.
// Edges are immutable once created except for confidence revision.
type Edge struct {
	ID          int64   `json:"id"`
	FromID      int64   `json:"from_id"`
	ToID        int64   `json:"to_id"`
	Relation    string  `json:"relation"`
	Description string  `json:"description,omitempty"`
	Confidence  float64 `json:"confidence"`
	CreatedAt   int64   `json:"created_at"`
}

// PutEdge inserts an edge after verifying both endpoints exist. Returns
// ErrDanglingReference if either endpoint is absent; the edge is never
// stored in that case. Soft-deleted endpoints still count as existing so
// genealogy over history stays linkable.
func (db *DB) PutEdge(edge *Edge) (int64, error) {
	if !ValidRelation(edge.Relation) {
		return 0, fmt.Errorf("put edge: unknown relation %q", edge.Relation)
	}
	if edge.Confidence < 0 || edge.Confidence > 1 {
		return 0, fmt.Errorf("put edge: confidence %f out of [0,1]", edge.Confidence)
	}
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin put edge: %w", err)
	}
	defer tx.Rollback()

	var present int
	err = tx.QueryRow(
		"SELECT COUNT(*) FROM nodes WHERE id IN (?, ?)",
		edge.FromID, edge.ToID,
	).Scan(&present)
	if err != nil {
		return 0, fmt.Errorf("check edge endpoints: %w", err)
	}
	want := 2
	if edge.FromID == edge.ToID {
		want = 1
	}
	if present < want {
		return 0, fmt.Errorf("edge %d->%d: %w", edge.FromID, edge.ToID, ErrDanglingReference)
	}

	res, err := tx.Exec(`
		INSERT INTO edges (from_id, to_id, relation, description, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, edge.FromID, edge.ToID, edge.Relation, edge.Description, edge.Confidence, now)
	if err != nil {
		return 0, fmt.Errorf("put edge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("put edge id: %w", err)
	}

	version, err := bumpGraphVersion(tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit put edge: %w", err)
	}
	db.graphVersion.Store(version)

	edge.ID = id
	edge.CreatedAt = now
	return id, nil
}

// GetEdge returns an edge by id, or ErrNotFound.
func (db *DB) GetEdge(id int64) (*Edge, error) {
	var e Edge
	err := db.QueryRow(`
		SELECT id, from_id, to_id, relation, description, confidence, created_at
		FROM edges WHERE id = ?
	`, id).Scan(&e.ID, &e.FromID, &e.ToID, &e.Relation, &e.Description, &e.Confidence, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("edge %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get edge %d: %w", id, err)
	}
	return &e, nil
}

// ReviseConfidence updates an edge's confidence, the only mutable field.
func (db *DB) ReviseConfidence(id int64, confidence float64) error {
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("revise confidence: %f out of [0,1]", confidence)
	}
	res, err := db.Exec("UPDATE edges SET confidence = ? WHERE id = ?", confidence, id)
	if err != nil {
		return fmt.Errorf("revise confidence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("edge %d: %w", id, ErrNotFound)
	}
	return nil
}

// EdgesFrom returns outgoing edges for a node.
func (db *DB) EdgesFrom(nodeID int64) ([]Edge, error) {
	return db.queryEdges("SELECT id, from_id, to_id, relation, description, confidence, created_at FROM edges WHERE from_id = ?", nodeID)
}

// EdgesTo returns incoming edges for a node.
func (db *DB) EdgesTo(nodeID int64) ([]Edge, error) {
	return db.queryEdges("SELECT id, from_id, to_id, relation, description, confidence, created_at FROM edges WHERE to_id = ?", nodeID)
}

// CountEdges returns the total number of edges.
func (db *DB) CountEdges() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&count)
	return count, err
}

func (db *DB) queryEdges(query string, args ...any) ([]Edge, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.FromID, &e.ToID, &e.Relation, &e.Description, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
