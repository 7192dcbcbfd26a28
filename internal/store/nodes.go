package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Node statuses. Nothing is hard-deleted in normal operation; soft-delete
// keeps genealogy queries valid over history.
const (
	StatusActive     = "active"
	StatusSuperseded = "superseded"
	StatusDeleted    = "deleted"
)

// Embedding states for a node's write path.
const (
	EmbedNone    = "none"    // node has no embeddable text
	EmbedPending = "pending" // chunks not yet written, async retry will pick it up
	EmbedOK      = "ok"      // chunk set is current
)

// nodeTypes is the fixed, versioned set of node types. Arbitrary
// user-defined types are rejected at write time.
var nodeTypes = map[string]bool{
	"decision": true, "task": true, "file": true, "pattern": true,
	"conversation": true, "message": true, "person": true, "project": true,
	"component": true, "requirement": true, "constraint": true, "question": true,
	"answer": true, "insight": true, "experiment": true, "incident": true,
	"milestone": true, "risk": true, "resource": true, "meeting": true,
	"document": true, "snippet": true, "metric": true, "tool": true,
}

// ValidNodeType reports whether t is in the fixed node type set.
func ValidNodeType(t string) bool {
	return nodeTypes[t]
}

// ValidStatus reports whether s is a known node status.
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusSuperseded || s == StatusDeleted
}

// Node is a typed record in the decision-genealogy graph.
type Node struct {
	ID          int64             `json:"id"`
	Type        string            `json:"type"`
	Text        string            `json:"text"`
	Tags        []string          `json:"tags"`
	Status      string            `json:"status"`
	EmbedStatus string            `json:"embed_status"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	CreatedAt   int64             `json:"created_at"`
	UpdatedAt   int64             `json:"updated_at"`
}

// CreateNode inserts a new node and indexes its text lexically.
// The node id is monotonic and never reused (AUTOINCREMENT). Nodes with
// text start as embed_status=pending so the embedding subsystem can pick
// them up; empty structural nodes are marked none.
func (db *DB) CreateNode(node *Node) error {
	if !ValidNodeType(node.Type) {
		return fmt.Errorf("create node: unknown type %q", node.Type)
	}
	now := time.Now().UnixMilli()

	tags := node.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(dedupTags(tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	meta := node.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	embedStatus := EmbedNone
	if strings.TrimSpace(node.Text) != "" {
		embedStatus = EmbedPending
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin create node: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO nodes (type, text, tags, status, embed_status, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, node.Type, node.Text, string(tagsJSON), StatusActive, embedStatus, string(metaJSON), now, now)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create node id: %w", err)
	}

	if err := indexNodeFTS(tx, id, node.Text, dedupTags(tags)); err != nil {
		return err
	}

	version, err := bumpGraphVersion(tx)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create node: %w", err)
	}
	db.graphVersion.Store(version)

	node.ID = id
	node.Status = StatusActive
	node.EmbedStatus = embedStatus
	node.Tags = dedupTags(tags)
	node.CreatedAt = now
	node.UpdatedAt = now
	return nil
}

// GetNode returns a node by id, or ErrNotFound.
func (db *DB) GetNode(id int64) (*Node, error) {
	row := db.QueryRow(`
		SELECT id, type, text, tags, status, embed_status, metadata, created_at, updated_at
		FROM nodes WHERE id = ?
	`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get node %d: %w", id, err)
	}
	return n, nil
}

// GetNodesByIDs returns the nodes for the given ids, skipping missing ones.
func (db *DB) GetNodesByIDs(ids []int64) ([]Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, type, text, tags, status, embed_status, metadata, created_at, updated_at
		FROM nodes WHERE id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get nodes by ids: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// UpdateNode applies status, tags, and metadata changes. Text and type are
// immutable here: text changes go through SupersedeNode, retyping is
// delete + recreate.
func (db *DB) UpdateNode(id int64, status string, tags []string, metadata map[string]any) error {
	existing, err := db.GetNode(id)
	if err != nil {
		return err
	}

	if status == "" {
		status = existing.Status
	} else if !ValidStatus(status) {
		return fmt.Errorf("update node: unknown status %q", status)
	}
	if tags == nil {
		tags = existing.Tags
	}
	if metadata == nil {
		metadata = existing.Metadata
	}
	tags = dedupTags(tags)

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin update node: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		UPDATE nodes SET status = ?, tags = ?, metadata = ?, updated_at = ? WHERE id = ?
	`, status, string(tagsJSON), string(metaJSON), now, id); err != nil {
		return fmt.Errorf("update node %d: %w", id, err)
	}

	// Status transitions maintain the lexical index: only active nodes are
	// candidates for retrieval, but edges to inactive nodes survive.
	if status != StatusActive {
		if err := deindexNodeFTS(tx, id); err != nil {
			return err
		}
	} else if existing.Status != StatusActive {
		if err := indexNodeFTS(tx, id, existing.Text, tags); err != nil {
			return err
		}
	} else if !sameTags(existing.Tags, tags) {
		if err := deindexNodeFTS(tx, id); err != nil {
			return err
		}
		if err := indexNodeFTS(tx, id, existing.Text, tags); err != nil {
			return err
		}
	}

	version, err := bumpGraphVersion(tx)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update node: %w", err)
	}
	db.graphVersion.Store(version)
	return nil
}

// SoftDeleteNode marks a node deleted. Its edges are preserved so
// genealogy traversals from live nodes still resolve history.
func (db *DB) SoftDeleteNode(id int64) error {
	return db.UpdateNode(id, StatusDeleted, nil, nil)
}

// SupersedeNode creates a replacement node with new text and links it to
// the original with a supersedes edge, marking the original superseded.
// This is the only sanctioned way to change node text: genealogy is
// preserved instead of silently mutated.
func (db *DB) SupersedeNode(id int64, newText string, tags []string) (*Node, error) {
	old, err := db.GetNode(id)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = old.Tags
	}

	replacement := &Node{
		Type:     old.Type,
		Text:     newText,
		Tags:     tags,
		Metadata: old.Metadata,
	}
	if err := db.CreateNode(replacement); err != nil {
		return nil, fmt.Errorf("supersede node %d: %w", id, err)
	}

	if _, err := db.PutEdge(&Edge{
		FromID:     replacement.ID,
		ToID:       id,
		Relation:   "supersedes",
		Confidence: 1.0,
	}); err != nil {
		return nil, fmt.Errorf("supersede edge for node %d: %w", id, err)
	}

	if err := db.UpdateNode(id, StatusSuperseded, nil, nil); err != nil {
		return nil, err
	}
	return replacement, nil
}

// SetEmbedStatus records the embedding write-path state for a node.
// It does not bump graph_version: embed state is not a structural fact.
func (db *DB) SetEmbedStatus(id int64, status string) error {
	res, err := db.Exec("UPDATE nodes SET embed_status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("set embed status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return nil
}

// PendingEmbeds returns active nodes whose chunk set is missing or stale.
func (db *DB) PendingEmbeds(limit int) ([]Node, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, type, text, tags, status, embed_status, metadata, created_at, updated_at
		FROM nodes WHERE embed_status = ? AND status = ?
		ORDER BY updated_at ASC LIMIT ?
	`, EmbedPending, StatusActive, limit)
	if err != nil {
		return nil, fmt.Errorf("pending embeds: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountNodes returns the number of nodes, all statuses included.
func (db *DB) CountNodes() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var n Node
	var tagsJSON, metaJSON string
	err := row.Scan(&n.ID, &n.Type, &n.Text, &tagsJSON, &n.Status, &n.EmbedStatus,
		&metaJSON, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for node %d: %w", n.ID, err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &n.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for node %d: %w", n.ID, err)
	}
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]Node, error) {
	var nodes []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// dedupTags preserves first-occurrence order while dropping duplicates,
// giving tags ordered-set semantics.
func dedupTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func parseTagsJSON(s string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil
	}
	return tags
}

func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
