package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Embedding lanes. Each lane owns a model and a chunking strategy.
const (
	LaneProse          = "prose"
	LaneCode           = "code"
	LaneConversational = "conversational"
)

// EmbeddingChunk is one stored vector for a slice of a node's text.
type EmbeddingChunk struct {
	NodeID     int64
	Lane       string
	ChunkIndex int
	Vector     []float64
	SpanStart  int
	SpanEnd    int
	Model      string
	CreatedAt  int64
}

// encodeVector converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeVector(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeVector converts a binary BLOB back to []float64.
func decodeVector(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// ReplaceChunks atomically replaces the full chunk set for a node/lane.
// Either every chunk lands or none do: a failed replacement leaves the
// prior set intact, so the store never holds a mixed old/new chunk set.
func (db *DB) ReplaceChunks(nodeID int64, lane string, chunks []EmbeddingChunk) error {
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace chunks: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"DELETE FROM embedding_chunks WHERE node_id = ? AND lane = ?",
		nodeID, lane,
	); err != nil {
		return fmt.Errorf("clear chunks for node %d lane %s: %w", nodeID, lane, err)
	}

	for i, c := range chunks {
		if len(c.Vector) == 0 {
			return fmt.Errorf("replace chunks: empty vector at index %d", i)
		}
		if _, err := tx.Exec(`
			INSERT INTO embedding_chunks (node_id, lane, chunk_index, vector, span_start, span_end, model, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, nodeID, lane, i, encodeVector(c.Vector), c.SpanStart, c.SpanEnd, c.Model, now); err != nil {
			return fmt.Errorf("insert chunk %d for node %d: %w", i, nodeID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace chunks: %w", err)
	}
	return nil
}

// ChunksForNode returns all chunks for a node, optionally one lane.
func (db *DB) ChunksForNode(nodeID int64, lane string) ([]EmbeddingChunk, error) {
	query := `
		SELECT node_id, lane, chunk_index, vector, span_start, span_end, model, created_at
		FROM embedding_chunks WHERE node_id = ?`
	args := []any{nodeID}
	if lane != "" {
		query += " AND lane = ?"
		args = append(args, lane)
	}
	query += " ORDER BY lane, chunk_index"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("chunks for node %d: %w", nodeID, err)
	}
	defer rows.Close()

	var chunks []EmbeddingChunk
	for rows.Next() {
		var c EmbeddingChunk
		var blob []byte
		if err := rows.Scan(&c.NodeID, &c.Lane, &c.ChunkIndex, &blob,
			&c.SpanStart, &c.SpanEnd, &c.Model, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Vector = decodeVector(blob)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ActiveChunks streams every chunk whose owning node is active. This feeds
// the brute-force vector branch of retrieval.
func (db *DB) ActiveChunks(ctx context.Context) ([]EmbeddingChunk, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.node_id, c.lane, c.chunk_index, c.vector, c.span_start, c.span_end, c.model, c.created_at
		FROM embedding_chunks c
		JOIN nodes n ON n.id = c.node_id
		WHERE n.status = ?
	`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("active chunks: %w", err)
	}
	defer rows.Close()

	var chunks []EmbeddingChunk
	for rows.Next() {
		var c EmbeddingChunk
		var blob []byte
		if err := rows.Scan(&c.NodeID, &c.Lane, &c.ChunkIndex, &blob,
			&c.SpanStart, &c.SpanEnd, &c.Model, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Vector = decodeVector(blob)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteChunks removes all chunks for a node. Used by consistency repair;
// the normal write path goes through ReplaceChunks.
func (db *DB) DeleteChunks(nodeID int64) error {
	if _, err := db.Exec("DELETE FROM embedding_chunks WHERE node_id = ?", nodeID); err != nil {
		return fmt.Errorf("delete chunks for node %d: %w", nodeID, err)
	}
	return nil
}

// CountChunks returns the number of stored embedding chunks.
func (db *DB) CountChunks() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM embedding_chunks").Scan(&count)
	return count, err
}
