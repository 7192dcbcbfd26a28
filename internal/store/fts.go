package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"
)

// LexicalHit is one FTS5 match. Score is -bm25(), so higher is better and
// scores are monotonically comparable within a single query.
type LexicalHit struct {
	NodeID int64
	Score  float64
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "is": true,
	"it": true, "and": true, "or": true, "with": true, "from": true,
	"by": true, "this": true, "that": true, "as": true, "be": true,
}

// buildFTSQuery preprocesses a natural language query for FTS5: splits on
// whitespace, trims punctuation, drops stopwords and one-char terms, joins
// with OR. Porter stemming in the tokenizer handles inflection.
func buildFTSQuery(query string) string {
	words := strings.Fields(query)
	var filtered []string
	for _, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if len(trimmed) < 2 {
			continue
		}
		if stopwords[strings.ToLower(trimmed)] {
			continue
		}
		// Quote each term so FTS5 syntax characters in user input stay inert.
		filtered = append(filtered, `"`+strings.ReplaceAll(trimmed, `"`, ``)+`"`)
	}
	return strings.Join(filtered, " OR ")
}

// SearchLexical runs an FTS5 query over node text and tags, ranked by
// bm25. Index updates share the node write transaction, so results are
// visible immediately after a write. Only active nodes are indexed.
func (db *DB) SearchLexical(ctx context.Context, query string, limit int) ([]LexicalHit, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.QueryContext(ctx, `
		SELECT rowid, bm25(nodes_fts) FROM nodes_fts
		WHERE nodes_fts MATCH ?
		ORDER BY bm25(nodes_fts) LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		var bm25 float64
		if err := rows.Scan(&h.NodeID, &bm25); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}
		h.Score = -bm25 // bm25() is smaller-is-better
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// indexNodeFTS writes a node's searchable text into the lexical index,
// using the node id as the FTS rowid.
func indexNodeFTS(tx *sql.Tx, id int64, text string, tags []string) error {
	_, err := tx.Exec(
		"INSERT INTO nodes_fts (rowid, text, tags) VALUES (?, ?, ?)",
		id, text, strings.Join(tags, " "),
	)
	if err != nil {
		return fmt.Errorf("index node %d: %w", id, err)
	}
	return nil
}

func deindexNodeFTS(tx *sql.Tx, id int64) error {
	if _, err := tx.Exec("DELETE FROM nodes_fts WHERE rowid = ?", id); err != nil {
		return fmt.Errorf("deindex node %d: %w", id, err)
	}
	return nil
}

// RebuildFTS drops and rebuilds the lexical index from active nodes.
func (db *DB) RebuildFTS() (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin fts rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM nodes_fts"); err != nil {
		return 0, fmt.Errorf("clear fts: %w", err)
	}

	rows, err := tx.Query("SELECT id, text, tags FROM nodes WHERE status = ?", StatusActive)
	if err != nil {
		return 0, fmt.Errorf("list active nodes: %w", err)
	}
	type entry struct {
		id   int64
		text string
		tags string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.text, &e.tags); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan node for fts: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, e := range entries {
		if err := indexNodeFTS(tx, e.id, e.text, parseTagsJSON(e.tags)); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit fts rebuild: %w", err)
	}
	return len(entries), nil
}
