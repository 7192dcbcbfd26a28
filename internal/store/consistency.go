package store

import (
	"fmt"
)

// ConsistencyReport describes cross-store invariant violations found at
// startup. The one invariant that must survive restarts: every live
// embedding chunk references a live node.
type ConsistencyReport struct {
	OrphanChunkNodes []int64 // chunk rows whose node id no longer resolves
	StaleIndexRows   []int64 // fts rows for nodes that are not active
	MissingIndexRows []int64 // active nodes with text absent from the fts index
}

// Clean reports whether no violations were found.
func (r *ConsistencyReport) Clean() bool {
	return len(r.OrphanChunkNodes) == 0 && len(r.StaleIndexRows) == 0 && len(r.MissingIndexRows) == 0
}

// CheckConsistency reconciles the graph tables against the vector and
// lexical indexes. It reports violations rather than silently trusting
// either store; Repair applies the fixes.
func (db *DB) CheckConsistency() (*ConsistencyReport, error) {
	report := &ConsistencyReport{}

	rows, err := db.Query(`
		SELECT DISTINCT c.node_id FROM embedding_chunks c
		LEFT JOIN nodes n ON n.id = c.node_id
		WHERE n.id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("check orphan chunks: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan orphan chunk: %w", err)
		}
		report.OrphanChunkNodes = append(report.OrphanChunkNodes, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = db.Query(`
		SELECT f.rowid FROM nodes_fts f
		LEFT JOIN nodes n ON n.id = f.rowid AND n.status = ?
		WHERE n.id IS NULL
	`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("check stale index rows: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan stale index row: %w", err)
		}
		report.StaleIndexRows = append(report.StaleIndexRows, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = db.Query(`
		SELECT n.id FROM nodes n
		LEFT JOIN nodes_fts f ON f.rowid = n.id
		WHERE n.status = ? AND n.text != '' AND f.rowid IS NULL
	`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("check missing index rows: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan missing index row: %w", err)
		}
		report.MissingIndexRows = append(report.MissingIndexRows, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	return report, nil
}

// Repair fixes the violations in a report: orphan chunks are dropped,
// stale index rows removed, missing index rows restored. Returns the
// number of repairs applied.
func (db *DB) Repair(report *ConsistencyReport) (int, error) {
	repaired := 0

	for _, id := range report.OrphanChunkNodes {
		if err := db.DeleteChunks(id); err != nil {
			return repaired, err
		}
		repaired++
	}

	tx, err := db.Begin()
	if err != nil {
		return repaired, fmt.Errorf("begin index repair: %w", err)
	}
	defer tx.Rollback()

	for _, id := range report.StaleIndexRows {
		if err := deindexNodeFTS(tx, id); err != nil {
			return repaired, err
		}
		repaired++
	}
	for _, id := range report.MissingIndexRows {
		var text, tagsJSON string
		if err := tx.QueryRow("SELECT text, tags FROM nodes WHERE id = ?", id).Scan(&text, &tagsJSON); err != nil {
			return repaired, fmt.Errorf("load node %d for reindex: %w", id, err)
		}
		if err := indexNodeFTS(tx, id, text, parseTagsJSON(tagsJSON)); err != nil {
			return repaired, err
		}
		repaired++
	}

	if err := tx.Commit(); err != nil {
		return repaired, fmt.Errorf("commit index repair: %w", err)
	}
	return repaired, nil
}
