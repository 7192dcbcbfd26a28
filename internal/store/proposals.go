package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Proposal statuses.
const (
	ProposalProposed  = "proposed"
	ProposalConfirmed = "confirmed"
	ProposalRejected  = "rejected"
)

// EdgeProposal is a candidate edge produced by the relationship builder.
// Below-threshold proposals wait here for explicit confirmation instead of
// polluting the graph with low-confidence genealogy.
type EdgeProposal struct {
	ID         int64   `json:"id"`
	FromID     int64   `json:"from_id"`
	ToID       int64   `json:"to_id"`
	Relation   string  `json:"relation"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
	Status     string  `json:"status"`
	CreatedAt  int64   `json:"created_at"`
}

// CreateProposal records a candidate edge for later confirmation.
func (db *DB) CreateProposal(p *EdgeProposal) error {
	if !ValidRelation(p.Relation) {
		return fmt.Errorf("create proposal: unknown relation %q", p.Relation)
	}
	now := time.Now().UnixMilli()
	res, err := db.Exec(`
		INSERT INTO edge_proposals (from_id, to_id, relation, confidence, evidence, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.FromID, p.ToID, p.Relation, p.Confidence, p.Evidence, ProposalProposed, now)
	if err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	id, _ := res.LastInsertId()
	p.ID = id
	p.Status = ProposalProposed
	p.CreatedAt = now
	return nil
}

// GetProposal returns a proposal by id, or ErrNotFound.
func (db *DB) GetProposal(id int64) (*EdgeProposal, error) {
	var p EdgeProposal
	err := db.QueryRow(`
		SELECT id, from_id, to_id, relation, confidence, evidence, status, created_at
		FROM edge_proposals WHERE id = ?
	`, id).Scan(&p.ID, &p.FromID, &p.ToID, &p.Relation, &p.Confidence, &p.Evidence, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("proposal %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal %d: %w", id, err)
	}
	return &p, nil
}

// PendingProposals lists proposals awaiting confirmation, newest first.
func (db *DB) PendingProposals(limit int) ([]EdgeProposal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, from_id, to_id, relation, confidence, evidence, status, created_at
		FROM edge_proposals WHERE status = ?
		ORDER BY created_at DESC LIMIT ?
	`, ProposalProposed, limit)
	if err != nil {
		return nil, fmt.Errorf("pending proposals: %w", err)
	}
	defer rows.Close()

	var proposals []EdgeProposal
	for rows.Next() {
		var p EdgeProposal
		if err := rows.Scan(&p.ID, &p.FromID, &p.ToID, &p.Relation, &p.Confidence, &p.Evidence, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

// ConfirmProposal commits the proposed edge and marks the proposal
// confirmed. Returns the new edge id.
func (db *DB) ConfirmProposal(id int64) (int64, error) {
	p, err := db.GetProposal(id)
	if err != nil {
		return 0, err
	}
	if p.Status != ProposalProposed {
		return 0, fmt.Errorf("proposal %d already %s", id, p.Status)
	}

	edgeID, err := db.PutEdge(&Edge{
		FromID:      p.FromID,
		ToID:        p.ToID,
		Relation:    p.Relation,
		Description: p.Evidence,
		Confidence:  p.Confidence,
	})
	if err != nil {
		return 0, fmt.Errorf("confirm proposal %d: %w", id, err)
	}

	if _, err := db.Exec("UPDATE edge_proposals SET status = ? WHERE id = ?", ProposalConfirmed, id); err != nil {
		return 0, fmt.Errorf("mark proposal %d confirmed: %w", id, err)
	}
	return edgeID, nil
}

// RejectProposal marks a proposal rejected without touching the graph.
func (db *DB) RejectProposal(id int64) error {
	p, err := db.GetProposal(id)
	if err != nil {
		return err
	}
	if p.Status != ProposalProposed {
		return fmt.Errorf("proposal %d already %s", id, p.Status)
	}
	if _, err := db.Exec("UPDATE edge_proposals SET status = ? WHERE id = ?", ProposalRejected, id); err != nil {
		return fmt.Errorf("reject proposal %d: %w", id, err)
	}
	return nil
}
