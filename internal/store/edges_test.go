package store

import (
	"errors"
	"testing"
)

func TestPutEdge(t *testing.T) {
	db := testDB(t)

	a := &Node{Type: "decision", Text: "batch writes"}
	b := &Node{Type: "decision", Text: "batch writes, but bounded"}
	for _, n := range []*Node{a, b} {
		if err := db.CreateNode(n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}

	id, err := db.PutEdge(&Edge{FromID: b.ID, ToID: a.ID, Relation: "builds_upon", Confidence: 0.85})
	if err != nil {
		t.Fatalf("PutEdge: %v", err)
	}

	edge, err := db.GetEdge(id)
	if err != nil {
		t.Fatalf("GetEdge: %v", err)
	}
	if edge.Relation != "builds_upon" || edge.Confidence != 0.85 {
		t.Errorf("edge = %+v", edge)
	}
}

func TestPutEdgeDangling(t *testing.T) {
	db := testDB(t)

	a := &Node{Type: "decision", Text: "real endpoint"}
	if err := db.CreateNode(a); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	_, err := db.PutEdge(&Edge{FromID: a.ID, ToID: 9999, Relation: "references", Confidence: 1})
	if !errors.Is(err, ErrDanglingReference) {
		t.Fatalf("err = %v, want ErrDanglingReference", err)
	}

	// The rejected edge must not be stored.
	count, err := db.CountEdges()
	if err != nil {
		t.Fatalf("CountEdges: %v", err)
	}
	if count != 0 {
		t.Errorf("edge count = %d, want 0 after rejected write", count)
	}
}

func TestPutEdgeUnknownRelation(t *testing.T) {
	db := testDB(t)

	a := &Node{Type: "decision", Text: "a"}
	b := &Node{Type: "decision", Text: "b"}
	for _, n := range []*Node{a, b} {
		if err := db.CreateNode(n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}

	if _, err := db.PutEdge(&Edge{FromID: a.ID, ToID: b.ID, Relation: "likes", Confidence: 1}); err == nil {
		t.Error("expected error for unknown relation")
	}
}

func TestPutEdgeConfidenceRange(t *testing.T) {
	db := testDB(t)

	a := &Node{Type: "decision", Text: "a"}
	b := &Node{Type: "decision", Text: "b"}
	for _, n := range []*Node{a, b} {
		if err := db.CreateNode(n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}

	if _, err := db.PutEdge(&Edge{FromID: a.ID, ToID: b.ID, Relation: "references", Confidence: 1.5}); err == nil {
		t.Error("expected error for confidence > 1")
	}
}

func TestPutEdgeSelfLoop(t *testing.T) {
	db := testDB(t)

	a := &Node{Type: "document", Text: "self-referential design note"}
	if err := db.CreateNode(a); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	if _, err := db.PutEdge(&Edge{FromID: a.ID, ToID: a.ID, Relation: "references", Confidence: 1}); err != nil {
		t.Errorf("self-loop rejected: %v", err)
	}
}

func TestPutEdgeToSoftDeletedEndpoint(t *testing.T) {
	db := testDB(t)

	a := &Node{Type: "decision", Text: "keep it"}
	b := &Node{Type: "decision", Text: "drop it"}
	for _, n := range []*Node{a, b} {
		if err := db.CreateNode(n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}
	if err := db.SoftDeleteNode(b.ID); err != nil {
		t.Fatalf("SoftDeleteNode: %v", err)
	}

	// Historical linking stays possible: soft-deleted nodes are still
	// real endpoints.
	if _, err := db.PutEdge(&Edge{FromID: a.ID, ToID: b.ID, Relation: "supersedes", Confidence: 1}); err != nil {
		t.Errorf("edge to soft-deleted node rejected: %v", err)
	}
}

func TestReviseConfidence(t *testing.T) {
	db := testDB(t)

	a := &Node{Type: "insight", Text: "latency is dominated by fsync"}
	b := &Node{Type: "experiment", Text: "fsync batching benchmark"}
	for _, n := range []*Node{a, b} {
		if err := db.CreateNode(n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}
	id, err := db.PutEdge(&Edge{FromID: b.ID, ToID: a.ID, Relation: "validates", Confidence: 0.5})
	if err != nil {
		t.Fatalf("PutEdge: %v", err)
	}

	if err := db.ReviseConfidence(id, 0.95); err != nil {
		t.Fatalf("ReviseConfidence: %v", err)
	}
	edge, err := db.GetEdge(id)
	if err != nil {
		t.Fatalf("GetEdge: %v", err)
	}
	if edge.Confidence != 0.95 {
		t.Errorf("confidence = %f, want 0.95", edge.Confidence)
	}

	if err := db.ReviseConfidence(id, 2); err == nil {
		t.Error("expected error for out-of-range confidence")
	}
	if err := db.ReviseConfidence(9999, 0.5); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
