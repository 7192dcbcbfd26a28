package store

import (
	"errors"
	"strings"
	"testing"
)

func TestCreateNode(t *testing.T) {
	db := testDB(t)

	node := &Node{
		Type: "decision",
		Text: "Adopt SQLite as the single persistence layer",
		Tags: []string{"storage", "architecture", "storage"},
	}
	if err := db.CreateNode(node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	if node.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if node.Status != StatusActive {
		t.Errorf("status = %q, want active", node.Status)
	}
	if node.EmbedStatus != EmbedPending {
		t.Errorf("embed_status = %q, want pending", node.EmbedStatus)
	}
	if len(node.Tags) != 2 {
		t.Errorf("tags = %v, want deduplicated pair", node.Tags)
	}
}

func TestCreateNodeBlankText(t *testing.T) {
	db := testDB(t)

	node := &Node{Type: "person", Text: ""}
	if err := db.CreateNode(node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if node.EmbedStatus != EmbedNone {
		t.Errorf("embed_status = %q, want none for blank text", node.EmbedStatus)
	}
}

func TestCreateNodeUnknownType(t *testing.T) {
	db := testDB(t)

	err := db.CreateNode(&Node{Type: "widget", Text: "nope"})
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestGetNodeNotFound(t *testing.T) {
	db := testDB(t)

	_, err := db.GetNode(999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNodeIDsNeverReused(t *testing.T) {
	db := testDB(t)

	first := &Node{Type: "insight", Text: "first"}
	if err := db.CreateNode(first); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := db.SoftDeleteNode(first.ID); err != nil {
		t.Fatalf("SoftDeleteNode: %v", err)
	}

	second := &Node{Type: "insight", Text: "second"}
	if err := db.CreateNode(second); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("second ID = %d, want > %d", second.ID, first.ID)
	}
}

func TestUpdateNodeUnknownStatus(t *testing.T) {
	db := testDB(t)

	node := &Node{Type: "task", Text: "status guard"}
	if err := db.CreateNode(node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	err := db.UpdateNode(node.ID, "zombie", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("err = %v, want unknown status", err)
	}

	got, err := db.GetNode(node.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("status = %q, want active", got.Status)
	}
}

func TestUpdateNodeTagsAndMetadata(t *testing.T) {
	db := testDB(t)

	node := &Node{Type: "task", Text: "wire the retrieval fan-out", Tags: []string{"old"}}
	if err := db.CreateNode(node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	err := db.UpdateNode(node.ID, "", []string{"retrieval", "engine"}, map[string]any{"owner": "mira"})
	if err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}

	got, err := db.GetNode(node.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "retrieval" {
		t.Errorf("tags = %v", got.Tags)
	}
	if got.Metadata["owner"] != "mira" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if got.Status != StatusActive {
		t.Errorf("status = %q, want unchanged active", got.Status)
	}
	if got.Type != "task" {
		t.Errorf("type = %q, want task", got.Type)
	}
}

func TestSoftDeletePreservesEdges(t *testing.T) {
	db := testDB(t)

	decision := &Node{Type: "decision", Text: "split the parser into two passes"}
	task := &Node{Type: "task", Text: "implement pass one"}
	for _, n := range []*Node{decision, task} {
		if err := db.CreateNode(n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}
	if _, err := db.PutEdge(&Edge{FromID: task.ID, ToID: decision.ID, Relation: "fulfills", Confidence: 0.9}); err != nil {
		t.Fatalf("PutEdge: %v", err)
	}

	if err := db.SoftDeleteNode(task.ID); err != nil {
		t.Fatalf("SoftDeleteNode: %v", err)
	}

	got, err := db.GetNode(task.ID)
	if err != nil {
		t.Fatalf("GetNode after delete: %v", err)
	}
	if got.Status != StatusDeleted {
		t.Errorf("status = %q, want deleted", got.Status)
	}

	edges, err := db.EdgesFrom(task.ID)
	if err != nil {
		t.Fatalf("EdgesFrom: %v", err)
	}
	if len(edges) != 1 {
		t.Errorf("edges after delete = %d, want 1", len(edges))
	}
}

func TestSupersedeNode(t *testing.T) {
	db := testDB(t)

	old := &Node{Type: "decision", Text: "cache everything in memory", Tags: []string{"cache"}}
	if err := db.CreateNode(old); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	replacement, err := db.SupersedeNode(old.ID, "cache hot paths only, spill to disk", nil)
	if err != nil {
		t.Fatalf("SupersedeNode: %v", err)
	}
	if replacement.ID == old.ID {
		t.Error("replacement should be a new node")
	}
	if replacement.Type != "decision" {
		t.Errorf("replacement type = %q, want decision", replacement.Type)
	}

	oldNode, err := db.GetNode(old.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if oldNode.Status != StatusSuperseded {
		t.Errorf("old status = %q, want superseded", oldNode.Status)
	}

	edges, err := db.EdgesFrom(replacement.ID)
	if err != nil {
		t.Fatalf("EdgesFrom: %v", err)
	}
	found := false
	for _, e := range edges {
		if e.Relation == "supersedes" && e.ToID == old.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("expected supersedes edge from %d to %d, got %v", replacement.ID, old.ID, edges)
	}
}

func TestSetEmbedStatus(t *testing.T) {
	db := testDB(t)

	node := &Node{Type: "document", Text: "runbook for the friday deploy"}
	if err := db.CreateNode(node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	if err := db.SetEmbedStatus(node.ID, EmbedOK); err != nil {
		t.Fatalf("SetEmbedStatus: %v", err)
	}
	pending, err := db.PendingEmbeds(0)
	if err != nil {
		t.Fatalf("PendingEmbeds: %v", err)
	}
	for _, p := range pending {
		if p.ID == node.ID {
			t.Error("node still pending after SetEmbedStatus ok")
		}
	}
}

// testDB is a helper that creates an in-memory DB for testing.
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
