package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/oakmoss/lineage/internal/store"
)

func TestEmbedNodeWritesChunks(t *testing.T) {
	eng := testEngine(t)

	node := addNode(t, eng, "decision", "serve stale reads during failover")

	got, err := eng.DB.GetNode(node.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.EmbedStatus != store.EmbedOK {
		t.Errorf("embed_status = %q, want ok", got.EmbedStatus)
	}

	chunks, err := eng.DB.ChunksForNode(node.ID, store.LaneProse)
	if err != nil {
		t.Fatalf("ChunksForNode: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Model != "hashing" {
		t.Errorf("model = %q", chunks[0].Model)
	}
	if chunks[0].SpanEnd <= chunks[0].SpanStart {
		t.Errorf("span = [%d,%d]", chunks[0].SpanStart, chunks[0].SpanEnd)
	}
}

func TestEmbedNodeBlankText(t *testing.T) {
	eng := testEngine(t)

	node := &store.Node{Type: "person", Text: "   "}
	if err := eng.DB.CreateNode(node); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := eng.EmbedNode(context.Background(), node); err != nil {
		t.Fatalf("EmbedNode: %v", err)
	}

	got, err := eng.DB.GetNode(node.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.EmbedStatus != store.EmbedNone {
		t.Errorf("embed_status = %q, want none", got.EmbedStatus)
	}
}

// failingEmbedder always errors, standing in for an unreachable provider.
type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("provider unreachable")
}
func (failingEmbedder) Model() string   { return "failing" }
func (failingEmbedder) Dimensions() int { return 0 }

func TestEmbedNodeFailureLeavesPriorChunks(t *testing.T) {
	eng := testEngine(t)

	node := addNode(t, eng, "decision", "first version of the text")
	before, err := eng.DB.ChunksForNode(node.ID, store.LaneProse)
	if err != nil {
		t.Fatalf("ChunksForNode: %v", err)
	}

	eng.Lanes[store.LaneProse] = failingEmbedder{}
	if err := eng.EmbedNode(context.Background(), node); err == nil {
		t.Fatal("expected embed failure")
	}

	// Prior chunk set untouched, node queued for retry.
	after, err := eng.DB.ChunksForNode(node.ID, store.LaneProse)
	if err != nil {
		t.Fatalf("ChunksForNode: %v", err)
	}
	if len(after) != len(before) {
		t.Errorf("chunks = %d, want untouched %d", len(after), len(before))
	}
	got, err := eng.DB.GetNode(node.ID)
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.EmbedStatus != store.EmbedPending {
		t.Errorf("embed_status = %q, want pending after failure", got.EmbedStatus)
	}
}

func TestEmbedPending(t *testing.T) {
	eng := testEngine(t)

	nodes := []*store.Node{
		{Type: "decision", Text: "queue everything"},
		{Type: "task", Text: "drain the queue"},
	}
	for _, n := range nodes {
		if err := eng.DB.CreateNode(n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}

	n, err := eng.EmbedPending(context.Background())
	if err != nil {
		t.Fatalf("EmbedPending: %v", err)
	}
	if n != 2 {
		t.Errorf("embedded %d nodes, want 2", n)
	}

	pending, err := eng.DB.PendingEmbeds(0)
	if err != nil {
		t.Fatalf("PendingEmbeds: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("still pending: %v", pending)
	}
}
