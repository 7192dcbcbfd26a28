package rerank

import (
	"context"
	"testing"
)

func TestTermOverlapOrdersByRelevance(t *testing.T) {
	candidates := []Candidate{
		{NodeID: 1, Text: "rotate logs daily at midnight"},
		{NodeID: 2, Text: "rotate signing keys quarterly for compliance"},
		{NodeID: 3, Text: "office seating chart"},
	}

	scored, err := TermOverlap{}.Rerank(context.Background(), "rotate signing keys", candidates)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(scored) != 3 {
		t.Fatalf("got %d scored, want 3", len(scored))
	}
	if scored[0].NodeID != 2 {
		t.Errorf("top = %d, want 2", scored[0].NodeID)
	}
	if scored[len(scored)-1].NodeID != 3 {
		t.Errorf("bottom = %d, want 3", scored[len(scored)-1].NodeID)
	}
	if scored[0].Score <= scored[1].Score {
		t.Errorf("scores not descending: %v", scored)
	}
}

func TestTermOverlapDeterministicTies(t *testing.T) {
	candidates := []Candidate{
		{NodeID: 5, Text: "identical text"},
		{NodeID: 2, Text: "identical text"},
	}

	first, err := TermOverlap{}.Rerank(context.Background(), "identical", candidates)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	// Ties keep input order on every run.
	for i := 0; i < 5; i++ {
		again, _ := TermOverlap{}.Rerank(context.Background(), "identical", candidates)
		for j := range first {
			if again[j].NodeID != first[j].NodeID {
				t.Fatalf("tie order changed on run %d", i)
			}
		}
	}
	if first[0].NodeID != 5 {
		t.Errorf("tie order = %v, want input order", first)
	}
}

func TestTermOverlapEmptyCandidates(t *testing.T) {
	scored, err := TermOverlap{}.Rerank(context.Background(), "whatever", nil)
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(scored) != 0 {
		t.Errorf("scored = %v, want empty", scored)
	}
}
