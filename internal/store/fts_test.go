package store

import (
	"context"
	"testing"
)

func TestSearchLexical(t *testing.T) {
	db := testDB(t)

	match := &Node{Type: "decision", Text: "Use write-ahead logging for crash recovery"}
	miss := &Node{Type: "decision", Text: "Ship the onboarding flow next sprint"}
	for _, n := range []*Node{match, miss} {
		if err := db.CreateNode(n); err != nil {
			t.Fatalf("CreateNode: %v", err)
		}
	}

	hits, err := db.SearchLexical(context.Background(), "crash recovery logging", 10)
	if err != nil {
		t.Fatalf("SearchLexical: %v", err)
	}
	if len(hits) != 1 || hits[0].NodeID != match.ID {
		t.Fatalf("hits = %v, want only node %d", hits, match.ID)
	}
	if hits[0].Score <= 0 {
		t.Errorf("score = %f, want > 0", hits[0].Score)
	}
}

func TestSearchLexicalStemming(t *testing.T) {
	db := testDB(t)

	n := &Node{Type: "insight", Text: "retries amplified the outage"}
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	hits, err := db.SearchLexical(context.Background(), "retry amplification", 10)
	if err != nil {
		t.Fatalf("SearchLexical: %v", err)
	}
	if len(hits) == 0 {
		t.Error("porter stemming should match inflected forms")
	}
}

func TestSearchLexicalTags(t *testing.T) {
	db := testDB(t)

	n := &Node{Type: "task", Text: "tighten the loop", Tags: []string{"scheduler"}}
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	hits, err := db.SearchLexical(context.Background(), "scheduler", 10)
	if err != nil {
		t.Fatalf("SearchLexical: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("tag search hits = %d, want 1", len(hits))
	}
}

func TestSearchLexicalExcludesInactive(t *testing.T) {
	db := testDB(t)

	n := &Node{Type: "decision", Text: "deprecate the legacy importer"}
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := db.SoftDeleteNode(n.ID); err != nil {
		t.Fatalf("SoftDeleteNode: %v", err)
	}

	hits, err := db.SearchLexical(context.Background(), "legacy importer", 10)
	if err != nil {
		t.Fatalf("SearchLexical: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %v, want none for deleted node", hits)
	}
}

func TestSearchLexicalStopwordsOnly(t *testing.T) {
	db := testDB(t)

	hits, err := db.SearchLexical(context.Background(), "the of and a", 10)
	if err != nil {
		t.Fatalf("SearchLexical: %v", err)
	}
	if hits != nil {
		t.Errorf("hits = %v, want nil for stopword-only query", hits)
	}
}

func TestSearchLexicalQuerySyntaxInert(t *testing.T) {
	db := testDB(t)

	n := &Node{Type: "snippet", Text: "parser handles nested parens"}
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	// FTS5 operators in user input must not cause query errors.
	if _, err := db.SearchLexical(context.Background(), `parser AND (nested OR "parens`, 10); err != nil {
		t.Errorf("SearchLexical with syntax chars: %v", err)
	}
}

func TestRebuildFTS(t *testing.T) {
	db := testDB(t)

	n := &Node{Type: "document", Text: "release checklist for the gateway"}
	if err := db.CreateNode(n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	deleted := &Node{Type: "document", Text: "obsolete checklist"}
	if err := db.CreateNode(deleted); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := db.SoftDeleteNode(deleted.ID); err != nil {
		t.Fatalf("SoftDeleteNode: %v", err)
	}

	count, err := db.RebuildFTS()
	if err != nil {
		t.Fatalf("RebuildFTS: %v", err)
	}
	if count != 1 {
		t.Errorf("rebuilt %d rows, want 1 active node", count)
	}

	hits, err := db.SearchLexical(context.Background(), "gateway checklist", 10)
	if err != nil {
		t.Fatalf("SearchLexical: %v", err)
	}
	if len(hits) != 1 || hits[0].NodeID != n.ID {
		t.Errorf("hits after rebuild = %v", hits)
	}
}
