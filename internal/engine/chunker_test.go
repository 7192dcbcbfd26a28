package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/oakmoss/lineage/internal/store"
)

func TestChunkProseShortText(t *testing.T) {
	text := "a short decision rationale that fits in one chunk"
	chunks := ChunkForLane(store.LaneProse, text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
	if chunks[0].Start != 0 || chunks[0].End != len(text) {
		t.Errorf("span = [%d,%d]", chunks[0].Start, chunks[0].End)
	}
}

func TestChunkProseWindowsOverlap(t *testing.T) {
	words := make([]string, 300)
	for i := range words {
		words[i] = fmt.Sprintf("w%03d", i)
	}
	text := strings.Join(words, " ")

	chunks := ChunkForLane(store.LaneProse, text)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3 for 300 words", len(chunks))
	}

	// Window steps by 100 words, so each chunk repeats the previous
	// chunk's last 20.
	if !strings.HasPrefix(chunks[1].Text, "w100") {
		t.Errorf("second chunk starts %q, want w100", chunks[1].Text[:4])
	}
	if !strings.Contains(chunks[0].Text, "w119") || !strings.Contains(chunks[1].Text, "w119") {
		t.Error("expected w119 inside the overlap of chunks 0 and 1")
	}

	// Spans index back into the original text.
	for i, c := range chunks {
		if text[c.Start:c.End] != c.Text {
			t.Errorf("chunk %d span does not match its text", i)
		}
	}
}

func TestChunkProseDeterministic(t *testing.T) {
	text := strings.Repeat("determinism matters for retrieval tests ", 60)
	a := ChunkForLane(store.LaneProse, text)
	b := ChunkForLane(store.LaneProse, text)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestChunkConversationalTurnWindows(t *testing.T) {
	var turns []string
	for i := 0; i < 10; i++ {
		turns = append(turns, fmt.Sprintf("speaker%d: turn number %d", i%2, i))
	}
	text := strings.Join(turns, "\n")

	chunks := ChunkForLane(store.LaneConversational, text)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2 for 10 turns", len(chunks))
	}
	// Second window starts at turn 4 (step = 6 - 2 overlap).
	if !strings.HasPrefix(chunks[1].Text, "speaker0: turn number 4") {
		t.Errorf("second chunk starts %q", strings.SplitN(chunks[1].Text, "\n", 2)[0])
	}
}

func TestChunkConversationalSkipsBlankTurns(t *testing.T) {
	text := "alice: hello\n\n\nbob: hi\n"
	chunks := ChunkForLane(store.LaneConversational, text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if strings.Count(chunks[0].Text, "\n\n") > 1 {
		t.Errorf("chunk kept blank turns: %q", chunks[0].Text)
	}
}

func TestChunkCodeDeclarationBoundaries(t *testing.T) {
	text := `func first() {
	a := 1
	b := 2
	c := 3
	return
}

func second() {
	x := 9
	y := 8
	z := 7
	return
}`

	chunks := ChunkForLane(store.LaneCode, text)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2 declarations", len(chunks))
	}
	if !strings.HasPrefix(chunks[0].Text, "func first") {
		t.Errorf("first chunk = %q", chunks[0].Text)
	}
	if !strings.HasPrefix(chunks[1].Text, "func second") {
		t.Errorf("second chunk = %q", chunks[1].Text)
	}
}

func TestChunkCodeMergesSmallUnits(t *testing.T) {
	text := `const a = 1

const b = 2

func bigger() {
	one()
	two()
	three()
	four()
}`

	chunks := ChunkForLane(store.LaneCode, text)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want small units merged into 1", len(chunks))
	}
}

func TestChunkEmptyText(t *testing.T) {
	for _, lane := range []string{store.LaneProse, store.LaneCode, store.LaneConversational} {
		if chunks := ChunkForLane(lane, ""); len(chunks) != 0 {
			t.Errorf("%s lane: got %d chunks for empty text", lane, len(chunks))
		}
	}
}
