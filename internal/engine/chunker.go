package engine

import (
	"strings"

	"github.com/oakmoss/lineage/internal/store"
)

// Chunk is a text span destined for one embedding call. Spans are byte
// offsets into the node's text.
type Chunk struct {
	Text  string
	Start int
	End   int
}

// Chunking parameters. These are fixed so the same input always produces
// the same chunk set. Retrieval tests depend on that determinism.
const (
	proseChunkWords   = 120 // ~500-650 characters of prose per chunk
	proseOverlapWords = 20  // ~17% overlap between adjacent chunks

	convWindowTurns  = 6
	convOverlapTurns = 2

	codeMinChunkLines = 5
)

// ChunkForLane splits text per the lane's strategy.
func ChunkForLane(lane, text string) []Chunk {
	switch lane {
	case store.LaneConversational:
		return chunkConversational(text)
	case store.LaneCode:
		return chunkCode(text)
	default:
		return chunkProse(text)
	}
}

type span struct {
	start, end int
}

// wordSpans returns byte spans of whitespace-separated words.
func wordSpans(text string) []span {
	var spans []span
	inWord := false
	start := 0
	for i, r := range text {
		switch {
		case r == ' ' || r == '\n' || r == '\t' || r == '\r':
			if inWord {
				spans = append(spans, span{start, i})
				inWord = false
			}
		default:
			if !inWord {
				start = i
				inWord = true
			}
		}
	}
	if inWord {
		spans = append(spans, span{start, len(text)})
	}
	return spans
}

// chunkProse slides a fixed word window with overlap. Window boundaries
// snap to word spans, never mid-word.
func chunkProse(text string) []Chunk {
	words := wordSpans(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= proseChunkWords {
		return []Chunk{{Text: text[words[0].start:words[len(words)-1].end], Start: words[0].start, End: words[len(words)-1].end}}
	}

	step := proseChunkWords - proseOverlapWords
	var chunks []Chunk
	for i := 0; i < len(words); i += step {
		end := i + proseChunkWords
		if end > len(words) {
			end = len(words)
		}
		s, e := words[i].start, words[end-1].end
		chunks = append(chunks, Chunk{Text: text[s:e], Start: s, End: e})
		if end == len(words) {
			break
		}
	}
	return chunks
}

// chunkConversational windows newline-delimited turns with a short
// overlap to preserve dialogue continuity across chunk boundaries.
func chunkConversational(text string) []Chunk {
	var turns []span
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			if strings.TrimSpace(text[start:i]) != "" {
				turns = append(turns, span{start, i})
			}
			start = i + 1
		}
	}
	if len(turns) == 0 {
		return nil
	}
	if len(turns) <= convWindowTurns {
		s, e := turns[0].start, turns[len(turns)-1].end
		return []Chunk{{Text: text[s:e], Start: s, End: e}}
	}

	step := convWindowTurns - convOverlapTurns
	var chunks []Chunk
	for i := 0; i < len(turns); i += step {
		end := i + convWindowTurns
		if end > len(turns) {
			end = len(turns)
		}
		s, e := turns[i].start, turns[end-1].end
		chunks = append(chunks, Chunk{Text: text[s:e], Start: s, End: e})
		if end == len(turns) {
			break
		}
	}
	return chunks
}

// chunkCode splits on syntactic unit boundaries: a blank line followed by
// an unindented line starts a new unit (top-level declaration in most
// brace or indentation languages). Small units merge forward until they
// reach a minimum size, so one-liners don't become their own chunks.
func chunkCode(text string) []Chunk {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return nil
	}

	// Byte offset of each line start.
	offsets := make([]int, len(lines)+1)
	for i, line := range lines {
		offsets[i+1] = offsets[i] + len(line) + 1
	}

	var boundaries []int // line indexes that start a unit
	boundaries = append(boundaries, 0)
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i-1]) == "" && isTopLevel(lines[i]) {
			boundaries = append(boundaries, i)
		}
	}
	boundaries = append(boundaries, len(lines))

	var chunks []Chunk
	unitStart := boundaries[0]
	for b := 1; b < len(boundaries); b++ {
		unitEnd := boundaries[b]
		if unitEnd-unitStart < codeMinChunkLines && b < len(boundaries)-1 {
			continue // merge small unit into the next one
		}
		s := offsets[unitStart]
		e := offsets[unitEnd] - 1
		if e > len(text) {
			e = len(text)
		}
		if chunkText := strings.TrimRight(text[s:e], "\n"); strings.TrimSpace(chunkText) != "" {
			chunks = append(chunks, Chunk{Text: chunkText, Start: s, End: s + len(chunkText)})
		}
		unitStart = unitEnd
	}
	return chunks
}

func isTopLevel(line string) bool {
	if line == "" {
		return false
	}
	return line[0] != ' ' && line[0] != '\t'
}
