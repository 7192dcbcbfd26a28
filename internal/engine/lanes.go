package engine

import (
	"strings"

	"github.com/oakmoss/lineage/internal/store"
)

// laneByType maps node types with an unambiguous content kind straight to
// a lane. Everything else falls through to content heuristics.
var laneByType = map[string]string{
	"conversation": store.LaneConversational,
	"message":      store.LaneConversational,
	"meeting":      store.LaneConversational,
	"file":         store.LaneCode,
	"snippet":      store.LaneCode,
}

// SelectLane picks the embedding lane for a node. Pure function of node
// type and content shape, so the same node always lands in the same lane.
func SelectLane(nodeType, text string) string {
	if lane, ok := laneByType[nodeType]; ok {
		if lane == store.LaneCode && !looksLikeCode(text) {
			// A "file" node carrying prose (README, docs) embeds better
			// in the prose lane.
			return store.LaneProse
		}
		return lane
	}
	if looksLikeCode(text) {
		return store.LaneCode
	}
	return store.LaneProse
}

// looksLikeCode applies cheap structural heuristics: fenced blocks, a
// high density of indented lines, or statement-terminator punctuation.
func looksLikeCode(text string) bool {
	if strings.Contains(text, "```") {
		return true
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return false
	}
	indented := 0
	braced := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "    ") {
			indented++
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, "{") || strings.HasSuffix(trimmed, ";") ||
			strings.HasSuffix(trimmed, "}") {
			braced++
		}
	}
	return indented*2 > len(lines) || braced*3 > len(lines)
}
