package engine

import (
	"testing"

	"github.com/oakmoss/lineage/internal/store"
)

func TestSelectLaneByType(t *testing.T) {
	cases := []struct {
		nodeType string
		text     string
		want     string
	}{
		{"conversation", "alice: hi\nbob: hello", store.LaneConversational},
		{"message", "quick question about the cache", store.LaneConversational},
		{"meeting", "attendees discussed the rollout", store.LaneConversational},
		{"decision", "we will shard by tenant", store.LaneProse},
		{"snippet", "func main() {\n\trun()\n\tstop()\n}", store.LaneCode},
	}
	for _, c := range cases {
		if got := SelectLane(c.nodeType, c.text); got != c.want {
			t.Errorf("SelectLane(%s) = %s, want %s", c.nodeType, got, c.want)
		}
	}
}

func TestSelectLaneFileWithProse(t *testing.T) {
	text := "This README explains how to install the tool and why it exists. No code here, just paragraphs of ordinary prose describing usage."
	if got := SelectLane("file", text); got != store.LaneProse {
		t.Errorf("prose-shaped file landed in %s lane", got)
	}
}

func TestSelectLaneContentHeuristic(t *testing.T) {
	code := "let x = 1;\nlet y = 2;\nlet z = x + y;\nconsole.log(z);"
	if got := SelectLane("document", code); got != store.LaneCode {
		t.Errorf("code-shaped document landed in %s lane", got)
	}

	fenced := "Here is the fix:\n```\npatch()\n```"
	if got := SelectLane("answer", fenced); got != store.LaneCode {
		t.Errorf("fenced answer landed in %s lane", got)
	}
}
