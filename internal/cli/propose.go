package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/oakmoss/lineage/internal/store"
	"github.com/spf13/cobra"
)

var proposeCmd = &cobra.Command{
	Use:   "propose",
	Short: "Sweep active nodes for relationship candidates",
	Long:  "Compare active nodes by embedding similarity, shared tags, and creation-time proximity. High-confidence pairs become edges; the rest are queued as proposals for review.",
	RunE:  runPropose,
}

func runPropose(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	eng := buildEngine(db, loadConfig())
	defer eng.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	nodes, err := db.PendingEmbeds(0)
	if err != nil {
		return fmt.Errorf("list pending embeds: %w", err)
	}
	for i := range nodes {
		if err := eng.EmbedNode(ctx, &nodes[i]); err != nil {
			fmt.Printf("embed node %d: %v\n", nodes[i].ID, err)
		}
	}

	chunks, err := db.ActiveChunks(ctx)
	if err != nil {
		return fmt.Errorf("list embedded nodes: %w", err)
	}
	seen := map[int64]bool{}
	committed, proposed := 0, 0
	for _, ch := range chunks {
		if seen[ch.NodeID] {
			continue
		}
		seen[ch.NodeID] = true

		node, err := db.GetNode(ch.NodeID)
		if err != nil || node.Status != store.StatusActive {
			continue
		}
		c, p, err := eng.ProposeEdges(ctx, ch.NodeID)
		if err != nil {
			fmt.Printf("propose for node %d: %v\n", ch.NodeID, err)
			continue
		}
		committed += c
		proposed += p
	}

	fmt.Printf("committed %d edges, queued %d proposals\n", committed, proposed)
	return nil
}
