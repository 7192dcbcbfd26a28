package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the lexical index and embed pending nodes",
	RunE:  runReindex,
}

func runReindex(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	indexed, err := db.RebuildFTS()
	if err != nil {
		return fmt.Errorf("rebuild lexical index: %w", err)
	}
	fmt.Printf("lexical index rebuilt: %d nodes\n", indexed)

	eng := buildEngine(db, loadConfig())
	defer eng.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	n, err := eng.EmbedPending(ctx)
	if err != nil {
		return fmt.Errorf("embed pending: %w", err)
	}
	fmt.Printf("embedded %d pending nodes\n", n)
	return nil
}
