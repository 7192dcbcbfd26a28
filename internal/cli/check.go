package cli

import (
	"fmt"
	"os"

	"github.com/oakmoss/lineage/internal/store"
	"github.com/spf13/cobra"
)

var checkFix bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify graph/index consistency",
	Long:  "Check cross-references between the graph tables, the lexical index, and stored embedding chunks. With --fix, drift is repaired in place.",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkFix, "fix", false, "repair inconsistencies")
}

func runCheck(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := db.CheckConsistency()
	if err != nil {
		return fmt.Errorf("consistency check: %w", err)
	}

	nodes, _ := db.CountNodes()
	edges, _ := db.CountEdges()
	chunks, _ := db.CountChunks()
	fmt.Printf("nodes: %d  edges: %d  chunks: %d  graph_version: %d\n",
		nodes, edges, chunks, db.GraphVersion())

	if report.Clean() {
		fmt.Println("consistent")
		return nil
	}

	fmt.Printf("orphaned chunk sets: %d\n", len(report.OrphanChunkNodes))
	fmt.Printf("stale index rows:    %d\n", len(report.StaleIndexRows))
	fmt.Printf("missing index rows:  %d\n", len(report.MissingIndexRows))

	if !checkFix {
		fmt.Println("run with --fix to repair")
		os.Exit(1)
	}

	n, err := db.Repair(report)
	if err != nil {
		return fmt.Errorf("repair: %w", err)
	}
	fmt.Printf("repaired %d entries\n", n)
	return nil
}

// openDB resolves the database path and opens the store for a one-shot
// command.
func openDB() (*store.DB, error) {
	path := os.Getenv("LINEAGE_DB")
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
