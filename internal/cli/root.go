package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Decision-genealogy knowledge graph with tiered hybrid retrieval",
	Long:  "Lineage records decisions, the work that implements them, and the conversations around them as a typed graph, and retrieves context through progressively deeper hybrid search tiers. Single Go binary.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(proposeCmd)
}
