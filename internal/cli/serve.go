package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/oakmoss/lineage/internal/config"
	"github.com/oakmoss/lineage/internal/engine"
	"github.com/oakmoss/lineage/internal/rerank"
	"github.com/oakmoss/lineage/internal/server"
	"github.com/oakmoss/lineage/internal/store"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

// loadConfig applies environment overrides on top of the defaults.
func loadConfig() config.Config {
	cfg := config.Default()
	if v := os.Getenv("LINEAGE_DB"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LINEAGE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("LINEAGE_OLLAMA_URL"); v != "" {
		cfg.Embedding.OllamaURL = v
	}
	if v := os.Getenv("LINEAGE_RERANK_URL"); v != "" {
		cfg.Rerank.URL = v
	}
	if v := os.Getenv("LINEAGE_ROOTS"); v != "" {
		var roots []int64
		for _, part := range strings.Split(v, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil && id > 0 {
				roots = append(roots, id)
			}
		}
		cfg.Graph.Roots = roots
	}
	return cfg
}

// buildEngine wires the per-lane embedders and the reranker. Ollama
// absence degrades to the deterministic hashing embedder so the server
// works offline.
func buildEngine(db *store.DB, cfg config.Config) *engine.Engine {
	lanes := map[string]engine.Embedder{}

	laneModels := map[string]string{
		store.LaneProse:          cfg.Embedding.ProseModel,
		store.LaneCode:           cfg.Embedding.CodeModel,
		store.LaneConversational: cfg.Embedding.ConversationModel,
	}
	for lane, model := range laneModels {
		if model == "" {
			continue
		}
		if engine.ProbeOllama(cfg.Embedding.OllamaURL, model) {
			lanes[lane] = engine.NewOllamaEmbedder(cfg.Embedding.OllamaURL, model, 768)
			fmt.Fprintf(os.Stderr, "  %s lane: ollama (%s)\n", lane, model)
		}
	}
	if lanes[store.LaneProse] == nil {
		lanes[store.LaneProse] = engine.NewHashingEmbedder(256)
		fmt.Fprintf(os.Stderr, "  prose lane: hashing (fallback)\n")
	}

	eng := engine.New(db, lanes)
	if len(cfg.Graph.Roots) > 0 {
		eng.SetRoots(cfg.Graph.Roots)
	}
	eng.Proposer.SimilarityFloor = cfg.Proposer.SimilarityFloor
	eng.Proposer.AcceptThreshold = cfg.Proposer.AcceptThreshold
	eng.Proposer.MaxPerNode = cfg.Proposer.MaxPerNode

	if cfg.Tiers.OverviewBudget > 0 {
		eng.Tiers.Overview.Budget = time.Duration(cfg.Tiers.OverviewBudget) * time.Millisecond
	}
	if cfg.Tiers.ExplorationBudget > 0 {
		eng.Tiers.Exploration.Budget = time.Duration(cfg.Tiers.ExplorationBudget) * time.Millisecond
	}
	if cfg.Tiers.DeepBudget > 0 {
		eng.Tiers.Deep.Budget = time.Duration(cfg.Tiers.DeepBudget) * time.Millisecond
	}

	if cfg.Rerank.URL != "" {
		eng.SetReranker(rerank.NewCrossEncoder(cfg.Rerank.URL, cfg.Rerank.Model))
		fmt.Fprintf(os.Stderr, "  reranker: %s\n", cfg.Rerank.URL)
	} else {
		eng.SetReranker(rerank.TermOverlap{})
		fmt.Fprintf(os.Stderr, "  reranker: term-overlap (local)\n")
	}
	return eng
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Startup consistency reconciliation. Index drift is repaired
	// before the server takes traffic.
	if report, err := db.CheckConsistency(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: consistency check failed: %v\n", err)
	} else if !report.Clean() {
		if n, err := db.Repair(report); err != nil {
			fmt.Fprintf(os.Stderr, "warning: consistency repair failed: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "  repaired %d inconsistent index entries\n", n)
		}
	}

	eng := buildEngine(db, cfg)
	eng.StartRetryTimer(time.Duration(cfg.Embedding.RetryInterval) * time.Second)
	defer eng.Stop()

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "lineage serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
