package config

import "fmt"

// Config holds all lineage configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Rerank    RerankConfig    `toml:"rerank"`
	Proposer  ProposerConfig  `toml:"proposer"`
	Tiers     TiersConfig     `toml:"tiers"`
	Graph     GraphConfig     `toml:"graph"`
}

// GraphConfig designates the decision nodes used as hop-distance roots.
// Empty means no roots: hop distances are omitted from node responses.
type GraphConfig struct {
	Roots []int64 `toml:"roots"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// EmbeddingConfig wires the per-lane embedding models. All lanes share
// one Ollama-compatible endpoint; a lane with an empty model falls back
// to the prose lane.
type EmbeddingConfig struct {
	OllamaURL         string `toml:"ollama_url"`
	ProseModel        string `toml:"prose_model"`
	CodeModel         string `toml:"code_model"`
	ConversationModel string `toml:"conversation_model"`
	RetryInterval     int    `toml:"retry_interval"` // seconds
}

type RerankConfig struct {
	URL   string `toml:"url"` // empty = local term-overlap fallback
	Model string `toml:"model"`
}

type ProposerConfig struct {
	SimilarityFloor float64 `toml:"similarity_floor"`
	AcceptThreshold float64 `toml:"accept_threshold"`
	MaxPerNode      int     `toml:"max_per_node"`
}

// TiersConfig overrides the tier latency budgets, in milliseconds.
// Zero keeps the built-in default.
type TiersConfig struct {
	OverviewBudget    int `toml:"overview_budget_ms"`
	ExplorationBudget int `toml:"exploration_budget_ms"`
	DeepBudget        int `toml:"deep_budget_ms"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 38642,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Embedding: EmbeddingConfig{
			OllamaURL:         "http://localhost:11434",
			ProseModel:        "nomic-embed-text",
			CodeModel:         "nomic-embed-text",
			ConversationModel: "nomic-embed-text",
			RetryInterval:     60,
		},
		Proposer: ProposerConfig{
			SimilarityFloor: 0.55,
			AcceptThreshold: 0.8,
			MaxPerNode:      5,
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
