package config

import "testing"

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 38642 {
		t.Errorf("Port = %d, want 38642", cfg.Server.Port)
	}
	if cfg.Embedding.OllamaURL != "http://localhost:11434" {
		t.Errorf("OllamaURL = %q", cfg.Embedding.OllamaURL)
	}
	if cfg.Embedding.RetryInterval <= 0 {
		t.Errorf("RetryInterval = %d, want positive", cfg.Embedding.RetryInterval)
	}
	if cfg.Proposer.SimilarityFloor >= cfg.Proposer.AcceptThreshold {
		t.Errorf("similarity floor %v must be below accept threshold %v",
			cfg.Proposer.SimilarityFloor, cfg.Proposer.AcceptThreshold)
	}
	if len(cfg.Graph.Roots) != 0 {
		t.Errorf("default roots = %v, want none", cfg.Graph.Roots)
	}
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	if got := cfg.ListenAddr(); got != "127.0.0.1:38642" {
		t.Errorf("ListenAddr() = %q", got)
	}

	cfg.Server.Bind = "0.0.0.0"
	cfg.Server.Port = 8080
	if got := cfg.ListenAddr(); got != "0.0.0.0:8080" {
		t.Errorf("ListenAddr() = %q", got)
	}
}
