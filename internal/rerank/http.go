package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CrossEncoder calls an external cross-encoder rerank endpoint
// (query + candidate text pairs in, relevance scores out).
type CrossEncoder struct {
	url    string
	model  string
	client *http.Client
}

// NewCrossEncoder creates a reranker for the given endpoint and model id.
func NewCrossEncoder(url, model string) *CrossEncoder {
	return &CrossEncoder{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Rerank posts the query and documents and returns score-ordered results.
func (c *CrossEncoder) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Scored, error) {
	docs := make([]string, len(candidates))
	for i, cand := range candidates {
		docs[i] = cand.Text
	}
	body, err := json.Marshal(map[string]any{
		"model":     c.model,
		"query":     query,
		"documents": docs,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	scored := make([]Scored, 0, len(result.Results))
	for _, r := range result.Results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		scored = append(scored, Scored{NodeID: candidates[r.Index].NodeID, Score: r.Score})
	}
	if len(scored) == 0 {
		return nil, fmt.Errorf("rerank returned no usable results")
	}
	return scored, nil
}
