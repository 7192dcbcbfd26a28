package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oakmoss/lineage/internal/engine"
	"github.com/oakmoss/lineage/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinel errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDanglingReference):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "dangling_reference",
			"detail": err.Error(),
		})
	case errors.Is(err, store.ErrImmutableType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrHopsNotElevated):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func urlID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}

func (s *Server) handleCreateNode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type     string         `json:"type"`
		Text     string         `json:"text"`
		Tags     []string       `json:"tags"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type required")
		return
	}

	node := &store.Node{
		Type:     req.Type,
		Text:     req.Text,
		Tags:     req.Tags,
		Metadata: req.Metadata,
	}
	if err := s.db.CreateNode(node); err != nil {
		if strings.Contains(err.Error(), "unknown type") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}

	// Embedding and relationship proposals are async; the write path
	// never waits on a model.
	if s.engine != nil {
		go s.embedAndPropose(node.ID)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":           node.ID,
		"embed_status": node.EmbedStatus,
	})
}

func (s *Server) embedAndPropose(nodeID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	node, err := s.db.GetNode(nodeID)
	if err != nil {
		log.Printf("embed node %d: %v", nodeID, err)
		return
	}
	if err := s.engine.EmbedNode(ctx, node); err != nil {
		log.Printf("embed node %d: %v", nodeID, err)
		return
	}
	if _, _, err := s.engine.ProposeEdges(ctx, nodeID); err != nil {
		log.Printf("propose edges for node %d: %v", nodeID, err)
	}
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "nodeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid node id")
		return
	}

	node, err := s.db.GetNode(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := map[string]any{"node": node}
	if s.engine != nil {
		if dist, ok, err := s.engine.HopDistance(r.Context(), id); err == nil && ok {
			resp["hop_distance"] = dist
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "nodeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid node id")
		return
	}

	var req struct {
		Type     *string        `json:"type"`
		Text     *string        `json:"text"`
		Status   string         `json:"status"`
		Tags     []string       `json:"tags"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Type != nil {
		writeError(w, http.StatusBadRequest, "node type is immutable")
		return
	}
	if req.Text != nil {
		writeError(w, http.StatusBadRequest, "text is immutable; supersede the node instead")
		return
	}

	if err := s.db.UpdateNode(id, req.Status, req.Tags, req.Metadata); err != nil {
		if strings.Contains(err.Error(), "unknown status") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}

	node, err := s.db.GetNode(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"node": node})
}

func (s *Server) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "nodeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid node id")
		return
	}

	if err := s.db.SoftDeleteNode(id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSupersedeNode(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "nodeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid node id")
		return
	}

	var req struct {
		Text string   `json:"text"`
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}

	node, err := s.db.SupersedeNode(id, req.Text, req.Tags)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if s.engine != nil {
		go s.embedAndPropose(node.ID)
	}

	writeJSON(w, http.StatusCreated, map[string]any{"node": node})
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "nodeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid node id")
		return
	}

	opts := store.NeighborOpts{
		Relation:  r.URL.Query().Get("relation"),
		Direction: r.URL.Query().Get("direction"),
		Elevated:  r.URL.Query().Get("elevated") == "true",
	}
	if h := r.URL.Query().Get("hops"); h != "" {
		n, err := strconv.Atoi(h)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid hops")
			return
		}
		opts.MaxHops = n
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			opts.MaxResults = n
		}
	}

	neighbors, err := s.db.Neighbors(r.Context(), id, opts)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"start":     id,
		"count":     len(neighbors),
		"neighbors": neighbors,
	})
}

func (s *Server) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromID      int64    `json:"from_id"`
		ToID        int64    `json:"to_id"`
		Relation    string   `json:"relation"`
		Description string   `json:"description"`
		Confidence  *float64 `json:"confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Relation == "" {
		writeError(w, http.StatusBadRequest, "relation required")
		return
	}

	confidence := 1.0
	if req.Confidence != nil {
		confidence = *req.Confidence
	}

	edgeID, err := s.db.PutEdge(&store.Edge{
		FromID:      req.FromID,
		ToID:        req.ToID,
		Relation:    req.Relation,
		Description: req.Description,
		Confidence:  confidence,
	})
	if err != nil {
		if strings.Contains(err.Error(), "unknown relation") ||
			strings.Contains(err.Error(), "confidence") {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"edge_id": edgeID})
}

func (s *Server) handleReviseConfidence(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "edgeID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid edge id")
		return
	}

	var req struct {
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := s.db.ReviseConfidence(id, req.Confidence); err != nil {
		if strings.Contains(err.Error(), "confidence") && !errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "retrieval engine not configured")
		return
	}

	q := engine.Query{
		Text:           r.URL.Query().Get("query"),
		Tier:           r.URL.Query().Get("tier"),
		IncludeDeleted: r.URL.Query().Get("include_deleted") == "true",
	}
	if t := r.URL.Query().Get("types"); t != "" {
		q.Types = strings.Split(t, ",")
	}
	if t := r.URL.Query().Get("tags"); t != "" {
		q.Tags = strings.Split(t, ",")
	}
	if a := r.URL.Query().Get("anchor"); a != "" {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid anchor id")
			return
		}
		q.AnchorID = id
	}

	result, err := s.engine.Retrieve(r.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInvalidQuery):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, engine.ErrRetrievalUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results":    result.Hits,
		"count":      len(result.Hits),
		"tier_used":  result.Tier,
		"degraded":   result.Degraded,
		"elapsed_ms": result.Elapsed.Milliseconds(),
	})
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	proposals, err := s.db.PendingProposals(limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(proposals),
		"proposals": proposals,
	})
}

func (s *Server) handleConfirmProposal(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "proposalID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	edgeID, err := s.db.ConfirmProposal(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "confirmed",
		"edge_id": edgeID,
	})
}

func (s *Server) handleRejectProposal(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "proposalID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid proposal id")
		return
	}

	if err := s.db.RejectProposal(id); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}
