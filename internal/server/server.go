package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oakmoss/lineage/internal/engine"
	"github.com/oakmoss/lineage/internal/store"
)

// Server is the lineage HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server with the given database, engine, and version string.
func New(db *store.DB, eng *engine.Engine, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/nodes", s.handleCreateNode)
		r.Get("/nodes/{nodeID}", s.handleGetNode)
		r.Patch("/nodes/{nodeID}", s.handleUpdateNode)
		r.Delete("/nodes/{nodeID}", s.handleDeleteNode)
		r.Post("/nodes/{nodeID}/supersede", s.handleSupersedeNode)
		r.Get("/nodes/{nodeID}/neighbors", s.handleNeighbors)

		r.Post("/edges", s.handleCreateEdge)
		r.Patch("/edges/{edgeID}/confidence", s.handleReviseConfidence)

		r.Get("/retrieve", s.handleRetrieve)

		r.Get("/proposals", s.handleListProposals)
		r.Post("/proposals/{proposalID}/confirm", s.handleConfirmProposal)
		r.Post("/proposals/{proposalID}/reject", s.handleRejectProposal)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":        "ok",
		"version":       s.version,
		"uptime":        time.Since(s.started).Seconds(),
		"db":            dbOK,
		"db_path":       s.db.Path,
		"graph_version": s.db.GraphVersion(),
	})
}
