package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/genericsim/tribectl/internal/model"
)

// Server exposes a Store over the Tribe Service JSON contract.
type Server struct {
	store   *Store
	metrics *Metrics
	origins []string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithCORSOrigins sets the allowed browser origins. Defaults to "*".
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithMetrics replaces the server's metrics.
func WithMetrics(m *Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// New creates a server over store.
func New(store *Store, opts ...ServerOption) *Server {
	s := &Server{
		store:   store,
		metrics: NewMetrics("tribe_devserver"),
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router. API routes live under /api; /metrics sits at
// the root.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.metrics.Middleware)
		r.Get("/health", s.health)
		r.Get("/tribes", s.listTribes)
		r.Route("/tribes/{id}", func(r chi.Router) {
			r.Get("/", s.getTribe)
			r.Get("/statistics", s.getStatistics)
			r.Put("/policy", s.updatePolicy)
			r.Post("/tick", s.tick)
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listTribes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.List())
}

func (s *Server) getTribe(w http.ResponseWriter, r *http.Request) {
	id, ok := tribeID(w, r)
	if !ok {
		return
	}
	t, err := s.store.Get(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) getStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := tribeID(w, r)
	if !ok {
		return
	}
	t, err := s.store.Get(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ComputeStatistics(t))
}

func (s *Server) updatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := tribeID(w, r)
	if !ok {
		return
	}

	var u model.PolicyUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&u); err != nil {
		s.metrics.policyUpdate("bad_request")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := s.store.UpdatePolicy(id, u)
	if err != nil {
		s.metrics.policyUpdate("rejected")
		writeStoreError(w, err)
		return
	}
	s.metrics.policyUpdate("updated")
	zap.L().Info("devserver: policy updated", zap.Int64("tribe_id", id))
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) tick(w http.ResponseWriter, r *http.Request) {
	id, ok := tribeID(w, r)
	if !ok {
		return
	}
	t, err := s.store.Tick(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.metrics.tick()
	writeJSON(w, http.StatusOK, t)
}

func tribeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid tribe id")
		return 0, false
	}
	return id, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTribeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidPolicy):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zap.L().Error("devserver: store error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("devserver: encode response", zap.Error(err))
	}
}
