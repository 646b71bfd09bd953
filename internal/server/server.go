package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/logging"
	"github.com/lazypower/mnemo/internal/memerr"
)

// Server is the mnemo HTTP API server.
type Server struct {
	eng     *engine.Engine
	log     *logrus.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over an opened engine.
func New(eng *engine.Engine, log *logrus.Logger, version string) *Server {
	if log == nil {
		log = logging.Discard()
	}
	s := &Server{
		eng:     eng,
		log:     log,
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
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/entities", s.handleCreateEntity)
		r.Get("/entities/{entityID}", s.handleGetEntity)
		r.Patch("/entities/{entityID}", s.handleUpdateEntity)
		r.Delete("/entities/{entityID}", s.handleDeleteEntity)
		r.Get("/entities/{entityID}/relations", s.handleEntityRelations)
		r.Post("/relations", s.handleCreateRelation)

		r.Post("/chats", s.handleStoreChat)
		r.Get("/chats/{chatID}", s.handleGetChat)
		r.Delete("/chats/{chatID}", s.handleDeleteChat)

		r.Get("/search", s.handleSearch)

		r.Post("/facts/{category}", s.handleStoreFact)
		r.Get("/facts/{category}", s.handleListFacts)
		r.Get("/context", s.handleGetContext)

		r.Post("/maintenance", s.handleMaintain)
		r.Get("/maintenance", s.handleMaintenanceLogs)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.eng.DB.Ping() == nil
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.eng.DB.Path,
	}
	if next, ok := s.eng.NextMaintenance(); ok {
		resp["next_maintenance"] = next.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError renders err as an error result with the status code of its class.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := memerr.HTTPStatus(err)
	entry := s.log.WithError(err).WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"path":       r.URL.Path,
	})
	if code >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	writeJSON(w, code, map[string]string{
		"status":  engine.StatusError,
		"kind":    memerr.Kind(err),
		"message": err.Error(),
	})
}

// decode reads a JSON request body into v. Malformed bodies are validation
// errors.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: request body required", memerr.ErrValidation)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %v", memerr.ErrValidation, err)
	}
	return nil
}

func requireParam(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", memerr.ErrValidation, name)
	}
	return nil
}
