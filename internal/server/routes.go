package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/mnemo/internal/engine"
)

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req engine.EntityInput
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.eng.CreateEntity(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.GetEntity(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		Append  *bool  `json:"append"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	appendContent := true
	if req.Append != nil {
		appendContent = *req.Append
	}

	res, err := s.eng.UpdateEntity(r.Context(), chi.URLParam(r, "entityID"), req.Content, appendContent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.DeleteEntity(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEntityRelations(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.Relations(r.Context(), chi.URLParam(r, "entityID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateRelation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From     string   `json:"from_entity"`
		To       string   `json:"to_entity"`
		Type     string   `json:"relation_type"`
		Strength *float64 `json:"strength"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	strength := engine.DefaultStrength
	if req.Strength != nil {
		strength = *req.Strength
	}

	res, err := s.eng.CreateRelation(r.Context(), req.From, req.To, req.Type, strength)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleStoreChat(w http.ResponseWriter, r *http.Request) {
	var req engine.ChatInput
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.eng.StoreChat(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.GetChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	res, err := s.eng.DeleteChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if err := requireParam("q", query); err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := engine.SearchOpts{}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if t := q.Get("type"); t != "" {
		opts.ContentTypes = strings.Split(t, ",")
	}

	hits, err := s.eng.SearchMemory(r.Context(), query, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(hits),
		"results": hits,
	})
}

func (s *Server) handleMaintain(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("repair") == "true" {
		if _, err := s.eng.RepairGraph(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	res, err := s.eng.Maintain(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMaintenanceLogs(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := s.eng.MaintenanceLogs(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(logs),
		"runs":  logs,
	})
}
