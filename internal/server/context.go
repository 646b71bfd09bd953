package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/mnemo/internal/engine"
)

// defaultRecentEntities is how many entities the context snapshot carries
// when the caller does not ask for a number.
const defaultRecentEntities = 10

// handleStoreFact stores one fact. The built-in categories take a text
// value and wrap it in their record shape; any other category stores the
// JSON value as given.
func (s *Server) handleStoreFact(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	var req struct {
		Label string          `json:"label"`
		Value json.RawMessage `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var (
		res *engine.FactResult
		err error
	)
	switch category {
	case engine.CategoryAbility, engine.CategoryPermission, engine.CategoryContext:
		var text string
		if len(req.Value) > 0 {
			if err := json.Unmarshal(req.Value, &text); err != nil {
				text = string(req.Value)
			}
		}
		switch category {
		case engine.CategoryAbility:
			res, err = s.eng.StoreAbility(r.Context(), req.Label, text)
		case engine.CategoryPermission:
			res, err = s.eng.StorePermission(r.Context(), req.Label, text)
		default:
			res, err = s.eng.StoreContext(r.Context(), req.Label, text)
		}
	default:
		value := req.Value
		if len(value) == 0 {
			value = json.RawMessage("null")
		}
		res, err = s.eng.StoreFact(r.Context(), category, req.Label, value)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListFacts(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	facts, err := s.eng.Facts(r.Context(), category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": category,
		"count":    len(facts),
		"facts":    facts,
	})
}

func (s *Server) handleGetContext(w http.ResponseWriter, r *http.Request) {
	recent := defaultRecentEntities
	if l := r.URL.Query().Get("recent"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			recent = n
		}
	}

	snap, err := s.eng.LoadContext(r.Context(), recent)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
