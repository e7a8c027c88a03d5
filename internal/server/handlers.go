package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/julianstephens/seatwise/internal/models"
)

type transitionRequest struct {
	Status  models.AnswerStatus `json:"status"`
	ActorID string              `json:"actor_id"`
}

type adminRequest struct {
	ActorID string `json:"actor_id"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /options/:option/users/:user/decision?hard=1
func (s *Server) decision(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	hard := false
	if v := r.URL.Query().Get("hard"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_query", "hard must be a boolean")
			return
		}
		hard = parsed
	}

	res, err := s.engine.Evaluate(r.Context(), ps.ByName("option"), ps.ByName("user"), hard)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// POST /options/:option/users/:user/act
func (s *Server) act(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	out, err := s.engine.Act(r.Context(), ps.ByName("option"), ps.ByName("user"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// POST /options/:option/users/:user/transition
func (s *Server) transition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req transitionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ActorID == "" {
		respondError(w, http.StatusBadRequest, "missing_actor", "actor_id is required")
		return
	}
	if !req.Status.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_status", "status must be a known answer status")
		return
	}

	entry, err := s.engine.AdminTransition(r.Context(), ps.ByName("option"), ps.ByName("user"), req.Status, req.ActorID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// POST /options/:option/cancel
func (s *Server) cancelOption(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.setCancelled(w, r, ps, true)
}

// POST /options/:option/restore
func (s *Server) restoreOption(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.setCancelled(w, r, ps, false)
}

func (s *Server) setCancelled(w http.ResponseWriter, r *http.Request, ps httprouter.Params, cancelled bool) {
	var req adminRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ActorID == "" {
		respondError(w, http.StatusBadRequest, "missing_actor", "actor_id is required")
		return
	}

	optionID := ps.ByName("option")
	var err error
	if cancelled {
		err = s.engine.CancelOption(r.Context(), optionID, req.ActorID)
	} else {
		err = s.engine.RestoreOption(r.Context(), optionID, req.ActorID)
	}
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"option_id": optionID, "cancelled": cancelled})
}

// GET /options/:option/users/:user/history
func (s *Server) userHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.history(w, r, ps.ByName("option"), ps.ByName("user"))
}

// GET /options/:option/history
func (s *Server) optionHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.history(w, r, ps.ByName("option"), "")
}

func (s *Server) history(w http.ResponseWriter, r *http.Request, optionID, userID string) {
	entries, err := s.engine.History(optionID, userID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// GET /options/:option/waitlist
func (s *Server) waitlist(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	answers, err := s.engine.Waitlist(ps.ByName("option"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	if answers == nil {
		answers = []models.Answer{}
	}
	respondJSON(w, http.StatusOK, answers)
}
