package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/helpdeskhq/insight/internal/common"
)

type askRequest struct {
	Question string `json:"question"`
	UserID   string `json:"user_id"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, errors.New("question required"))
		return
	}
	resp := s.engine.Answer(r.Context(), question, strings.TrimSpace(req.UserID))
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncer.SyncAll(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": common.LogEntries()})
}
