package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/claude/repcoach/internal/live"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type startLiveRequest struct {
	ProgramID uuid.UUID `json:"program_id"`
}

type liveCommandRequest struct {
	Command string `json:"command"`
	Seconds int    `json:"seconds,omitempty"`
}

func (s *Server) handleStartLive(w http.ResponseWriter, r *http.Request) {
	var req startLiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.ProgramID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "program_id is required"})
		return
	}

	session, err := s.manager.Start(r.Context(), req.ProgramID, s.userID)
	switch {
	case errors.Is(err, live.ErrProgramNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "program not found"})
		return
	case errors.Is(err, live.ErrEmptyProgram):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "program has no exercises"})
		return
	case err != nil:
		s.log.Error("live session start failed", "program", req.ProgramID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLiveSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	state, err := s.manager.Snapshot(sessionID)
	if errors.Is(err, live.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleLiveCommand(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	var req liveCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	err = s.manager.Command(sessionID, req.Command, req.Seconds)
	switch {
	case errors.Is(err, live.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	state, err := s.manager.Snapshot(sessionID)
	if err != nil {
		// Session completed and was reaped between command and snapshot.
		writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleStopLive(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	if err := s.manager.Stop(sessionID); errors.Is(err, live.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": true})
}

func (s *Server) handleLiveWS(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}
	if _, err := s.manager.Snapshot(sessionID); errors.Is(err, live.ErrSessionNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	s.hub.HandleSession(w, r, sessionID)
}
