package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/antoniostano/novachat/internal/chat"
)

// handleSession returns the caller's session id and persisted history,
// minting the session cookie when absent.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	history, err := s.sessions.History(r.Context(), sid)
	if err != nil {
		log.Printf("httpapi: loading session %s: %v", sid, err)
		history = nil
	}
	if history == nil {
		history = []chat.Turn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sessionId": sid,
		"history":   history,
	})
}

func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(w, r)
	if err := s.sessions.SetHistory(r.Context(), sid, []chat.Turn{}); err != nil {
		log.Printf("httpapi: clearing session %s: %v", sid, err)
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type modelPrefRequest struct {
	Model string `json:"model"`
}

// handleModelPref stores a per-session model override used for subsequent
// completion requests.
func (s *Server) handleModelPref(w http.ResponseWriter, r *http.Request) {
	var req modelPrefRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sid := s.sessionID(w, r)
	pref, err := s.prefs.Get(r.Context(), sid)
	if err != nil {
		log.Printf("httpapi: loading prefs for %s: %v", sid, err)
	}
	pref.Model = req.Model
	if err := s.prefs.Put(r.Context(), sid, pref); err != nil {
		log.Printf("httpapi: saving prefs for %s: %v", sid, err)
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "model": req.Model})
}

// handleUpstreamStatus reports whether the completion API is configured.
// The key itself is never exposed.
func (s *Server) handleUpstreamStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"enabled": s.cfg.UpstreamEnabled(),
		"model":   s.cfg.OpenAIModel,
	})
}
