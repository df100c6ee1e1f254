package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/novachat/internal/relay"
)

type chatRequest struct {
	Message string `json:"message"`
}

// handleChat produces one complete reply as JSON.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message required", "")
		return
	}

	prompt := relay.Prompt{
		SessionID: s.sessionID(w, r),
		UserID:    s.currentUserID(r),
		Message:   req.Message,
	}

	reply, err := s.svc.Respond(r.Context(), prompt)
	if err != nil {
		s.respondRelayError(w, "full", err, started)
		return
	}

	s.observeReply("full", "ok", started)
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// handleStream relays the reply as raw text chunks. Headers go out before the
// first fragment, so failures past that point can only end the body early.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message required", "")
		return
	}

	prompt := relay.Prompt{
		SessionID: s.sessionID(w, r),
		UserID:    s.currentUserID(r),
		Message:   req.Message,
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	// Keep intermediaries from buffering the incremental chunks.
	w.Header().Set("X-Accel-Buffering", "no")

	s.metrics.ActiveStreams.Inc()
	defer s.metrics.ActiveStreams.Dec()

	flusher, _ := w.(http.Flusher)
	wrote := false
	onDelta := func(delta string) error {
		if _, err := io.WriteString(w, delta); err != nil {
			return err
		}
		wrote = true
		s.metrics.StreamDeltas.Inc()
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	_, err := s.svc.StreamRespond(r.Context(), prompt, onDelta)
	if err != nil && !wrote {
		switch {
		case errors.Is(err, relay.ErrRateLimited):
			s.metrics.RateLimited.Inc()
			s.observeReply("stream", "rate_limited", started)
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, "rate_limited")
		default:
			var ue *relay.UpstreamError
			if errors.As(err, &ue) {
				s.metrics.UpstreamErrors.Inc()
			}
			s.observeReply("stream", "error", started)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "upstream request failed")
		}
		return
	}

	s.observeReply("stream", "ok", started)
}

func (s *Server) respondRelayError(w http.ResponseWriter, mode string, err error, started time.Time) {
	if errors.Is(err, relay.ErrRateLimited) {
		s.metrics.RateLimited.Inc()
		s.observeReply(mode, "rate_limited", started)
		respondError(w, http.StatusTooManyRequests, "rate_limited", "session daily limit reached")
		return
	}

	var ue *relay.UpstreamError
	if errors.As(err, &ue) {
		s.metrics.UpstreamErrors.Inc()
	}
	s.observeReply(mode, "error", started)
	respondError(w, http.StatusInternalServerError, "server error", err.Error())
}
