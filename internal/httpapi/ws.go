package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/novachat/internal/relay"
)

type wsClientMessage struct {
	Message string `json:"message"`
}

type wsServerMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleWS streams replies over a websocket: the client sends {message}
// frames, the server answers each with a run of {type:"delta"} frames and a
// closing {type:"done"}. Replies are produced one at a time per connection,
// so all writes stay on this goroutine.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	uid := s.currentUserID(r)

	// The upgrader writes the handshake response itself, so a fresh session
	// cookie has to travel in the upgrade response header.
	var sid string
	var respHeader http.Header
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		sid = c.Value
	} else {
		sid = uuid.NewString()
		cookie := &http.Cookie{
			Name:     sessionCookie,
			Value:    sid,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}
		respHeader = http.Header{"Set-Cookie": []string{cookie.String()}}
	}

	conn, err := s.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		var in wsClientMessage
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		if in.Message == "" {
			if err := s.writeWS(conn, wsServerMessage{Type: "error", Error: "message required"}); err != nil {
				return
			}
			continue
		}

		s.metrics.ActiveStreams.Inc()
		prompt := relay.Prompt{SessionID: sid, UserID: uid, Message: in.Message}
		reply, err := s.svc.StreamRespond(r.Context(), prompt, func(delta string) error {
			s.metrics.StreamDeltas.Inc()
			return s.writeWS(conn, wsServerMessage{Type: "delta", Text: delta})
		})
		s.metrics.ActiveStreams.Dec()

		if err != nil {
			code := "server_error"
			if errors.Is(err, relay.ErrRateLimited) {
				s.metrics.RateLimited.Inc()
				code = "rate_limited"
			}
			var ue *relay.UpstreamError
			if errors.As(err, &ue) {
				s.metrics.UpstreamErrors.Inc()
			}
			if err := s.writeWS(conn, wsServerMessage{Type: "error", Error: code}); err != nil {
				return
			}
			continue
		}

		if err := s.writeWS(conn, wsServerMessage{Type: "done", Reply: reply}); err != nil {
			return
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg wsServerMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg)
}
