package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/novachat/internal/auth"
	"github.com/antoniostano/novachat/internal/config"
	"github.com/antoniostano/novachat/internal/observability"
	"github.com/antoniostano/novachat/internal/relay"
	"github.com/antoniostano/novachat/internal/store"
)

const (
	sessionCookie = "novachat_session"
	userCookie    = "novachat_user"
)

type Server struct {
	cfg      config.Config
	svc      *relay.Service
	sessions store.SessionStore
	users    store.UserStore
	prefs    store.PrefStore
	tokens   *auth.TokenManager
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	static   http.Handler
}

func New(cfg config.Config, svc *relay.Service, backend *store.Backend, tokens *auth.TokenManager, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		svc:      svc,
		sessions: backend.Sessions,
		users:    backend.Users,
		prefs:    backend.Prefs,
		tokens:   tokens,
		metrics:  metrics,
		static:   newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Non-browser clients
				// often omit Origin; allow them.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/chat", s.handleChat)
	r.Post("/api/stream", s.handleStream)
	r.Get("/api/ws", s.handleWS)
	r.Get("/api/session", s.handleSession)
	r.Post("/api/session/clear", s.handleSessionClear)

	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/signin", s.handleSignin)
	r.Post("/auth/signout", s.handleSignout)
	r.Get("/auth/me", s.handleMe)
	r.Delete("/auth/delete", s.handleDeleteAccount)

	r.Post("/session/model", s.handleModelPref)
	r.Get("/admin/upstream-status", s.handleUpstreamStatus)

	r.Handle("/*", s.static)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"upstream": s.cfg.UpstreamEnabled(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// sessionID resolves the caller's session cookie, minting and setting a fresh
// one when absent so the caller can reuse it on subsequent requests.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

// currentUserID returns the signed-in user's id, or "" when the user cookie
// is absent or its signature does not verify.
func (s *Server) currentUserID(r *http.Request) string {
	c, err := r.Cookie(userCookie)
	if err != nil || c.Value == "" {
		return ""
	}
	uid, err := s.tokens.Verify(c.Value)
	if err != nil {
		return ""
	}
	return uid
}

func (s *Server) setUserCookie(w http.ResponseWriter, userID string) error {
	token, err := s.tokens.Mint(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     userCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func clearUserCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     userCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, detail string) {
	respondJSON(w, status, errorResponse{Error: code, Detail: detail})
}

func (s *Server) observeReply(mode, outcome string, started time.Time) {
	s.metrics.ChatRequests.WithLabelValues(mode, outcome).Inc()
	if outcome == "ok" {
		s.metrics.ObserveReplyLatency(time.Since(started))
	}
}
