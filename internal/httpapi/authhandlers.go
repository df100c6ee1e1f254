package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/novachat/internal/auth"
	"github.com/antoniostano/novachat/internal/store"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password required", "")
		return
	}

	if _, err := s.users.FindByUsername(r.Context(), req.Username); err == nil {
		respondError(w, http.StatusConflict, "username_taken", "")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("httpapi: signup lookup: %v", err)
		respondError(w, http.StatusInternalServerError, "server error", "")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("httpapi: hashing password: %v", err)
		respondError(w, http.StatusInternalServerError, "server error", "")
		return
	}

	u := store.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
		Memory:       []string{},
	}
	if err := s.users.Put(r.Context(), u); err != nil {
		log.Printf("httpapi: saving user: %v", err)
		respondError(w, http.StatusInternalServerError, "server error", "")
		return
	}
	if err := s.setUserCookie(w, u.ID); err != nil {
		log.Printf("httpapi: minting user token: %v", err)
		respondError(w, http.StatusInternalServerError, "server error", "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"user": map[string]string{"id": u.ID, "username": u.Username},
	})
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password required", "")
		return
	}

	u, err := s.users.FindByUsername(r.Context(), req.Username)
	if err != nil || !auth.CheckPasswordHash(req.Password, u.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "")
		return
	}
	if err := s.setUserCookie(w, u.ID); err != nil {
		log.Printf("httpapi: minting user token: %v", err)
		respondError(w, http.StatusInternalServerError, "server error", "")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"user": map[string]string{"id": u.ID, "username": u.Username},
	})
}

func (s *Server) handleSignout(w http.ResponseWriter, _ *http.Request) {
	clearUserCookie(w)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	uid := s.currentUserID(r)
	if uid == "" {
		respondJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}

	u, err := s.users.Get(r.Context(), uid)
	if err != nil {
		// Deleted or unknown account behind a still-valid token.
		respondJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	if u.Memory == nil {
		u.Memory = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":       u.ID,
			"username": u.Username,
			"memory":   u.Memory,
		},
	})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	uid := s.currentUserID(r)
	if uid == "" {
		respondError(w, http.StatusUnauthorized, "not_authenticated", "")
		return
	}
	if err := s.users.Delete(r.Context(), uid); err != nil {
		log.Printf("httpapi: deleting user %s: %v", uid, err)
		respondError(w, http.StatusInternalServerError, "server error", "")
		return
	}
	clearUserCookie(w)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}
