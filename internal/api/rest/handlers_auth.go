package rest

import (
	"net/http"
	"strings"

	"github.com/osa030/tunedeck/internal/app/auth"
	"github.com/osa030/tunedeck/internal/domain/user"
)

type authResponse struct {
	User   *user.User  `json:"user"`
	Tokens auth.Tokens `json:"tokens"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
		AdminToken  string `json:"admin_token"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	u, tokens, err := s.Auth.Register(r.Context(), auth.RegisterInput{
		Email:       strings.TrimSpace(strings.ToLower(body.Email)),
		Password:    body.Password,
		DisplayName: body.DisplayName,
		Role:        user.Role(strings.TrimSpace(body.Role)),
		AdminToken:  body.AdminToken,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{User: u, Tokens: tokens})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	u, tokens, err := s.Auth.Login(r.Context(), strings.TrimSpace(strings.ToLower(body.Email)), body.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Tokens: tokens})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	tokens, err := s.Auth.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.Auth.Me(r.Context(), claims(r).UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}
