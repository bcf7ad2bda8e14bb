package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tutorvox/tutorvox/pkg/core"
	"github.com/tutorvox/tutorvox/pkg/gateway/auth"
	"github.com/tutorvox/tutorvox/pkg/store"
)

// AuthHandler serves registration, login, logout, and the current-user
// endpoint. The credential backend is pluggable (local bcrypt or WorkOS).
type AuthHandler struct {
	Credentials  auth.Credentials
	Tokens       *auth.TokenIssuer
	CookieName   string
	CookieSecure bool
	MaxBodyBytes int64
	Logger       *slog.Logger
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func userToResponse(u store.User) userResponse {
	return userResponse{ID: u.ID.String(), Email: u.Email, Name: u.Name}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if err := validateEmail(req.Email); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, h.Logger, core.NewInvalidRequestErrorWithParam("password must be at least 8 characters", "password"))
		return
	}

	user, err := h.Credentials.Register(r.Context(), req.Email, req.Password, strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	if err := h.setSession(w, user); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, userToResponse(user))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, r, h.Logger, core.NewInvalidRequestError("email and password are required"))
		return
	}

	user, err := h.Credentials.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	if err := h.setSession(w, user); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, userToResponse(user))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearSessionCookie(h.CookieName, h.CookieSecure))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, r, h.Logger, core.NewAuthenticationError("not signed in"))
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: p.UserID.String(), Email: p.Email})
}

func (h *AuthHandler) setSession(w http.ResponseWriter, user store.User) error {
	token, err := h.Tokens.Mint(user.ID, user.Email, time.Now())
	if err != nil {
		return err
	}
	http.SetCookie(w, auth.NewSessionCookie(h.CookieName, token, h.Tokens.TTL(), h.CookieSecure))
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 {
		return core.NewInvalidRequestErrorWithParam("invalid email address", "email")
	}
	return nil
}
