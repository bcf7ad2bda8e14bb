package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tutorvox/tutorvox/pkg/gateway/auth"
	"github.com/tutorvox/tutorvox/pkg/store"
)

type memUsers struct {
	byEmail map[string]store.User
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: make(map[string]store.User)}
}

func (m *memUsers) CreateUser(_ context.Context, email, name, passwordHash, provider string) (store.User, error) {
	if _, ok := m.byEmail[email]; ok {
		return store.User{}, store.ErrEmailTaken
	}
	u := store.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Provider:     provider,
		CreatedAt:    time.Now(),
	}
	m.byEmail[email] = u
	return u, nil
}

func (m *memUsers) UserByEmail(_ context.Context, email string) (store.User, error) {
	u, ok := m.byEmail[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func newAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	return &AuthHandler{
		Credentials:  auth.NewLocal(newMemUsers()),
		Tokens:       auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", time.Hour),
		CookieName:   "tutorvox_session",
		MaxBodyBytes: 1 << 20,
	}
}

func sessionCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuth_RegisterSetsCookie(t *testing.T) {
	h := newAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Register(rec, jsonRequest(t, http.MethodPost, "/v1/auth/register",
		`{"email":"ada@example.com","password":"correcthorse","name":"Ada"}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var user userResponse
	decodeBody(t, rec, &user)
	if user.Email != "ada@example.com" || user.ID == "" {
		t.Fatalf("user = %+v", user)
	}

	c := sessionCookie(rec, "tutorvox_session")
	if c == nil || c.Value == "" {
		t.Fatal("no session cookie set")
	}
	if !c.HttpOnly {
		t.Fatal("session cookie is not HttpOnly")
	}
}

func TestAuth_RegisterRejectsShortPassword(t *testing.T) {
	h := newAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Register(rec, jsonRequest(t, http.MethodPost, "/v1/auth/register",
		`{"email":"ada@example.com","password":"short"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if typ := errorType(t, rec); typ != "invalid_request_error" {
		t.Fatalf("error type = %q", typ)
	}
}

func TestAuth_RegisterRejectsBadEmail(t *testing.T) {
	h := newAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Register(rec, jsonRequest(t, http.MethodPost, "/v1/auth/register",
		`{"email":"not-an-email","password":"correcthorse"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestAuth_LoginRoundtrip(t *testing.T) {
	h := newAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Register(rec, jsonRequest(t, http.MethodPost, "/v1/auth/register",
		`{"email":"ada@example.com","password":"correcthorse"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Login(rec, jsonRequest(t, http.MethodPost, "/v1/auth/login",
		`{"email":"ada@example.com","password":"correcthorse"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}
	if c := sessionCookie(rec, "tutorvox_session"); c == nil || c.Value == "" {
		t.Fatal("login did not set a session cookie")
	}
}

func TestAuth_LoginWrongPassword(t *testing.T) {
	h := newAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Register(rec, jsonRequest(t, http.MethodPost, "/v1/auth/register",
		`{"email":"ada@example.com","password":"correcthorse"}`))

	rec = httptest.NewRecorder()
	h.Login(rec, jsonRequest(t, http.MethodPost, "/v1/auth/login",
		`{"email":"ada@example.com","password":"wrongwrong"}`))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuth_LogoutClearsCookie(t *testing.T) {
	h := newAuthHandler(t)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	c := sessionCookie(rec, "tutorvox_session")
	if c == nil || c.MaxAge != -1 {
		t.Fatalf("logout cookie = %+v, want MaxAge -1", c)
	}
}

func TestAuth_Me(t *testing.T) {
	h := newAuthHandler(t)
	userID := uuid.New()

	rec := httptest.NewRecorder()
	h.Me(rec, withPrincipal(httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil), userID))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var user userResponse
	decodeBody(t, rec, &user)
	if user.ID != userID.String() {
		t.Fatalf("user id = %q, want %q", user.ID, userID)
	}
}
