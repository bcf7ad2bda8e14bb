package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tutorvox/tutorvox/pkg/gateway/auth"
	"github.com/tutorvox/tutorvox/pkg/gateway/config"
	"github.com/tutorvox/tutorvox/pkg/store"
)

// memStore backs the full gateway surface for handler-chain tests.
type memStore struct {
	mu       sync.Mutex
	users    map[string]store.User
	sessions map[uuid.UUID]*store.Session
	notes    map[uuid.UUID]*store.Note
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]store.User),
		sessions: make(map[uuid.UUID]*store.Session),
		notes:    make(map[uuid.UUID]*store.Note),
	}
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) CreateUser(_ context.Context, email, name, passwordHash, provider string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok {
		return store.User{}, store.ErrEmailTaken
	}
	u := store.User{ID: uuid.New(), Email: email, Name: name, PasswordHash: passwordHash, Provider: provider, CreatedAt: time.Now()}
	m.users[email] = u
	return u, nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memStore) CreateSession(_ context.Context, userID uuid.UUID, sessionType, codeLanguage, title string) (store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &store.Session{ID: uuid.New(), UserID: userID, SessionType: sessionType, CodeLanguage: codeLanguage, Title: title, StartTime: time.Now()}
	m.sessions[s.ID] = s
	return *s, nil
}

func (m *memStore) SessionsByUser(_ context.Context, userID uuid.UUID) ([]store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) SessionByID(_ context.Context, id, userID uuid.UUID) (store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		return store.Session{}, store.ErrNotFound
	}
	return *s, nil
}

func (m *memStore) EndSession(_ context.Context, id, userID uuid.UUID, endTime time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID || s.EndTime != nil {
		return store.ErrNotFound
	}
	s.EndTime = &endTime
	return nil
}

func (m *memStore) SetSessionSummary(_ context.Context, id uuid.UUID, title, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	s.Title, s.Summary = title, summary
	return nil
}

func (m *memStore) AddMessage(_ context.Context, sessionID uuid.UUID, role, content string) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return store.Message{}, store.ErrNotFound
	}
	msg := store.Message{ID: uuid.New(), SessionID: sessionID, Role: role, Content: content, CreatedAt: time.Now()}
	s.Messages = append(s.Messages, msg)
	return msg, nil
}

func (m *memStore) CreateNote(_ context.Context, userID uuid.UUID, sessionID *uuid.UUID, title, content string, tags []string) (store.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := &store.Note{ID: uuid.New(), UserID: userID, SessionID: sessionID, Title: title, Content: content, Tags: tags, CreatedAt: now, UpdatedAt: now}
	m.notes[n.ID] = n
	return *n, nil
}

func (m *memStore) NotesByUser(_ context.Context, userID uuid.UUID) ([]store.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Note
	for _, n := range m.notes {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memStore) NoteByID(_ context.Context, id, userID uuid.UUID) (store.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return store.Note{}, store.ErrNotFound
	}
	return *n, nil
}

func (m *memStore) UpdateNote(_ context.Context, id, userID uuid.UUID, title, content string, tags []string) (store.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return store.Note{}, store.ErrNotFound
	}
	n.Title, n.Content, n.Tags = title, content, tags
	n.UpdatedAt = time.Now()
	return *n, nil
}

func (m *memStore) DeleteNote(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Addr:         ":0",
		JWTSecret:    "0123456789abcdef0123456789abcdef",
		CookieName:   "tutorvox_session",
		TokenTTL:     time.Hour,
		MaxBodyBytes: 1 << 20,
		LimitRPS:     1000,
		LimitBurst:   1000,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := newMemStore()
	srv, err := New(Options{
		Config:      testConfig(),
		Store:       st,
		Credentials: auth.NewLocal(st),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func register(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register",
		strings.NewReader(`{"email":"ada@example.com","password":"correcthorse"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "tutorvox_session" {
			return c
		}
	}
	t.Fatal("no session cookie in register response")
	return nil
}

func TestServer_HealthIsPublic(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestServer_SessionsRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestServer_RegisterThenCreateSession(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()
	cookie := register(t, h)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions",
		strings.NewReader(`{"session_type":"math"}`))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID          string `json:"id"`
		SessionType string `json:"session_type"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.SessionType != "math" {
		t.Fatalf("session_type = %q", created.SessionType)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/"+created.ID, nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_MeReflectsCookie(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()
	cookie := register(t, h)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var me struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.Email != "ada@example.com" {
		t.Fatalf("email = %q", me.Email)
	}
}

func TestServer_RequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("no X-Request-ID header on response")
	}
}
