// Package server assembles the gateway HTTP surface: routes, middleware
// chain, and the http.Server lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tutorvox/tutorvox/pkg/gateway/auth"
	"github.com/tutorvox/tutorvox/pkg/gateway/config"
	"github.com/tutorvox/tutorvox/pkg/gateway/handlers"
	"github.com/tutorvox/tutorvox/pkg/gateway/mw"
	"github.com/tutorvox/tutorvox/pkg/gateway/ratelimit"
	"github.com/tutorvox/tutorvox/pkg/store"
)

// Options carries the server's collaborators. Store and Credentials are
// required; Summarizer is optional and disables post-session summaries when
// nil.
type Options struct {
	Config      config.Config
	Logger      *slog.Logger
	Store       Store
	Credentials auth.Credentials
	Summarizer  handlers.Summarizer
}

// Store is the persistence surface the gateway needs, satisfied by
// *store.Store.
type Store interface {
	Ping(ctx context.Context) error

	CreateSession(ctx context.Context, userID uuid.UUID, sessionType, codeLanguage, title string) (store.Session, error)
	SessionsByUser(ctx context.Context, userID uuid.UUID) ([]store.Session, error)
	SessionByID(ctx context.Context, id, userID uuid.UUID) (store.Session, error)
	EndSession(ctx context.Context, id, userID uuid.UUID, endTime time.Time) error
	SetSessionSummary(ctx context.Context, id uuid.UUID, title, summary string) error
	AddMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (store.Message, error)

	CreateNote(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, title, content string, tags []string) (store.Note, error)
	NotesByUser(ctx context.Context, userID uuid.UUID) ([]store.Note, error)
	NoteByID(ctx context.Context, id, userID uuid.UUID) (store.Note, error)
	UpdateNote(ctx context.Context, id, userID uuid.UUID, title, content string, tags []string) (store.Note, error)
	DeleteNote(ctx context.Context, id, userID uuid.UUID) error
}

// Server wires handlers behind the middleware chain.
type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	tokens  *auth.TokenIssuer
	limiter *ratelimit.Limiter
	handler http.Handler
	httpSrv *http.Server
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if opts.Credentials == nil {
		return nil, errors.New("server: credential backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    opts.Config,
		logger: logger,
		tokens: auth.NewTokenIssuer(opts.Config.JWTSecret, opts.Config.TokenTTL),
		limiter: ratelimit.New(ratelimit.Config{
			RPS:   opts.Config.LimitRPS,
			Burst: opts.Config.LimitBurst,
		}),
	}
	s.handler = s.buildHandler(opts)
	s.httpSrv = &http.Server{
		Addr:              opts.Config.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: opts.Config.ReadHeaderTimeout,
		ReadTimeout:       opts.Config.ReadTimeout,
	}
	return s, nil
}

// publicPaths bypass session authentication.
var publicPaths = map[string]struct{}{
	"/healthz":          {},
	"/readyz":           {},
	"/v1/auth/register": {},
	"/v1/auth/login":    {},
	"/v1/auth/logout":   {},
}

func (s *Server) buildHandler(opts Options) http.Handler {
	mux := http.NewServeMux()

	authH := &handlers.AuthHandler{
		Credentials:  opts.Credentials,
		Tokens:       s.tokens,
		CookieName:   s.cfg.CookieName,
		CookieSecure: s.cfg.CookieSecure,
		MaxBodyBytes: s.cfg.MaxBodyBytes,
		Logger:       s.logger,
	}
	sessionsH := &handlers.SessionsHandler{
		Store:        opts.Store,
		Summarizer:   opts.Summarizer,
		MaxBodyBytes: s.cfg.MaxBodyBytes,
		Logger:       s.logger,
	}
	notesH := &handlers.NotesHandler{
		Store:        opts.Store,
		MaxBodyBytes: s.cfg.MaxBodyBytes,
		Logger:       s.logger,
	}

	mux.Handle("GET /healthz", &handlers.HealthHandler{})
	mux.Handle("GET /readyz", &handlers.ReadyHandler{DB: opts.Store})

	mux.HandleFunc("POST /v1/auth/register", authH.Register)
	mux.HandleFunc("POST /v1/auth/login", authH.Login)
	mux.HandleFunc("POST /v1/auth/logout", authH.Logout)
	mux.HandleFunc("GET /v1/auth/me", authH.Me)

	mux.HandleFunc("POST /v1/sessions", sessionsH.Create)
	mux.HandleFunc("GET /v1/sessions", sessionsH.List)
	mux.HandleFunc("GET /v1/sessions/{id}", sessionsH.Get)
	mux.HandleFunc("PATCH /v1/sessions/{id}", sessionsH.Update)

	mux.HandleFunc("POST /v1/notes", notesH.Create)
	mux.HandleFunc("GET /v1/notes", notesH.List)
	mux.HandleFunc("GET /v1/notes/{id}", notesH.Get)
	mux.HandleFunc("PATCH /v1/notes/{id}", notesH.Update)
	mux.HandleFunc("DELETE /v1/notes/{id}", notesH.Delete)

	origins := make([]string, 0, len(s.cfg.CORSAllowedOrigins))
	for o := range s.cfg.CORSAllowedOrigins {
		origins = append(origins, o)
	}

	var h http.Handler = mux
	h = mw.RateLimit(s.limiter, h)
	h = mw.RequireUser(s.tokens, s.cfg.CookieName, publicPaths, h)
	h = mw.CORS(origins, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// Handler exposes the full middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("gateway listening", "addr", s.cfg.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
