package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tutorvox/tutorvox/pkg/core"
	"github.com/tutorvox/tutorvox/pkg/gateway/auth"
	"github.com/tutorvox/tutorvox/pkg/store"
)

// sessionStore is the slice of the store the sessions handler needs.
type sessionStore interface {
	CreateSession(ctx context.Context, userID uuid.UUID, sessionType, codeLanguage, title string) (store.Session, error)
	SessionsByUser(ctx context.Context, userID uuid.UUID) ([]store.Session, error)
	SessionByID(ctx context.Context, id, userID uuid.UUID) (store.Session, error)
	EndSession(ctx context.Context, id, userID uuid.UUID, endTime time.Time) error
	SetSessionSummary(ctx context.Context, id uuid.UUID, title, summary string) error
	AddMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (store.Message, error)
}

// Summarizer produces a title and summary for a finished session transcript.
type Summarizer interface {
	Summarize(ctx context.Context, s store.Session) (title, summary string, err error)
}

// SessionsHandler serves the tutoring session resource. Ending a session
// kicks off summary generation in the background when a summarizer is
// configured.
type SessionsHandler struct {
	Store        sessionStore
	Summarizer   Summarizer
	MaxBodyBytes int64
	Logger       *slog.Logger

	// SummaryTimeout bounds the background summary call.
	SummaryTimeout time.Duration
}

type createSessionRequest struct {
	SessionType  string `json:"session_type"`
	CodeLanguage string `json:"code_language,omitempty"`
	Title        string `json:"title,omitempty"`
}

type updateSessionRequest struct {
	Action  string `json:"action"`
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type messageJSON struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionJSON struct {
	ID           string        `json:"id"`
	SessionType  string        `json:"session_type"`
	CodeLanguage string        `json:"code_language,omitempty"`
	Title        string        `json:"title,omitempty"`
	Summary      string        `json:"summary,omitempty"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      *time.Time    `json:"end_time,omitempty"`
	Messages     []messageJSON `json:"messages,omitempty"`
}

func sessionToJSON(s store.Session) sessionJSON {
	out := sessionJSON{
		ID:           s.ID.String(),
		SessionType:  s.SessionType,
		CodeLanguage: s.CodeLanguage,
		Title:        s.Title,
		Summary:      s.Summary,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
	}
	for _, m := range s.Messages {
		out.Messages = append(out.Messages, messageJSON{
			ID:        m.ID.String(),
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, r, h.Logger, core.NewAuthenticationError("not signed in"))
		return
	}

	var req createSessionRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	switch req.SessionType {
	case "code", "math":
	default:
		writeError(w, r, h.Logger, core.NewInvalidRequestErrorWithParam("session_type must be \"code\" or \"math\"", "session_type"))
		return
	}
	if req.SessionType != "code" {
		req.CodeLanguage = ""
	}

	s, err := h.Store.CreateSession(r.Context(), p.UserID, req.SessionType, req.CodeLanguage, strings.TrimSpace(req.Title))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionToJSON(s))
}

func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, r, h.Logger, core.NewAuthenticationError("not signed in"))
		return
	}

	sessions, err := h.Store.SessionsByUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	out := make([]sessionJSON, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionToJSON(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, r, h.Logger, core.NewAuthenticationError("not signed in"))
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	s, err := h.Store.SessionByID(r.Context(), id, p.UserID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToJSON(s))
}

func (h *SessionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, r, h.Logger, core.NewAuthenticationError("not signed in"))
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	var req updateSessionRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	switch req.Action {
	case "end":
		h.endSession(w, r, id, p.UserID)
	case "add_message":
		h.addMessage(w, r, id, p.UserID, req)
	default:
		writeError(w, r, h.Logger, core.NewInvalidRequestErrorWithParam("action must be \"end\" or \"add_message\"", "action"))
	}
}

func (h *SessionsHandler) endSession(w http.ResponseWriter, r *http.Request, id, userID uuid.UUID) {
	if err := h.Store.EndSession(r.Context(), id, userID, time.Now()); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	if h.Summarizer != nil {
		go h.summarize(id, userID)
	}

	s, err := h.Store.SessionByID(r.Context(), id, userID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToJSON(s))
}

// summarize runs after the response is written. Failures are logged and the
// session simply keeps its empty summary.
func (h *SessionsHandler) summarize(id, userID uuid.UUID) {
	timeout := h.SummaryTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s, err := h.Store.SessionByID(ctx, id, userID)
	if err != nil {
		h.logSummaryError(id, err)
		return
	}
	if len(s.Messages) == 0 {
		return
	}

	title, summary, err := h.Summarizer.Summarize(ctx, s)
	if err != nil {
		h.logSummaryError(id, err)
		return
	}
	if err := h.Store.SetSessionSummary(ctx, id, title, summary); err != nil {
		h.logSummaryError(id, err)
	}
}

func (h *SessionsHandler) logSummaryError(id uuid.UUID, err error) {
	if h.Logger != nil {
		h.Logger.Warn("session summary failed", "session_id", id, "error", err)
	}
}

func (h *SessionsHandler) addMessage(w http.ResponseWriter, r *http.Request, id, userID uuid.UUID, req updateSessionRequest) {
	if req.Role != "human" && req.Role != "ai" {
		writeError(w, r, h.Logger, core.NewInvalidRequestErrorWithParam("role must be \"human\" or \"ai\"", "role"))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, r, h.Logger, core.NewInvalidRequestErrorWithParam("content is required", "content"))
		return
	}

	// Ownership check: AddMessage itself is keyed by session id only.
	if _, err := h.Store.SessionByID(r.Context(), id, userID); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	m, err := h.Store.AddMessage(r.Context(), id, req.Role, req.Content)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageJSON{
		ID:        m.ID.String(),
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	})
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, core.NewInvalidRequestErrorWithParam("invalid "+name, name)
	}
	return id, nil
}
