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

type noteStore interface {
	CreateNote(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, title, content string, tags []string) (store.Note, error)
	NotesByUser(ctx context.Context, userID uuid.UUID) ([]store.Note, error)
	NoteByID(ctx context.Context, id, userID uuid.UUID) (store.Note, error)
	UpdateNote(ctx context.Context, id, userID uuid.UUID, title, content string, tags []string) (store.Note, error)
	DeleteNote(ctx context.Context, id, userID uuid.UUID) error
}

// NotesHandler serves study note CRUD.
type NotesHandler struct {
	Store        noteStore
	MaxBodyBytes int64
	Logger       *slog.Logger
}

type noteRequest struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

type noteJSON struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func noteToJSON(n store.Note) noteJSON {
	out := noteJSON{
		ID:        n.ID.String(),
		Title:     n.Title,
		Content:   n.Content,
		Tags:      n.Tags,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if n.SessionID != nil {
		out.SessionID = n.SessionID.String()
	}
	return out
}

func (h *NotesHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, r, h.Logger, core.NewAuthenticationError("not signed in"))
		return
	}

	var req noteRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	title, content, sessionID, err := validateNote(req)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	n, err := h.Store.CreateNote(r.Context(), p.UserID, sessionID, title, content, req.Tags)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, noteToJSON(n))
}

func (h *NotesHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, r, h.Logger, core.NewAuthenticationError("not signed in"))
		return
	}

	notes, err := h.Store.NotesByUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	out := make([]noteJSON, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteToJSON(n))
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": out})
}

func (h *NotesHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	n, err := h.Store.NoteByID(r.Context(), id, p.UserID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, noteToJSON(n))
}

func (h *NotesHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req noteRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	title, content, _, err := validateNote(req)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	n, err := h.Store.UpdateNote(r.Context(), id, p.UserID, title, content, req.Tags)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, noteToJSON(n))
}

func (h *NotesHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.Store.DeleteNote(r.Context(), id, p.UserID); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateNote(req noteRequest) (title, content string, sessionID *uuid.UUID, err error) {
	title = strings.TrimSpace(req.Title)
	content = req.Content
	if title == "" {
		return "", "", nil, core.NewInvalidRequestErrorWithParam("title is required", "title")
	}
	if req.SessionID != "" {
		id, parseErr := uuid.Parse(req.SessionID)
		if parseErr != nil {
			return "", "", nil, core.NewInvalidRequestErrorWithParam("invalid session_id", "session_id")
		}
		sessionID = &id
	}
	return title, content, sessionID, nil
}
