package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const createNoteQuery = `
INSERT INTO notes (id, user_id, session_id, title, content, tags)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, session_id, title, content, tags, created_at, updated_at`

const notesByUserQuery = `
SELECT id, user_id, session_id, title, content, tags, created_at, updated_at
FROM notes
WHERE user_id = $1
ORDER BY updated_at DESC`

const noteByIDQuery = `
SELECT id, user_id, session_id, title, content, tags, created_at, updated_at
FROM notes
WHERE id = $1 AND user_id = $2`

const updateNoteQuery = `
UPDATE notes SET title = $3, content = $4, tags = $5, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, session_id, title, content, tags, created_at, updated_at`

const deleteNoteQuery = `
DELETE FROM notes
WHERE id = $1 AND user_id = $2`

// CreateNote saves a note, optionally linked to a session.
func (s *Store) CreateNote(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, title, content string, tags []string) (Note, error) {
	if tags == nil {
		tags = []string{}
	}
	var n Note
	err := s.db.QueryRow(ctx, createNoteQuery, uuid.New(), userID, sessionID, title, content, tags).
		Scan(&n.ID, &n.UserID, &n.SessionID, &n.Title, &n.Content, &n.Tags, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("store: create note: %w", err)
	}
	return n, nil
}

// NotesByUser lists a user's notes, most recently edited first.
func (s *Store) NotesByUser(ctx context.Context, userID uuid.UUID) ([]Note, error) {
	rows, err := s.db.Query(ctx, notesByUserQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("store: notes by user: %w", err)
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.SessionID, &n.Title, &n.Content, &n.Tags, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: notes by user: %w", err)
	}
	return notes, nil
}

// NoteByID fetches one note, scoped to its owner.
func (s *Store) NoteByID(ctx context.Context, id, userID uuid.UUID) (Note, error) {
	var n Note
	err := s.db.QueryRow(ctx, noteByIDQuery, id, userID).
		Scan(&n.ID, &n.UserID, &n.SessionID, &n.Title, &n.Content, &n.Tags, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Note{}, ErrNotFound
		}
		return Note{}, fmt.Errorf("store: note by id: %w", err)
	}
	return n, nil
}

// UpdateNote replaces a note's title, content, and tags.
func (s *Store) UpdateNote(ctx context.Context, id, userID uuid.UUID, title, content string, tags []string) (Note, error) {
	if tags == nil {
		tags = []string{}
	}
	var n Note
	err := s.db.QueryRow(ctx, updateNoteQuery, id, userID, title, content, tags).
		Scan(&n.ID, &n.UserID, &n.SessionID, &n.Title, &n.Content, &n.Tags, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Note{}, ErrNotFound
		}
		return Note{}, fmt.Errorf("store: update note: %w", err)
	}
	return n, nil
}

// DeleteNote removes a note.
func (s *Store) DeleteNote(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, deleteNoteQuery, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
