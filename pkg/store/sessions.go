package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const createSessionQuery = `
INSERT INTO sessions (id, user_id, session_type, code_language, title)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, session_type, code_language, title, summary, start_time, end_time`

const sessionsByUserQuery = `
SELECT id, user_id, session_type, code_language, title, summary, start_time, end_time
FROM sessions
WHERE user_id = $1
ORDER BY start_time DESC`

const sessionByIDQuery = `
SELECT id, user_id, session_type, code_language, title, summary, start_time, end_time
FROM sessions
WHERE id = $1 AND user_id = $2`

const sessionMessagesQuery = `
SELECT id, session_id, role, content, created_at
FROM messages
WHERE session_id = $1
ORDER BY created_at ASC`

const endSessionQuery = `
UPDATE sessions SET end_time = $3
WHERE id = $1 AND user_id = $2 AND end_time IS NULL`

const setSessionSummaryQuery = `
UPDATE sessions SET title = $2, summary = $3
WHERE id = $1`

const addMessageQuery = `
INSERT INTO messages (id, session_id, role, content)
VALUES ($1, $2, $3, $4)
RETURNING id, session_id, role, content, created_at`

// CreateSession starts a new tutoring session for a user.
func (s *Store) CreateSession(ctx context.Context, userID uuid.UUID, sessionType, codeLanguage, title string) (Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, createSessionQuery, uuid.New(), userID, sessionType, codeLanguage, title).
		Scan(&sess.ID, &sess.UserID, &sess.SessionType, &sess.CodeLanguage, &sess.Title, &sess.Summary, &sess.StartTime, &sess.EndTime)
	if err != nil {
		return Session{}, fmt.Errorf("store: create session: %w", err)
	}
	return sess, nil
}

// SessionsByUser lists a user's sessions, newest first, without transcripts.
func (s *Store) SessionsByUser(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	rows, err := s.db.Query(ctx, sessionsByUserQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("store: sessions by user: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.SessionType, &sess.CodeLanguage, &sess.Title, &sess.Summary, &sess.StartTime, &sess.EndTime); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: sessions by user: %w", err)
	}
	return sessions, nil
}

// SessionByID fetches one session with its transcript. Ownership is part of
// the lookup, so another user's session reads as not found.
func (s *Store) SessionByID(ctx context.Context, id, userID uuid.UUID) (Session, error) {
	var sess Session
	err := s.db.QueryRow(ctx, sessionByIDQuery, id, userID).
		Scan(&sess.ID, &sess.UserID, &sess.SessionType, &sess.CodeLanguage, &sess.Title, &sess.Summary, &sess.StartTime, &sess.EndTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("store: session by id: %w", err)
	}

	rows, err := s.db.Query(ctx, sessionMessagesQuery, id)
	if err != nil {
		return Session{}, fmt.Errorf("store: session messages: %w", err)
	}
	defer rows.Close()

	sess.Messages = []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return Session{}, fmt.Errorf("store: scan message: %w", err)
		}
		sess.Messages = append(sess.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return Session{}, fmt.Errorf("store: session messages: %w", err)
	}
	return sess, nil
}

// EndSession stamps a session's end time. Ending twice is a no-op reported
// as not found.
func (s *Store) EndSession(ctx context.Context, id, userID uuid.UUID, endTime time.Time) error {
	tag, err := s.db.Exec(ctx, endSessionQuery, id, userID, endTime)
	if err != nil {
		return fmt.Errorf("store: end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSessionSummary saves a generated title and summary.
func (s *Store) SetSessionSummary(ctx context.Context, id uuid.UUID, title, summary string) error {
	if _, err := s.db.Exec(ctx, setSessionSummaryQuery, id, title, summary); err != nil {
		return fmt.Errorf("store: set session summary: %w", err)
	}
	return nil
}

// AddMessage appends one transcript entry. The caller verifies session
// ownership first.
func (s *Store) AddMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (Message, error) {
	var m Message
	err := s.db.QueryRow(ctx, addMessageQuery, uuid.New(), sessionID, role, content).
		Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("store: add message: %w", err)
	}
	return m, nil
}
