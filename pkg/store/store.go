// Package store persists users, tutoring sessions, their transcripts, and
// notes in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a row does not exist or belongs to another user.
var ErrNotFound = errors.New("store: not found")

// ErrEmailTaken is returned when registering an email that already exists.
var ErrEmailTaken = errors.New("store: email already registered")

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// User is an account row. PasswordHash is empty for externally managed users.
type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Provider     string
	CreatedAt    time.Time
}

// Session is one tutoring session. Messages are loaded only by SessionByID.
type Session struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	SessionType  string
	CodeLanguage string
	Title        string
	Summary      string
	StartTime    time.Time
	EndTime      *time.Time
	Messages     []Message
}

// Message is one transcript entry, role "human" or "ai".
type Message struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Role      string
	Content   string
	CreatedAt time.Time
}

// Note is a user note, optionally linked to a session.
type Note struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	SessionID *uuid.UUID
	Title     string
	Content   string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store wraps a Postgres connection pool.
type Store struct {
	db     DB
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{db: pool, pool: pool, logger: logger}, nil
}

// NewWithDB builds a store on an existing connection, used by tests.
func NewWithDB(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies connectivity, used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
