package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const createUserQuery = `
INSERT INTO users (id, email, name, password_hash, provider)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, email, name, password_hash, provider, created_at`

const userByEmailQuery = `
SELECT id, email, name, password_hash, provider, created_at
FROM users
WHERE email = $1`

const userByIDQuery = `
SELECT id, email, name, password_hash, provider, created_at
FROM users
WHERE id = $1`

// CreateUser inserts an account. Emails are unique case-insensitively; the
// caller passes them already lowercased.
func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash, provider string) (User, error) {
	var u User
	err := s.db.QueryRow(ctx, createUserQuery, uuid.New(), email, name, passwordHash, provider).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Provider, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("store: create user: %w", err)
	}
	return u, nil
}

// UserByEmail looks up an account by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := s.db.QueryRow(ctx, userByEmailQuery, email).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Provider, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("store: user by email: %w", err)
	}
	return u, nil
}

// UserByID looks up an account by id.
func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := s.db.QueryRow(ctx, userByIDQuery, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Provider, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("store: user by id: %w", err)
	}
	return u, nil
}
