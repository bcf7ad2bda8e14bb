package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/workos/workos-go/v6/pkg/usermanagement"
	"golang.org/x/crypto/bcrypt"

	"github.com/tutorvox/tutorvox/pkg/core"
	"github.com/tutorvox/tutorvox/pkg/store"
)

// Credentials is the backend behind register and login.
type Credentials interface {
	Register(ctx context.Context, email, password, name string) (store.User, error)
	Verify(ctx context.Context, email, password string) (store.User, error)
}

// userStore is the slice of the store the credential backends need.
type userStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash, provider string) (store.User, error)
	UserByEmail(ctx context.Context, email string) (store.User, error)
}

// Local verifies passwords against bcrypt hashes in the users table.
type Local struct {
	users userStore
}

func NewLocal(users userStore) *Local {
	return &Local{users: users}
}

func (l *Local) Register(ctx context.Context, email, password, name string) (store.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, core.NewAPIError("password hashing failed")
	}
	user, err := l.users.CreateUser(ctx, normalizeEmail(email), name, string(hash), "local")
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return store.User{}, core.NewInvalidRequestErrorWithParam("email already registered", "email")
		}
		return store.User{}, err
	}
	return user, nil
}

func (l *Local) Verify(ctx context.Context, email, password string) (store.User, error) {
	user, err := l.users.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.User{}, core.NewAuthenticationError("invalid email or password")
		}
		return store.User{}, err
	}
	if user.PasswordHash == "" {
		return store.User{}, core.NewAuthenticationError("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, core.NewAuthenticationError("invalid email or password")
	}
	return user, nil
}

// WorkOS delegates credential checks to WorkOS User Management and mirrors
// accounts into the local users table so sessions and notes can reference
// them.
type WorkOS struct {
	users    userStore
	um       *usermanagement.Client
	clientID string
}

func NewWorkOS(users userStore, apiKey, clientID string) *WorkOS {
	return &WorkOS{
		users:    users,
		um:       usermanagement.NewClient(apiKey),
		clientID: clientID,
	}
}

func (w *WorkOS) Register(ctx context.Context, email, password, name string) (store.User, error) {
	first, last := splitName(name)
	if _, err := w.um.CreateUser(ctx, usermanagement.CreateUserOpts{
		Email:     normalizeEmail(email),
		Password:  password,
		FirstName: first,
		LastName:  last,
	}); err != nil {
		return store.User{}, core.NewInvalidRequestError("registration rejected by identity provider")
	}

	user, err := w.users.CreateUser(ctx, normalizeEmail(email), name, "", "workos")
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return store.User{}, core.NewInvalidRequestErrorWithParam("email already registered", "email")
		}
		return store.User{}, err
	}
	return user, nil
}

func (w *WorkOS) Verify(ctx context.Context, email, password string) (store.User, error) {
	resp, err := w.um.AuthenticateWithPassword(ctx, usermanagement.AuthenticateWithPasswordOpts{
		ClientID: w.clientID,
		Email:    normalizeEmail(email),
		Password: password,
	})
	if err != nil {
		return store.User{}, core.NewAuthenticationError("invalid email or password")
	}

	user, err := w.users.UserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		// First login for an account created outside this gateway.
		name := strings.TrimSpace(resp.User.FirstName + " " + resp.User.LastName)
		return w.users.CreateUser(ctx, normalizeEmail(email), name, "", "workos")
	}
	return user, err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
