// Package auth handles who is calling the gateway: signed session cookies,
// the request principal, and the credential backends behind registration
// and login.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

// NewSessionCookie wraps a session token in an HttpOnly cookie.
func NewSessionCookie(name, token string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionToken extracts the session cookie value from a request.
func SessionToken(r *http.Request, cookieName string) (string, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
