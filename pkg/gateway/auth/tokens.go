package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tutorvox/tutorvox/pkg/core"
)

const tokenIssuer = "tutorvox"

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and validates the HS256 session tokens carried in
// cookies.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the token lifetime, which is also the cookie max age.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Mint signs a session token for a user.
func (i *TokenIssuer) Mint(userID uuid.UUID, email string, now time.Time) (string, error) {
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", core.NewAPIError("session token signing failed")
	}
	return signed, nil
}

// Parse validates a session token and returns its principal.
func (i *TokenIssuer) Parse(raw string) (Principal, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, core.NewAuthenticationError("unexpected signing method")
		}
		return i.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return Principal{}, core.NewAuthenticationError("invalid session token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, core.NewAuthenticationError("invalid session subject")
	}
	return Principal{UserID: userID, Email: claims.Email}, nil
}
