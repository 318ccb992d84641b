package core

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the authenticated identity returned by login/register.
type Session struct {
	UserID    string `json:"_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Token     string `json:"token"`
	IsPremium bool   `json:"isPremium,omitempty"`
}

// Valid reports whether the session carries an identity and a bearer token.
func (s *Session) Valid() bool {
	return s != nil && strings.TrimSpace(s.UserID) != "" && strings.TrimSpace(s.Token) != ""
}

// ExpiresAt reads the exp claim of a JWT token without verifying it.
// Verification is the backend's job; the client only needs to know when
// to stop sending a dead token. ok is false for opaque tokens.
func ExpiresAt(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the session token carries an exp claim in the past.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	exp, ok := ExpiresAt(s.Token)
	return ok && !now.Before(exp)
}
