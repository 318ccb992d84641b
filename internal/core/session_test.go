package core

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "u1", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestSessionValid(t *testing.T) {
	var nilSession *Session
	if nilSession.Valid() {
		t.Error("nil session is not valid")
	}
	if (&Session{UserID: "u1"}).Valid() {
		t.Error("session without token is not valid")
	}
	if !(&Session{UserID: "u1", Token: "opaque"}).Valid() {
		t.Error("session with id and token is valid")
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	live := &Session{UserID: "u1", Token: signed(t, now.Add(time.Hour))}
	if live.Expired(now) {
		t.Error("token with future exp is not expired")
	}

	dead := &Session{UserID: "u1", Token: signed(t, now.Add(-time.Hour))}
	if !dead.Expired(now) {
		t.Error("token with past exp is expired")
	}

	opaque := &Session{UserID: "u1", Token: "not-a-jwt"}
	if opaque.Expired(now) {
		t.Error("opaque tokens never expire client-side")
	}
}
