package router

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

func token(t *testing.T, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestAccessFor(t *testing.T) {
	tests := []struct {
		path string
		want Access
	}{
		{"/", Authenticated},
		{"", Authenticated},
		{"/dashboard", Authenticated},
		{"/dashboard/", Authenticated},
		{"/profile", Authenticated},
		{"/add", Authenticated},
		{"/browse?page=2", Authenticated},
		{"/analytics", Premium},
		{"/leaderboard", Premium},
		{"/add/voice", Premium},
		{"/login", Public},
		{"/signup", Public},
		{"/forgot-password", Public},
		{"/reset-password/abc123", Public},
		{"/upgrade", Public},
		{"/payment/success", Public},
		{"/payment/cancel", Public},
		{"/payments", Authenticated},
		{"/somewhere-else", Authenticated},
		{"login", Public},
	}

	for _, tt := range tests {
		if got := AccessFor(tt.path); got != tt.want {
			t.Errorf("AccessFor(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	free := &core.Session{UserID: "u1", Token: "opaque"}
	premium := &core.Session{UserID: "u1", Token: "opaque", IsPremium: true}
	expired := &core.Session{UserID: "u1", Token: token(t, now.Add(-time.Hour)), IsPremium: true}
	live := &core.Session{UserID: "u1", Token: token(t, now.Add(time.Hour))}

	tests := []struct {
		name     string
		path     string
		session  *core.Session
		allow    bool
		redirect string
	}{
		{"dashboard without session", "/dashboard", nil, false, LoginPath},
		{"dashboard signed in", "/dashboard", free, true, ""},
		{"root signed in", "/", live, true, ""},
		{"add without session", "/add", &core.Session{}, false, LoginPath},
		{"non-premium analytics goes to upgrade", "/analytics", free, false, UpgradePath},
		{"premium analytics", "/analytics", premium, true, ""},
		{"leaderboard without session goes to login", "/leaderboard", nil, false, LoginPath},
		{"voice entry needs premium", "/add/voice", free, false, UpgradePath},
		{"expired token counts as logged out", "/browse", expired, false, LoginPath},
		{"expired premium token", "/analytics", expired, false, LoginPath},
		{"login is public", "/login", nil, true, ""},
		{"reset link is public", "/reset-password/tok", nil, true, ""},
		{"payment return is public", "/payment/success", nil, true, ""},
		{"upgrade is public", "/upgrade", nil, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := resolve(tt.path, tt.session, now)
			assert.Equal(t, tt.allow, d.Allow)
			assert.Equal(t, tt.redirect, d.Redirect)
			assert.Equal(t, tt.path, d.Path)
		})
	}
}

func TestGuard_UsesCurrentSession(t *testing.T) {
	var current *core.Session
	g := NewGuard(func() *core.Session { return current }, log.Discard())

	assert.Equal(t, LoginPath, g.Resolve("/analytics").Redirect)

	current = &core.Session{UserID: "u1", Token: "opaque"}
	assert.Equal(t, UpgradePath, g.Resolve("/analytics").Redirect)

	current.IsPremium = true
	assert.True(t, g.Resolve("/analytics").Allow)
}

func TestGuard_NilSessionFunc(t *testing.T) {
	g := NewGuard(nil, nil)
	d := g.Resolve("/profile")
	assert.False(t, d.Allow)
	assert.Equal(t, LoginPath, d.Redirect)
}
