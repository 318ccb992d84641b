// Package router gates screens by session state. Every CLI command maps to a
// path and is resolved here before it runs.
package router

import (
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// Access is the requirement a route places on the session.
type Access int

const (
	Public Access = iota
	Authenticated
	Premium
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Premium:
		return "premium"
	default:
		return "unknown"
	}
}

const (
	LoginPath   = "/login"
	UpgradePath = "/upgrade"
)

type route struct {
	path   string
	prefix bool
	access Access
}

var routes = []route{
	{path: "/", access: Authenticated},
	{path: "/dashboard", access: Authenticated},
	{path: "/profile", access: Authenticated},
	{path: "/add", access: Authenticated},
	{path: "/browse", access: Authenticated},
	{path: "/analytics", access: Premium},
	{path: "/leaderboard", access: Premium},
	{path: "/add/voice", access: Premium},
	{path: "/login", access: Public},
	{path: "/signup", access: Public},
	{path: "/forgot-password", access: Public},
	{path: "/reset-password", prefix: true, access: Public},
	{path: "/upgrade", access: Public},
	{path: "/payment", prefix: true, access: Public},
}

// AccessFor returns the requirement of path. Unknown paths need a session.
func AccessFor(path string) Access {
	path = normalize(path)
	for _, r := range routes {
		if r.path == path || (r.prefix && strings.HasPrefix(path, r.path+"/")) {
			return r.access
		}
	}
	return Authenticated
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if trimmed := strings.TrimRight(path, "/"); trimmed != "" {
		path = trimmed
	}
	return path
}

// Decision is the outcome of resolving a path.
type Decision struct {
	Path     string
	Allow    bool
	Redirect string
	Access   Access
}

// Resolve decides whether s may open path. An expired token counts as no
// session.
func Resolve(path string, s *core.Session) Decision {
	return resolve(path, s, time.Now())
}

func resolve(path string, s *core.Session, now time.Time) Decision {
	access := AccessFor(path)
	d := Decision{Path: path, Access: access, Allow: true}

	signedIn := s.Valid() && !s.Expired(now)
	switch access {
	case Authenticated:
		if !signedIn {
			d.Allow, d.Redirect = false, LoginPath
		}
	case Premium:
		switch {
		case !signedIn:
			d.Allow, d.Redirect = false, LoginPath
		case !s.IsPremium:
			d.Allow, d.Redirect = false, UpgradePath
		}
	}
	return d
}

// Guard resolves paths against the current session and logs redirects.
type Guard struct {
	session func() *core.Session
	logger  *log.Logger
	now     func() time.Time
}

func NewGuard(session func() *core.Session, logger *log.Logger) *Guard {
	if logger == nil {
		logger = log.Discard()
	}
	return &Guard{
		session: session,
		logger:  logger.WithComponent(log.ComponentRouter),
		now:     time.Now,
	}
}

func (g *Guard) Resolve(path string) Decision {
	var s *core.Session
	if g.session != nil {
		s = g.session()
	}
	d := resolve(path, s, g.now())
	if !d.Allow {
		g.logger.Info("Route redirected", log.FieldPath, path, log.FieldRedirect, d.Redirect)
	}
	return d
}
