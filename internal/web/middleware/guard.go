package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/foxzi/coldreach/internal/web/models"
)

// SessionCookie holds the opaque session id
const SessionCookie = "session"

const (
	PathLanding = "/"
	PathAuth    = "/auth"
	PathHome    = "/dashboard"
)

// SessionResolver maps a cookie value to its session
type SessionResolver interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
}

// State is what the guard knows about the visitor
type State struct {
	Session *models.Session
	Loading bool
}

type Action int

const (
	ActionRender Action = iota
	ActionLoading
	ActionRedirect
)

type Decision struct {
	Action   Action
	Location string
}

// Decide chooses what a page request gets. The landing and sign-in pages
// are open to anonymous visitors and send signed-in ones to the
// dashboard; every other page requires a session.
func Decide(state State, path string) Decision {
	if state.Loading {
		return Decision{Action: ActionLoading}
	}

	public := path == PathLanding || path == PathAuth
	switch {
	case public && state.Session != nil:
		return Decision{Action: ActionRedirect, Location: PathHome}
	case public:
		return Decision{Action: ActionRender}
	case state.Session == nil:
		return Decision{Action: ActionRedirect, Location: PathAuth}
	}
	return Decision{Action: ActionRender}
}

// Guard resolves the session of each request and applies Decide
type Guard struct {
	sessions SessionResolver
	timeout  time.Duration
	loading  http.Handler
	logger   *slog.Logger
}

// NewGuard creates a guard. loading renders the placeholder shown while a
// session lookup is still running after timeout.
func NewGuard(sessions SessionResolver, timeout time.Duration, loading http.Handler, logger *slog.Logger) *Guard {
	return &Guard{
		sessions: sessions,
		timeout:  timeout,
		loading:  loading,
		logger:   logger.With("component", "guard"),
	}
}

type lookup struct {
	session *models.Session
	err     error
}

// Resolve looks up the session named by the request cookie
func (g *Guard) Resolve(r *http.Request) State {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return State{}
	}

	ch := make(chan lookup, 1)
	go func() {
		s, err := g.sessions.GetSession(r.Context(), c.Value)
		ch <- lookup{session: s, err: err}
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			g.logger.Warn("session lookup failed", "error", res.err, "path", r.URL.Path)
			return State{}
		}
		return State{Session: res.session}
	case <-timer.C:
		g.logger.Warn("session lookup timed out", "timeout", g.timeout, "path", r.URL.Path)
		return State{Loading: true}
	case <-r.Context().Done():
		return State{Loading: true}
	}
}

// Pages guards HTML routes
func (g *Guard) Pages(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := g.Resolve(r)
		if state.Session == nil && !state.Loading {
			ClearSessionCookie(w, r)
		}

		d := Decide(state, r.URL.Path)
		switch d.Action {
		case ActionLoading:
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Session is still loading, try again", http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Refresh", "1")
			w.Header().Set("Cache-Control", "no-store")
			g.loading.ServeHTTP(w, r)
		case ActionRedirect:
			http.Redirect(w, r, d.Location, http.StatusSeeOther)
		default:
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), state.Session)))
		}
	})
}

// API guards JSON routes: 401 without a session, 503 while loading
func (g *Guard) API(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := g.Resolve(r)
		switch {
		case state.Loading:
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusServiceUnavailable, "session is still loading")
		case state.Session == nil:
			writeJSONError(w, http.StatusUnauthorized, "not signed in")
		default:
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), state.Session)))
		}
	})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// WithSession stores s in ctx
func WithSession(ctx context.Context, s *models.Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

// Session returns the session stored by the guard, or nil
func Session(ctx context.Context) *models.Session {
	s, _ := ctx.Value(ctxKeySession).(*models.Session)
	return s
}

// SetSessionCookie hands the session id to the browser
func SetSessionCookie(w http.ResponseWriter, s *models.Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes a stale session cookie, if the request had one
func ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(SessionCookie); err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
