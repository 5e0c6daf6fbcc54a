// Package auth holds the server-side session state for signed-in browsers.
//
// The identity provider issues and refreshes token grants; the Provider
// keeps them in the session store under an opaque id carried by the
// browser cookie, and notifies subscribers of every session change.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/foxzi/coldreach/internal/metrics"
	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/models"
)

// refreshMargin is how long before expiry an access token is renewed
const refreshMargin = time.Minute

var (
	ErrNoSession             = errors.New("not signed in")
	ErrFederationUnavailable = errors.New("federated sign-in is not configured")
)

type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventTokenRefreshed EventType = "token_refreshed"
	EventUserUpdated    EventType = "user_updated"
)

// Event describes one session change. Session is nil for EventSignedOut.
type Event struct {
	Type      EventType
	SessionID string
	UserID    string
	Session   *models.Session
}

type Listener func(Event)

// Identity is the identity provider
type Identity interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*backend.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*backend.Session, error)
	SignInWithIDToken(ctx context.Context, provider, idToken, nonce string) (*backend.Session, error)
	SignOut(ctx context.Context, token string) error
	GetUser(ctx context.Context, token string) (*backend.User, error)
}

// Store persists sessions
type Store interface {
	Create(s *models.Session) error
	GetByID(id string) (*models.Session, error)
	UpdateTokens(s *models.Session) error
	Delete(id string) (bool, error)
	DeleteExpired(now time.Time) (int64, error)
	CountActive(now time.Time) (int, error)
}

// Metadata is the user profile collected at sign up
type Metadata struct {
	FirstName string
	LastName  string
}

type Provider struct {
	identity Identity
	store    Store
	oidc     *OIDCProvider
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time
	refresh  singleflight.Group

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
	closed    bool
}

// NewProvider creates a session provider. oidc may be nil.
func NewProvider(identity Identity, store Store, oidc *OIDCProvider, ttl time.Duration, logger *slog.Logger) *Provider {
	return &Provider{
		identity:  identity,
		store:     store,
		oidc:      oidc,
		ttl:       ttl,
		logger:    logger.With("component", "auth"),
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn for session changes. The returned function
// removes it and may be called any number of times.
func (p *Provider) Subscribe(fn Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return func() {}
	}

	id := p.nextID
	p.nextID++
	p.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// Close releases every listener
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	clear(p.listeners)
}

func (p *Provider) emit(ev Event) {
	p.mu.Lock()
	fns := make([]Listener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// GetSession resolves a session id to its session, or nil when the id is
// unknown or expired. Access tokens near expiry are refreshed first.
func (p *Provider) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, nil
	}

	s, err := p.store.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return nil, nil
	}

	now := p.now()
	if !now.Before(s.ExpiresAt) {
		p.drop(s)
		return nil, nil
	}
	if now.Add(refreshMargin).Before(s.TokenExpiresAt) {
		return s, nil
	}

	res, err, _ := p.refresh.Do(id, func() (any, error) {
		return p.refreshSession(context.WithoutCancel(ctx), s)
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.(*models.Session), nil
}

// refreshSession returns nil without error when the identity provider
// rejected the refresh token and the session was dropped.
func (p *Provider) refreshSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	grant, err := p.identity.RefreshSession(ctx, s.RefreshToken)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			p.logger.Info("refresh token rejected, signing out", "session_id", s.ID, "error", err)
			p.drop(s)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	applyGrant(s, grant, p.now())
	if err := p.store.UpdateTokens(s); err != nil {
		return nil, err
	}

	p.logger.Debug("session refreshed", "session_id", s.ID, "user_id", s.UserID)
	p.emit(Event{Type: EventTokenRefreshed, SessionID: s.ID, UserID: s.UserID, Session: s})
	return s, nil
}

// RefreshUser re-reads the user record from the identity provider
func (p *Provider) RefreshUser(ctx context.Context, s *models.Session) error {
	user, err := p.identity.GetUser(ctx, s.AccessToken)
	if err != nil {
		return err
	}
	s.Email = user.Email
	s.FirstName = user.Metadata("first_name")
	s.LastName = user.Metadata("last_name")
	if err := p.store.UpdateTokens(s); err != nil {
		return err
	}
	p.emit(Event{Type: EventUserUpdated, SessionID: s.ID, UserID: s.UserID, Session: s})
	return nil
}

// SignUp registers a new account. A nil session with a nil error means the
// identity provider requires email confirmation before sign in.
func (p *Provider) SignUp(ctx context.Context, email, password string, meta Metadata) (*models.Session, error) {
	grant, err := p.identity.SignUp(ctx, email, password, map[string]string{
		"first_name": meta.FirstName,
		"last_name":  meta.LastName,
	})
	metrics.IncSignIn("signup", err)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		p.logger.Info("sign up pending confirmation", "email", email)
		return nil, nil
	}
	return p.start(grant)
}

// SignIn signs in with email and password
func (p *Provider) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	grant, err := p.identity.SignInWithPassword(ctx, email, password)
	metrics.IncSignIn("password", err)
	if err != nil {
		return nil, err
	}
	return p.start(grant)
}

// SignInWithFederatedIdentity begins the redirect to the external issuer
// and returns the URL to send the browser to.
func (p *Provider) SignInWithFederatedIdentity(provider string) (string, error) {
	if p.oidc == nil || p.oidc.Name() != provider {
		return "", ErrFederationUnavailable
	}
	return p.oidc.AuthCodeURL()
}

// CompleteFederatedSignIn handles the issuer's callback
func (p *Provider) CompleteFederatedSignIn(ctx context.Context, state, code string) (*models.Session, error) {
	if p.oidc == nil {
		return nil, ErrFederationUnavailable
	}

	fed, err := p.oidc.Exchange(ctx, state, code)
	if err != nil {
		metrics.IncSignIn("federated", err)
		return nil, err
	}

	grant, err := p.identity.SignInWithIDToken(ctx, fed.Provider, fed.IDToken, fed.Nonce)
	metrics.IncSignIn("federated", err)
	if err != nil {
		return nil, err
	}
	return p.start(grant)
}

// SignOut revokes the session upstream and deletes it locally. The local
// session is removed even when the upstream call fails.
func (p *Provider) SignOut(ctx context.Context, id string) error {
	s, err := p.store.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if s == nil {
		return nil
	}

	if err := p.identity.SignOut(ctx, s.AccessToken); err != nil {
		p.logger.Warn("upstream sign out failed", "session_id", id, "error", err)
	}
	return p.drop(s)
}

// DeleteExpired removes expired sessions from the store
func (p *Provider) DeleteExpired() (int64, error) {
	n, err := p.store.DeleteExpired(p.now())
	if err == nil && n > 0 {
		metrics.AddSessions(-float64(n))
	}
	return n, err
}

func (p *Provider) start(grant *backend.Session) (*models.Session, error) {
	now := p.now()
	s := &models.Session{
		ID:        uuid.NewString(),
		UserID:    grant.User.ID,
		ExpiresAt: now.Add(p.ttl),
	}
	applyGrant(s, grant, now)

	if err := p.store.Create(s); err != nil {
		return nil, err
	}
	metrics.AddSessions(1)

	p.logger.Info("signed in", "session_id", s.ID, "user_id", s.UserID)
	p.emit(Event{Type: EventSignedIn, SessionID: s.ID, UserID: s.UserID, Session: s})
	return s, nil
}

// drop deletes the session. Only the caller that removed the row counts
// it and announces the sign out.
func (p *Provider) drop(s *models.Session) error {
	deleted, err := p.store.Delete(s.ID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !deleted {
		return nil
	}
	metrics.AddSessions(-1)

	p.logger.Info("signed out", "session_id", s.ID, "user_id", s.UserID)
	p.emit(Event{Type: EventSignedOut, SessionID: s.ID, UserID: s.UserID})
	return nil
}

func applyGrant(s *models.Session, grant *backend.Session, now time.Time) {
	s.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		s.RefreshToken = grant.RefreshToken
	}
	s.TokenExpiresAt = grant.Expiry(now)
	if grant.User.Email != "" {
		s.Email = grant.User.Email
		s.FirstName = grant.User.Metadata("first_name")
		s.LastName = grant.User.Metadata("last_name")
	}
}
