package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/foxzi/coldreach/internal/web/config"
	"golang.org/x/oauth2"
)

const stateTTL = 10 * time.Minute

// OIDCProvider runs the authorization-code flow against a federated
// identity issuer. The verified ID token is handed to the identity
// provider, which issues the session.
type OIDCProvider struct {
	name     string
	oauth2   oauth2.Config
	verifier *oidc.IDTokenVerifier
	now      func() time.Time

	mu     sync.Mutex
	states map[string]pendingLogin
}

type pendingLogin struct {
	nonce     string
	expiresAt time.Time
}

// FederatedIdentity is the result of a completed authorization-code flow
type FederatedIdentity struct {
	Provider string
	IDToken  string
	Nonce    string
	Email    string
	Name     string
}

// NewOIDCProvider creates a new OIDC provider. It returns nil when
// federation is disabled.
func NewOIDCProvider(ctx context.Context, cfg *config.OIDCConfig) (*OIDCProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &OIDCProvider{
		name: cfg.Provider,
		oauth2: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       cfg.Scopes,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		now:      time.Now,
		states:   make(map[string]pendingLogin),
	}, nil
}

// Name returns the provider name the identity provider knows it by
func (p *OIDCProvider) Name() string {
	return p.name
}

// AuthCodeURL generates the authorization URL with a random state and nonce
func (p *OIDCProvider) AuthCodeURL() (string, error) {
	state, err := generateState()
	if err != nil {
		return "", err
	}
	nonce, err := generateState()
	if err != nil {
		return "", err
	}

	now := p.now()
	p.mu.Lock()
	for s, pl := range p.states {
		if now.After(pl.expiresAt) {
			delete(p.states, s)
		}
	}
	p.states[state] = pendingLogin{nonce: nonce, expiresAt: now.Add(stateTTL)}
	p.mu.Unlock()

	return p.oauth2.AuthCodeURL(state, oidc.Nonce(nonce)), nil
}

// consumeState returns the nonce bound to state. A state is valid once.
func (p *OIDCProvider) consumeState(state string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pl, ok := p.states[state]
	if !ok {
		return "", false
	}
	delete(p.states, state)
	if p.now().After(pl.expiresAt) {
		return "", false
	}
	return pl.nonce, true
}

// Exchange exchanges the authorization code and verifies the ID token
func (p *OIDCProvider) Exchange(ctx context.Context, state, code string) (*FederatedIdentity, error) {
	nonce, valid := p.consumeState(state)
	if !valid {
		return nil, fmt.Errorf("invalid state")
	}

	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id_token: %w", err)
	}
	if idToken.Nonce != nonce {
		return nil, fmt.Errorf("id_token nonce mismatch")
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	return &FederatedIdentity{
		Provider: p.name,
		IDToken:  rawIDToken,
		Nonce:    nonce,
		Email:    claims.Email,
		Name:     claims.Name,
	}, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
