package auth

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newTestOIDCProvider() *OIDCProvider {
	return &OIDCProvider{
		name: "google",
		oauth2: oauth2.Config{
			ClientID:    "test-client",
			RedirectURL: "https://app.example.com/auth/callback",
			Endpoint:    oauth2.Endpoint{AuthURL: "https://issuer.example.com/authorize"},
			Scopes:      []string{"openid", "email"},
		},
		now:    time.Now,
		states: make(map[string]pendingLogin),
	}
}

func TestGenerateState(t *testing.T) {
	state1, err := generateState()
	if err != nil {
		t.Fatalf("generateState() error = %v", err)
	}
	state2, err := generateState()
	if err != nil {
		t.Fatalf("generateState() error = %v", err)
	}

	if state1 == state2 {
		t.Error("generateState() returned duplicate states")
	}
	// 32 bytes unpadded base64 = 43 chars
	if len(state1) != 43 {
		t.Errorf("generateState() length = %d, want 43", len(state1))
	}
}

func TestAuthCodeURL(t *testing.T) {
	p := newTestOIDCProvider()

	raw, err := p.AuthCodeURL()
	if err != nil {
		t.Fatalf("AuthCodeURL() error = %v", err)
	}
	if !strings.HasPrefix(raw, "https://issuer.example.com/authorize?") {
		t.Errorf("AuthCodeURL() = %s", raw)
	}

	u, _ := url.Parse(raw)
	q := u.Query()
	state, nonce := q.Get("state"), q.Get("nonce")
	if state == "" || nonce == "" {
		t.Fatalf("state = %q, nonce = %q, want both set", state, nonce)
	}

	got, ok := p.consumeState(state)
	if !ok {
		t.Fatal("issued state not accepted")
	}
	if got != nonce {
		t.Errorf("nonce = %q, want %q", got, nonce)
	}

	if _, ok := p.consumeState(state); ok {
		t.Error("state accepted twice")
	}
}

func TestStateExpiry(t *testing.T) {
	p := newTestOIDCProvider()
	now := time.Now()
	p.now = func() time.Time { return now }

	raw, err := p.AuthCodeURL()
	if err != nil {
		t.Fatal(err)
	}
	u, _ := url.Parse(raw)
	state := u.Query().Get("state")

	now = now.Add(stateTTL + time.Second)
	if _, ok := p.consumeState(state); ok {
		t.Error("expired state accepted")
	}
}

func TestStatePruning(t *testing.T) {
	p := newTestOIDCProvider()
	now := time.Now()
	p.now = func() time.Time { return now }

	p.AuthCodeURL()
	p.AuthCodeURL()
	now = now.Add(stateTTL + time.Second)
	p.AuthCodeURL()

	p.mu.Lock()
	n := len(p.states)
	p.mu.Unlock()
	if n != 1 {
		t.Errorf("states = %d after pruning, want 1", n)
	}
}

func TestExchangeInvalidState(t *testing.T) {
	p := newTestOIDCProvider()
	if _, err := p.Exchange(t.Context(), "unknown", "code"); err == nil || err.Error() != "invalid state" {
		t.Errorf("Exchange() error = %v, want invalid state", err)
	}
}
