package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxzi/coldreach/internal/ratelimit"
	"github.com/foxzi/coldreach/internal/web/config"
	"github.com/foxzi/coldreach/internal/web/middleware"
)

const testCampaigns = `{"campaigns":[
	{"id":"c1","name":"Series A founders","goal":"Book demos with founders","audience_description":"Founders of seed stage startups","created_at":"2024-03-01T10:00:00Z","emails":[
		{"id":"e1","recipient_email":"a@example.com","sent_at":"2024-03-02T10:00:00Z","replies":[{"id":"r1","created_at":"2024-03-03T10:00:00Z"}]},
		{"id":"e2","recipient_email":"b@example.com","sent_at":"2024-03-02T11:00:00Z","replies":[]}
	]},
	{"id":"c2","name":"Agency outreach","goal":"Find reseller partners","audience_description":"Marketing agencies in Europe","created_at":"2024-04-01T10:00:00Z","emails":[]}
]}`

// fakeBackend answers the identity, function and data endpoints
type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int
	sent  []string
}

func (f *fakeBackend) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/auth/v1/token":
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "correct-horse" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		fmt.Fprintf(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600,"refresh_token":"ref","user":{"id":"u1","email":%q,"user_metadata":{"first_name":"Ada"}}}`, body.Email)
	case "/auth/v1/user":
		w.Write([]byte(`{"id":"u1","email":"ada@example.com","user_metadata":{"first_name":"Ada","last_name":"Lovelace"}}`))
	case "/auth/v1/logout":
		w.WriteHeader(http.StatusNoContent)
	case "/functions/v1/get-campaigns":
		w.Write([]byte(testCampaigns))
	case "/functions/v1/get-analytics":
		w.Write([]byte(`{"campaign_id":"c1","sent":2,"opened":1,"replied":1}`))
	case "/functions/v1/send-email":
		var req struct {
			To string `json:"to"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.sent = append(f.sent, req.To)
		f.mu.Unlock()
		w.Write([]byte(`{"success":true,"id":"m1"}`))
	case "/rest/v1/gmail_accounts":
		w.Header().Set("Content-Range", "0-0/1")
		w.Write([]byte(`[{"id":"g1"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}`))
	}
}

type testEnv struct {
	srv     *Server
	backend *fakeBackend
	http    *httptest.Server
	client  *http.Client
}

func newTestEnv(t *testing.T, opts ...func(cfg *config.Config, dir string)) *testEnv {
	t.Helper()

	fb := &fakeBackend{calls: make(map[string]int)}
	upstream := httptest.NewServer(fb)
	t.Cleanup(upstream.Close)

	dir := t.TempDir()
	yaml := fmt.Sprintf(`
backend:
  url: %q
  anon_key: anon-key
database:
  path: %q
workspace:
  path: %q
auth:
  session_secret: "0123456789abcdef0123456789abcdef"
generate:
  draft_delay: 1ms
  lead_delay: 1ms
metrics:
  enabled: true
`, upstream.URL, filepath.Join(dir, "app.db"), filepath.Join(dir, "workspace.db"))

	cfg, err := config.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}
	for _, opt := range opts {
		opt(cfg, dir)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(t.Context(), cfg, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(srv.Close)

	front := httptest.NewServer(srv.Handler())
	t.Cleanup(front.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testEnv{srv: srv, backend: fb, http: front, client: client}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.http.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.PostForm(e.http.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (e *testEnv) signIn(t *testing.T) {
	t.Helper()
	resp, _ := e.post(t, "/auth/signin", url.Values{"email": {"ada@example.com"}, "password": {"correct-horse"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("sign in status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/dashboard" {
		t.Fatalf("sign in Location = %q, want /dashboard", loc)
	}
}

// sessionID reads the session cookie the client holds
func (e *testEnv) sessionID(t *testing.T) string {
	t.Helper()
	u, _ := url.Parse(e.http.URL)
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == middleware.SessionCookie {
			return c.Value
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func assertRedirect(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != want {
		t.Fatalf("Location = %q, want %q", loc, want)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, `"ok"`) {
		t.Errorf("body = %s", body)
	}
}

func TestAnonymousRouting(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		path     string
		status   int
		location string
	}{
		{"/", http.StatusOK, ""},
		{"/auth", http.StatusOK, ""},
		{"/dashboard", http.StatusSeeOther, "/auth"},
		{"/campaigns", http.StatusSeeOther, "/auth"},
		{"/campaign/c1", http.StatusSeeOther, "/auth"},
		{"/settings", http.StatusSeeOther, "/auth"},
		{"/no/such/page", http.StatusSeeOther, "/auth"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, _ := e.get(t, tt.path)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if loc := resp.Header.Get("Location"); loc != tt.location {
				t.Errorf("Location = %q, want %q", loc, tt.location)
			}
		})
	}

	if n := e.backend.count("/functions/v1/get-campaigns"); n != 0 {
		t.Errorf("anonymous requests made %d campaign calls, want 0", n)
	}
}

func TestSignInFailureKeepsEmail(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.post(t, "/auth/signin", url.Values{"email": {"ada@example.com"}, "password": {"hunter2-typed"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if !strings.Contains(body, "Invalid login credentials") {
		t.Error("error message not rendered")
	}
	if !strings.Contains(body, `value="ada@example.com"`) {
		t.Error("email not kept in the form")
	}
	if strings.Contains(body, "hunter2-typed") {
		t.Error("password echoed back")
	}
}

func TestSignedInPages(t *testing.T) {
	e := newTestEnv(t)
	e.signIn(t)

	resp, _ := e.get(t, "/")
	assertRedirect(t, resp, "/dashboard")
	resp, _ = e.get(t, "/auth")
	assertRedirect(t, resp, "/dashboard")

	resp, body := e.get(t, "/dashboard")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "Series A founders") {
		t.Error("dashboard does not list campaigns")
	}

	for _, path := range []string{"/campaigns", "/campaign/c1", "/analytics", "/inbox", "/outbox", "/contacts", "/settings"} {
		resp, _ := e.get(t, path)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, _ = e.get(t, "/campaign/missing")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing campaign status = %d, want 404", resp.StatusCode)
	}
	resp, body = e.get(t, "/no/such/page")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", resp.StatusCode)
	}
	if !strings.Contains(body, "/no/such/page") {
		t.Error("not-found page does not show the path")
	}

	if n := e.backend.count("/rest/v1/gmail_accounts"); n != 1 {
		t.Errorf("gmail count calls = %d, want 1 within the freshness window", n)
	}
}

func TestCampaignsAPI(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.get(t, "/api/v1/campaigns")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", resp.StatusCode)
	}

	e.signIn(t)
	resp, body := e.get(t, "/api/v1/campaigns?stage=draft")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got struct {
		Campaigns []struct {
			ID    string `json:"id"`
			Stage string `json:"stage"`
		} `json:"campaigns"`
		Summary struct {
			Campaigns int `json:"campaigns"`
			Sent      int `json:"sent"`
		} `json:"summary"`
	}
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Campaigns) != 1 || got.Campaigns[0].ID != "c2" {
		t.Errorf("draft campaigns = %+v, want only c2", got.Campaigns)
	}
	if got.Summary.Campaigns != 2 || got.Summary.Sent != 2 {
		t.Errorf("summary = %+v, want 2 campaigns and 2 sent", got.Summary)
	}

	resp, body = e.get(t, "/api/v1/gmail/status")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"connected":true`) {
		t.Errorf("gmail status = %d %s", resp.StatusCode, body)
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	e := newTestEnv(t)
	e.signIn(t)

	resp, body := e.post(t, "/campaigns", url.Values{"name": {"x"}, "goal": {"short"}, "audience_description": {"tiny"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if !strings.Contains(body, `value="x"`) {
		t.Error("typed name not kept")
	}
	if n := e.backend.count("/functions/v1/create-campaign"); n != 0 {
		t.Errorf("create-campaign calls = %d, want 0", n)
	}
}

func TestLeadsAndLaunchFlow(t *testing.T) {
	e := newTestEnv(t)
	e.signIn(t)

	resp, _ := e.post(t, "/campaign/c1/leads/generate", url.Values{"count": {"3"}})
	assertRedirect(t, resp, "/campaign/c1")
	resp, _ = e.post(t, "/campaign/c1/leads/add", url.Values{"name": {"Grace Hopper"}, "email": {"grace@example.com"}, "company": {"Navy"}, "title": {"Rear Admiral"}})
	assertRedirect(t, resp, "/campaign/c1")

	_, body := e.get(t, "/campaign/c1")
	if !strings.Contains(body, "Grace Hopper") {
		t.Error("added lead not shown")
	}

	resp, _ = e.post(t, "/campaign/c1/leads/4/delete", nil)
	assertRedirect(t, resp, "/campaign/c1")
	_, body = e.get(t, "/campaign/c1")
	if strings.Contains(body, "Grace Hopper") {
		t.Error("deleted lead still shown")
	}

	resp, _ = e.post(t, "/campaign/c1/leads/abc/delete", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("non-numeric lead id status = %d, want 404", resp.StatusCode)
	}

	// Launch is refused until the checklist is done
	e.post(t, "/campaign/c1/launch", nil)
	_, body = e.get(t, "/campaign/c1/launch")
	if !strings.Contains(body, `"phase":"configuring"`) {
		t.Fatalf("launch state = %s, want configuring", body)
	}

	for range 4 {
		resp, _ := e.post(t, "/campaign/c1/launch/tasks", nil)
		assertRedirect(t, resp, "/campaign/c1")
	}
	resp, _ = e.post(t, "/campaign/c1/launch", nil)
	assertRedirect(t, resp, "/campaign/c1")

	resp, body = e.get(t, "/campaign/c1/launch")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("launch state status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"phase":"launching"`) {
		t.Errorf("launch state = %s, want launching", body)
	}

	resp, _ = e.get(t, "/campaign/missing/launch")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing campaign launch status = %d, want 404", resp.StatusCode)
	}
}

func TestDraftAndSend(t *testing.T) {
	e := newTestEnv(t)
	e.signIn(t)

	resp, body := e.post(t, "/campaign/c1/draft", url.Values{"instructions": {"Keep it casual"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("draft status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "Quick question, {{first_name}}") {
		t.Error("draft subject not prefilled")
	}

	resp, _ = e.post(t, "/campaign/c1/send", url.Values{"to": {"not-an-address"}, "subject": {"Hi"}, "body": {"Hello"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("invalid recipient status = %d, want 422", resp.StatusCode)
	}

	resp, _ = e.post(t, "/campaign/c1/send", url.Values{"to": {"lead@example.com"}, "subject": {"Hi"}, "body": {"Hello"}})
	assertRedirect(t, resp, "/campaign/c1")

	e.backend.mu.Lock()
	sent := e.backend.sent
	e.backend.mu.Unlock()
	if len(sent) != 1 || sent[0] != "lead@example.com" {
		t.Errorf("sent = %v, want [lead@example.com]", sent)
	}
}

func TestSignOutDropsSessionState(t *testing.T) {
	e := newTestEnv(t)
	e.signIn(t)

	if resp, _ := e.get(t, "/contacts"); resp.StatusCode != http.StatusOK {
		t.Fatalf("contacts status = %d", resp.StatusCode)
	}
	if n, err := e.srv.workspace.Sessions(); err != nil || n != 1 {
		t.Fatalf("workspace sessions = %d, %v; want 1", n, err)
	}

	resp, _ := e.post(t, "/auth/signout", nil)
	assertRedirect(t, resp, "/auth")

	if n, err := e.srv.workspace.Sessions(); err != nil || n != 0 {
		t.Errorf("workspace sessions after sign out = %d, %v; want 0", n, err)
	}
	resp, _ = e.get(t, "/dashboard")
	assertRedirect(t, resp, "/auth")
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.get(t, "/health")

	resp, body := e.get(t, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "coldreach_http_requests_total") {
		t.Error("request counter not exposed")
	}
}

func withRateLimit(limits ratelimit.Config) func(*config.Config, string) {
	return func(cfg *config.Config, dir string) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.Path = filepath.Join(dir, "ratelimit.db")
		cfg.RateLimit.Config = limits
	}
}

func TestSignInRateLimited(t *testing.T) {
	e := newTestEnv(t, withRateLimit(ratelimit.Config{
		SignInPerIP: &ratelimit.LimitConfig{PerHour: 2},
	}))

	form := url.Values{"email": {"ada@example.com"}, "password": {"hunter2-typed"}}
	for i := 0; i < 2; i++ {
		if resp, _ := e.post(t, "/auth/signin", form); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("attempt %d status = %d, want 400", i+1, resp.StatusCode)
		}
	}

	resp, body := e.post(t, "/auth/signin", url.Values{"email": {"ada@example.com"}, "password": {"correct-horse"}})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if !strings.Contains(body, "Too many sign-in attempts") {
		t.Error("rate limit message not rendered")
	}
	if !strings.Contains(body, `value="ada@example.com"`) {
		t.Error("email not kept in the form")
	}
	if n := e.backend.count("/auth/v1/token"); n != 2 {
		t.Errorf("token calls = %d, want 2", n)
	}
}

func TestSendQuota(t *testing.T) {
	e := newTestEnv(t, withRateLimit(ratelimit.Config{
		SendPerUser: &ratelimit.LimitConfig{PerDay: 1},
	}))
	e.signIn(t)

	form := url.Values{"to": {"lead@example.com"}, "subject": {"Hi"}, "body": {"Hello"}}
	resp, _ := e.post(t, "/campaign/c1/send", form)
	assertRedirect(t, resp, "/campaign/c1")

	resp, body := e.post(t, "/campaign/c1/send", form)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if !strings.Contains(body, "Too many emails sent") {
		t.Error("quota message not rendered")
	}

	e.backend.mu.Lock()
	sent := len(e.backend.sent)
	e.backend.mu.Unlock()
	if sent != 1 {
		t.Errorf("sent %d emails, want 1", sent)
	}
}

func TestConcurrentLeadGenerate(t *testing.T) {
	e := newTestEnv(t, func(cfg *config.Config, _ string) {
		cfg.Generate.LeadDelay = 100 * time.Millisecond
	})
	e.signIn(t)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.client.PostForm(e.http.URL+"/campaign/c1/leads/generate", url.Values{"count": {"5"}})
			if err != nil {
				t.Errorf("generate: %v", err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusSeeOther {
				t.Errorf("generate status = %d, want 303", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	resp, _ := e.post(t, "/campaign/c1/leads/add", url.Values{"name": {"Grace Hopper"}, "email": {"grace@example.com"}, "company": {"Navy"}, "title": {"Rear Admiral"}})
	assertRedirect(t, resp, "/campaign/c1")

	leads, err := e.srv.workspace.Leads(e.sessionID(t), "c1")
	if err != nil {
		t.Fatalf("Leads() error = %v", err)
	}
	if len(leads) != 11 {
		t.Fatalf("got %d leads, want 11", len(leads))
	}
	ids := make(map[int]bool)
	emails := make(map[string]bool)
	for _, l := range leads {
		if ids[l.ID] {
			t.Errorf("duplicate lead id %d", l.ID)
		}
		if emails[l.Email] {
			t.Errorf("duplicate lead email %s", l.Email)
		}
		ids[l.ID] = true
		emails[l.Email] = true
	}
}

func TestSignInLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	e := newTestEnv(t, withRateLimit(ratelimit.Config{
		SignInPerIP: &ratelimit.LimitConfig{PerHour: 2},
	}))

	var statuses []int
	for i := 0; i < 4; i++ {
		form := url.Values{"email": {"ada@example.com"}, "password": {"hunter2-typed"}}
		req, err := http.NewRequest(http.MethodPost, e.http.URL+"/auth/signin", strings.NewReader(form.Encode()))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		resp, err := e.client.Do(req)
		if err != nil {
			t.Fatalf("sign in: %v", err)
		}
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	want := []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests, http.StatusTooManyRequests}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", statuses, want)
		}
	}
	if n := e.backend.count("/auth/v1/token"); n != 2 {
		t.Errorf("token calls = %d, want 2", n)
	}
}

func TestSignInLimitBehindTrustedProxy(t *testing.T) {
	e := newTestEnv(t, withRateLimit(ratelimit.Config{
		SignInPerIP: &ratelimit.LimitConfig{PerHour: 1},
	}), func(cfg *config.Config, _ string) {
		cfg.Server.TrustedProxies = []string{"127.0.0.1"}
	})

	signIn := func(clientIP string) int {
		form := url.Values{"email": {"ada@example.com"}, "password": {"hunter2-typed"}}
		req, err := http.NewRequest(http.MethodPost, e.http.URL+"/auth/signin", strings.NewReader(form.Encode()))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Forwarded-For", clientIP)
		resp, err := e.client.Do(req)
		if err != nil {
			t.Fatalf("sign in: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := signIn("198.51.100.1"); got != http.StatusBadRequest {
		t.Fatalf("first client status = %d, want 400", got)
	}
	if got := signIn("198.51.100.1"); got != http.StatusTooManyRequests {
		t.Errorf("first client again status = %d, want 429", got)
	}
	if got := signIn("198.51.100.2"); got != http.StatusBadRequest {
		t.Errorf("second client status = %d, want 400", got)
	}
}

func TestSettingsRefreshesProfile(t *testing.T) {
	e := newTestEnv(t)
	e.signIn(t)

	_, body := e.get(t, "/dashboard")
	if strings.Contains(body, "Ada Lovelace") {
		t.Fatal("last name known before the profile was read")
	}

	resp, body := e.get(t, "/settings")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("settings status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(body, "Ada Lovelace") {
		t.Error("settings did not show the refreshed profile")
	}
	if n := e.backend.count("/auth/v1/user"); n != 1 {
		t.Errorf("user calls = %d, want 1", n)
	}

	// The refreshed name is stored with the session
	s, err := e.srv.auth.GetSession(t.Context(), e.sessionID(t))
	if err != nil || s == nil {
		t.Fatalf("GetSession() = %v, %v", s, err)
	}
	if s.LastName != "Lovelace" {
		t.Errorf("stored last name = %q, want Lovelace", s.LastName)
	}
}
