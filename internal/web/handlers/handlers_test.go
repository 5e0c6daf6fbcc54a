package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/campaigns"
	"github.com/foxzi/coldreach/internal/web/launch"
)

func TestSplitDraft(t *testing.T) {
	tests := []struct {
		name    string
		draft   string
		subject string
		body    string
	}{
		{"with subject", "Subject: Quick question\n\nHi Ada,\nthanks", "Quick question", "Hi Ada,\nthanks"},
		{"no subject", "Hi Ada,\nthanks", "", "Hi Ada,\nthanks"},
		{"surrounding space", "\n  Subject:Hello  \nBody\n", "Hello", "Body"},
		{"subject only", "Subject: Hello", "Hello", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body := splitDraft(tt.draft)
			if subject != tt.subject {
				t.Errorf("subject = %q, want %q", subject, tt.subject)
			}
			if body != tt.body {
				t.Errorf("body = %q, want %q", body, tt.body)
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"upstream 400", &backend.APIError{Status: 400, Message: "bad"}, http.StatusBadRequest},
		{"wrapped 401", fmt.Errorf("failed to fetch campaigns: %w", &backend.APIError{Status: 401}), http.StatusUnauthorized},
		{"upstream 500", &backend.APIError{Status: 500}, http.StatusBadGateway},
		{"transport", errors.New("connection refused"), http.StatusBadGateway},
		{"missing campaign", campaigns.ErrNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRetryMessage(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want string
	}{
		{10 * time.Second, "Try again in 1m0s."},
		{42*time.Minute + 20*time.Second, "Try again in 42m0s."},
		{3 * time.Hour, "Try again in 3h0m0s."},
	}

	for _, tt := range tests {
		got := retryMessage("emails sent", tt.wait)
		if !strings.HasPrefix(got, "Too many emails sent.") || !strings.HasSuffix(got, tt.want) {
			t.Errorf("retryMessage(%v) = %q, want suffix %q", tt.wait, got, tt.want)
		}
	}
}

func TestLaunchMessage(t *testing.T) {
	if got := launchMessage(fmt.Errorf("launch: %w", launch.ErrNotReady)); !strings.Contains(got, "checklist") {
		t.Errorf("not ready message = %q", got)
	}
	if got := launchMessage(launch.ErrBusy); !strings.Contains(got, "wait") {
		t.Errorf("busy message = %q", got)
	}
	if got := launchMessage(errors.New("boom")); got != "boom" {
		t.Errorf("fallback message = %q, want boom", got)
	}
}

func TestListOptions(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/campaigns?q=seed&stage=draft&sort=name", nil)
	opts := listOptions(r)
	if opts.Search != "seed" || opts.Stage != campaigns.StageDraft || opts.Sort != campaigns.SortName {
		t.Errorf("listOptions() = %+v", opts)
	}

	r = httptest.NewRequest(http.MethodGet, "/campaigns?stage=archived", nil)
	if opts := listOptions(r); opts.Stage != "" {
		t.Errorf("unknown stage kept: %q", opts.Stage)
	}
}

func TestFlashRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	setFlash(rec, FlashSuccess, "Campaign created")

	r := httptest.NewRequest(http.MethodGet, "/campaigns", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}

	rec = httptest.NewRecorder()
	f := popFlash(rec, r)
	if f == nil || f.Kind != FlashSuccess || f.Message != "Campaign created" {
		t.Fatalf("popFlash() = %+v", f)
	}

	cleared := rec.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Errorf("flash cookie not cleared: %+v", cleared)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: flashCookie, Value: "%%%"})
	if f := popFlash(httptest.NewRecorder(), r); f != nil {
		t.Errorf("garbage cookie decoded to %+v", f)
	}
}
