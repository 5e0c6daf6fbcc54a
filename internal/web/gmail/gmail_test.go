package gmail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/foxzi/coldreach/internal/web/auth"
	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/models"
	"github.com/foxzi/coldreach/internal/web/query"
)

type fakeBackend struct {
	count    int
	countErr error
	authErr  error
	counts   int
	lastEq   map[string]string
}

func (f *fakeBackend) CountRows(ctx context.Context, token, table string, eq map[string]string) (int, error) {
	f.counts++
	f.lastEq = eq
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *fakeBackend) StartGmailAuth(ctx context.Context, token string) (*backend.GmailAuthResponse, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &backend.GmailAuthResponse{URL: "https://accounts.example.com/consent"}, nil
}

var testSession = &models.Session{ID: "s1", UserID: "u1", AccessToken: "tok"}

func newTestService(t *testing.T, b Backend, logs *bytes.Buffer) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(logs, nil))
	cache := query.New(query.NewMemoryStore(time.Minute), logger)
	t.Cleanup(func() { cache.Close() })
	return NewService(b, cache, 0, logger)
}

func TestConnectedNoSession(t *testing.T) {
	b := &fakeBackend{count: 1}
	svc := newTestService(t, b, &bytes.Buffer{})

	if svc.Connected(t.Context(), nil) {
		t.Error("Connected(nil) = true")
	}
	if b.counts != 0 {
		t.Errorf("row count queries = %d, want 0", b.counts)
	}
}

func TestConnected(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		err     error
		want    bool
		wantLog bool
	}{
		{"linked", 1, nil, true, false},
		{"two accounts", 2, nil, true, false},
		{"none", 0, nil, false, false},
		{"no rows", 0, &backend.APIError{Status: 406, Code: backend.CodeNoRows, Message: "no rows"}, false, false},
		{"other error", 0, &backend.APIError{Status: 500, Code: "42501", Message: "permission denied"}, false, true},
		{"transport error", 0, errors.New("connection reset"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			b := &fakeBackend{count: tt.count, countErr: tt.err}
			svc := newTestService(t, b, &logs)

			if got := svc.Connected(t.Context(), testSession); got != tt.want {
				t.Errorf("Connected() = %v, want %v", got, tt.want)
			}
			if b.lastEq["user_id"] != "u1" {
				t.Errorf("filter = %v, want user_id u1", b.lastEq)
			}
			logged := strings.Contains(logs.String(), "gmail connection check failed")
			if logged != tt.wantLog {
				t.Errorf("warning logged = %v, want %v", logged, tt.wantLog)
			}
		})
	}
}

func TestConnectedCachedFiveMinutes(t *testing.T) {
	b := &fakeBackend{count: 1}
	svc := newTestService(t, b, &bytes.Buffer{})

	if svc.staleTime != 5*time.Minute {
		t.Errorf("staleTime = %v, want 5m", svc.staleTime)
	}
	svc.Connected(t.Context(), testSession)
	svc.Connected(t.Context(), testSession)
	if b.counts != 1 {
		t.Errorf("row count queries = %d, want 1", b.counts)
	}
}

func TestStartLinkingInvalidatesStatus(t *testing.T) {
	b := &fakeBackend{count: 0}
	svc := newTestService(t, b, &bytes.Buffer{})

	if svc.Connected(t.Context(), testSession) {
		t.Fatal("Connected() = true before linking")
	}

	url, err := svc.StartLinking(t.Context(), testSession)
	if err != nil {
		t.Fatalf("StartLinking() error = %v", err)
	}
	if url != "https://accounts.example.com/consent" {
		t.Errorf("url = %s", url)
	}

	b.count = 1
	if !svc.Connected(t.Context(), testSession) {
		t.Error("Connected() = false after linking, want fresh read")
	}
}

func TestStartLinkingError(t *testing.T) {
	b := &fakeBackend{authErr: &backend.APIError{Status: 400, Message: "Gmail OAuth not configured"}}
	svc := newTestService(t, b, &bytes.Buffer{})

	_, err := svc.StartLinking(t.Context(), testSession)
	if err == nil || err.Error() != "Gmail OAuth not configured" {
		t.Errorf("StartLinking() error = %v, want upstream message", err)
	}

	if _, err := svc.StartLinking(t.Context(), nil); !errors.Is(err, auth.ErrNoSession) {
		t.Errorf("StartLinking(nil) error = %v", err)
	}
}
