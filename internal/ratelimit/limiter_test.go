package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/goleak"
)

func setupTestDB(t *testing.T) *bolt.DB {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestLimiter(t *testing.T, db *bolt.DB, cfg *Config) *Limiter {
	t.Helper()
	limiter, err := NewLimiter(db, cfg)
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	t.Cleanup(func() { limiter.Stop() })
	return limiter
}

func TestNewLimiterDefaultConfig(t *testing.T) {
	limiter := newTestLimiter(t, setupTestDB(t), nil)

	if limiter.config.FlushInterval != 10*time.Second {
		t.Errorf("expected default FlushInterval=10s, got %v", limiter.config.FlushInterval)
	}

	// No limits configured
	result, err := limiter.Allow(context.Background(), &Request{Action: ActionSend, UserID: "u1"})
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !result.Allowed {
		t.Error("request should be allowed without limits")
	}
}

func TestAllowSendPerUser(t *testing.T) {
	limiter := newTestLimiter(t, setupTestDB(t), &Config{
		SendPerUser:   &LimitConfig{PerHour: 3, PerDay: 10},
		FlushInterval: time.Hour,
	})

	ctx := context.Background()
	req := &Request{Action: ActionSend, UserID: "u1"}

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, req)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
	}

	result, err := limiter.Allow(ctx, req)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if result.Allowed {
		t.Error("request 4 should be denied")
	}
	if result.DeniedBy != LevelUser {
		t.Errorf("expected DeniedBy=user, got %s", result.DeniedBy)
	}
	if result.RetryAfter <= 0 || result.RetryAfter > time.Hour {
		t.Errorf("RetryAfter = %v, want within the hour", result.RetryAfter)
	}

	// Other users have their own quota
	result, _ = limiter.Allow(ctx, &Request{Action: ActionSend, UserID: "u2"})
	if !result.Allowed {
		t.Error("other user should be allowed")
	}
}

func TestAllowSendGlobal(t *testing.T) {
	limiter := newTestLimiter(t, setupTestDB(t), &Config{
		SendGlobal:    &LimitConfig{PerDay: 2},
		SendPerUser:   &LimitConfig{PerHour: 10},
		FlushInterval: time.Hour,
	})

	ctx := context.Background()
	limiter.Allow(ctx, &Request{Action: ActionSend, UserID: "u1"})
	limiter.Allow(ctx, &Request{Action: ActionSend, UserID: "u2"})

	result, _ := limiter.Allow(ctx, &Request{Action: ActionSend, UserID: "u3"})
	if result.Allowed {
		t.Fatal("global daily limit should deny")
	}
	if result.DeniedBy != LevelGlobal {
		t.Errorf("expected DeniedBy=global, got %s", result.DeniedBy)
	}
}

func TestDeniedRequestDoesNotCount(t *testing.T) {
	limiter := newTestLimiter(t, setupTestDB(t), &Config{
		SendGlobal:    &LimitConfig{PerHour: 1},
		SendPerUser:   &LimitConfig{PerHour: 5},
		FlushInterval: time.Hour,
	})

	ctx := context.Background()
	limiter.Allow(ctx, &Request{Action: ActionSend, UserID: "u1"})
	limiter.Allow(ctx, &Request{Action: ActionSend, UserID: "u1"})

	if got := limiter.counters[makeKey(ActionSend, LevelUser, "u1")].HourlyCount; got != 1 {
		t.Errorf("user counter = %d, want 1", got)
	}
}

func TestSignInPerIP(t *testing.T) {
	limiter := newTestLimiter(t, setupTestDB(t), &Config{
		SignInPerIP:   &LimitConfig{PerHour: 2},
		SendPerUser:   &LimitConfig{PerHour: 1},
		FlushInterval: time.Hour,
	})

	ctx := context.Background()
	req := &Request{Action: ActionSignIn, IP: "192.0.2.1"}
	limiter.Allow(ctx, req)
	limiter.Allow(ctx, req)

	result, _ := limiter.Allow(ctx, req)
	if result.Allowed {
		t.Fatal("third sign in should be denied")
	}
	if result.DeniedBy != LevelIP {
		t.Errorf("expected DeniedBy=ip, got %s", result.DeniedBy)
	}

	result, _ = limiter.Allow(ctx, &Request{Action: ActionSignIn, IP: "192.0.2.2"})
	if !result.Allowed {
		t.Error("other IP should be allowed")
	}

	// Sign-in attempts do not consume the send quota
	result, _ = limiter.Allow(ctx, &Request{Action: ActionSend, UserID: "u1", IP: "192.0.2.1"})
	if !result.Allowed {
		t.Error("send should be allowed")
	}
}

func TestCounterWindowReset(t *testing.T) {
	limiter := newTestLimiter(t, setupTestDB(t), &Config{
		SendPerUser:   &LimitConfig{PerHour: 1},
		FlushInterval: time.Hour,
	})

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	req := &Request{Action: ActionSend, UserID: "u1"}
	limiter.Allow(ctx, req)
	if result, _ := limiter.Allow(ctx, req); result.Allowed {
		t.Fatal("second send within the hour should be denied")
	}

	now = now.Add(time.Hour)
	if result, _ := limiter.Check(ctx, req); !result.Allowed {
		t.Error("Check after the window should allow")
	}
	if result, _ := limiter.Allow(ctx, req); !result.Allowed {
		t.Error("send after the window should be allowed")
	}
}

func TestCheckDoesNotIncrement(t *testing.T) {
	limiter := newTestLimiter(t, setupTestDB(t), &Config{
		SendPerUser:   &LimitConfig{PerHour: 1},
		FlushInterval: time.Hour,
	})

	ctx := context.Background()
	req := &Request{Action: ActionSend, UserID: "u1"}
	for i := 0; i < 3; i++ {
		result, err := limiter.Check(ctx, req)
		if err != nil {
			t.Fatalf("Check failed: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("Check %d should allow", i+1)
		}
	}
	if result, _ := limiter.Allow(ctx, req); !result.Allowed {
		t.Error("first Allow should succeed after Checks")
	}
}

func TestPersistence(t *testing.T) {
	db := setupTestDB(t)
	cfg := &Config{
		SendPerUser:   &LimitConfig{PerHour: 2},
		FlushInterval: time.Hour,
	}

	limiter, err := NewLimiter(db, cfg)
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	ctx := context.Background()
	req := &Request{Action: ActionSend, UserID: "u1"}
	limiter.Allow(ctx, req)
	limiter.Allow(ctx, req)
	if err := limiter.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	reopened := newTestLimiter(t, db, cfg)
	if result, _ := reopened.Allow(ctx, req); result.Allowed {
		t.Error("quota should survive a restart")
	}
}

func TestStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	db := setupTestDB(t)
	limiter, err := NewLimiter(db, &Config{FlushInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := limiter.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := limiter.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}
