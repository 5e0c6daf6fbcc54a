package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketRateLimits = []byte("rate_limits")

// Level represents the level of rate limiting
type Level string

const (
	LevelGlobal Level = "global"
	LevelUser   Level = "user"
	LevelIP     Level = "ip"
)

// Action is the limited operation
type Action string

const (
	ActionSignIn Action = "signin"
	ActionSend   Action = "send"
)

// Config contains rate limit configuration
type Config struct {
	// Sign-in attempts per client IP
	SignInPerIP *LimitConfig `yaml:"signin_per_ip,omitempty"`

	// Emails sent per user
	SendPerUser *LimitConfig `yaml:"send_per_user,omitempty"`

	// Emails sent by every user together
	SendGlobal *LimitConfig `yaml:"send_global,omitempty"`

	// Persistence settings
	FlushInterval time.Duration `yaml:"flush_interval,omitempty"`
}

// LimitConfig contains rate limit values. Zero means unlimited.
type LimitConfig struct {
	PerHour int `yaml:"per_hour" json:"per_hour"`
	PerDay  int `yaml:"per_day" json:"per_day"`
}

// Counter tracks rate limit counters
type Counter struct {
	HourlyCount int       `json:"hourly_count"`
	DailyCount  int       `json:"daily_count"`
	HourStart   time.Time `json:"hour_start"`
	DayStart    time.Time `json:"day_start"`
}

// Limiter counts actions per hour and per day. Counters are kept in
// memory and flushed to bolt periodically and on Stop.
type Limiter struct {
	db       *bolt.DB
	config   *Config
	now      func() time.Time
	counters map[string]*Counter // key -> counter
	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
	done     sync.WaitGroup
}

// NewLimiter creates a new rate limiter
func NewLimiter(db *bolt.DB, cfg *Config) (*Limiter, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	// Create bucket if not exists
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRateLimits)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limits bucket: %w", err)
	}

	l := &Limiter{
		db:       db,
		config:   cfg,
		now:      time.Now,
		counters: make(map[string]*Counter),
		stopCh:   make(chan struct{}),
	}

	// Load persisted counters
	if err := l.loadCounters(); err != nil {
		return nil, fmt.Errorf("failed to load counters: %w", err)
	}

	// Start background persistence
	l.done.Add(1)
	go l.persistLoop()

	return l, nil
}

// Request contains information about the rate limit request
type Request struct {
	Action Action
	UserID string
	IP     string
}

// Result contains the rate limit check result
type Result struct {
	Allowed    bool
	DeniedBy   Level
	DeniedKey  string
	RetryAfter time.Duration
}

// Allow checks if the action is allowed and increments counters
func (l *Limiter) Allow(ctx context.Context, req *Request) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	checks := l.getChecks(req)

	for _, check := range checks {
		counter := l.getOrCreateCounter(check.key, now)
		resetExpiredCounters(counter, now)

		if res := deny(check, counter.HourlyCount, counter.DailyCount, counter, now); res != nil {
			return res, nil
		}
	}

	// Increment all counters if allowed
	for _, check := range checks {
		counter := l.counters[check.key]
		counter.HourlyCount++
		counter.DailyCount++
	}

	return &Result{Allowed: true}, nil
}

// Check checks if the action would be allowed without incrementing counters
func (l *Limiter) Check(ctx context.Context, req *Request) (*Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	for _, check := range l.getChecks(req) {
		counter, exists := l.counters[check.key]
		if !exists {
			continue
		}

		hourlyCount := counter.HourlyCount
		dailyCount := counter.DailyCount
		if now.Sub(counter.HourStart) >= time.Hour {
			hourlyCount = 0
		}
		if now.Sub(counter.DayStart) >= 24*time.Hour {
			dailyCount = 0
		}

		if res := deny(check, hourlyCount, dailyCount, counter, now); res != nil {
			return res, nil
		}
	}

	return &Result{Allowed: true}, nil
}

func deny(check limitCheck, hourly, daily int, counter *Counter, now time.Time) *Result {
	if check.limit.PerHour > 0 && hourly >= check.limit.PerHour {
		return &Result{
			DeniedBy:   check.level,
			DeniedKey:  check.key,
			RetryAfter: counter.HourStart.Add(time.Hour).Sub(now),
		}
	}
	if check.limit.PerDay > 0 && daily >= check.limit.PerDay {
		return &Result{
			DeniedBy:   check.level,
			DeniedKey:  check.key,
			RetryAfter: counter.DayStart.Add(24 * time.Hour).Sub(now),
		}
	}
	return nil
}

// Stop stops the rate limiter and persists counters
func (l *Limiter) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	l.done.Wait()
	return l.persistCounters()
}

type limitCheck struct {
	level Level
	key   string
	limit *LimitConfig
}

func (l *Limiter) getChecks(req *Request) []limitCheck {
	var checks []limitCheck

	switch req.Action {
	case ActionSignIn:
		if req.IP != "" && l.config.SignInPerIP != nil {
			checks = append(checks, limitCheck{
				level: LevelIP,
				key:   makeKey(req.Action, LevelIP, req.IP),
				limit: l.config.SignInPerIP,
			})
		}
	case ActionSend:
		if l.config.SendGlobal != nil {
			checks = append(checks, limitCheck{
				level: LevelGlobal,
				key:   makeKey(req.Action, LevelGlobal, "global"),
				limit: l.config.SendGlobal,
			})
		}
		if req.UserID != "" && l.config.SendPerUser != nil {
			checks = append(checks, limitCheck{
				level: LevelUser,
				key:   makeKey(req.Action, LevelUser, req.UserID),
				limit: l.config.SendPerUser,
			})
		}
	}

	return checks
}

func (l *Limiter) getOrCreateCounter(key string, now time.Time) *Counter {
	counter, exists := l.counters[key]
	if !exists {
		counter = &Counter{
			HourStart: now,
			DayStart:  now,
		}
		l.counters[key] = counter
	}
	return counter
}

func resetExpiredCounters(counter *Counter, now time.Time) {
	if now.Sub(counter.HourStart) >= time.Hour {
		counter.HourlyCount = 0
		counter.HourStart = now
	}
	if now.Sub(counter.DayStart) >= 24*time.Hour {
		counter.DailyCount = 0
		counter.DayStart = now
	}
}

func (l *Limiter) loadCounters() error {
	return l.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRateLimits)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var counter Counter
			if err := json.Unmarshal(v, &counter); err != nil {
				return nil // Skip invalid entries
			}
			l.counters[string(k)] = &counter
			return nil
		})
	})
}

func (l *Limiter) persistCounters() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRateLimits)
		if bucket == nil {
			return nil
		}

		for key, counter := range l.counters {
			data, err := json.Marshal(counter)
			if err != nil {
				continue
			}
			if err := bucket.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Limiter) persistLoop() {
	defer l.done.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.persistCounters()
		}
	}
}

func makeKey(action Action, level Level, key string) string {
	return string(action) + ":" + string(level) + ":" + key
}
