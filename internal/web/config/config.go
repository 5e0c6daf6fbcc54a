package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/foxzi/coldreach/internal/ratelimit"
)

// Environment variables that override the file. The backend values are
// usually injected by the deployment rather than written to disk.
const (
	EnvBackendURL     = "COLDREACH_BACKEND_URL"
	EnvBackendAnonKey = "COLDREACH_BACKEND_ANON_KEY"
	EnvSessionSecret  = "COLDREACH_SESSION_SECRET"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Database  DatabaseConfig  `yaml:"database"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	Generate  GenerateConfig  `yaml:"generate"`
	Launch    LaunchConfig    `yaml:"launch"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	ListenAddr     string    `yaml:"listen_addr"`
	TLS            TLSConfig `yaml:"tls"`
	AllowedOrigins []string  `yaml:"allowed_origins"`
	TrustedProxies []string  `yaml:"trusted_proxies"` // IPs or CIDRs allowed to set X-Forwarded-For
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// BackendConfig points at the backend-as-a-service project.
type BackendConfig struct {
	URL     string `yaml:"url"`
	AnonKey string `yaml:"anon_key"`
}

type DatabaseConfig struct {
	Path            string        `yaml:"path"`
	AuditRetention  time.Duration `yaml:"audit_retention"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

type AuthConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	GuardTimeout  time.Duration `yaml:"guard_timeout"`
	OIDC          OIDCConfig    `yaml:"oidc"`
}

type OIDCConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Provider     string   `yaml:"provider"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	IssuerURL    string   `yaml:"issuer_url"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

type CacheConfig struct {
	Backend            string        `yaml:"backend"` // memory, redis
	RedisAddr          string        `yaml:"redis_addr"`
	RedisPassword      string        `yaml:"redis_password"`
	RedisDB            int           `yaml:"redis_db"`
	CampaignsStaleTime time.Duration `yaml:"campaigns_stale_time"`
	GmailStaleTime     time.Duration `yaml:"gmail_stale_time"`
}

type GenerateConfig struct {
	Drafts       string        `yaml:"drafts"` // mock, bedrock, backend
	DraftDelay   time.Duration `yaml:"draft_delay"`
	LeadDelay    time.Duration `yaml:"lead_delay"`
	BedrockModel string        `yaml:"bedrock_model"`
	AWSRegion    string        `yaml:"aws_region"`
}

type LaunchConfig struct {
	StepDelay   time.Duration `yaml:"step_delay"`
	FinishDelay time.Duration `yaml:"finish_delay"`
	ToggleDelay time.Duration `yaml:"toggle_delay"`
}

// RateLimitConfig throttles sign-in attempts and caps outgoing email.
// Counters persist in their own bolt file.
type RateLimitConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Path             string `yaml:"path"`
	ratelimit.Config `yaml:",inline"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Path       string   `yaml:"path"`
	AllowedIPs []string `yaml:"allowed_ips"`
}

// TrustedProxyNets parses TrustedProxies. A bare address is a single host.
func (c ServerConfig) TrustedProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, p := range c.TrustedProxies {
		if strings.Contains(p, "/") {
			_, n, err := net.ParseCIDR(p)
			if err != nil {
				return nil, fmt.Errorf("invalid CIDR %q in server.trusted_proxies", p)
			}
			nets = append(nets, n)
			continue
		}
		ip := net.ParseIP(p)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP %q in server.trusted_proxies", p)
		}
		bits := 8 * net.IPv6len
		if v4 := ip.To4(); v4 != nil {
			ip, bits = v4, 8*net.IPv4len
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applying environment
// overrides and defaults before validation.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg)
	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv(EnvBackendAnonKey); v != "" {
		cfg.Backend.AnonKey = v
	}
	if v := os.Getenv(EnvSessionSecret); v != "" {
		cfg.Auth.SessionSecret = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8090"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/coldreach-web/app.db"
	}
	if cfg.Database.AuditRetention == 0 {
		cfg.Database.AuditRetention = 180 * 24 * time.Hour
	}
	if cfg.Database.CleanupInterval == 0 {
		cfg.Database.CleanupInterval = time.Hour
	}
	if cfg.Workspace.Path == "" {
		cfg.Workspace.Path = "/var/lib/coldreach-web/workspace.db"
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.Auth.GuardTimeout == 0 {
		cfg.Auth.GuardTimeout = 3 * time.Second
	}
	if len(cfg.Auth.OIDC.Scopes) == 0 {
		cfg.Auth.OIDC.Scopes = []string{"openid", "profile", "email"}
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.GmailStaleTime == 0 {
		cfg.Cache.GmailStaleTime = 5 * time.Minute
	}
	if cfg.Generate.Drafts == "" {
		cfg.Generate.Drafts = "mock"
	}
	if cfg.Generate.DraftDelay == 0 {
		cfg.Generate.DraftDelay = 2 * time.Second
	}
	if cfg.Generate.LeadDelay == 0 {
		cfg.Generate.LeadDelay = 1500 * time.Millisecond
	}
	if cfg.Generate.BedrockModel == "" {
		cfg.Generate.BedrockModel = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Generate.AWSRegion == "" {
		cfg.Generate.AWSRegion = "us-east-1"
	}
	if cfg.Launch.StepDelay == 0 {
		cfg.Launch.StepDelay = 1500 * time.Millisecond
	}
	if cfg.Launch.FinishDelay == 0 {
		cfg.Launch.FinishDelay = 2 * time.Second
	}
	if cfg.Launch.ToggleDelay == 0 {
		cfg.Launch.ToggleDelay = time.Second
	}
	if cfg.RateLimit.Path == "" {
		cfg.RateLimit.Path = "/var/lib/coldreach-web/ratelimit.db"
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.SignInPerIP == nil {
			cfg.RateLimit.SignInPerIP = &ratelimit.LimitConfig{PerHour: 20}
		}
		if cfg.RateLimit.SendPerUser == nil {
			cfg.RateLimit.SendPerUser = &ratelimit.LimitConfig{PerHour: 50, PerDay: 200}
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Backend.URL == "" {
		return fmt.Errorf("backend.url is required (or set %s)", EnvBackendURL)
	}
	u, err := url.Parse(cfg.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.url must be an absolute URL")
	}
	if cfg.Backend.AnonKey == "" {
		return fmt.Errorf("backend.anon_key is required (or set %s)", EnvBackendAnonKey)
	}
	if _, err := cfg.Server.TrustedProxyNets(); err != nil {
		return err
	}
	if cfg.Auth.SessionSecret == "" {
		return fmt.Errorf("auth.session_secret is required")
	}
	if len(cfg.Auth.SessionSecret) < 32 {
		return fmt.Errorf("auth.session_secret must be at least 32 characters")
	}
	if cfg.Auth.OIDC.Enabled {
		if cfg.Auth.OIDC.Provider == "" {
			return fmt.Errorf("auth.oidc.provider is required when OIDC is enabled")
		}
		if cfg.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("auth.oidc.client_id is required when OIDC is enabled")
		}
		if cfg.Auth.OIDC.ClientSecret == "" {
			return fmt.Errorf("auth.oidc.client_secret is required when OIDC is enabled")
		}
		if cfg.Auth.OIDC.IssuerURL == "" {
			return fmt.Errorf("auth.oidc.issuer_url is required when OIDC is enabled")
		}
	}
	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", cfg.Cache.Backend)
	}
	switch cfg.Generate.Drafts {
	case "mock", "bedrock", "backend":
	default:
		return fmt.Errorf("generate.drafts must be mock, bedrock or backend, got %q", cfg.Generate.Drafts)
	}
	return nil
}
