package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/coldreach/internal/metrics"
	"github.com/foxzi/coldreach/internal/ratelimit"
	"github.com/foxzi/coldreach/internal/web/auth"
	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/campaigns"
	"github.com/foxzi/coldreach/internal/web/config"
	"github.com/foxzi/coldreach/internal/web/contacts"
	"github.com/foxzi/coldreach/internal/web/db"
	"github.com/foxzi/coldreach/internal/web/generate"
	"github.com/foxzi/coldreach/internal/web/gmail"
	"github.com/foxzi/coldreach/internal/web/handlers"
	"github.com/foxzi/coldreach/internal/web/launch"
	"github.com/foxzi/coldreach/internal/web/middleware"
	"github.com/foxzi/coldreach/internal/web/query"
	"github.com/foxzi/coldreach/internal/web/repository"
	"github.com/foxzi/coldreach/internal/web/seal"
	"github.com/foxzi/coldreach/internal/web/static"
	"github.com/foxzi/coldreach/internal/web/views"
	"github.com/foxzi/coldreach/internal/web/worker"
	"github.com/foxzi/coldreach/internal/web/workspace"
)

const cacheSweepInterval = time.Minute

type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *db.DB
	cache     *query.Client
	workspace *workspace.Store
	launches  *launch.Registry
	auth      *auth.Provider
	metrics   *metrics.Metrics
	handler   http.Handler
	http      *http.Server
	worker    *worker.Worker
	limitDB   *bolt.DB
	limiter   *ratelimit.Limiter

	trustedProxies []*net.IPNet

	unsubscribe func()
	closeOnce   sync.Once
}

// New wires every component from cfg. The returned server owns the
// database, cache and workspace and releases them in Run or Close.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}
	if err := s.init(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) init(ctx context.Context) error {
	cfg := s.cfg

	s.metrics = metrics.New()
	metrics.SetGlobal(s.metrics)

	// Initialize database
	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	s.db = database
	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	box, err := seal.New(cfg.Auth.SessionSecret)
	if err != nil {
		return fmt.Errorf("failed to derive session key: %w", err)
	}
	sessionRepo := repository.NewSessionRepository(database.DB, box)
	auditRepo := repository.NewAuditRepository(database.DB)

	if n, err := sessionRepo.CountActive(time.Now()); err == nil {
		metrics.AddSessions(float64(n))
	}

	// Query cache
	var store query.Store
	switch cfg.Cache.Backend {
	case "redis":
		rs, err := query.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		store = rs
		s.logger.Info("query cache using redis", "addr", cfg.Cache.RedisAddr)
	default:
		store = query.NewMemoryStore(cacheSweepInterval)
	}
	s.cache = query.New(store, s.logger)

	ws, err := workspace.Open(cfg.Workspace.Path)
	if err != nil {
		return err
	}
	s.workspace = ws

	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.AnonKey)

	// Initialize OIDC provider if enabled
	var oidcProvider *auth.OIDCProvider
	if cfg.Auth.OIDC.Enabled {
		oidcProvider, err = auth.NewOIDCProvider(ctx, &cfg.Auth.OIDC)
		if err != nil {
			return fmt.Errorf("failed to initialize OIDC provider: %w", err)
		}
		s.logger.Info("OIDC provider initialized", "issuer", cfg.Auth.OIDC.IssuerURL)
	}
	s.auth = auth.NewProvider(client, sessionRepo, oidcProvider, cfg.Auth.SessionTTL, s.logger)

	drafts, err := generate.NewDraftGenerator(ctx, cfg.Generate, client)
	if err != nil {
		return fmt.Errorf("failed to initialize draft generator: %w", err)
	}

	s.launches = launch.NewRegistry(launch.RealScheduler, launch.Delays{
		Step:   cfg.Launch.StepDelay,
		Finish: cfg.Launch.FinishDelay,
		Toggle: cfg.Launch.ToggleDelay,
	})

	var limiter handlers.Limiter
	if cfg.RateLimit.Enabled {
		s.limitDB, err = bolt.Open(cfg.RateLimit.Path, 0600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return fmt.Errorf("failed to open rate limit store: %w", err)
		}
		s.limiter, err = ratelimit.NewLimiter(s.limitDB, &cfg.RateLimit.Config)
		if err != nil {
			return fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
		limiter = s.limiter
		s.logger.Info("rate limiting enabled", "path", cfg.RateLimit.Path)
	}

	viewEngine, err := views.New()
	if err != nil {
		return fmt.Errorf("failed to initialize views: %w", err)
	}

	h := handlers.New(handlers.Deps{
		Config:    cfg,
		Logger:    s.logger,
		Views:     viewEngine,
		Auth:      s.auth,
		Campaigns: campaigns.NewService(client, s.cache, cfg.Cache.CampaignsStaleTime, s.logger),
		Gmail:     gmail.NewService(client, s.cache, cfg.Cache.GmailStaleTime, s.logger),
		Contacts:  contacts.NewService(ws),
		Workspace: ws,
		Launches:  s.launches,
		Drafts:    drafts,
		Leads:     generate.MockLeads{Delay: cfg.Generate.LeadDelay},
		Mailer:    client,
		Audit:     auditRepo,
		Limiter:   limiter,
	})

	// Session-local state goes with the session
	s.unsubscribe = s.auth.Subscribe(func(ev auth.Event) {
		switch ev.Type {
		case auth.EventSignedOut:
			s.launches.StopSession(ev.SessionID)
			if err := s.workspace.DropSession(ev.SessionID); err != nil {
				s.logger.Warn("failed to drop workspace", "session_id", ev.SessionID, "error", err)
			}
		case auth.EventUserUpdated:
			s.logger.Debug("profile refreshed", "session_id", ev.SessionID, "user_id", ev.UserID)
		}
	})

	trustedProxies, err := cfg.Server.TrustedProxyNets()
	if err != nil {
		return err
	}
	s.trustedProxies = trustedProxies

	guard := middleware.NewGuard(s.auth, cfg.Auth.GuardTimeout, http.HandlerFunc(h.Loading), s.logger)
	s.handler = s.setupRoutes(h, guard)

	s.http = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Initialize worker
	s.worker = worker.New(s.auth, auditRepo, s.logger, worker.Config{
		Interval:       cfg.Database.CleanupInterval,
		AuditRetention: cfg.Database.AuditRetention,
	})

	return nil
}

func (s *Server) setupRoutes(h *handlers.Handlers, guard *middleware.Guard) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP(s.trustedProxies))
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.Logger(s.logger))
	r.Use(metrics.HTTPMiddleware)

	// Public
	r.Get("/health", h.Health)
	r.Handle("/static/*", http.StripPrefix("/static/", static.Handler()))
	r.Post("/auth/signin", h.SignIn)
	r.Post("/auth/signup", h.SignUp)
	r.Get("/auth/federated/{provider}", h.FederatedSignIn)
	r.Get("/auth/callback", h.FederatedCallback)

	if s.cfg.Metrics.Enabled {
		r.With(middleware.IPFilter(s.cfg.Metrics.AllowedIPs, s.logger)).
			Handle(s.cfg.Metrics.Path, metrics.Handler(s.metrics))
	}

	// JSON read models
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Server.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(guard.API)
		r.Get("/campaigns", h.APICampaigns)
		r.Get("/gmail/status", h.APIGmailStatus)
	})

	// Pages
	r.Group(func(r chi.Router) {
		r.Use(guard.Pages)

		r.Get("/", h.Landing)
		r.Get("/auth", h.AuthPage)
		r.Post("/auth/signout", h.SignOut)

		r.Get("/dashboard", h.Dashboard)
		r.Get("/inbox", h.Inbox)
		r.Get("/outbox", h.Outbox)

		r.Get("/campaigns", h.CampaignList)
		r.Post("/campaigns", h.CampaignCreate)

		r.Route("/campaign/{id}", func(r chi.Router) {
			r.Get("/", h.CampaignView)

			r.Post("/leads/generate", h.LeadsGenerate)
			r.Post("/leads/add", h.LeadAdd)
			r.Post("/leads/upload", h.LeadsUpload)
			r.Post("/leads/{leadId}", h.LeadUpdate)
			r.Post("/leads/{leadId}/delete", h.LeadDelete)

			r.Get("/launch", h.LaunchState)
			r.Post("/launch", h.Launch)
			r.Post("/launch/tasks", h.LaunchTask)
			r.Post("/pause", h.TogglePause)

			r.Post("/draft", h.Draft)
			r.Post("/send", h.Send)
		})

		r.Get("/analytics", h.Analytics)

		r.Get("/contacts", h.ContactList)
		r.Post("/contacts", h.ContactCreate)
		r.Post("/contacts/{id}/delete", h.ContactDelete)

		r.Get("/settings", h.Settings)
		r.Post("/settings/gmail/connect", h.GmailConnect)
	})

	r.NotFound(guard.Pages(http.HandlerFunc(h.NotFound)).ServeHTTP)

	return r
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Run(ctx context.Context) error {
	// Start background worker
	s.worker.Start()

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting web server", "addr", s.cfg.Server.ListenAddr)
		if s.cfg.Server.TLS.Enabled {
			errCh <- s.http.ListenAndServeTLS(s.cfg.Server.TLS.CertFile, s.cfg.Server.TLS.KeyFile)
		} else {
			errCh <- s.http.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", "error", err)
		}
		s.Close()
		return nil
	}
}

// Close stops background work and releases storage. It is safe to call
// on a partially initialized server.
func (s *Server) Close() {
	s.closeOnce.Do(s.close)
}

func (s *Server) close() {
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.launches != nil {
		s.launches.Close()
	}
	if s.auth != nil {
		s.auth.Close()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn("failed to close cache", "error", err)
		}
	}
	if s.limiter != nil {
		if err := s.limiter.Stop(); err != nil {
			s.logger.Warn("failed to persist rate limits", "error", err)
		}
	}
	if s.limitDB != nil {
		s.limitDB.Close()
	}
	if s.workspace != nil {
		if err := s.workspace.Close(); err != nil {
			s.logger.Warn("failed to close workspace", "error", err)
		}
	}
	if s.db != nil {
		s.db.Close()
	}
}
