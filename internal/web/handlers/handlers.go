package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/foxzi/coldreach/internal/ratelimit"
	"github.com/foxzi/coldreach/internal/web/auth"
	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/campaigns"
	"github.com/foxzi/coldreach/internal/web/config"
	"github.com/foxzi/coldreach/internal/web/contacts"
	"github.com/foxzi/coldreach/internal/web/fixtures"
	"github.com/foxzi/coldreach/internal/web/generate"
	"github.com/foxzi/coldreach/internal/web/gmail"
	"github.com/foxzi/coldreach/internal/web/launch"
	"github.com/foxzi/coldreach/internal/web/middleware"
	"github.com/foxzi/coldreach/internal/web/models"
	"github.com/foxzi/coldreach/internal/web/views"
	"github.com/foxzi/coldreach/internal/web/workspace"
)

// Mailer is the part of the remote-access layer that moves mail and leads
type Mailer interface {
	UploadLeads(ctx context.Context, token, campaignID, filename string, file io.Reader) (*backend.UploadLeadsResponse, error)
	SendEmail(ctx context.Context, token string, req *backend.SendEmailRequest) (*backend.SendEmailResponse, error)
}

// AuditLog records user actions
type AuditLog interface {
	Add(entry *models.AuditLogEntry) error
	List(filter models.AuditLogFilter) ([]models.AuditLogEntry, int, error)
}

// Limiter counts throttled actions
type Limiter interface {
	Allow(ctx context.Context, req *ratelimit.Request) (*ratelimit.Result, error)
}

// Deps are the collaborators of the page handlers
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Views     *views.Engine
	Auth      *auth.Provider
	Campaigns *campaigns.Service
	Gmail     *gmail.Service
	Contacts  *contacts.Service
	Workspace *workspace.Store
	Launches  *launch.Registry
	Drafts    generate.DraftGenerator
	Leads     generate.LeadGenerator
	Mailer    Mailer
	Audit     AuditLog
	Limiter   Limiter // optional
}

type Handlers struct {
	cfg       *config.Config
	logger    *slog.Logger
	views     *views.Engine
	auth      *auth.Provider
	campaigns *campaigns.Service
	gmail     *gmail.Service
	contacts  *contacts.Service
	workspace *workspace.Store
	launches  *launch.Registry
	drafts    generate.DraftGenerator
	leadGen   generate.LeadGenerator
	mailer    Mailer
	auditLog  AuditLog
	limiter   Limiter
}

func New(d Deps) *Handlers {
	return &Handlers{
		cfg:       d.Config,
		logger:    d.Logger.With("component", "handlers"),
		views:     d.Views,
		auth:      d.Auth,
		campaigns: d.Campaigns,
		gmail:     d.Gmail,
		contacts:  d.Contacts,
		workspace: d.Workspace,
		launches:  d.Launches,
		drafts:    d.Drafts,
		leadGen:   d.Leads,
		mailer:    d.Mailer,
		auditLog:  d.Audit,
		limiter:   d.Limiter,
	}
}

// Page is the data every layout page receives
type Page struct {
	Nav       string
	Session   *models.Session
	Flash     *Flash
	Demo      bool
	DemoLabel string
	Data      any
}

// Health check
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// render writes a page with the session and pending flash filled in
func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, name string, p Page) {
	p.Session = middleware.Session(r.Context())
	if p.Flash == nil {
		p.Flash = popFlash(w, r)
	}
	p.DemoLabel = fixtures.Label

	var buf bytes.Buffer
	if err := h.views.Render(&buf, name, p); err != nil {
		h.logger.Error("failed to render page", "page", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Helper for JSON responses
func (h *Handlers) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// Helper for errors
func (h *Handlers) error(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.logger.Error("request error", "status", status, "message", message, "path", r.URL.Path)
	h.render(w, r, status, "error", Page{Data: map[string]string{"Message": message}})
}

// upstreamStatus maps a remote-call failure to the status we answer with
func upstreamStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

// errorStatus is upstreamStatus with missing campaigns answered as 404
func errorStatus(err error) int {
	if errors.Is(err, campaigns.ErrNotFound) {
		return http.StatusNotFound
	}
	return upstreamStatus(err)
}

// NotFound renders the catch-all page
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "notfound", Page{Data: map[string]string{"Path": r.URL.Path}})
}

// Loading is the placeholder the guard shows while a session resolves
func (h *Handlers) Loading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.views.Render(w, "loading", nil); err != nil {
		h.logger.Error("failed to render page", "page", "loading", "error", err)
	}
}

// allow reports whether the action is within its limits. Limiter
// failures are logged and let the action through.
func (h *Handlers) allow(r *http.Request, req *ratelimit.Request) (time.Duration, bool) {
	if h.limiter == nil {
		return 0, true
	}
	res, err := h.limiter.Allow(r.Context(), req)
	if err != nil {
		h.logger.Warn("rate limit check failed", "action", req.Action, "error", err)
		return 0, true
	}
	if !res.Allowed {
		h.logger.Info("rate limited", "action", req.Action, "level", res.DeniedBy, "retry_after", res.RetryAfter)
		return res.RetryAfter, false
	}
	return 0, true
}

func retryMessage(what string, d time.Duration) string {
	d = max(d.Round(time.Minute), time.Minute)
	return fmt.Sprintf("Too many %s. Try again in %s.", what, d)
}

func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (h *Handlers) audit(r *http.Request, s *models.Session, action, entityType, entityID string, details map[string]any) {
	if h.auditLog == nil || s == nil {
		return
	}
	entry := &models.AuditLogEntry{
		UserID:     s.UserID,
		UserEmail:  s.Email,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		IPAddress:  middleware.ClientIP(r),
	}
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err == nil {
			entry.Details = string(data)
		}
	}
	if err := h.auditLog.Add(entry); err != nil {
		h.logger.Warn("failed to write audit entry", "action", action, "error", err)
	}
}
