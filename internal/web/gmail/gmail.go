// Package gmail reports whether the signed-in user has linked a mail
// account and starts the linking flow.
package gmail

import (
	"context"
	"log/slog"
	"time"

	"github.com/foxzi/coldreach/internal/web/auth"
	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/models"
	"github.com/foxzi/coldreach/internal/web/query"
)

const (
	table            = "gmail_accounts"
	resourceStatus   = "gmail_connection"
	DefaultStaleTime = 5 * time.Minute
)

// Backend is the part of the remote-access layer this package needs
type Backend interface {
	CountRows(ctx context.Context, token, table string, eq map[string]string) (int, error)
	StartGmailAuth(ctx context.Context, token string) (*backend.GmailAuthResponse, error)
}

type Service struct {
	backend   Backend
	cache     *query.Client
	staleTime time.Duration
	logger    *slog.Logger
}

func NewService(b Backend, cache *query.Client, staleTime time.Duration, logger *slog.Logger) *Service {
	if staleTime <= 0 {
		staleTime = DefaultStaleTime
	}
	return &Service{
		backend:   b,
		cache:     cache,
		staleTime: staleTime,
		logger:    logger.With("component", "gmail"),
	}
}

func statusKey(s *models.Session) query.Key {
	return query.Key{Scope: s.UserID, Resource: resourceStatus}
}

// Connected reports whether the user has a linked account. It never fails:
// lookup errors are logged and read as not connected.
func (svc *Service) Connected(ctx context.Context, s *models.Session) bool {
	if s == nil {
		return false
	}

	connected, err := query.Fetch(ctx, svc.cache, statusKey(s), svc.staleTime, func(ctx context.Context) (bool, error) {
		n, err := svc.backend.CountRows(ctx, s.AccessToken, table, map[string]string{"user_id": s.UserID})
		if backend.IsNoRows(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return n > 0, nil
	})
	if err != nil {
		svc.logger.Warn("gmail connection check failed", "user_id", s.UserID, "error", err)
		return false
	}
	return connected
}

// StartLinking returns the URL that begins mail-account linking. The
// cached status is dropped so the return trip reads it fresh.
func (svc *Service) StartLinking(ctx context.Context, s *models.Session) (string, error) {
	if s == nil {
		return "", auth.ErrNoSession
	}

	resp, err := svc.backend.StartGmailAuth(ctx, s.AccessToken)
	if err != nil {
		svc.logger.Warn("gmail linking failed", "user_id", s.UserID, "error", err)
		return "", err
	}

	svc.cache.Invalidate(ctx, statusKey(s))
	return resp.URL, nil
}
