// Package campaigns is the campaign read model: cached listing, creation
// with validation, and the pure transforms that turn raw records into
// display shapes.
package campaigns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/foxzi/coldreach/internal/web/auth"
	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/models"
	"github.com/foxzi/coldreach/internal/web/query"
)

const (
	resourceCampaigns = "campaigns"
	resourceAnalytics = "analytics:"
)

// Minimum field lengths, in characters after trimming
const (
	MinNameLength     = 3
	MinGoalLength     = 5
	MinAudienceLength = 10
)

var ErrNotFound = errors.New("campaign not found")

// Backend is the part of the remote-access layer campaigns need
type Backend interface {
	ListCampaigns(ctx context.Context, token string) (*backend.CampaignsResponse, error)
	CreateCampaign(ctx context.Context, token string, req *backend.CreateCampaignRequest) (*backend.RawCampaign, error)
	GetAnalytics(ctx context.Context, token, campaignID string) (*backend.Analytics, error)
}

// CreateInput is the new-campaign form
type CreateInput struct {
	Name                string
	Goal                string
	AudienceDescription string
}

// ValidationError maps form fields to their messages
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

// Validate trims the input in place and checks minimum lengths
func (in *CreateInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Goal = strings.TrimSpace(in.Goal)
	in.AudienceDescription = strings.TrimSpace(in.AudienceDescription)

	fields := map[string]string{}
	if utf8.RuneCountInString(in.Name) < MinNameLength {
		fields["name"] = fmt.Sprintf("Campaign name must be at least %d characters", MinNameLength)
	}
	if utf8.RuneCountInString(in.Goal) < MinGoalLength {
		fields["goal"] = fmt.Sprintf("Campaign goal must be at least %d characters", MinGoalLength)
	}
	if utf8.RuneCountInString(in.AudienceDescription) < MinAudienceLength {
		fields["audience_description"] = fmt.Sprintf("Audience description must be at least %d characters", MinAudienceLength)
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

type Service struct {
	backend   Backend
	cache     *query.Client
	staleTime time.Duration
	logger    *slog.Logger
}

// NewService creates the campaign read model. staleTime 0 refetches on
// every read.
func NewService(b Backend, cache *query.Client, staleTime time.Duration, logger *slog.Logger) *Service {
	return &Service{
		backend:   b,
		cache:     cache,
		staleTime: staleTime,
		logger:    logger.With("component", "campaigns"),
	}
}

func listKey(s *models.Session) query.Key {
	return query.Key{Scope: s.UserID, Resource: resourceCampaigns}
}

// List returns the user's campaigns as view models
func (svc *Service) List(ctx context.Context, s *models.Session) ([]Campaign, error) {
	if s == nil {
		return nil, auth.ErrNoSession
	}

	raw, err := query.Fetch(ctx, svc.cache, listKey(s), svc.staleTime, func(ctx context.Context) ([]backend.RawCampaign, error) {
		resp, err := svc.backend.ListCampaigns(ctx, s.AccessToken)
		if err != nil {
			return nil, err
		}
		return resp.Campaigns, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch campaigns: %w", err)
	}
	return TransformAll(raw), nil
}

// Get returns one campaign of the user
func (svc *Service) Get(ctx context.Context, s *models.Session, id string) (*Campaign, error) {
	cs, err := svc.List(ctx, s)
	if err != nil {
		return nil, err
	}
	for i := range cs {
		if cs[i].ID == id {
			return &cs[i], nil
		}
	}
	return nil, ErrNotFound
}

// Create validates and submits a new campaign. On success the cached list
// is dropped so the next List sees it.
func (svc *Service) Create(ctx context.Context, s *models.Session, in CreateInput) (*Campaign, error) {
	if s == nil {
		return nil, auth.ErrNoSession
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	created, err := svc.backend.CreateCampaign(ctx, s.AccessToken, &backend.CreateCampaignRequest{
		Name:                in.Name,
		Goal:                in.Goal,
		AudienceDescription: in.AudienceDescription,
	})
	if err != nil {
		svc.logger.Warn("create campaign failed", "user_id", s.UserID, "error", err)
		return nil, err
	}

	svc.cache.Invalidate(ctx, listKey(s))
	svc.logger.Info("campaign created", "user_id", s.UserID, "campaign_id", created.ID)

	c := Transform(*created)
	return &c, nil
}

// Analytics returns the analytics payload of one campaign
func (svc *Service) Analytics(ctx context.Context, s *models.Session, campaignID string) (*backend.Analytics, error) {
	if s == nil {
		return nil, auth.ErrNoSession
	}

	key := query.Key{Scope: s.UserID, Resource: resourceAnalytics + campaignID}
	a, err := query.Fetch(ctx, svc.cache, key, svc.staleTime, func(ctx context.Context) (*backend.Analytics, error) {
		return svc.backend.GetAnalytics(ctx, s.AccessToken, campaignID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch analytics: %w", err)
	}
	return a, nil
}

// Refresh drops the cached list, used after a send changes email counts
func (svc *Service) Refresh(ctx context.Context, s *models.Session) {
	svc.cache.Invalidate(ctx, listKey(s))
}
