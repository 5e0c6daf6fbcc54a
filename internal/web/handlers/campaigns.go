package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/campaigns"
	"github.com/foxzi/coldreach/internal/web/fixtures"
	"github.com/foxzi/coldreach/internal/web/launch"
	"github.com/foxzi/coldreach/internal/web/middleware"
	"github.com/foxzi/coldreach/internal/web/models"
)

type campaignsPage struct {
	Campaigns []campaigns.Campaign
	Query     string
	Stage     string
	Sort      string
	ShowForm  bool
	Form      campaigns.CreateInput
	Errors    map[string]string
	Error     string
}

func listOptions(r *http.Request) campaigns.ListOptions {
	q := r.URL.Query()
	opts := campaigns.ListOptions{
		Search: q.Get("q"),
		Sort:   campaigns.ParseSortKey(q.Get("sort")),
	}
	switch stage := campaigns.Stage(q.Get("stage")); stage {
	case campaigns.StageDraft, campaigns.StageActive:
		opts.Stage = stage
	}
	return opts
}

func (h *Handlers) campaignsPage(ctx context.Context, r *http.Request, s *models.Session) campaignsPage {
	opts := listOptions(r)
	data := campaignsPage{
		Query:    opts.Search,
		Stage:    string(opts.Stage),
		Sort:     string(opts.Sort),
		ShowForm: r.URL.Query().Get("new") != "",
	}

	cs, err := h.campaigns.List(ctx, s)
	if err != nil {
		h.logger.Warn("campaign list unavailable", "user_id", s.UserID, "error", err)
		data.Error = err.Error()
	}
	data.Campaigns = campaigns.Apply(cs, opts)
	return data
}

// CampaignList renders the filtered campaign table
func (h *Handlers) CampaignList(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	h.render(w, r, http.StatusOK, "campaigns", Page{Nav: "campaigns", Data: h.campaignsPage(r.Context(), r, s)})
}

// CampaignCreate handles the new campaign form
func (h *Handlers) CampaignCreate(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	if err := r.ParseForm(); err != nil {
		h.error(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}

	in := campaigns.CreateInput{
		Name:                r.FormValue("name"),
		Goal:                r.FormValue("goal"),
		AudienceDescription: r.FormValue("audience_description"),
	}

	c, err := h.campaigns.Create(r.Context(), s, in)
	if err != nil {
		data := h.campaignsPage(r.Context(), r, s)
		data.ShowForm = true
		data.Form = in

		var verr *campaigns.ValidationError
		if errors.As(err, &verr) {
			data.Errors = verr.Fields
			h.render(w, r, http.StatusUnprocessableEntity, "campaigns", Page{Nav: "campaigns", Data: data})
			return
		}
		h.render(w, r, upstreamStatus(err), "campaigns", Page{
			Nav:   "campaigns",
			Flash: &Flash{Kind: FlashError, Message: err.Error()},
			Data:  data,
		})
		return
	}

	h.audit(r, s, models.AuditCreateCampaign, "campaign", c.ID, map[string]any{"name": c.Name})
	setFlash(w, FlashSuccess, "Campaign created")
	h.redirect(w, r, "/campaign/"+c.ID)
}

type sendForm struct {
	To      string
	Subject string
	Body    string
}

type campaignPage struct {
	Campaign       *campaigns.Campaign
	Leads          []models.Lead
	Launch         launch.State
	Polling        bool
	Analytics      *backend.Analytics
	GmailConnected bool
	Instructions   string
	Send           sendForm
	Error          string
}

// loadCampaign resolves the {id} route parameter, answering the request
// itself when the campaign cannot be shown.
func (h *Handlers) loadCampaign(w http.ResponseWriter, r *http.Request) (*models.Session, *campaigns.Campaign, bool) {
	s := middleware.Session(r.Context())
	c, err := h.campaigns.Get(r.Context(), s, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, campaigns.ErrNotFound):
		h.NotFound(w, r)
		return nil, nil, false
	case err != nil:
		h.error(w, r, upstreamStatus(err), err.Error())
		return nil, nil, false
	}
	return s, c, true
}

func (h *Handlers) launchState(s *models.Session, campaignID string) launch.State {
	if seq := h.launches.Peek(s.ID, campaignID); seq != nil {
		return seq.State()
	}
	return launch.NewSequence(launch.RealScheduler, launch.DefaultDelays).State()
}

func (h *Handlers) campaignPage(ctx context.Context, s *models.Session, c *campaigns.Campaign) campaignPage {
	data := campaignPage{
		Campaign:       c,
		Launch:         h.launchState(s, c.ID),
		GmailConnected: h.gmail.Connected(ctx, s),
	}
	data.Polling = data.Launch.Phase == launch.PhaseLaunching || data.Launch.Processing

	ls, err := h.workspace.Leads(s.ID, c.ID)
	if err != nil {
		h.logger.Error("failed to read leads", "campaign_id", c.ID, "error", err)
	}
	data.Leads = ls

	a, err := h.campaigns.Analytics(ctx, s, c.ID)
	if err != nil {
		h.logger.Warn("campaign analytics unavailable", "campaign_id", c.ID, "error", err)
	}
	data.Analytics = a
	return data
}

// CampaignView renders one campaign with its leads, launch and drafts
func (h *Handlers) CampaignView(w http.ResponseWriter, r *http.Request) {
	s, c, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "campaign", Page{Nav: "campaigns", Data: h.campaignPage(r.Context(), s, c)})
}

type analyticsPage struct {
	Campaigns  []campaigns.Campaign
	Summary    campaigns.Summary
	SelectedID string
	Analytics  *backend.Analytics
	Daily      []backend.AnalyticsPoint
	DemoDaily  bool
	Error      string
}

// Analytics renders totals across campaigns, or one campaign's payload
func (h *Handlers) Analytics(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	data := analyticsPage{SelectedID: r.URL.Query().Get("campaign")}

	cs, err := h.campaigns.List(r.Context(), s)
	if err != nil {
		h.logger.Warn("analytics campaigns unavailable", "user_id", s.UserID, "error", err)
		data.Error = err.Error()
	}
	data.Campaigns = campaigns.Sort(cs, campaigns.SortName)
	data.Summary = campaigns.Summarize(cs)

	if data.SelectedID != "" {
		a, err := h.campaigns.Analytics(r.Context(), s, data.SelectedID)
		if err != nil {
			data.Error = err.Error()
		} else {
			data.Analytics = a
			data.Daily = a.Daily
		}
	}
	if len(data.Daily) == 0 {
		data.Daily = fixtures.Daily()
		data.DemoDaily = true
	}

	h.render(w, r, http.StatusOK, "analytics", Page{Nav: "analytics", Data: data})
}
