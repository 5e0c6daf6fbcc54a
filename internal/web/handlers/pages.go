package handlers

import (
	"net/http"

	"github.com/foxzi/coldreach/internal/web/campaigns"
	"github.com/foxzi/coldreach/internal/web/fixtures"
	"github.com/foxzi/coldreach/internal/web/middleware"
)

const recentCampaigns = 5

type dashboardPage struct {
	Summary        campaigns.Summary
	Recent         []campaigns.Campaign
	Activity       []fixtures.Activity
	GmailConnected bool
	Error          string
}

// Dashboard renders the home screen
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	data := dashboardPage{
		Activity:       fixtures.ActivityLog(),
		GmailConnected: h.gmail.Connected(r.Context(), s),
	}

	cs, err := h.campaigns.List(r.Context(), s)
	if err != nil {
		h.logger.Warn("dashboard campaigns unavailable", "user_id", s.UserID, "error", err)
		data.Error = err.Error()
	}
	data.Summary = campaigns.Summarize(cs)
	data.Recent = campaigns.Sort(cs, campaigns.SortCreated)
	if len(data.Recent) > recentCampaigns {
		data.Recent = data.Recent[:recentCampaigns]
	}

	h.render(w, r, http.StatusOK, "dashboard", Page{Nav: "dashboard", Data: data})
}

type messagesPage struct {
	Messages []fixtures.Message
}

// Inbox renders the demo reply inbox
func (h *Handlers) Inbox(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "inbox", Page{Nav: "inbox", Demo: true, Data: messagesPage{Messages: fixtures.Inbox()}})
}

// Outbox renders the demo outgoing queue
func (h *Handlers) Outbox(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "outbox", Page{Nav: "outbox", Demo: true, Data: messagesPage{Messages: fixtures.Outbox()}})
}
