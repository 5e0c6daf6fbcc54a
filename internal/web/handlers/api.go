package handlers

import (
	"net/http"

	"github.com/foxzi/coldreach/internal/web/campaigns"
	"github.com/foxzi/coldreach/internal/web/middleware"
)

type campaignsResponse struct {
	Campaigns []campaigns.Campaign `json:"campaigns"`
	Summary   campaigns.Summary    `json:"summary"`
}

// APICampaigns returns the filtered campaign read model as JSON.
// GET /api/v1/campaigns?q=&stage=&sort=
func (h *Handlers) APICampaigns(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	cs, err := h.campaigns.List(r.Context(), s)
	if err != nil {
		h.json(w, upstreamStatus(err), map[string]string{"error": err.Error()})
		return
	}
	h.json(w, http.StatusOK, campaignsResponse{
		Campaigns: campaigns.Apply(cs, listOptions(r)),
		Summary:   campaigns.Summarize(cs),
	})
}

// APIGmailStatus returns whether a mail account is linked.
// GET /api/v1/gmail/status
func (h *Handlers) APIGmailStatus(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	h.json(w, http.StatusOK, map[string]bool{"connected": h.gmail.Connected(r.Context(), s)})
}
