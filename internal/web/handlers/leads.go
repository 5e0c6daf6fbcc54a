package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/coldreach/internal/web/generate"
	"github.com/foxzi/coldreach/internal/web/leads"
	"github.com/foxzi/coldreach/internal/web/models"
)

const (
	defaultLeadCount = 10
	maxUploadSize    = 10 << 20
)

// leadManager loads the campaign's leads under the workspace lock. The
// caller must call unlock once done with the manager.
func (h *Handlers) leadManager(s *models.Session, campaignID string) (m *leads.Manager, unlock func(), err error) {
	unlock = h.workspace.LockLeads(s.ID, campaignID)
	current, err := h.workspace.Leads(s.ID, campaignID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return leads.NewManager(current, h.leadGen, func(ls []models.Lead) error {
		return h.workspace.SaveLeads(s.ID, campaignID, ls)
	}), unlock, nil
}

func campaignURL(id string) string {
	return "/campaign/" + id
}

func leadFromForm(r *http.Request) models.Lead {
	return models.Lead{
		Name:    r.FormValue("name"),
		Email:   r.FormValue("email"),
		Company: r.FormValue("company"),
		Title:   r.FormValue("title"),
	}
}

// LeadsGenerate appends generated leads for the campaign audience
func (h *Handlers) LeadsGenerate(w http.ResponseWriter, r *http.Request) {
	s, c, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}

	n := defaultLeadCount
	if v := r.FormValue("count"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > generate.MaxGeneratedLeads {
			setFlash(w, FlashError, fmt.Sprintf("Lead count must be between 1 and %d", generate.MaxGeneratedLeads))
			h.redirect(w, r, campaignURL(c.ID))
			return
		}
		n = parsed
	}

	m, unlock, err := h.leadManager(s, c.ID)
	if err != nil {
		h.error(w, r, http.StatusInternalServerError, "Failed to load leads")
		return
	}
	defer unlock()
	added, err := m.Generate(r.Context(), c.AudienceDescription, n)
	if err != nil {
		h.logger.Warn("lead generation failed", "campaign_id", c.ID, "error", err)
		setFlash(w, FlashError, err.Error())
	} else {
		setFlash(w, FlashSuccess, fmt.Sprintf("Generated %d leads", len(added)))
	}
	h.redirect(w, r, campaignURL(c.ID))
}

// LeadAdd appends one lead typed by the user
func (h *Handlers) LeadAdd(w http.ResponseWriter, r *http.Request) {
	s, c, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}

	m, unlock, err := h.leadManager(s, c.ID)
	if err != nil {
		h.error(w, r, http.StatusInternalServerError, "Failed to load leads")
		return
	}
	defer unlock()
	if _, err := m.Add(leadFromForm(r)); err != nil {
		setFlash(w, FlashError, err.Error())
	} else {
		setFlash(w, FlashSuccess, "Lead added")
	}
	h.redirect(w, r, campaignURL(c.ID))
}

// LeadUpdate replaces one lead
func (h *Handlers) LeadUpdate(w http.ResponseWriter, r *http.Request) {
	s, c, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "leadId"))
	if err != nil {
		h.NotFound(w, r)
		return
	}

	m, unlock, err := h.leadManager(s, c.ID)
	if err != nil {
		h.error(w, r, http.StatusInternalServerError, "Failed to load leads")
		return
	}
	defer unlock()
	l := leadFromForm(r)
	l.ID = id
	switch err := m.Update(l); {
	case errors.Is(err, leads.ErrNotFound):
		h.NotFound(w, r)
		return
	case err != nil:
		setFlash(w, FlashError, err.Error())
	default:
		setFlash(w, FlashSuccess, "Lead updated")
	}
	h.redirect(w, r, campaignURL(c.ID))
}

// LeadDelete removes one lead
func (h *Handlers) LeadDelete(w http.ResponseWriter, r *http.Request) {
	s, c, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "leadId"))
	if err != nil {
		h.NotFound(w, r)
		return
	}

	m, unlock, err := h.leadManager(s, c.ID)
	if err != nil {
		h.error(w, r, http.StatusInternalServerError, "Failed to load leads")
		return
	}
	defer unlock()
	if err := m.Delete(id); err != nil {
		setFlash(w, FlashError, err.Error())
	} else {
		setFlash(w, FlashSuccess, "Lead deleted")
	}
	h.redirect(w, r, campaignURL(c.ID))
}

// LeadsUpload forwards a lead file to the backend
func (h *Handlers) LeadsUpload(w http.ResponseWriter, r *http.Request) {
	s, c, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		setFlash(w, FlashError, "Choose a CSV file to upload")
		h.redirect(w, r, campaignURL(c.ID))
		return
	}
	defer file.Close()

	resp, err := h.mailer.UploadLeads(r.Context(), s.AccessToken, c.ID, header.Filename, file)
	if err != nil {
		h.logger.Warn("lead upload failed", "campaign_id", c.ID, "error", err)
		setFlash(w, FlashError, err.Error())
		h.redirect(w, r, campaignURL(c.ID))
		return
	}

	h.audit(r, s, models.AuditUploadLeads, "campaign", c.ID, map[string]any{
		"file":     header.Filename,
		"imported": resp.Imported,
	})
	msg := fmt.Sprintf("Imported %d leads", resp.Imported)
	if resp.Message != "" {
		msg = resp.Message
	}
	setFlash(w, FlashSuccess, msg)
	h.redirect(w, r, campaignURL(c.ID))
}
