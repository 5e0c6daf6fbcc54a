package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/coldreach/internal/web/launch"
	"github.com/foxzi/coldreach/internal/web/middleware"
	"github.com/foxzi/coldreach/internal/web/models"
)

func launchMessage(err error) string {
	switch {
	case errors.Is(err, launch.ErrNotReady):
		return "Complete every checklist item before launching"
	case errors.Is(err, launch.ErrBusy):
		return "Please wait for the current change to finish"
	default:
		return err.Error()
	}
}

// LaunchTask ticks the next checklist item
func (h *Handlers) LaunchTask(w http.ResponseWriter, r *http.Request) {
	s, c, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}
	if _, err := h.launches.Get(s.ID, c.ID).CompleteTask(); err != nil {
		setFlash(w, FlashError, launchMessage(err))
	}
	h.redirect(w, r, campaignURL(c.ID))
}

// Launch starts the launch sequence
func (h *Handlers) Launch(w http.ResponseWriter, r *http.Request) {
	s, c, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}
	if _, err := h.launches.Get(s.ID, c.ID).Launch(); err != nil {
		setFlash(w, FlashError, launchMessage(err))
		h.redirect(w, r, campaignURL(c.ID))
		return
	}

	h.audit(r, s, models.AuditLaunchCampaign, "campaign", c.ID, map[string]any{"name": c.Name})
	setFlash(w, FlashSuccess, "Launching campaign")
	h.redirect(w, r, campaignURL(c.ID))
}

// TogglePause pauses an active campaign or resumes a paused one
func (h *Handlers) TogglePause(w http.ResponseWriter, r *http.Request) {
	s, c, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}

	seq := h.launches.Get(s.ID, c.ID)
	before := seq.State().Phase
	if _, err := seq.TogglePause(); err != nil {
		setFlash(w, FlashError, launchMessage(err))
		h.redirect(w, r, campaignURL(c.ID))
		return
	}

	action := models.AuditPauseCampaign
	if before == launch.PhasePaused {
		action = models.AuditResumeCampaign
	}
	h.audit(r, s, action, "campaign", c.ID, nil)
	h.redirect(w, r, campaignURL(c.ID))
}

// LaunchState returns the launch snapshot as JSON for polling
func (h *Handlers) LaunchState(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	c, err := h.campaigns.Get(r.Context(), s, chi.URLParam(r, "id"))
	if err != nil {
		h.json(w, errorStatus(err), map[string]string{"error": err.Error()})
		return
	}
	h.json(w, http.StatusOK, h.launchState(s, c.ID))
}
