package handlers

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/foxzi/coldreach/internal/ratelimit"
	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/generate"
	"github.com/foxzi/coldreach/internal/web/models"
)

const subjectPrefix = "Subject:"

// splitDraft separates a leading "Subject:" line from the body
func splitDraft(draft string) (subject, body string) {
	draft = strings.TrimSpace(draft)
	first, rest, _ := strings.Cut(draft, "\n")
	if !strings.HasPrefix(first, subjectPrefix) {
		return "", draft
	}
	return strings.TrimSpace(strings.TrimPrefix(first, subjectPrefix)), strings.TrimSpace(rest)
}

// Draft generates an email draft and shows it in the send form
func (h *Handlers) Draft(w http.ResponseWriter, r *http.Request) {
	s, c, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}

	data := h.campaignPage(r.Context(), s, c)
	data.Instructions = r.FormValue("instructions")
	data.Send.To = r.FormValue("to")

	prompt := generate.DraftPrompt(c.Name, c.Goal, c.AudienceDescription, data.Instructions)
	draft, err := h.drafts.GenerateDraft(r.Context(), s.AccessToken, prompt)
	if err != nil {
		h.logger.Warn("draft generation failed", "campaign_id", c.ID, "error", err)
		h.render(w, r, upstreamStatus(err), "campaign", Page{
			Nav:   "campaigns",
			Flash: &Flash{Kind: FlashError, Message: err.Error()},
			Data:  data,
		})
		return
	}

	data.Send.Subject, data.Send.Body = splitDraft(draft)
	h.render(w, r, http.StatusOK, "campaign", Page{
		Nav:   "campaigns",
		Flash: &Flash{Kind: FlashSuccess, Message: "Draft ready"},
		Data:  data,
	})
}

// Send posts one email through the backend
func (h *Handlers) Send(w http.ResponseWriter, r *http.Request) {
	s, c, ok := h.loadCampaign(w, r)
	if !ok {
		return
	}

	form := sendForm{
		To:      strings.TrimSpace(r.FormValue("to")),
		Subject: strings.TrimSpace(r.FormValue("subject")),
		Body:    strings.TrimSpace(r.FormValue("body")),
	}

	var problem string
	switch {
	case form.To == "":
		problem = "Recipient is required"
	case form.Subject == "" || form.Body == "":
		problem = "Subject and body are required"
	default:
		if _, err := mail.ParseAddress(form.To); err != nil {
			problem = "Recipient is not a valid email address"
		}
	}

	status := http.StatusUnprocessableEntity
	if problem == "" {
		if wait, ok := h.allow(r, &ratelimit.Request{Action: ratelimit.ActionSend, UserID: s.UserID}); !ok {
			problem = retryMessage("emails sent", wait)
			status = http.StatusTooManyRequests
		}
	}
	if problem == "" {
		_, err := h.mailer.SendEmail(r.Context(), s.AccessToken, &backend.SendEmailRequest{
			CampaignID: c.ID,
			To:         form.To,
			Subject:    form.Subject,
			Body:       form.Body,
		})
		if err == nil {
			h.campaigns.Refresh(r.Context(), s)
			h.audit(r, s, models.AuditSendEmail, "campaign", c.ID, map[string]any{"to": form.To})
			setFlash(w, FlashSuccess, "Email sent to "+form.To)
			h.redirect(w, r, campaignURL(c.ID))
			return
		}
		h.logger.Warn("send failed", "campaign_id", c.ID, "error", err)
		problem = err.Error()
		status = upstreamStatus(err)
	}

	data := h.campaignPage(r.Context(), s, c)
	data.Send = form
	h.render(w, r, status, "campaign", Page{
		Nav:   "campaigns",
		Flash: &Flash{Kind: FlashError, Message: problem},
		Data:  data,
	})
}
