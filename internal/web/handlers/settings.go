package handlers

import (
	"net/http"

	"github.com/foxzi/coldreach/internal/web/middleware"
	"github.com/foxzi/coldreach/internal/web/models"
)

const settingsAuditLimit = 20

type settingsPage struct {
	GmailConnected bool
	Audit          []models.AuditLogEntry
}

// Settings renders the account page
func (h *Handlers) Settings(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	// The profile card shows the identity provider's current record
	if err := h.auth.RefreshUser(r.Context(), s); err != nil {
		h.logger.Warn("failed to refresh user", "user_id", s.UserID, "error", err)
	}
	data := settingsPage{GmailConnected: h.gmail.Connected(r.Context(), s)}

	if h.auditLog != nil {
		entries, _, err := h.auditLog.List(models.AuditLogFilter{UserID: s.UserID, Limit: settingsAuditLimit})
		if err != nil {
			h.logger.Warn("failed to list audit entries", "user_id", s.UserID, "error", err)
		}
		data.Audit = entries
	}

	h.render(w, r, http.StatusOK, "settings", Page{Nav: "settings", Data: data})
}

// GmailConnect starts mail-account linking
func (h *Handlers) GmailConnect(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	target, err := h.gmail.StartLinking(r.Context(), s)
	if err != nil {
		h.logger.Warn("gmail linking failed", "user_id", s.UserID, "error", err)
		setFlash(w, FlashError, err.Error())
		h.redirect(w, r, "/settings")
		return
	}

	h.audit(r, s, models.AuditConnectGmail, "gmail", "", nil)
	h.redirect(w, r, target)
}
