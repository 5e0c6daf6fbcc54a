package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/coldreach/internal/ratelimit"
	"github.com/foxzi/coldreach/internal/web/auth"
	"github.com/foxzi/coldreach/internal/web/middleware"
	"github.com/foxzi/coldreach/internal/web/models"
)

const stateCookie = "oidc_state"

type authPage struct {
	Mode      string
	Error     string
	Notice    string
	Email     string
	FirstName string
	LastName  string
	Federated string
}

func (h *Handlers) federatedProvider() string {
	if h.cfg.Auth.OIDC.Enabled {
		return h.cfg.Auth.OIDC.Provider
	}
	return ""
}

func (h *Handlers) renderAuth(w http.ResponseWriter, r *http.Request, status int, data authPage) {
	if data.Mode != "signup" {
		data.Mode = "signin"
	}
	data.Federated = h.federatedProvider()
	h.render(w, r, status, "auth", Page{Data: data})
}

// Landing renders the public home page
func (h *Handlers) Landing(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "landing", Page{})
}

// AuthPage renders the sign in or sign up form
func (h *Handlers) AuthPage(w http.ResponseWriter, r *http.Request) {
	h.renderAuth(w, r, http.StatusOK, authPage{Mode: r.URL.Query().Get("mode")})
}

// SignIn handles the sign in form
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderAuth(w, r, http.StatusBadRequest, authPage{Error: "Invalid form data"})
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if wait, ok := h.allow(r, &ratelimit.Request{Action: ratelimit.ActionSignIn, IP: middleware.ClientIP(r)}); !ok {
		h.renderAuth(w, r, http.StatusTooManyRequests, authPage{Error: retryMessage("sign-in attempts", wait), Email: email})
		return
	}

	s, err := h.auth.SignIn(r.Context(), email, password)
	if err != nil {
		h.logger.Info("sign in failed", "email", email, "error", err)
		h.renderAuth(w, r, upstreamStatus(err), authPage{Error: err.Error(), Email: email})
		return
	}

	h.startSession(w, r, s, models.AuditSignIn)
}

// SignUp handles the registration form
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderAuth(w, r, http.StatusBadRequest, authPage{Mode: "signup", Error: "Invalid form data"})
		return
	}

	form := authPage{
		Mode:      "signup",
		Email:     strings.TrimSpace(r.FormValue("email")),
		FirstName: strings.TrimSpace(r.FormValue("first_name")),
		LastName:  strings.TrimSpace(r.FormValue("last_name")),
	}

	s, err := h.auth.SignUp(r.Context(), form.Email, r.FormValue("password"), auth.Metadata{
		FirstName: form.FirstName,
		LastName:  form.LastName,
	})
	if err != nil {
		h.logger.Info("sign up failed", "email", form.Email, "error", err)
		form.Error = err.Error()
		h.renderAuth(w, r, upstreamStatus(err), form)
		return
	}
	if s == nil {
		h.renderAuth(w, r, http.StatusOK, authPage{
			Email:  form.Email,
			Notice: "Check your email to confirm your account, then sign in.",
		})
		return
	}

	h.startSession(w, r, s, models.AuditSignUp)
}

// FederatedSignIn redirects to the external identity issuer
func (h *Handlers) FederatedSignIn(w http.ResponseWriter, r *http.Request) {
	target, err := h.auth.SignInWithFederatedIdentity(chi.URLParam(r, "provider"))
	if err != nil {
		h.logger.Warn("federated sign in unavailable", "provider", chi.URLParam(r, "provider"), "error", err)
		h.renderAuth(w, r, http.StatusBadRequest, authPage{Error: err.Error()})
		return
	}

	// Bind the state to this browser as well
	if u, err := url.Parse(target); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    u.Query().Get("state"),
			Path:     "/auth",
			MaxAge:   600,
			HttpOnly: true,
			Secure:   h.cfg.Server.TLS.Enabled,
			SameSite: http.SameSiteLaxMode,
		})
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// FederatedCallback completes the authorization-code flow
func (h *Handlers) FederatedCallback(w http.ResponseWriter, r *http.Request) {
	stored, err := r.Cookie(stateCookie)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
	})

	q := r.URL.Query()
	state := q.Get("state")
	if err != nil || stored.Value == "" || stored.Value != state {
		h.renderAuth(w, r, http.StatusBadRequest, authPage{Error: "Invalid state"})
		return
	}

	code := q.Get("code")
	if code == "" {
		msg := q.Get("error_description")
		if msg == "" {
			msg = q.Get("error")
		}
		if msg == "" {
			msg = "Authorization failed"
		}
		h.renderAuth(w, r, http.StatusBadRequest, authPage{Error: msg})
		return
	}

	s, err := h.auth.CompleteFederatedSignIn(r.Context(), state, code)
	if err != nil {
		h.logger.Error("federated sign in failed", "error", err)
		h.renderAuth(w, r, upstreamStatus(err), authPage{Error: err.Error()})
		return
	}

	h.startSession(w, r, s, models.AuditSignIn)
}

// SignOut ends the session
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	if s != nil {
		h.audit(r, s, models.AuditSignOut, "session", "", nil)
		if err := h.auth.SignOut(r.Context(), s.ID); err != nil {
			h.logger.Error("sign out failed", "session_id", s.ID, "error", err)
		}
	}
	middleware.ClearSessionCookie(w, r)
	h.redirect(w, r, middleware.PathAuth)
}

func (h *Handlers) startSession(w http.ResponseWriter, r *http.Request, s *models.Session, action string) {
	middleware.SetSessionCookie(w, s, h.cfg.Server.TLS.Enabled)
	h.audit(r, s, action, "session", "", nil)
	h.redirect(w, r, middleware.PathHome)
}
