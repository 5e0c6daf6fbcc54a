package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/coldreach/internal/web/contacts"
	"github.com/foxzi/coldreach/internal/web/middleware"
	"github.com/foxzi/coldreach/internal/web/models"
)

var contactStatuses = []string{
	models.ContactActive,
	models.ContactReplied,
	models.ContactBounced,
	models.ContactUnsubscribed,
}

type contactsPage struct {
	Contacts []models.Contact
	Search   string
	Status   string
	Statuses []string
	Form     models.Contact
	Error    string
}

func (h *Handlers) contactsPage(r *http.Request, s *models.Session) contactsPage {
	q := r.URL.Query()
	filter := models.ContactFilter{Search: q.Get("q"), Status: q.Get("status")}
	data := contactsPage{
		Search:   filter.Search,
		Status:   filter.Status,
		Statuses: contactStatuses,
	}

	cs, err := h.contacts.List(s.ID, filter)
	if err != nil {
		h.logger.Error("failed to load contacts", "session_id", s.ID, "error", err)
		data.Error = "Contacts are unavailable right now"
	}
	data.Contacts = cs
	return data
}

// ContactList renders the contact book
func (h *Handlers) ContactList(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	h.render(w, r, http.StatusOK, "contacts", Page{Nav: "contacts", Data: h.contactsPage(r, s)})
}

// ContactCreate adds a contact from the form
func (h *Handlers) ContactCreate(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	if err := r.ParseForm(); err != nil {
		h.error(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}

	form := models.Contact{
		Name:    r.FormValue("name"),
		Email:   r.FormValue("email"),
		Company: r.FormValue("company"),
		Title:   r.FormValue("title"),
		Tags:    contacts.ParseTags(r.FormValue("tags")),
	}

	c, err := h.contacts.Add(s.ID, form)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, contacts.ErrNameRequired) || errors.Is(err, contacts.ErrEmailRequired) {
			status = http.StatusUnprocessableEntity
		}
		data := h.contactsPage(r, s)
		data.Form = form
		h.render(w, r, status, "contacts", Page{
			Nav:   "contacts",
			Flash: &Flash{Kind: FlashError, Message: err.Error()},
			Data:  data,
		})
		return
	}

	setFlash(w, FlashSuccess, c.Name+" added")
	h.redirect(w, r, "/contacts")
}

// ContactDelete removes a contact
func (h *Handlers) ContactDelete(w http.ResponseWriter, r *http.Request) {
	s := middleware.Session(r.Context())
	switch err := h.contacts.Delete(s.ID, chi.URLParam(r, "id")); {
	case errors.Is(err, contacts.ErrNotFound):
		h.NotFound(w, r)
		return
	case err != nil:
		setFlash(w, FlashError, err.Error())
	default:
		setFlash(w, FlashSuccess, "Contact deleted")
	}
	h.redirect(w, r, "/contacts")
}
