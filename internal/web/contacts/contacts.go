// Package contacts is the session-local contact book. A session starts
// from the demo contacts and its edits live in the workspace until sign
// out.
package contacts

import (
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/foxzi/coldreach/internal/web/fixtures"
	"github.com/foxzi/coldreach/internal/web/models"
)

var (
	ErrNameRequired  = errors.New("name is required")
	ErrEmailRequired = errors.New("email is required")
	ErrNotFound      = errors.New("contact not found")
)

// Store persists one contact book per session. LockContacts is held
// across each read-modify-write of a book.
type Store interface {
	Contacts(sessionID string) ([]models.Contact, bool, error)
	SaveContacts(sessionID string, contacts []models.Contact) error
	LockContacts(sessionID string) (unlock func())
}

type Service struct {
	store Store
	seed  func() []models.Contact
}

func NewService(store Store) *Service {
	return &Service{store: store, seed: fixtures.Contacts}
}

func (svc *Service) load(sessionID string) ([]models.Contact, error) {
	cs, found, err := svc.store.Contacts(sessionID)
	if err != nil {
		return nil, err
	}
	if !found {
		cs = svc.seed()
		if err := svc.store.SaveContacts(sessionID, cs); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

// List returns the contacts matching filter, in book order
func (svc *Service) List(sessionID string, filter models.ContactFilter) ([]models.Contact, error) {
	unlock := svc.store.LockContacts(sessionID)
	defer unlock()

	cs, err := svc.load(sessionID)
	if err != nil {
		return nil, err
	}
	return Filter(cs, filter), nil
}

// Filter matches the search term against name, email and company, case
// insensitively, and the status exactly when one is given.
func Filter(cs []models.Contact, filter models.ContactFilter) []models.Contact {
	term := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.Contact, 0, len(cs))
	for _, c := range cs {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(c.Name), term) &&
			!strings.Contains(strings.ToLower(c.Email), term) &&
			!strings.Contains(strings.ToLower(c.Company), term) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Add appends a new contact. Name and email are required; the status
// defaults to active.
func (svc *Service) Add(sessionID string, c models.Contact) (models.Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Company = strings.TrimSpace(c.Company)
	c.Title = strings.TrimSpace(c.Title)
	if c.Name == "" {
		return models.Contact{}, ErrNameRequired
	}
	if c.Email == "" {
		return models.Contact{}, ErrEmailRequired
	}

	unlock := svc.store.LockContacts(sessionID)
	defer unlock()

	cs, err := svc.load(sessionID)
	if err != nil {
		return models.Contact{}, err
	}

	c.ID = uuid.New().String()
	if c.Status == "" {
		c.Status = models.ContactActive
	}
	if c.LastContact == "" {
		c.LastContact = "Never"
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	cs = append(cs, c)
	if err := svc.store.SaveContacts(sessionID, cs); err != nil {
		return models.Contact{}, err
	}
	return c, nil
}

// Delete removes the contact with id
func (svc *Service) Delete(sessionID, id string) error {
	unlock := svc.store.LockContacts(sessionID)
	defer unlock()

	cs, err := svc.load(sessionID)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(cs, func(c models.Contact) bool { return c.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	return svc.store.SaveContacts(sessionID, slices.Delete(cs, i, i+1))
}

// ParseTags splits a comma separated tag list
func ParseTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
