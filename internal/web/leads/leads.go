// Package leads manages the lead list of one campaign view.
package leads

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/foxzi/coldreach/internal/web/generate"
	"github.com/foxzi/coldreach/internal/web/models"
)

var (
	ErrIncompleteLead = errors.New("name, email, company and title are all required")
	ErrNotFound       = errors.New("lead not found")
)

// UpdateFunc receives the full list after every mutation
type UpdateFunc func(leads []models.Lead) error

// Manager holds one lead list. It is not safe for concurrent use; the
// BFF builds one per request from the session workspace.
type Manager struct {
	leads    []models.Lead
	gen      generate.LeadGenerator
	onUpdate UpdateFunc
}

// NewManager starts from leads. onUpdate may be nil.
func NewManager(leads []models.Lead, gen generate.LeadGenerator, onUpdate UpdateFunc) *Manager {
	return &Manager{
		leads:    slices.Clone(leads),
		gen:      gen,
		onUpdate: onUpdate,
	}
}

// Leads returns a copy of the list
func (m *Manager) Leads() []models.Lead {
	return slices.Clone(m.leads)
}

func (m *Manager) nextID() int {
	top := 0
	for _, l := range m.leads {
		top = max(top, l.ID)
	}
	return top + 1
}

func (m *Manager) notify() error {
	if m.onUpdate == nil {
		return nil
	}
	return m.onUpdate(m.Leads())
}

// Generate appends n generated leads. Ids continue after the current
// maximum and the generator continues from the same point.
func (m *Manager) Generate(ctx context.Context, audience string, n int) ([]models.Lead, error) {
	id := m.nextID()
	generated, err := m.gen.GenerateLeads(ctx, audience, id-1, n)
	if err != nil {
		return nil, err
	}

	for i := range generated {
		generated[i].ID = id
		id++
	}
	m.leads = append(m.leads, generated...)
	return generated, m.notify()
}

// Add appends a manually entered lead
func (m *Manager) Add(l models.Lead) (models.Lead, error) {
	l = trim(l)
	if !l.Complete() {
		return models.Lead{}, ErrIncompleteLead
	}
	l.ID = m.nextID()
	m.leads = append(m.leads, l)
	return l, m.notify()
}

// Update replaces the lead with the same id
func (m *Manager) Update(l models.Lead) error {
	l = trim(l)
	if !l.Complete() {
		return ErrIncompleteLead
	}
	i := slices.IndexFunc(m.leads, func(x models.Lead) bool { return x.ID == l.ID })
	if i < 0 {
		return ErrNotFound
	}
	m.leads[i] = l
	return m.notify()
}

// Delete removes the lead with id
func (m *Manager) Delete(id int) error {
	n := len(m.leads)
	m.leads = slices.DeleteFunc(m.leads, func(x models.Lead) bool { return x.ID == id })
	if len(m.leads) == n {
		return ErrNotFound
	}
	return m.notify()
}

func trim(l models.Lead) models.Lead {
	l.Name = strings.TrimSpace(l.Name)
	l.Email = strings.TrimSpace(l.Email)
	l.Company = strings.TrimSpace(l.Company)
	l.Title = strings.TrimSpace(l.Title)
	return l
}
