package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/foxzi/coldreach/internal/web/models"
)

// LeadGenerator proposes leads for an audience. Returned leads carry no id.
// offset counts the leads generated for the list before this batch so a
// new batch does not repeat earlier ones.
type LeadGenerator interface {
	GenerateLeads(ctx context.Context, audience string, offset, n int) ([]models.Lead, error)
}

// MaxGeneratedLeads caps one generation request
const MaxGeneratedLeads = 100

var (
	firstNames = []string{"Ana", "Ben", "Chloe", "Diego", "Emma", "Farid", "Grace", "Hiro", "Ines", "Jonas"}
	lastNames  = []string{"Lopez", "Miller", "Nakamura", "Okafor", "Petrov", "Quinn", "Rossi", "Schmidt", "Tanaka", "Weber"}
	companies  = []string{"Acme Corp", "Globex", "Initech", "Umbrella Labs", "Hooli", "Vandelay Industries", "Stark Systems", "Wayne Analytics"}
	titles     = []string{"CEO", "CTO", "VP of Sales", "Head of Marketing", "Growth Lead", "Director of Operations"}
)

// MockLeads synthesizes plausible leads after a fixed delay. Output depends
// only on the seed, offset and n, so repeated calls are reproducible.
type MockLeads struct {
	Delay time.Duration
	Seed  int
}

func (m MockLeads) GenerateLeads(ctx context.Context, audience string, offset, n int) ([]models.Lead, error) {
	if n <= 0 || n > MaxGeneratedLeads {
		return nil, fmt.Errorf("lead count must be between 1 and %d", MaxGeneratedLeads)
	}
	if err := sleep(ctx, m.Delay); err != nil {
		return nil, err
	}

	leads := make([]models.Lead, n)
	for i := range leads {
		k := m.Seed + offset + i
		first := firstNames[k%len(firstNames)]
		last := lastNames[(k/len(firstNames)+k)%len(lastNames)]
		company := companies[(k*3)%len(companies)]
		leads[i] = models.Lead{
			Name:    first + " " + last,
			Email:   strings.ToLower(first+"."+last) + "@" + domain(company),
			Company: company,
			Title:   titles[(k*7)%len(titles)],
		}
	}
	return leads, nil
}

func domain(company string) string {
	f := strings.Fields(strings.ToLower(company))
	return f[0] + ".example.com"
}
