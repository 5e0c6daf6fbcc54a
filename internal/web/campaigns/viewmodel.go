package campaigns

import (
	"slices"
	"strings"
	"time"

	"github.com/foxzi/coldreach/internal/web/backend"
)

// Stage is the lifecycle label derived from a campaign's sends
type Stage string

const (
	StageDraft  Stage = "draft"
	StageActive Stage = "active"
)

// Progress values shown on campaign cards
const (
	ProgressNone    = 0
	ProgressSent    = 25
	ProgressReplied = 50
)

// Campaign is the display shape of a campaign
type Campaign struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Goal                string             `json:"goal"`
	AudienceDescription string             `json:"audience_description"`
	CreatedAt           time.Time          `json:"created_at"`
	Emails              []backend.RawEmail `json:"emails"`

	Sent      int     `json:"sent"`
	Replies   int     `json:"replies"`
	ReplyRate float64 `json:"reply_rate"`
	Stage     Stage   `json:"stage"`
	Status    string  `json:"status"`
	Progress  int     `json:"progress"`
}

// Transform derives the display fields of raw. The input is not modified
// and the result shares no memory with it.
func Transform(raw backend.RawCampaign) Campaign {
	c := Campaign{
		ID:                  raw.ID,
		Name:                raw.Name,
		Goal:                raw.Goal,
		AudienceDescription: raw.AudienceDescription,
		CreatedAt:           raw.CreatedAt,
		Emails:              make([]backend.RawEmail, len(raw.Emails)),
	}
	for i, e := range raw.Emails {
		e.Replies = slices.Clone(e.Replies)
		c.Emails[i] = e
		c.Replies += len(e.Replies)
	}

	c.Sent = len(raw.Emails)
	if c.Sent > 0 {
		c.ReplyRate = float64(c.Replies) / float64(c.Sent) * 100
	}

	c.Stage = StageDraft
	if c.Sent > 0 {
		c.Stage = StageActive
	}
	c.Status = capitalize(string(c.Stage))

	switch {
	case c.Sent == 0:
		c.Progress = ProgressNone
	case c.ReplyRate == 0:
		c.Progress = ProgressSent
	default:
		c.Progress = ProgressReplied
	}
	return c
}

// TransformAll maps every raw campaign. A nil input yields an empty slice.
func TransformAll(raw []backend.RawCampaign) []Campaign {
	out := make([]Campaign, 0, len(raw))
	for _, r := range raw {
		out = append(out, Transform(r))
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Summary aggregates a set of campaigns for the dashboard
type Summary struct {
	Campaigns int     `json:"campaigns"`
	Active    int     `json:"active"`
	Drafts    int     `json:"drafts"`
	Sent      int     `json:"sent"`
	Replies   int     `json:"replies"`
	ReplyRate float64 `json:"reply_rate"`
}

func Summarize(cs []Campaign) Summary {
	var s Summary
	for _, c := range cs {
		s.Campaigns++
		if c.Stage == StageActive {
			s.Active++
		} else {
			s.Drafts++
		}
		s.Sent += c.Sent
		s.Replies += c.Replies
	}
	if s.Sent > 0 {
		s.ReplyRate = float64(s.Replies) / float64(s.Sent) * 100
	}
	return s
}
