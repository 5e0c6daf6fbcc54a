// Package fixtures holds illustrative demo data for the screens that have
// no backend source yet: inbox, outbox, activity log, the analytics trend
// and the starter contact book. Pages that render it show a demo badge.
package fixtures

import (
	"slices"

	"github.com/foxzi/coldreach/internal/web/backend"
	"github.com/foxzi/coldreach/internal/web/models"
)

// Label is shown next to every screen built from this package
const Label = "Demo data"

// Message is one inbox or outbox row
type Message struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Preview  string `json:"preview"`
	Campaign string `json:"campaign"`
	Time     string `json:"time"`
	Status   string `json:"status"`
	Unread   bool   `json:"unread"`
}

// Activity is one entry of the dashboard activity log
type Activity struct {
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Details string `json:"details"`
	Time    string `json:"time"`
}

var inbox = []Message{
	{ID: "in-1", From: "Sarah Chen <sarah@acmecorp.io>", Subject: "Re: Cutting onboarding time in half", Preview: "Thanks for reaching out. Could we do a call Thursday afternoon?", Campaign: "Q3 SaaS founders", Time: "10:24", Status: "interested", Unread: true},
	{ID: "in-2", From: "Marcus Webb <m.webb@northwind.com>", Subject: "Re: Quick question about your pipeline", Preview: "Not the right time for us, maybe revisit in Q1.", Campaign: "Sales leaders EMEA", Time: "09:02", Status: "not_now", Unread: true},
	{ID: "in-3", From: "Priya Natarajan <priya@lumen.dev>", Subject: "Re: Idea for Lumen's outbound", Preview: "Send over the case study and I'll share it with the team.", Campaign: "Q3 SaaS founders", Time: "Yesterday", Status: "interested"},
	{ID: "in-4", From: "Tom Alvarez <tom@brightpath.co>", Subject: "Re: Following up", Preview: "Please remove me from your list.", Campaign: "Agency owners", Time: "Mon", Status: "unsubscribe"},
	{ID: "in-5", From: "Jana Novak <jana@kestrel.ai>", Subject: "Re: Your hiring page", Preview: "Interesting timing, we just opened the budget for this.", Campaign: "Sales leaders EMEA", Time: "Sun", Status: "interested"},
}

var outbox = []Message{
	{ID: "out-1", To: "david@orbitlabs.com", Subject: "Cutting onboarding time in half", Preview: "Hi David, noticed Orbit Labs shipped a new self-serve plan...", Campaign: "Q3 SaaS founders", Time: "Today 14:00", Status: "scheduled"},
	{ID: "out-2", To: "emma@fieldnote.app", Subject: "Quick question about your pipeline", Preview: "Hi Emma, congrats on the Series A...", Campaign: "Sales leaders EMEA", Time: "Today 15:30", Status: "scheduled"},
	{ID: "out-3", To: "li.wei@harborhq.com", Subject: "Idea for Harbor's outbound", Preview: "Hi Li, saw your post about SDR ramp time...", Campaign: "Q3 SaaS founders", Time: "Today 09:12", Status: "sent"},
	{ID: "out-4", To: "oscar@meridian.io", Subject: "Following up", Preview: "Hi Oscar, bumping this in case it slipped...", Campaign: "Agency owners", Time: "Yesterday", Status: "sent"},
	{ID: "out-5", To: "nina@quartzly.com", Subject: "Cutting onboarding time in half", Preview: "Hi Nina, quick idea for Quartzly...", Campaign: "Q3 SaaS founders", Time: "Yesterday", Status: "bounced"},
}

var activity = []Activity{
	{Kind: "reply", Title: "New reply from Sarah Chen", Details: "Q3 SaaS founders", Time: "2 minutes ago"},
	{Kind: "send", Title: "42 emails sent", Details: "Sales leaders EMEA", Time: "1 hour ago"},
	{Kind: "campaign", Title: "Campaign launched", Details: "Agency owners", Time: "3 hours ago"},
	{Kind: "leads", Title: "25 leads generated", Details: "Q3 SaaS founders", Time: "Yesterday"},
	{Kind: "bounce", Title: "1 email bounced", Details: "nina@quartzly.com", Time: "Yesterday"},
}

var daily = []backend.AnalyticsPoint{
	{Date: "Mon", Sent: 120, Opened: 64, Replied: 9},
	{Date: "Tue", Sent: 145, Opened: 80, Replied: 12},
	{Date: "Wed", Sent: 132, Opened: 71, Replied: 11},
	{Date: "Thu", Sent: 160, Opened: 92, Replied: 15},
	{Date: "Fri", Sent: 110, Opened: 58, Replied: 8},
	{Date: "Sat", Sent: 40, Opened: 19, Replied: 2},
	{Date: "Sun", Sent: 35, Opened: 17, Replied: 3},
}

var contacts = []models.Contact{
	{ID: "demo-1", Name: "Sarah Chen", Email: "sarah@acmecorp.io", Company: "Acme Corp", Title: "VP Engineering", Status: models.ContactReplied, LastContact: "2 days ago", Campaigns: 2, Replies: 1, Tags: []string{"hot", "saas"}},
	{ID: "demo-2", Name: "Marcus Webb", Email: "m.webb@northwind.com", Company: "Northwind", Title: "Head of Sales", Status: models.ContactActive, LastContact: "1 week ago", Campaigns: 1, Tags: []string{"emea"}},
	{ID: "demo-3", Name: "Priya Natarajan", Email: "priya@lumen.dev", Company: "Lumen", Title: "Founder", Status: models.ContactReplied, LastContact: "Yesterday", Campaigns: 1, Replies: 2, Tags: []string{"founder", "saas"}},
	{ID: "demo-4", Name: "Tom Alvarez", Email: "tom@brightpath.co", Company: "Brightpath", Title: "Managing Director", Status: models.ContactUnsubscribed, LastContact: "3 days ago", Campaigns: 1, Tags: []string{"agency"}},
	{ID: "demo-5", Name: "Nina Park", Email: "nina@quartzly.com", Company: "Quartzly", Title: "COO", Status: models.ContactBounced, LastContact: "Yesterday", Campaigns: 1, Tags: []string{}},
	{ID: "demo-6", Name: "Jana Novak", Email: "jana@kestrel.ai", Company: "Kestrel AI", Title: "CRO", Status: models.ContactActive, LastContact: "4 days ago", Campaigns: 2, Replies: 1, Tags: []string{"emea", "ai"}},
}

// Inbox returns the demo replies
func Inbox() []Message { return slices.Clone(inbox) }

// Outbox returns the demo scheduled and sent mail
func Outbox() []Message { return slices.Clone(outbox) }

// ActivityLog returns the demo dashboard activity
func ActivityLog() []Activity { return slices.Clone(activity) }

// Daily returns the demo weekly trend used when the backend has none
func Daily() []backend.AnalyticsPoint { return slices.Clone(daily) }

// Contacts returns a deep copy of the starter contact book
func Contacts() []models.Contact {
	out := make([]models.Contact, len(contacts))
	for i, c := range contacts {
		c.Tags = slices.Clone(c.Tags)
		out[i] = c
	}
	return out
}
