package models

// Contact statuses
const (
	ContactActive       = "active"
	ContactReplied      = "replied"
	ContactBounced      = "bounced"
	ContactUnsubscribed = "unsubscribed"
)

// Contact is an address book entry
type Contact struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Company     string   `json:"company"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	LastContact string   `json:"last_contact"`
	Campaigns   int      `json:"campaigns"`
	Replies     int      `json:"replies"`
	Tags        []string `json:"tags"`
}

// ContactFilter for searching contacts
type ContactFilter struct {
	Search string
	Status string
}
