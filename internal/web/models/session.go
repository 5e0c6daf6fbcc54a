package models

import "time"

// Session is one signed-in browser. Tokens are plaintext in memory and
// sealed in the database.
type Session struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	AccessToken    string    `json:"-"`
	RefreshToken   string    `json:"-"`
	TokenExpiresAt time.Time `json:"token_expires_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DisplayName returns the user's name, falling back to the email address
func (s *Session) DisplayName() string {
	switch {
	case s.FirstName != "" && s.LastName != "":
		return s.FirstName + " " + s.LastName
	case s.FirstName != "":
		return s.FirstName
	default:
		return s.Email
	}
}
