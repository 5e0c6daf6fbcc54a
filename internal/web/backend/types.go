package backend

import "time"

// RawCampaign is a campaign as returned by the get-campaigns function
type RawCampaign struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Goal                string     `json:"goal"`
	AudienceDescription string     `json:"audience_description"`
	CreatedAt           time.Time  `json:"created_at"`
	Emails              []RawEmail `json:"emails"`
}

// RawEmail is one send record owned by a campaign
type RawEmail struct {
	ID             string     `json:"id"`
	RecipientEmail string     `json:"recipient_email"`
	SentAt         time.Time  `json:"sent_at"`
	Replies        []RawReply `json:"replies"`
}

// RawReply is one reply owned by an email
type RawReply struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// CampaignsResponse is the get-campaigns payload
type CampaignsResponse struct {
	Campaigns []RawCampaign `json:"campaigns"`
}

// CreateCampaignRequest is the create-campaign input
type CreateCampaignRequest struct {
	Name                string `json:"name"`
	Goal                string `json:"goal"`
	AudienceDescription string `json:"audience_description"`
}

// CreateCampaignResponse wraps the created record
type CreateCampaignResponse struct {
	Campaign RawCampaign `json:"campaign"`
}

// GmailAuthResponse carries the mail-account linking redirect
type GmailAuthResponse struct {
	URL string `json:"url"`
}

// AnalyticsRequest selects one campaign
type AnalyticsRequest struct {
	CampaignID string `json:"campaign_id"`
}

// Analytics is the get-analytics payload
type Analytics struct {
	CampaignID string           `json:"campaign_id"`
	Sent       int              `json:"sent"`
	Opened     int              `json:"opened"`
	Replied    int              `json:"replied"`
	Bounced    int              `json:"bounced"`
	Daily      []AnalyticsPoint `json:"daily,omitempty"`
}

// AnalyticsPoint is one day of activity
type AnalyticsPoint struct {
	Date    string `json:"date"`
	Sent    int    `json:"sent"`
	Opened  int    `json:"opened"`
	Replied int    `json:"replied"`
}

// UploadLeadsResponse acknowledges a lead file upload
type UploadLeadsResponse struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Message  string `json:"message,omitempty"`
}

// GenerateEmailRequest is the draft prompt
type GenerateEmailRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateEmailResponse carries the draft text
type GenerateEmailResponse struct {
	Draft string `json:"draft"`
}

// SendEmailRequest is the send-email payload
type SendEmailRequest struct {
	CampaignID string `json:"campaign_id"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// SendEmailResponse acknowledges a send
type SendEmailResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}

// Session is the identity provider's token grant
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Expiry returns the absolute access token expiry
func (s *Session) Expiry(now time.Time) time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	return now.Add(time.Duration(s.ExpiresIn) * time.Second)
}

// User is the identity provider's user record
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// Metadata returns a string field of the user metadata
func (u User) Metadata(key string) string {
	if v, ok := u.UserMetadata[key].(string); ok {
		return v
	}
	return ""
}

type signUpRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Data     map[string]string `json:"data,omitempty"`
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

type idTokenGrant struct {
	Provider string `json:"provider"`
	IDToken  string `json:"id_token"`
	Nonce    string `json:"nonce,omitempty"`
}
