package models

import "time"

// Audit actions
const (
	AuditSignIn         = "sign_in"
	AuditSignUp         = "sign_up"
	AuditSignOut        = "sign_out"
	AuditCreateCampaign = "create_campaign"
	AuditLaunchCampaign = "launch_campaign"
	AuditPauseCampaign  = "pause_campaign"
	AuditResumeCampaign = "resume_campaign"
	AuditUploadLeads    = "upload_leads"
	AuditSendEmail      = "send_email"
	AuditConnectGmail   = "connect_gmail"
)

// AuditLogEntry represents an audit log entry
type AuditLogEntry struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	UserEmail  string    `json:"user_email"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Details    string    `json:"details"` // JSON
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditLogFilter for filtering audit log
type AuditLogFilter struct {
	UserID     string
	Action     string
	EntityType string
	Limit      int
	Offset     int
}
