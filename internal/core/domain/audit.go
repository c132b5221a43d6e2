package domain

import "time"

type AuditEventType string

const (
	AuditLogin         AuditEventType = "login"
	AuditRegister      AuditEventType = "register"
	AuditRefresh       AuditEventType = "refresh"
	AuditRotate        AuditEventType = "refresh_rotated"
	AuditLogout        AuditEventType = "logout"
	AuditSessionRevoke AuditEventType = "session_revoked"
	AuditRevokeAll     AuditEventType = "revoke_all"
)

type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      AuditEventType    `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}
