package domain

import "time"

// EventType classifies a security-relevant event.
type EventType string

const (
	EventLogin                   EventType = "login"
	EventLogout                  EventType = "logout"
	EventTokenRefresh            EventType = "token_refresh"
	EventInvalidToken            EventType = "invalid_token"
	EventSessionExpired          EventType = "session_expired"
	EventSuspiciousActivity      EventType = "suspicious_activity"
	EventUnauthorizedAdminAccess EventType = "unauthorized_admin_access"
	EventUnauthorizedAccess      EventType = "unauthorized_access"
	EventAuthenticationError     EventType = "authentication_error"
	EventTokenExpired            EventType = "token_expired"
	EventAuthenticationFailed    EventType = "authentication_failed"
	EventMassTokenRevocation     EventType = "mass_token_revocation"
	EventUnauthorizedDataAccess  EventType = "unauthorized_data_access"
)

// criticalTypes is the fixed subset of event types routed to durable storage
// in addition to the log sink.
var criticalTypes = map[EventType]bool{
	EventSuspiciousActivity: true,
	EventInvalidToken:       true,
	EventSessionExpired:     true,
}

// IsCritical reports whether events of this type must additionally be persisted.
func (t EventType) IsCritical() bool {
	return criticalTypes[t]
}

// SecurityEvent is one append-only security audit record.
type SecurityEvent struct {
	ID        string
	UserID    string
	SessionID string // optional
	Type      EventType
	IP        string // optional
	UserAgent string // optional
	Details   map[string]string
	CreatedAt time.Time
}
