package audit

import "time"

// Event types written by the session lifecycle. The set is open; queries
// match eventType exactly.
const (
	EventLogin         = "login"
	EventRefresh       = "refresh"
	EventLogout        = "logout"
	EventLogoutAll     = "logout_all"
	EventListSessions  = "list_sessions"
	EventRevokeSession = "revoke_session"
)

// Event is one immutable row of the authentication audit log. Nullable
// columns are pointers so exports can tell "absent" from "empty".
type Event struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	EventType string    `gorm:"size:32;not null;index:idx_audit_type_created,priority:1" json:"eventType"`
	Success   bool      `gorm:"not null;index" json:"success"`
	UserID    *uint     `gorm:"index" json:"userId"`
	UserEmail *string   `gorm:"size:255;index" json:"userEmail"`
	SessionID *string   `gorm:"size:36;index" json:"sessionId"`
	IPAddress *string   `gorm:"size:45;index" json:"ipAddress"`
	UserAgent *string   `gorm:"size:512" json:"userAgent"`
	Details   *string   `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"not null;index;index:idx_audit_type_created,priority:2" json:"createdAt"`
}

func (Event) TableName() string {
	return "session_audit_events"
}

// Entry is what callers hand to the Recorder. Zero values mean "not known"
// and are stored as NULL.
type Entry struct {
	EventType string
	Success   bool
	UserID    uint
	UserEmail string
	SessionID string
	IPAddress string
	UserAgent string
	Details   string
}

// Summary counts over a filtered set, independent of pagination.
type Summary struct {
	Total         int64 `json:"total"`
	Success       int64 `json:"success"`
	Failure       int64 `json:"failure"`
	LoginFailures int64 `json:"loginFailures"`
}

// GroupCount is one bucket of a login aggregation.
type GroupCount struct {
	Key      string
	Attempts int64
}
