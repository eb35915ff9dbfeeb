package refreshsession

import "time"

const (
	ReasonLogout    = "logout"
	ReasonLogoutAll = "logout_all"
	ReasonRevoked   = "revoked"
	ReasonRotated   = "rotated"
	ReasonEvicted   = "evicted"
)

// RefreshSession is a long-lived credential record. Only the SHA-256 of the
// bearer secret is stored. Rows are revoked, never deleted.
type RefreshSession struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserID        uint       `gorm:"not null;index" json:"userId"`
	TokenHash     string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	IPAddress     string     `gorm:"size:45" json:"ipAddress,omitempty"`
	UserAgent     string     `gorm:"size:512" json:"userAgent,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;index" json:"createdAt"`
	ExpiresAt     time.Time  `gorm:"not null;index" json:"expiresAt"`
	RevokedAt     *time.Time `gorm:"index" json:"revokedAt,omitempty"`
	RevokedReason *string    `gorm:"size:32" json:"revokedReason,omitempty"`
}

func (RefreshSession) TableName() string {
	return "refresh_sessions"
}

// IsActive reports revokedAt == nil && expiresAt > now.
func (s *RefreshSession) IsActive(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// SessionView is the listing shape of an active session. It never carries
// the token hash.
type SessionView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	Device    string    `json:"device"`
	Current   bool      `json:"current"`
}

// Tokens is returned on login and rotation. RefreshToken is the only place
// the raw secret ever appears.
type Tokens struct {
	RefreshToken         string         `json:"refreshToken"`
	AccessToken          string         `json:"accessToken"`
	AccessTokenExpiresAt time.Time      `json:"accessTokenExpiresAt"`
	Session              RefreshSession `json:"session"`
	Evicted              int64          `json:"evictedSessions"`
}

// Principal identifies an authenticated user for token issuance.
type Principal struct {
	UserID uint
	Email  string
	Role   string
}

// ClientInfo is request metadata carried into sessions and audit rows.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type RevokeOutcome string

const (
	OutcomeRevoked  RevokeOutcome = "revoked"
	OutcomeInactive RevokeOutcome = "already_inactive"
)
