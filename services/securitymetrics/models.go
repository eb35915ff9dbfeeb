package securitymetrics

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Snapshot is a persisted metrics Result. The ranked lists are stored as
// JSON text columns.
type Snapshot struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	GeneratedAt         time.Time       `gorm:"not null;index" json:"generatedAt"`
	WindowHours         float64         `gorm:"not null;index" json:"windowHours"`
	WindowStart         time.Time       `gorm:"not null" json:"windowStart"`
	WindowEnd           time.Time       `gorm:"not null" json:"windowEnd"`
	TopN                int             `gorm:"not null" json:"topN"`
	LoginAttempts       int64           `gorm:"not null" json:"loginAttempts"`
	LoginFailedAttempts int64           `gorm:"not null" json:"loginFailedAttempts"`
	LoginFailureRate    float64         `gorm:"not null" json:"loginFailureRate"`
	TopIPAttempts       IPAttemptList   `gorm:"type:text;not null" json:"topIpAttempts"`
	TopUserAttempts     UserAttemptList `gorm:"type:text;not null" json:"topUserAttempts"`
	CreatedAt           time.Time       `json:"createdAt"`
}

func (Snapshot) TableName() string {
	return "security_metric_snapshots"
}

// NewSnapshot flattens a Result into its stored form.
func NewSnapshot(r *Result) *Snapshot {
	return &Snapshot{
		GeneratedAt:         r.GeneratedAt,
		WindowHours:         r.Window.Hours,
		WindowStart:         r.Window.Start,
		WindowEnd:           r.Window.End,
		TopN:                r.TopN,
		LoginAttempts:       r.Login.Attempts,
		LoginFailedAttempts: r.Login.FailedAttempts,
		LoginFailureRate:    r.Login.FailureRate,
		TopIPAttempts:       IPAttemptList(r.TopIPAttempts),
		TopUserAttempts:     UserAttemptList(r.TopUserAttempts),
		CreatedAt:           r.GeneratedAt,
	}
}

type IPAttemptList []IPAttempts

func (l IPAttemptList) Value() (driver.Value, error) {
	return marshalList(l)
}

func (l *IPAttemptList) Scan(src any) error {
	return unmarshalList(src, l)
}

type UserAttemptList []UserAttempts

func (l UserAttemptList) Value() (driver.Value, error) {
	return marshalList(l)
}

func (l *UserAttemptList) Scan(src any) error {
	return unmarshalList(src, l)
}

func marshalList[T any](list []T) (driver.Value, error) {
	if list == nil {
		return "[]", nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalList(src any, dst any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("securitymetrics: cannot scan %T into ranked list", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
