package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter narrows the audit log. Empty strings and nil pointers do not filter.
type Filter struct {
	UserEmail string
	EventType string
	Success   *bool
	IPAddress string
	SessionID string
	StartTime *time.Time
	EndTime   *time.Time
}

// Query is a validated, store-ready read. SortColumn must already be one of
// the allow-listed column names.
type Query struct {
	Filter
	SortColumn string
	SortDesc   bool
	Offset     int
	Limit      int
}

// GroupDimension is a column login attempts can be grouped by.
type GroupDimension string

const (
	ByIPAddress GroupDimension = "ip_address"
	ByUserEmail GroupDimension = "user_email"
)

type Store interface {
	Append(ctx context.Context, event *Event) error
	Find(ctx context.Context, q Query) ([]Event, error)
	Each(ctx context.Context, q Query, fn func(*Event) error) error
	Count(ctx context.Context, f Filter) (int64, error)
	Summarize(ctx context.Context, f Filter) (Summary, error)
	CountLogins(ctx context.Context, start, end time.Time) (total, failed int64, err error)
	GroupLogins(ctx context.Context, dim GroupDimension, start, end time.Time, failedOnly bool) ([]GroupCount, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

const likeEscape = "!"

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func containsPattern(v string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(v)) + "%"
}

func (s *GormStore) filtered(ctx context.Context, f Filter) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&Event{})

	if f.UserEmail != "" {
		tx = tx.Where("LOWER(user_email) LIKE ? ESCAPE '"+likeEscape+"'", containsPattern(f.UserEmail))
	}
	if f.EventType != "" {
		tx = tx.Where("event_type = ?", f.EventType)
	}
	if f.Success != nil {
		tx = tx.Where("success = ?", *f.Success)
	}
	if f.IPAddress != "" {
		tx = tx.Where("LOWER(ip_address) LIKE ? ESCAPE '"+likeEscape+"'", containsPattern(f.IPAddress))
	}
	if f.SessionID != "" {
		tx = tx.Where("session_id LIKE ? ESCAPE '"+likeEscape+"'", "%"+likeEscaper.Replace(f.SessionID)+"%")
	}
	if f.StartTime != nil {
		tx = tx.Where("created_at >= ?", f.StartTime.UTC())
	}
	if f.EndTime != nil {
		tx = tx.Where("created_at <= ?", f.EndTime.UTC())
	}
	return tx
}

func (s *GormStore) ordered(ctx context.Context, q Query) *gorm.DB {
	tx := s.filtered(ctx, q.Filter).
		Order(clause.OrderByColumn{Column: clause.Column{Name: q.SortColumn}, Desc: q.SortDesc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: q.SortDesc})
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx
}

func (s *GormStore) Append(ctx context.Context, event *Event) error {
	event.CreatedAt = event.CreatedAt.UTC()
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *GormStore) Find(ctx context.Context, q Query) ([]Event, error) {
	var events []Event
	if err := s.ordered(ctx, q).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Each streams rows to fn without materialising the result set.
func (s *GormStore) Each(ctx context.Context, q Query, fn func(*Event) error) error {
	rows, err := s.ordered(ctx, q).Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var event Event
		if err := s.db.ScanRows(rows, &event); err != nil {
			return err
		}
		if err := fn(&event); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *GormStore) Count(ctx context.Context, f Filter) (int64, error) {
	var n int64
	err := s.filtered(ctx, f).Count(&n).Error
	return n, err
}

func (s *GormStore) Summarize(ctx context.Context, f Filter) (Summary, error) {
	var row struct {
		Total         int64
		Success       int64
		Failure       int64
		LoginFailures int64
	}
	err := s.filtered(ctx, f).Select(
		"COUNT(*) AS total, "+
			"COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS success, "+
			"COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0) AS failure, "+
			"COALESCE(SUM(CASE WHEN success THEN 0 WHEN event_type = ? THEN 1 ELSE 0 END), 0) AS login_failures",
		EventLogin,
	).Scan(&row).Error
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Total:         row.Total,
		Success:       row.Success,
		Failure:       row.Failure,
		LoginFailures: row.LoginFailures,
	}, nil
}

func (s *GormStore) logins(ctx context.Context, start, end time.Time) *gorm.DB {
	return s.db.WithContext(ctx).Model(&Event{}).
		Where("event_type = ?", EventLogin).
		Where("created_at >= ? AND created_at <= ?", start.UTC(), end.UTC())
}

func (s *GormStore) CountLogins(ctx context.Context, start, end time.Time) (int64, int64, error) {
	var total, failed int64
	if err := s.logins(ctx, start, end).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := s.logins(ctx, start, end).Where("success = ?", false).Count(&failed).Error; err != nil {
		return 0, 0, err
	}
	return total, failed, nil
}

// GroupLogins buckets login events by dim, ordered by attempts descending
// and then key ascending so equal counts come back in a stable order.
func (s *GormStore) GroupLogins(ctx context.Context, dim GroupDimension, start, end time.Time, failedOnly bool) ([]GroupCount, error) {
	column := string(dim)
	if dim != ByIPAddress && dim != ByUserEmail {
		return nil, fmt.Errorf("unsupported group dimension %q", dim)
	}

	tx := s.logins(ctx, start, end).
		Where(column + " IS NOT NULL AND " + column + " <> ''")
	if failedOnly {
		tx = tx.Where("success = ?", false)
	}

	var rows []struct {
		GroupKey string
		Attempts int64
	}
	err := tx.Select(column + " AS group_key, COUNT(*) AS attempts").
		Group(column).
		Order("attempts DESC").
		Order("group_key ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]GroupCount, len(rows))
	for i, r := range rows {
		out[i] = GroupCount{Key: r.GroupKey, Attempts: r.Attempts}
	}
	return out, nil
}

func (s *GormStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&Event{})
	return res.RowsAffected, res.Error
}
