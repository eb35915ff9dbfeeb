package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tech-arch1tect/condoaccess/apperror"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
	maxEventTypeLen = 32
)

// sortColumns maps the public sortBy names onto columns.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"eventType": "event_type",
	"success":   "success",
	"userEmail": "user_email",
	"ipAddress": "ip_address",
}

// SortableColumns lists the allowed sortBy values in documentation order.
var SortableColumns = []string{"createdAt", "eventType", "success", "userEmail", "ipAddress"}

// Params is the raw, string-typed form of an audit read as it arrives from a
// query string.
type Params struct {
	UserEmail string `query:"userEmail"`
	EventType string `query:"eventType"`
	Success   string `query:"success"`
	IPAddress string `query:"ipAddress"`
	SessionID string `query:"sessionId"`
	StartTime string `query:"startTime"`
	EndTime   string `query:"endTime"`
	Page      string `query:"page"`
	Limit     string `query:"limit"`
	SortBy    string `query:"sortBy"`
	SortOrder string `query:"sortOrder"`
}

// Request is a validated Params.
type Request struct {
	Filter    Filter
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
	// LimitSet reports whether the caller supplied limit explicitly.
	LimitSet bool
}

func (r Request) query() Query {
	return Query{
		Filter:     r.Filter,
		SortColumn: sortColumns[r.SortBy],
		SortDesc:   r.SortOrder == "desc",
		Offset:     (r.Page - 1) * r.Limit,
		Limit:      r.Limit,
	}
}

// Parse validates every field before any store access. Any invalid value is
// a validation error naming the offending parameter.
func (p Params) Parse() (Request, error) {
	req := Request{
		SortBy:    "createdAt",
		SortOrder: "desc",
		Page:      1,
		Limit:     DefaultPageSize,
	}

	req.Filter.UserEmail = strings.TrimSpace(p.UserEmail)
	req.Filter.IPAddress = strings.TrimSpace(p.IPAddress)
	req.Filter.SessionID = strings.TrimSpace(p.SessionID)

	if et := strings.TrimSpace(p.EventType); et != "" {
		if len(et) > maxEventTypeLen {
			return Request{}, apperror.Validation(fmt.Sprintf("eventType must be at most %d characters", maxEventTypeLen))
		}
		req.Filter.EventType = et
	}

	if s := strings.TrimSpace(p.Success); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return Request{}, apperror.Validation(fmt.Sprintf("invalid success %q: expected true or false", p.Success))
		}
		req.Filter.Success = &v
	}

	start, err := ParseTime("startTime", p.StartTime, false)
	if err != nil {
		return Request{}, err
	}
	end, err := ParseTime("endTime", p.EndTime, true)
	if err != nil {
		return Request{}, err
	}
	if start != nil && end != nil && start.After(*end) {
		return Request{}, apperror.Validation("startTime must not be after endTime")
	}
	req.Filter.StartTime, req.Filter.EndTime = start, end

	if s := strings.TrimSpace(p.SortBy); s != "" {
		if _, ok := sortColumns[s]; !ok {
			return Request{}, apperror.Validation(fmt.Sprintf("invalid sortBy %q: allowed columns are %s", p.SortBy, strings.Join(SortableColumns, ", ")))
		}
		req.SortBy = s
	}

	if s := strings.ToLower(strings.TrimSpace(p.SortOrder)); s != "" {
		if s != "asc" && s != "desc" {
			return Request{}, apperror.Validation(fmt.Sprintf("invalid sortOrder %q: expected asc or desc", p.SortOrder))
		}
		req.SortOrder = s
	}

	if s := strings.TrimSpace(p.Page); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Request{}, apperror.Validation(fmt.Sprintf("invalid page %q: expected a positive integer", p.Page))
		}
		req.Page = n
	}

	if s := strings.TrimSpace(p.Limit); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Request{}, apperror.Validation(fmt.Sprintf("invalid limit %q: expected a positive integer", p.Limit))
		}
		req.Limit = n
		req.LimitSet = true
	}

	return req, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

const dateLayout = "2006-01-02"

// ParseTime accepts RFC 3339 timestamps or bare dates. A bare date used as
// an upper bound covers the whole day.
func ParseTime(name, raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}

	return nil, apperror.Validation(fmt.Sprintf("invalid %s %q: expected RFC 3339 timestamp or YYYY-MM-DD", name, raw))
}
