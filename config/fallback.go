package config

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultRefreshTTL        = 7 * 24 * time.Hour
	DefaultAccessTTL         = 15 * time.Minute
	DefaultMaxActiveSessions = 5
	MaxActiveSessionsCeiling = 100
	MinTokenBytes            = 48
	DefaultAuditRetention    = 90
	DefaultSnapshotRetention = 30
	DefaultExportMaxRows     = 20000
	DefaultWindowHours       = 24
	MaxWindowHours           = 336
	DefaultTopN              = 10
	MaxTopN                  = 100
	DefaultSnapshotInterval  = time.Hour
	DefaultPruneInterval     = 24 * time.Hour
)

var ttlPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseTTL reads durations of the form <integer>[smhd]. Anything else,
// including zero, yields fallback.
func ParseTTL(s string, fallback time.Duration) time.Duration {
	m := ttlPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return fallback
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}

	unit := time.Second
	switch m[2] {
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	if n > int64(math.MaxInt64/unit) {
		return fallback
	}
	return time.Duration(n) * unit
}

// ParseInterval accepts the TTL form or a Go duration. "0" and "off" disable.
func ParseInterval(s string, fallback time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	switch s {
	case "0", "off", "disabled":
		return 0
	}
	if d := ParseTTL(s, 0); d > 0 {
		return d
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	return fallback
}

// ParseNumber returns NaN for anything strconv cannot read so callers can
// route it through their own fallback rule.
func ParseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// IntInRange parses s as an integer in [min, max]; otherwise fallback.
func IntInRange(s string, min, max, fallback int) int {
	v := ParseNumber(s)
	if !IsFinite(v) {
		return fallback
	}
	n := int(math.Floor(v))
	if n < min || n > max {
		return fallback
	}
	return n
}

// NonNegativeDays clamps to >= 0; non-finite values yield fallback.
func NonNegativeDays(v float64, fallback float64) float64 {
	if !IsFinite(v) {
		return fallback
	}
	if v < 0 {
		return 0
	}
	return v
}

func (c SessionConfig) RefreshTTLDuration() time.Duration {
	return ParseTTL(c.RefreshTTL, DefaultRefreshTTL)
}

func (c SessionConfig) AccessTTLDuration() time.Duration {
	return ParseTTL(c.AccessTTL, DefaultAccessTTL)
}

func (c SessionConfig) MaxActiveSessions() int {
	return IntInRange(c.MaxActive, 1, MaxActiveSessionsCeiling, DefaultMaxActiveSessions)
}

func (c SessionConfig) TokenLength() int {
	n := IntInRange(c.TokenBytes, MinTokenBytes, 1024, MinTokenBytes)
	return n
}

func (c AuditConfig) RetentionDaysValue() float64 {
	return NonNegativeDays(ParseNumber(c.RetentionDays), DefaultAuditRetention)
}

func (c AuditConfig) ExportCap() int {
	return IntInRange(c.ExportMaxRows, 1, 1_000_000, DefaultExportMaxRows)
}

func (c MetricsConfig) DefaultWindow() int {
	return IntInRange(c.WindowHours, 1, MaxWindowHours, DefaultWindowHours)
}

func (c MetricsConfig) DefaultTop() int {
	return IntInRange(c.TopN, 1, MaxTopN, DefaultTopN)
}

func (c SnapshotConfig) IntervalDuration() time.Duration {
	return ParseInterval(c.Interval, DefaultSnapshotInterval)
}

func (c SnapshotConfig) PruneIntervalDuration() time.Duration {
	return ParseInterval(c.PruneInterval, DefaultPruneInterval)
}

func (c SnapshotConfig) RetentionDaysValue() float64 {
	return NonNegativeDays(ParseNumber(c.RetentionDays), DefaultSnapshotRetention)
}
