package securitymetrics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/tech-arch1tect/condoaccess/apperror"
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/zap"
)

// LoginSource is the read side of the audit log the aggregator needs.
type LoginSource interface {
	CountLogins(ctx context.Context, start, end time.Time) (total, failed int64, err error)
	GroupLogins(ctx context.Context, dim audit.GroupDimension, start, end time.Time, failedOnly bool) ([]audit.GroupCount, error)
}

type Window struct {
	Hours float64   `json:"hours"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type LoginStats struct {
	Attempts       int64   `json:"attempts"`
	FailedAttempts int64   `json:"failedAttempts"`
	FailureRate    float64 `json:"failureRate"`
}

type IPAttempts struct {
	IPAddress      string  `json:"ipAddress"`
	Attempts       int64   `json:"attempts"`
	FailedAttempts int64   `json:"failedAttempts"`
	FailureRate    float64 `json:"failureRate"`
}

type UserAttempts struct {
	UserEmail      string  `json:"userEmail"`
	Attempts       int64   `json:"attempts"`
	FailedAttempts int64   `json:"failedAttempts"`
	FailureRate    float64 `json:"failureRate"`
}

// Result is a point-in-time view of login activity over a trailing window.
type Result struct {
	GeneratedAt     time.Time      `json:"generatedAt"`
	Window          Window         `json:"window"`
	TopN            int            `json:"topN"`
	Login           LoginStats     `json:"login"`
	TopIPAttempts   []IPAttempts   `json:"topIpAttempts"`
	TopUserAttempts []UserAttempts `json:"topUserAttempts"`
}

// Aggregator computes windowed login statistics. It only reads, so it is
// safe for concurrent use.
type Aggregator struct {
	source        LoginSource
	defaultWindow float64
	defaultTopN   int
	logger        *logging.Service
}

func NewAggregator(source LoginSource, cfg *config.Config, logger *logging.Service) *Aggregator {
	a := &Aggregator{
		source:        source,
		defaultWindow: config.DefaultWindowHours,
		defaultTopN:   config.DefaultTopN,
		logger:        logger,
	}
	if cfg != nil {
		a.defaultWindow = float64(cfg.Metrics.DefaultWindow())
		a.defaultTopN = cfg.Metrics.DefaultTop()
	}
	return a
}

// NormalizeWindowHours clamps to (0, 336]. Non-finite or non-positive input
// yields def.
func NormalizeWindowHours(v, def float64) float64 {
	if !config.IsFinite(v) || v <= 0 {
		return def
	}
	return math.Min(v, config.MaxWindowHours)
}

// NormalizeTopN clamps to [1, 100], flooring fractions. Non-finite or
// non-positive input yields def.
func NormalizeTopN(v float64, def int) int {
	if !config.IsFinite(v) || v <= 0 {
		return def
	}
	if v > config.MaxTopN {
		return config.MaxTopN
	}
	return max(1, int(math.Floor(v)))
}

// FailureRate is failed/total as a percentage rounded to two decimals, or 0
// when total is 0.
func FailureRate(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(failed)/float64(total)*10000) / 100
}

func (a *Aggregator) ComputeMetrics(ctx context.Context, windowHours, topN float64, now time.Time) (*Result, error) {
	hours := NormalizeWindowHours(windowHours, a.defaultWindow)
	n := NormalizeTopN(topN, a.defaultTopN)

	end := now.UTC()
	start := end.Add(-time.Duration(hours * float64(time.Hour)))

	total, failed, err := a.source.CountLogins(ctx, start, end)
	if err != nil {
		a.logger.Error("failed to count login attempts", zap.Error(err))
		return nil, apperror.Store("count login attempts", err)
	}

	byIP, err := a.ranked(ctx, audit.ByIPAddress, start, end, n)
	if err != nil {
		return nil, err
	}
	byUser, err := a.ranked(ctx, audit.ByUserEmail, start, end, n)
	if err != nil {
		return nil, err
	}

	result := &Result{
		GeneratedAt: end,
		Window:      Window{Hours: hours, Start: start, End: end},
		TopN:        n,
		Login: LoginStats{
			Attempts:       total,
			FailedAttempts: failed,
			FailureRate:    FailureRate(failed, total),
		},
		TopIPAttempts:   make([]IPAttempts, len(byIP)),
		TopUserAttempts: make([]UserAttempts, len(byUser)),
	}
	for i, r := range byIP {
		result.TopIPAttempts[i] = IPAttempts{IPAddress: r.key, Attempts: r.attempts, FailedAttempts: r.failed, FailureRate: r.rate}
	}
	for i, r := range byUser {
		result.TopUserAttempts[i] = UserAttempts{UserEmail: r.key, Attempts: r.attempts, FailedAttempts: r.failed, FailureRate: r.rate}
	}
	return result, nil
}

type rankedRow struct {
	key      string
	attempts int64
	failed   int64
	rate     float64
}

// ranked joins attempt and failure buckets for one dimension, orders by
// attempts descending and keeps the first n.
func (a *Aggregator) ranked(ctx context.Context, dim audit.GroupDimension, start, end time.Time, n int) ([]rankedRow, error) {
	attempts, err := a.source.GroupLogins(ctx, dim, start, end, false)
	if err != nil {
		a.logger.Error("failed to group login attempts", zap.String("dimension", string(dim)), zap.Error(err))
		return nil, apperror.Store("group login attempts", err)
	}
	failures, err := a.source.GroupLogins(ctx, dim, start, end, true)
	if err != nil {
		a.logger.Error("failed to group failed logins", zap.String("dimension", string(dim)), zap.Error(err))
		return nil, apperror.Store("group failed logins", err)
	}

	failedBy := make(map[string]int64, len(failures))
	for _, f := range failures {
		failedBy[f.Key] = f.Attempts
	}

	rows := make([]rankedRow, len(attempts))
	for i, g := range attempts {
		failed := failedBy[g.Key]
		rows[i] = rankedRow{key: g.Key, attempts: g.Attempts, failed: failed, rate: FailureRate(failed, g.Attempts)}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].attempts > rows[j].attempts })

	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}
