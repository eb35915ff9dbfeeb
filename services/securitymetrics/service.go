package securitymetrics

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tech-arch1tect/condoaccess/apperror"
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/services/instrumentation"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000

	// maxRetentionDays keeps the cutoff arithmetic inside time.Duration.
	maxRetentionDays = 36500

	TableAuditEvents = "session_audit_events"
	TableSnapshots   = "security_metric_snapshots"
)

// AuditPruner deletes audit rows older than a cutoff.
type AuditPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type PruneResult struct {
	Table         string    `json:"table"`
	RetentionDays float64   `json:"retentionDays"`
	Cutoff        time.Time `json:"cutoff"`
	Deleted       int64     `json:"deleted"`
}

// Service persists metric snapshots and applies retention to the audit log
// and to the snapshots themselves.
type Service struct {
	aggregator *Aggregator
	snapshots  SnapshotStore
	audit      AuditPruner
	cfg        *config.Config
	logger     *logging.Service
	metrics    *instrumentation.Metrics
	alerter    *Alerter
	now        func() time.Time
}

func NewService(aggregator *Aggregator, snapshots SnapshotStore, auditPruner AuditPruner, cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		aggregator: aggregator,
		snapshots:  snapshots,
		audit:      auditPruner,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) SetMetrics(m *instrumentation.Metrics) {
	s.metrics = m
}

// SetAlerter enables failure-rate alerts on scheduled snapshots.
func (s *Service) SetAlerter(a *Alerter) {
	s.alerter = a
}

func (s *Service) ComputeMetrics(ctx context.Context, windowHours, topN float64) (*Result, error) {
	return s.aggregator.ComputeMetrics(ctx, windowHours, topN, s.now())
}

// CreateSnapshot computes metrics with the same normalization as
// ComputeMetrics and stores the result.
func (s *Service) CreateSnapshot(ctx context.Context, windowHours, topN float64) (*Snapshot, error) {
	result, err := s.ComputeMetrics(ctx, windowHours, topN)
	if err != nil {
		return nil, err
	}

	snapshot := NewSnapshot(result)
	if err := s.snapshots.Create(ctx, snapshot); err != nil {
		s.logger.Error("failed to store metrics snapshot", zap.Error(err))
		return nil, apperror.Store("create snapshot", err)
	}

	s.metrics.SnapshotCreated(snapshot.LoginAttempts, snapshot.LoginFailureRate)
	s.logger.Info("metrics snapshot created",
		zap.Uint("snapshot_id", snapshot.ID),
		zap.Float64("window_hours", snapshot.WindowHours),
		zap.Int64("login_attempts", snapshot.LoginAttempts),
		zap.Float64("failure_rate", snapshot.LoginFailureRate))
	return snapshot, nil
}

// HistoryParams is the raw query-string form of a history read.
type HistoryParams struct {
	WindowHours string `query:"windowHours"`
	StartTime   string `query:"startTime"`
	EndTime     string `query:"endTime"`
	Limit       string `query:"limit"`
}

// Parse validates the filter. Unlike metric inputs, malformed history
// filters are rejected rather than defaulted.
func (p HistoryParams) Parse() (HistoryFilter, int, error) {
	var f HistoryFilter
	limit := DefaultHistoryLimit

	if raw := strings.TrimSpace(p.WindowHours); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || !config.IsFinite(v) || v <= 0 || v > config.MaxWindowHours {
			return f, 0, apperror.Validation(fmt.Sprintf("invalid windowHours %q: expected a number in (0, %d]", p.WindowHours, config.MaxWindowHours))
		}
		f.WindowHours = &v
	}

	start, err := audit.ParseTime("startTime", p.StartTime, false)
	if err != nil {
		return f, 0, err
	}
	end, err := audit.ParseTime("endTime", p.EndTime, true)
	if err != nil {
		return f, 0, err
	}
	if start != nil && end != nil && start.After(*end) {
		return f, 0, apperror.Validation("startTime must not be after endTime")
	}
	f.StartTime, f.EndTime = start, end

	if raw := strings.TrimSpace(p.Limit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, 0, apperror.Validation(fmt.Sprintf("invalid limit %q: expected a positive integer", p.Limit))
		}
		limit = min(n, MaxHistoryLimit)
	}
	return f, limit, nil
}

// ListSnapshotHistory returns the most recent matching snapshots in
// chronological order.
func (s *Service) ListSnapshotHistory(ctx context.Context, f HistoryFilter, limit int) ([]Snapshot, error) {
	if limit < 1 {
		limit = DefaultHistoryLimit
	}
	limit = min(limit, MaxHistoryLimit)

	snapshots, err := s.snapshots.Newest(ctx, f, limit)
	if err != nil {
		s.logger.Error("failed to list metrics snapshots", zap.Error(err))
		return nil, apperror.Store("list snapshots", err)
	}
	slices.Reverse(snapshots)
	return snapshots, nil
}

// Cutoff is now minus retentionDays whole or fractional days.
func Cutoff(now time.Time, retentionDays float64) time.Time {
	days := math.Min(retentionDays, maxRetentionDays)
	return now.UTC().Add(-time.Duration(days * float64(24*time.Hour)))
}

// PruneAuditEvents deletes audit rows created strictly before the cutoff.
// Negative retention clamps to zero. Non-finite retention falls back to the
// configured default.
func (s *Service) PruneAuditEvents(ctx context.Context, retentionDays float64) (*PruneResult, error) {
	fallback := float64(config.DefaultAuditRetention)
	if s.cfg != nil {
		fallback = s.cfg.Audit.RetentionDaysValue()
	}
	return s.prune(ctx, TableAuditEvents, config.NonNegativeDays(retentionDays, fallback), s.audit.DeleteBefore)
}

// PruneSnapshots deletes snapshots generated strictly before the cutoff.
func (s *Service) PruneSnapshots(ctx context.Context, retentionDays float64) (*PruneResult, error) {
	fallback := float64(config.DefaultSnapshotRetention)
	if s.cfg != nil {
		fallback = s.cfg.Snapshot.RetentionDaysValue()
	}
	return s.prune(ctx, TableSnapshots, config.NonNegativeDays(retentionDays, fallback), s.snapshots.DeleteBefore)
}

func (s *Service) prune(ctx context.Context, table string, days float64, del func(context.Context, time.Time) (int64, error)) (*PruneResult, error) {
	cutoff := Cutoff(s.now(), days)

	deleted, err := del(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to prune rows", zap.String("table", table), zap.Error(err))
		return nil, apperror.Store("prune "+table, err)
	}

	s.metrics.RowsPruned(table, deleted)
	s.logger.Info("pruned rows",
		zap.String("table", table),
		zap.Float64("retention_days", days),
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted))

	return &PruneResult{Table: table, RetentionDays: days, Cutoff: cutoff, Deleted: deleted}, nil
}
