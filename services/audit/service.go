package audit

import (
	"context"
	"io"
	"time"

	"github.com/tech-arch1tect/condoaccess/apperror"
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/zap"
)

// QueryResult is one page of audit events plus counts over the whole
// filtered set.
type QueryResult struct {
	Data       []Event `json:"data"`
	Count      int64   `json:"count"`
	Summary    Summary `json:"summary"`
	SortBy     string  `json:"sortBy"`
	SortOrder  string  `json:"sortOrder"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
}

// ExportMeta describes what an export with the same parameters would
// produce, without reading any rows.
type ExportMeta struct {
	Count          int64 `json:"count"`
	RequestedLimit int   `json:"requestedLimit"`
	MaxLimit       int   `json:"maxLimit"`
	EffectiveLimit int   `json:"effectiveLimit"`
	Truncated      bool  `json:"truncated"`
}

type Service struct {
	store     Store
	exportCap int
	logger    *logging.Service
}

func NewService(store Store, cfg *config.Config, logger *logging.Service) *Service {
	exportCap := config.DefaultExportMaxRows
	if cfg != nil {
		exportCap = cfg.Audit.ExportCap()
	}
	return &Service{store: store, exportCap: exportCap, logger: logger}
}

func (s *Service) ExportCap() int {
	return s.exportCap
}

func (s *Service) QueryEvents(ctx context.Context, params Params) (*QueryResult, error) {
	req, err := params.Parse()
	if err != nil {
		return nil, err
	}
	if req.Limit > MaxPageSize {
		req.Limit = MaxPageSize
	}

	summary, err := s.store.Summarize(ctx, req.Filter)
	if err != nil {
		s.logger.Error("failed to summarise audit events", zap.Error(err))
		return nil, apperror.Store("summarise audit events", err)
	}

	events, err := s.store.Find(ctx, req.query())
	if err != nil {
		s.logger.Error("failed to query audit events", zap.Error(err))
		return nil, apperror.Store("query audit events", err)
	}
	if events == nil {
		events = []Event{}
	}

	return &QueryResult{
		Data:       events,
		Count:      summary.Total,
		Summary:    summary,
		SortBy:     req.SortBy,
		SortOrder:  req.SortOrder,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: totalPages(summary.Total, req.Limit),
	}, nil
}

func totalPages(total int64, limit int) int {
	if total == 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// ExportMeta reports the requested and effective row limits. Truncated is set
// when the request exceeded the cap or when more rows match than will be
// written.
func (s *Service) ExportMeta(ctx context.Context, params Params) (*ExportMeta, error) {
	plan, err := s.PlanExport(ctx, params)
	if err != nil {
		return nil, err
	}
	return &plan.Meta, nil
}

// ExportPlan is a validated export whose meta has been computed. Write runs
// the actual export.
type ExportPlan struct {
	Meta    ExportMeta
	request Request
	store   Store
	logger  *logging.Service
}

func (s *Service) PlanExport(ctx context.Context, params Params) (*ExportPlan, error) {
	req, err := params.Parse()
	if err != nil {
		return nil, err
	}

	requested := s.exportCap
	if req.LimitSet {
		requested = req.Limit
	}
	effective := min(requested, s.exportCap)

	count, err := s.store.Count(ctx, req.Filter)
	if err != nil {
		s.logger.Error("failed to count audit events for export", zap.Error(err))
		return nil, apperror.Store("count audit events", err)
	}

	req.Page = 1
	req.Limit = effective

	return &ExportPlan{
		Meta: ExportMeta{
			Count:          count,
			RequestedLimit: requested,
			MaxLimit:       s.exportCap,
			EffectiveLimit: effective,
			Truncated:      requested > s.exportCap || count > int64(effective),
		},
		request: req,
		store:   s.store,
		logger:  s.logger,
	}, nil
}

// Write streams the CSV export to w and returns the number of data rows.
func (p *ExportPlan) Write(ctx context.Context, w io.Writer) (int, error) {
	cw := newCSVWriter(w)
	if err := cw.WriteRow(ExportHeader); err != nil {
		return 0, err
	}

	written := 0
	err := p.store.Each(ctx, p.request.query(), func(e *Event) error {
		if written >= p.request.Limit {
			return nil
		}
		written++
		return cw.WriteRow(exportRow(e))
	})
	if err == nil {
		err = cw.Flush()
	}
	if err != nil {
		p.logger.Error("audit export failed", zap.Int("rows_written", written), zap.Error(err))
		return written, apperror.Store("export audit events", err)
	}

	p.logger.Info("audit export completed",
		zap.Int("rows", written),
		zap.Bool("truncated", p.Meta.Truncated))
	return written, nil
}

// ExportEvents plans and writes in one step.
func (s *Service) ExportEvents(ctx context.Context, params Params, w io.Writer) (*ExportMeta, error) {
	plan, err := s.PlanExport(ctx, params)
	if err != nil {
		return nil, err
	}
	if _, err := plan.Write(ctx, w); err != nil {
		return nil, err
	}
	return &plan.Meta, nil
}

func exportRow(e *Event) []string {
	success := "false"
	if e.Success {
		success = "true"
	}
	return []string{
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.EventType,
		success,
		deref(e.UserEmail),
		deref(e.SessionID),
		deref(e.IPAddress),
		deref(e.Details),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
