package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/condoaccess/apperror"
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/services/securitymetrics"
)

const (
	HeaderExportCount          = "X-Export-Count"
	HeaderExportRequestedLimit = "X-Export-Requested-Limit"
	HeaderExportMaxLimit       = "X-Export-Max-Limit"
	HeaderExportEffectiveLimit = "X-Export-Effective-Limit"
	HeaderExportTruncated      = "X-Export-Truncated"
)

var queryBinder = &echo.DefaultBinder{}

func bindQuery(c echo.Context, dst any) error {
	if err := queryBinder.BindQueryParams(c, dst); err != nil {
		return apperror.Validation("invalid query parameters")
	}
	return nil
}

func (h *Handler) QueryAudit(c echo.Context) error {
	var params audit.Params
	if err := bindQuery(c, &params); err != nil {
		return err
	}

	result, err := h.audit.QueryEvents(c.Request().Context(), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ExportMeta(c echo.Context) error {
	var params audit.Params
	if err := bindQuery(c, &params); err != nil {
		return err
	}

	meta, err := h.audit.ExportMeta(c.Request().Context(), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meta)
}

// ExportAudit streams CSV. Meta travels in headers because the body is
// already being written when the row count is known.
func (h *Handler) ExportAudit(c echo.Context) error {
	var params audit.Params
	if err := bindQuery(c, &params); err != nil {
		return err
	}

	ctx := c.Request().Context()
	plan, err := h.audit.PlanExport(ctx, params)
	if err != nil {
		return err
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="audit-%s.csv"`, time.Now().UTC().Format("20060102-150405")))
	header.Set(HeaderExportCount, strconv.FormatInt(plan.Meta.Count, 10))
	header.Set(HeaderExportRequestedLimit, strconv.Itoa(plan.Meta.RequestedLimit))
	header.Set(HeaderExportMaxLimit, strconv.Itoa(plan.Meta.MaxLimit))
	header.Set(HeaderExportEffectiveLimit, strconv.Itoa(plan.Meta.EffectiveLimit))
	header.Set(HeaderExportTruncated, strconv.FormatBool(plan.Meta.Truncated))
	c.Response().WriteHeader(http.StatusOK)

	// Past this point the status is committed and a failure only shows as a
	// short body; the error handler logs it.
	_, err = plan.Write(ctx, c.Response())
	return err
}

// metricInputs reads windowHours and topN. Missing or malformed values
// become NaN so the aggregator applies its defaults.
func metricInputs(c echo.Context) (windowHours, topN float64) {
	return config.ParseNumber(c.QueryParam("windowHours")), config.ParseNumber(c.QueryParam("topN"))
}

func (h *Handler) Metrics(c echo.Context) error {
	windowHours, topN := metricInputs(c)

	result, err := h.metrics.ComputeMetrics(c.Request().Context(), windowHours, topN)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

type HistoryResponse struct {
	Data  []securitymetrics.Snapshot `json:"data"`
	Count int                        `json:"count"`
}

func (h *Handler) MetricsHistory(c echo.Context) error {
	var params securitymetrics.HistoryParams
	if err := bindQuery(c, &params); err != nil {
		return err
	}
	filter, limit, err := params.Parse()
	if err != nil {
		return err
	}

	snapshots, err := h.metrics.ListSnapshotHistory(c.Request().Context(), filter, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HistoryResponse{Data: snapshots, Count: len(snapshots)})
}

func (h *Handler) CreateSnapshot(c echo.Context) error {
	windowHours, topN := metricInputs(c)

	snapshot, err := h.metrics.CreateSnapshot(c.Request().Context(), windowHours, topN)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, snapshot)
}

type PruneResponse struct {
	Audit     *securitymetrics.PruneResult `json:"audit,omitempty"`
	Snapshots *securitymetrics.PruneResult `json:"snapshots,omitempty"`
}

// Prune applies retention. Retention values that do not parse fall back to
// the configured defaults; target must be all, audit or snapshots.
func (h *Handler) Prune(c echo.Context) error {
	target := strings.ToLower(strings.TrimSpace(c.QueryParam("target")))
	if target == "" {
		target = "all"
	}
	if target != "all" && target != "audit" && target != "snapshots" {
		return apperror.Validation(fmt.Sprintf("invalid target %q: expected all, audit or snapshots", c.QueryParam("target")))
	}

	ctx := c.Request().Context()
	var resp PruneResponse

	if target != "snapshots" {
		res, err := h.metrics.PruneAuditEvents(ctx, config.ParseNumber(c.QueryParam("auditRetentionDays")))
		if err != nil {
			return err
		}
		resp.Audit = res
	}
	if target != "audit" {
		res, err := h.metrics.PruneSnapshots(ctx, config.ParseNumber(c.QueryParam("snapshotRetentionDays")))
		if err != nil {
			return err
		}
		resp.Snapshots = res
	}
	return c.JSON(http.StatusOK, resp)
}
