package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"github.com/tech-arch1tect/condoaccess/services/refreshsession"
	"github.com/tech-arch1tect/condoaccess/services/securitymetrics"
	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	sessions *refreshsession.Service
	audit    *audit.Service
	metrics  *securitymetrics.Service
	db       Pinger
	logger   *logging.Service
}

// NewHandler wires the services behind every endpoint. db may be nil, in
// which case health checks skip the database probe.
func NewHandler(sessions *refreshsession.Service, auditSvc *audit.Service, metrics *securitymetrics.Service, db Pinger, logger *logging.Service) *Handler {
	return &Handler{
		sessions: sessions,
		audit:    auditSvc,
		metrics:  metrics,
		db:       db,
		logger:   logger,
	}
}

func clientInfo(c echo.Context) refreshsession.ClientInfo {
	return refreshsession.ClientInfo{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

func (h *Handler) Health(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Database: "ok"}
	if h.db != nil {
		if err := h.db.PingContext(c.Request().Context()); err != nil {
			h.logger.Warn("health check: database unreachable", zap.Error(err))
			resp.Status, resp.Database = "degraded", "unreachable"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}
