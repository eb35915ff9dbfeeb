package api

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/condoaccess/config"
	jwtmw "github.com/tech-arch1tect/condoaccess/middleware/jwt"
	"github.com/tech-arch1tect/condoaccess/middleware/ratelimit"
	"github.com/tech-arch1tect/condoaccess/openapi"
	"github.com/tech-arch1tect/condoaccess/server"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/services/auth"
	"github.com/tech-arch1tect/condoaccess/services/instrumentation"
	"github.com/tech-arch1tect/condoaccess/services/jwt"
)

const Prefix = "/api"

// Routes holds what route registration needs beyond the handler itself.
type Routes struct {
	Handler  *Handler
	JWT      *jwt.Service
	Limiter  ratelimit.Store
	Recorder *audit.Recorder
	Config   *config.Config
	Metrics  *instrumentation.Metrics
	Docs     *openapi.OpenAPI
}

// Register mounts every endpoint on e.
func (r *Routes) Register(e *echo.Echo) {
	h := r.Handler

	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(r.Metrics.Handler()))

	api := e.Group(Prefix)
	if r.Docs != nil {
		api.GET("/openapi.json", r.Docs.JSONHandler())
		api.GET("/openapi.yaml", r.Docs.YAMLHandler())
	}

	var recorder ratelimit.AuditRecorder
	if r.Recorder != nil {
		recorder = r.Recorder
	}

	public := api.Group("/auth")
	public.POST("/login", h.Login, ratelimit.Login(r.Config, r.Limiter, recorder))
	public.POST("/refresh", h.Refresh)
	public.POST("/logout", h.Logout)

	self := api.Group("/auth", jwtmw.RequireJWT(r.JWT))
	self.POST("/logout-all", h.LogoutAll)
	self.GET("/sessions", h.ListSessions)
	self.DELETE("/sessions/:id", h.RevokeSession)

	admin := api.Group("/admin", jwtmw.RequireJWT(r.JWT), jwtmw.RequireRole(auth.RoleAdmin))
	admin.GET("/audit", h.QueryAudit)
	admin.GET("/audit/export/meta", h.ExportMeta)
	admin.GET("/audit/export", h.ExportAudit)
	admin.GET("/metrics", h.Metrics)
	admin.GET("/metrics/history", h.MetricsHistory)
	admin.POST("/metrics/snapshots", h.CreateSnapshot)
	admin.POST("/retention/prune", h.Prune)
}

// RegisterServer mounts the routes on srv.
func RegisterServer(srv *server.Server, r *Routes) {
	r.Register(srv.Echo())
}
