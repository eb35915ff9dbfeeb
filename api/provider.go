package api

import (
	"context"

	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/middleware/ratelimit"
	"github.com/tech-arch1tect/condoaccess/openapi"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/services/instrumentation"
	"github.com/tech-arch1tect/condoaccess/services/jwt"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"github.com/tech-arch1tect/condoaccess/services/refreshsession"
	"github.com/tech-arch1tect/condoaccess/services/securitymetrics"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// gormPinger pings the connection pool behind a gorm handle.
type gormPinger struct {
	db *gorm.DB
}

func (p gormPinger) PingContext(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type handlerParams struct {
	fx.In

	Sessions *refreshsession.Service
	Audit    *audit.Service
	Metrics  *securitymetrics.Service
	DB       *gorm.DB `optional:"true"`
	Logger   *logging.Service
}

func ProvideHandler(p handlerParams) *Handler {
	var db Pinger
	if p.DB != nil {
		db = gormPinger{db: p.DB}
	}
	return NewHandler(p.Sessions, p.Audit, p.Metrics, db, p.Logger.Named("api"))
}

func ProvideDocs(cfg *config.Config) *openapi.OpenAPI {
	return NewDocs(cfg.App.Name, cfg.App.URL)
}

type routesParams struct {
	fx.In

	Handler  *Handler
	JWT      *jwt.Service
	Limiter  ratelimit.Store
	Recorder *audit.Recorder `optional:"true"`
	Config   *config.Config
	Metrics  *instrumentation.Metrics `optional:"true"`
	Docs     *openapi.OpenAPI         `optional:"true"`
}

func ProvideRoutes(p routesParams) *Routes {
	return &Routes{
		Handler:  p.Handler,
		JWT:      p.JWT,
		Limiter:  p.Limiter,
		Recorder: p.Recorder,
		Config:   p.Config,
		Metrics:  p.Metrics,
		Docs:     p.Docs,
	}
}

var Options = fx.Options(
	fx.Provide(
		ProvideHandler,
		ProvideDocs,
		ProvideRoutes,
		ratelimit.ProvideRateLimitStore,
	),
)

// Mount registers the routes on the server. It must run before the server
// lifecycle hook.
var Mount = fx.Invoke(RegisterServer)
