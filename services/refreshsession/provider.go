package refreshsession

import (
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/services/instrumentation"
	"github.com/tech-arch1tect/condoaccess/services/jwt"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideStore(db *gorm.DB) Store {
	return NewGormStore(db)
}

type serviceParams struct {
	fx.In

	Store    Store
	Auth     Authenticator
	JWT      *jwt.Service
	Recorder *audit.Recorder
	Config   *config.Config
	Logger   *logging.Service
	Metrics  *instrumentation.Metrics `optional:"true"`
}

func ProvideService(p serviceParams) *Service {
	svc := NewService(p.Store, p.Auth, p.JWT, p.Recorder, p.Config, p.Logger.Named("sessions"))
	svc.SetMetrics(p.Metrics)
	return svc
}

var Options = fx.Options(
	fx.Provide(ProvideStore, ProvideService),
)
