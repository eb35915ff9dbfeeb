package audit

import (
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/instrumentation"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideStore(db *gorm.DB) Store {
	return NewGormStore(db)
}

func ProvideRecorder(store Store, cfg *config.Config, logger *logging.Service, metrics *instrumentation.Metrics) *Recorder {
	r := NewRecorder(store, cfg, logger.Named("audit"))
	r.SetMetrics(metrics)
	return r
}

func ProvideService(store Store, cfg *config.Config, logger *logging.Service) *Service {
	return NewService(store, cfg, logger.Named("audit"))
}

var Options = fx.Options(
	fx.Provide(ProvideStore, ProvideRecorder, ProvideService),
)
