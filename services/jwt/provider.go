package jwt

import (
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/fx"
)

func NewJWTService(cfg *config.Config, logger *logging.Service) *Service {
	return NewService(cfg, logger.Named("jwt"))
}

var Options = fx.Options(
	fx.Provide(NewJWTService),
)
