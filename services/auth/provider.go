package auth

import (
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"github.com/tech-arch1tect/condoaccess/services/refreshsession"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAuthService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return NewService(cfg, db, logger.Named("auth"))
}

var Module = fx.Options(
	fx.Provide(
		ProvideAuthService,
		func(s *Service) refreshsession.Authenticator { return s },
	),
)
