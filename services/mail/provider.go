package mail

import (
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/fx"
)

// ProvideMailService returns nil when mail is disabled; consumers treat a
// nil service as "no delivery".
func ProvideMailService(cfg *config.Config, logger *logging.Service) (*Service, error) {
	if !cfg.Mail.Enabled {
		logger.Info("mail disabled")
		return nil, nil
	}
	return NewService(&cfg.Mail, logger.Named("mail"))
}

var Module = fx.Options(
	fx.Provide(ProvideMailService),
)
