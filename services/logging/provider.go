package logging

import (
	"context"

	"github.com/tech-arch1tect/condoaccess/config"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewLoggingService),
	fx.Invoke(RegisterSync),
)

func NewLoggingService(cfg *config.Config) (*Service, error) {
	return NewService(Config{
		Level:      LogLevel(cfg.Log.Level),
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.Output,
	})
}

// RegisterSync flushes buffered entries on shutdown.
func RegisterSync(lc fx.Lifecycle, log *Service) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// stdout sync returns EINVAL on some platforms
			_ = log.Sync()
			return nil
		},
	})
}
