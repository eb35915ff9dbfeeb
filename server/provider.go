package server

import (
	"context"

	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/fx"
)

func ProvideServer(cfg *config.Config, logger *logging.Service) *Server {
	return New(cfg, logger.Named("server"))
}

// RegisterLifecycle starts the server after every route has been registered
// by earlier invokes.
func RegisterLifecycle(lc fx.Lifecycle, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return srv.Start()
		},
		OnStop: srv.Shutdown,
	})
}

var Options = fx.Options(
	fx.Provide(ProvideServer),
)

var Lifecycle = fx.Invoke(RegisterLifecycle)
