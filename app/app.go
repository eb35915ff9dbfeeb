package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/server"
	"github.com/tech-arch1tect/condoaccess/services/auth"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"github.com/tech-arch1tect/condoaccess/services/refreshsession"
	"github.com/tech-arch1tect/condoaccess/services/securitymetrics"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type App struct {
	fx     *fx.App
	config *config.Config
	logger *logging.Service

	db        *gorm.DB
	server    *server.Server
	users     *auth.Service
	sessions  *refreshsession.Service
	telemetry *securitymetrics.Service
}

// Start runs every OnStart hook: the database is opened and, when enabled,
// the HTTP server and scheduler begin.
func (a *App) Start(ctx context.Context) error {
	return a.fx.Start(ctx)
}

// Run starts the app and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	if err := a.Start(context.Background()); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	if a.logger != nil {
		a.logger.Infof("received %s, stopping gracefully", sig)
	} else {
		log.Printf("Received signal %v, shutting down gracefully...", sig)
	}

	return a.Stop()
}

func (a *App) Stop() error {
	timeout := a.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.fx.Stop(ctx); err != nil {
		if a.logger != nil {
			a.logger.Warnf("failed to stop application gracefully: %v", err)
		} else {
			log.Printf("Failed to stop application gracefully: %v", err)
		}
		return err
	}
	return nil
}

// Server is nil unless the app was built WithHTTP.
func (a *App) Server() *server.Server {
	return a.server
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Users() *auth.Service {
	return a.users
}

func (a *App) Sessions() *refreshsession.Service {
	return a.sessions
}

func (a *App) Telemetry() *securitymetrics.Service {
	return a.telemetry
}
