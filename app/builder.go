package app

import (
	"errors"
	"fmt"

	"github.com/tech-arch1tect/condoaccess/api"
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/database"
	"github.com/tech-arch1tect/condoaccess/server"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/services/auth"
	"github.com/tech-arch1tect/condoaccess/services/instrumentation"
	"github.com/tech-arch1tect/condoaccess/services/jwt"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"github.com/tech-arch1tect/condoaccess/services/mail"
	"github.com/tech-arch1tect/condoaccess/services/refreshsession"
	"github.com/tech-arch1tect/condoaccess/services/securitymetrics"
	"go.uber.org/fx"
)

// Models are migrated on startup when DATABASE_AUTO_MIGRATE is set.
var Models = []any{
	&auth.User{},
	&refreshsession.RefreshSession{},
	&audit.Event{},
	&securitymetrics.Snapshot{},
}

type AppBuilder struct {
	config    *config.Config
	logger    *logging.Service
	services  map[string]bool
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		services:  make(map[string]bool),
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithLogger replaces the logger built from the log config.
func (b *AppBuilder) WithLogger(logger *logging.Service) *AppBuilder {
	b.logger = logger
	return b
}

// WithHTTP serves the API. The server starts after every route is mounted.
func (b *AppBuilder) WithHTTP() *AppBuilder {
	b.services["http"] = true
	return b
}

// WithScheduler runs periodic snapshots and retention pruning.
func (b *AppBuilder) WithScheduler() *AppBuilder {
	b.services["scheduler"] = true
	return b
}

// WithMail enables failure-rate alert mail. It still needs MAIL_ENABLED.
func (b *AppBuilder) WithMail() *AppBuilder {
	b.services["mail"] = true
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if err := b.WithAutoConfig().validate(); err != nil {
			return nil, err
		}
	}

	logger := b.logger
	if logger == nil {
		var err error
		logger, err = logging.NewLoggingService(b.config)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	app := &App{
		config: b.config,
		logger: logger,
	}

	options := b.buildFxOptions(logger)
	options = append(options, fx.Populate(&app.db, &app.users, &app.sessions, &app.telemetry))
	if b.services["http"] {
		options = append(options, fx.Populate(&app.server))
	}

	fxApp := fx.New(options...)
	if err := fxApp.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}
	app.fx = fxApp

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, errors.New(msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %w", errors.Join(b.errors...))
	}

	if b.config != nil && b.config.JWT.SecretKey == "" {
		return errors.New("JWT_SECRET_KEY is required")
	}

	return nil
}

func (b *AppBuilder) buildFxOptions(logger *logging.Service) []fx.Option {
	options := []fx.Option{
		fx.Supply(b.config),
		fx.Supply(logger),
		fx.Supply(database.WithModels(Models...)),
		fx.NopLogger,

		database.Module,
		instrumentation.Options,
		jwt.Options,
		auth.Module,
		audit.Options,
		refreshsession.Options,
		securitymetrics.Options,
	}

	if b.services["mail"] {
		options = append(options, mail.Module)
	}

	if b.services["http"] {
		options = append(options, server.Options, api.Options, api.Mount, server.Lifecycle)
	}

	if b.services["scheduler"] {
		options = append(options, securitymetrics.SchedulerModule)
	}

	options = append(options, b.fxOptions...)
	options = append(options, fx.Invoke(logging.RegisterSync))

	return options
}
