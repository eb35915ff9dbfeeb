package securitymetrics

import (
	"context"

	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/services/instrumentation"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"github.com/tech-arch1tect/condoaccess/services/mail"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideSnapshotStore(db *gorm.DB) SnapshotStore {
	return NewGormSnapshotStore(db)
}

func ProvideAggregator(store audit.Store, cfg *config.Config, logger *logging.Service) *Aggregator {
	return NewAggregator(store, cfg, logger.Named("metrics"))
}

type serviceParams struct {
	fx.In

	Aggregator *Aggregator
	Snapshots  SnapshotStore
	Audit      audit.Store
	Config     *config.Config
	Logger     *logging.Service
	Metrics    *instrumentation.Metrics `optional:"true"`
	Mail       *mail.Service            `optional:"true"`
}

func ProvideService(p serviceParams) *Service {
	logger := p.Logger.Named("metrics")
	svc := NewService(p.Aggregator, p.Snapshots, p.Audit, p.Config, logger)
	svc.SetMetrics(p.Metrics)
	if p.Mail != nil {
		svc.SetAlerter(NewAlerter(p.Mail, p.Config, logger.Named("alerts")))
	}
	return svc
}

func ProvideScheduler(svc *Service, cfg *config.Config, logger *logging.Service) *Scheduler {
	return NewScheduler(svc, cfg, logger.Named("scheduler"))
}

// RegisterScheduler ties the background jobs to the application lifecycle.
func RegisterScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: s.Stop,
	})
}

var Options = fx.Options(
	fx.Provide(ProvideSnapshotStore, ProvideAggregator, ProvideService, ProvideScheduler),
)

// SchedulerModule starts the periodic jobs. Commands that only need the
// service leave it out.
var SchedulerModule = fx.Invoke(RegisterScheduler)
