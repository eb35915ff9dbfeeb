package securitymetrics

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/zap"
)

// Scheduler runs periodic snapshots and retention pruning. An interval of
// zero disables the corresponding worker.
type Scheduler struct {
	svc           *Service
	snapshotEvery time.Duration
	pruneEvery    time.Duration
	logger        *logging.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(svc *Service, cfg *config.Config, logger *logging.Service) *Scheduler {
	return &Scheduler{
		svc:           svc,
		snapshotEvery: cfg.Snapshot.IntervalDuration(),
		pruneEvery:    cfg.Snapshot.PruneIntervalDuration(),
		logger:        logger,
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.run(ctx, "snapshot", s.snapshotEvery, s.SnapshotOnce)
	s.run(ctx, "prune", s.pruneEvery, s.PruneOnce)
}

// Stop cancels the workers and waits for an in-flight run to finish or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(ctx context.Context, name string, interval time.Duration, job func(context.Context)) {
	if interval <= 0 {
		s.logger.Info("scheduled job disabled", zap.String("job", name))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				job(ctx)
			}
		}
	}()

	s.logger.Info("started scheduled job", zap.String("job", name), zap.Duration("interval", interval))
}

// SnapshotOnce stores a snapshot with the default window and evaluates
// alerts against it.
func (s *Scheduler) SnapshotOnce(ctx context.Context) {
	snapshot, err := s.svc.CreateSnapshot(ctx, math.NaN(), math.NaN())
	if err != nil {
		s.logger.Error("scheduled snapshot failed", zap.Error(err))
		return
	}
	if s.svc.alerter != nil {
		// Evaluate logs its own delivery failures.
		_, _ = s.svc.alerter.Evaluate(ctx, snapshot)
	}
}

// PruneOnce applies the configured retention to both tables.
func (s *Scheduler) PruneOnce(ctx context.Context) {
	if _, err := s.svc.PruneAuditEvents(ctx, math.NaN()); err != nil {
		s.logger.Error("scheduled audit prune failed", zap.Error(err))
	}
	if _, err := s.svc.PruneSnapshots(ctx, math.NaN()); err != nil {
		s.logger.Error("scheduled snapshot prune failed", zap.Error(err))
	}
}
