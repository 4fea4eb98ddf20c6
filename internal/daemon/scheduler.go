package daemon

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"mindcast/internal/config"
	"mindcast/internal/logging"
	"mindcast/internal/remaster"
	"mindcast/internal/sweep"
)

// scheduler drives the periodic sweep and remaster passes off cron
// expressions. A trigger is skipped while its previous run is still in
// flight; the jobs tolerate overlap anyway, this just avoids piling up
// goroutines behind a slow pipeline.
type scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	sweepSpec    string
	remasterSpec string
	sweeper      *sweep.Sweeper
	worker       *remaster.Worker
}

func newScheduler(cfg config.Scheduler, sweeper *sweep.Sweeper, worker *remaster.Worker, logger *slog.Logger) *scheduler {
	return &scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logging.WithComponent(logger, "scheduler"),

		sweepSpec:    cfg.SweepSpec,
		remasterSpec: cfg.RemasterSpec,
		sweeper:      sweeper,
		worker:       worker,
	}
}

func (s *scheduler) start(ctx context.Context) {
	if _, err := s.cron.AddFunc(s.sweepSpec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.sweeper.Run(ctx); err != nil {
			s.logger.Error("scheduled sweep failed", logging.Error(err))
		}
	}); err != nil {
		s.logger.Error("invalid sweep schedule",
			logging.String("spec", s.sweepSpec),
			logging.Error(err),
		)
	}

	if _, err := s.cron.AddFunc(s.remasterSpec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.worker.Run(ctx); err != nil {
			s.logger.Error("scheduled remaster failed", logging.Error(err))
		}
	}); err != nil {
		s.logger.Error("invalid remaster schedule",
			logging.String("spec", s.remasterSpec),
			logging.Error(err),
		)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		logging.String("sweep", s.sweepSpec),
		logging.String("remaster", s.remasterSpec),
	)
}

func (s *scheduler) stop() {
	<-s.cron.Stop().Done()
}
