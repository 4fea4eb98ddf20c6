package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"mindcast/internal/api"
	"mindcast/internal/config"
	"mindcast/internal/lifecycle"
	"mindcast/internal/logging"
	"mindcast/internal/remaster"
	"mindcast/internal/retry"
	"mindcast/internal/router"
	"mindcast/internal/services/audio"
	"mindcast/internal/services/generation"
	"mindcast/internal/signals"
	"mindcast/internal/store"
	"mindcast/internal/sweep"
)

const lockFileName = "mindcastd.lock"

// Daemon owns the long-running process: the store, the async usage
// recorder, the periodic sweep and remaster triggers, and the HTTP API.
// A file lock guarantees a single instance per data directory.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store    *store.Store
	recorder *signals.Recorder
	manager  *lifecycle.Manager
	resolver *router.Resolver
	sweeper  *sweep.Sweeper
	worker   *remaster.Worker
	server   *api.Server

	transcripts *generation.Client
	synthesis   *audio.Client

	lock      *flock.Flock
	scheduler *scheduler
	cancel    context.CancelFunc
}

// New wires a daemon from configuration. Nothing starts until Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("daemon: config required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	recorder := signals.NewRecorder(st, logger)
	manager := lifecycle.NewManager(st, cfg.CanonThresholds(), logger)
	resolver := router.NewResolver(st, manager, recorder, logger)
	sweeper := sweep.NewSweeper(st, manager, logger)

	transcripts := generation.NewClient(generation.Config{
		APIKey:         cfg.Generation.APIKey,
		BaseURL:        cfg.Generation.BaseURL,
		Model:          cfg.Generation.Model,
		TimeoutSeconds: cfg.Generation.TimeoutSeconds,
		TargetMinutes:  cfg.Generation.TargetMinutes,
	})
	synthesis := audio.NewClient(audio.Config{
		APIKey:         cfg.Audio.APIKey,
		BaseURL:        cfg.Audio.BaseURL,
		Voice:          cfg.Audio.Voice,
		TimeoutSeconds: cfg.Audio.TimeoutSeconds,
	})

	worker := remaster.NewWorker(st, manager, transcripts, synthesis, remaster.Config{
		Budget: time.Duration(cfg.Worker.BudgetSeconds) * time.Second,
		Policy: retry.Policy{
			MaxAttempts: cfg.Worker.RetryMaxAttempts,
			BaseDelay:   time.Duration(cfg.Worker.RetryBaseDelayMillis) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Worker.RetryMaxDelayMillis) * time.Millisecond,
			Jitter:      0.2,
		},
		Breaker: retry.NewBreaker(
			cfg.Worker.BreakerFailureCount,
			time.Duration(cfg.Worker.BreakerWindowSeconds)*time.Second,
			time.Duration(cfg.Worker.BreakerCooldownSeconds)*time.Second,
		),
	}, logger)

	d := &Daemon{
		cfg:         cfg,
		logger:      logging.WithComponent(logger, "daemon"),
		store:       st,
		recorder:    recorder,
		manager:     manager,
		resolver:    resolver,
		sweeper:     sweeper,
		worker:      worker,
		transcripts: transcripts,
		synthesis:   synthesis,
		lock:        flock.New(filepath.Join(cfg.Paths.DataDir, lockFileName)),
	}

	d.server = api.NewServer(cfg.Paths.APIBind, cfg.Paths.APIToken, api.Deps{
		Resolver: resolver,
		Manager:  manager,
		Sweeper:  sweeper,
		Worker:   worker,
		Store:    st,
		Status:   d.Status,
	}, logger)

	if cfg.Scheduler.Enabled {
		d.scheduler = newScheduler(cfg.Scheduler, sweeper, worker, logger)
	}
	return d, nil
}

// Start acquires the instance lock and brings every subsystem up. It
// returns once startup completes; the daemon then runs until Stop or
// context cancellation.
func (d *Daemon) Start(ctx context.Context) error {
	acquired, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another instance holds %s", d.lock.Path())
	}

	// Missing pipeline credentials do not block startup. The read path
	// and admin surface still work; remaster jobs will fail until the
	// keys are configured.
	if err := d.transcripts.HealthCheck(ctx); err != nil {
		d.logger.Warn("generation service not ready", logging.Error(err))
	}
	if err := d.synthesis.HealthCheck(ctx); err != nil {
		d.logger.Warn("audio service not ready", logging.Error(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.recorder.Start()
	if d.scheduler != nil {
		d.scheduler.start(runCtx)
	}
	if d.server != nil {
		if err := d.server.Start(runCtx); err != nil {
			d.Stop()
			return err
		}
	}

	d.logger.Info("daemon started",
		logging.Int("pid", os.Getpid()),
		logging.String("database", d.store.Path()),
	)
	return nil
}

// Stop shuts everything down in reverse dependency order and releases
// the instance lock.
func (d *Daemon) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.server != nil {
		d.server.Stop()
	}
	if d.scheduler != nil {
		d.scheduler.stop()
	}
	d.recorder.Stop()
	if err := d.store.Close(); err != nil {
		d.logger.Warn("store close failed", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("lock release failed", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Status reports the daemon's runtime state.
func (d *Daemon) Status(ctx context.Context) api.StatusResponse {
	return api.StatusResponse{
		Running:          true,
		PID:              os.Getpid(),
		DatabasePath:     d.store.Path(),
		LockFilePath:     d.lock.Path(),
		SchedulerEnabled: d.scheduler != nil,
		DroppedEvents:    d.recorder.Dropped(),
	}
}
