package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	reconcilesvc "github.com/ivankudzin/matchcore/internal/services/reconcile"
)

const (
	lockName       = "reconcile"
	defaultLockTTL = 10 * time.Minute
)

type Runner interface {
	Run(ctx context.Context, opts reconcilesvc.Options) (reconcilesvc.Report, error)
}

// RunLock keeps replicas from repairing at the same time.
type RunLock interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (string, error)
	Release(ctx context.Context, name, token string) error
}

type Job struct {
	runner  Runner
	lock    RunLock
	opts    reconcilesvc.Options
	lockTTL time.Duration
	logger  *zap.Logger
}

func New(runner Runner, lock RunLock, opts reconcilesvc.Options, lockTTL time.Duration, logger *zap.Logger) *Job {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		runner:  runner,
		lock:    lock,
		opts:    opts,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

// Run performs one pass. It returns ran=false when another replica holds the lock.
func (j *Job) Run(ctx context.Context) (bool, error) {
	_, ran, err := j.RunOnce(ctx)
	return ran, err
}

// RunOnce is Run that also hands back the report of the pass.
func (j *Job) RunOnce(ctx context.Context) (reconcilesvc.Report, bool, error) {
	if j.runner == nil {
		return reconcilesvc.Report{}, false, fmt.Errorf("reconcile runner is nil")
	}

	if j.lock != nil {
		token, err := j.lock.TryAcquire(ctx, lockName, j.lockTTL)
		if err != nil {
			return reconcilesvc.Report{}, false, fmt.Errorf("acquire reconcile lock: %w", err)
		}
		if token == "" {
			j.logger.Debug("reconcile skipped, lock held elsewhere")
			return reconcilesvc.Report{}, false, nil
		}
		defer func() {
			if err := j.lock.Release(context.WithoutCancel(ctx), lockName, token); err != nil {
				j.logger.Warn("release reconcile lock", zap.Error(err))
			}
		}()
	}

	report, err := j.runner.Run(ctx, j.opts)
	if err != nil {
		return reconcilesvc.Report{}, true, fmt.Errorf("run reconcile: %w", err)
	}

	j.logger.Info("reconcile pass completed",
		zap.Bool("applied", report.Applied),
		zap.Int("findings", report.Summary.Findings),
		zap.String("archive_key", report.ArchiveKey),
	)
	return report, true, nil
}

// Loop runs once immediately and then every interval until ctx is done.
// Failed passes are logged and retried on the next tick.
func (j *Job) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	j.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *Job) runLogged(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("reconcile pass failed", zap.Error(err))
	}
}
