package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalyser/internal/clock"
	creditdomain "github.com/smallbiznis/catalyser/internal/credit/domain"
	obsmetrics "github.com/smallbiznis/catalyser/internal/observability/metrics"
	"github.com/smallbiznis/catalyser/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobLedgerDrift = "ledger_drift"

	lockKeyPrefix = "catalyser:scheduler:lock:"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Credits creditdomain.Service
	Locker  *ratelimit.Locker            `optional:"true"`
	Metrics *obsmetrics.SchedulerMetrics `optional:"true"`
	Config  Config                       `optional:"true"`
}

type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	credits creditdomain.Service
	locker  *ratelimit.Locker
	metrics *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Credits == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		credits: p.Credits,
		locker:  p.Locker,
		metrics: p.Metrics,
	}, nil
}

// runJob executes fn under a timeout and, when Redis is configured, a
// cluster-wide lease so only one replica runs the job per tick.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)

	acquired, err := s.locker.WithLock(ctx, lockKeyPrefix+name, s.cfg.LockTTL, func(ctx context.Context) error {
		if owner {
			s.logJobStart(ctx, run)
		}
		s.metrics.IncJobRun(name)
		err := fn(ctx)
		s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
		if owner {
			if err != nil && run.errorCount == 0 {
				run.IncError()
			}
			s.logJobFinish(ctx, run)
		}
		return err
	})
	if !acquired && err == nil {
		s.metrics.IncJobSkipped(name, obsmetrics.SchedulerSkipReasonLockHeld)
		log.Debug("job skipped, lock held by another instance")
		return nil
	}
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	// deadline is a soft timeout, the next tick picks up where this one stopped
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobLedgerDrift, func(ctx context.Context) error {
			return s.runJob(ctx, JobLedgerDrift, s.cfg.BatchSize, s.cfg.JobTimeout, s.LedgerDriftJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	s.log.Info("scheduler started",
		zap.Duration("interval", s.cfg.RunInterval),
		zap.Int("batch_size", s.cfg.BatchSize),
	)

	next := s.clock.Now()
	for {
		s.metrics.ObserveRunLoopLag(s.clock.Now().Sub(next))
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("scheduler run failed", zap.Error(err))
		}
		next = s.clock.Now().Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(name string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	return slices.Contains(s.cfg.EnabledJobs, name)
}
