// Package scheduler drives the recurring VAT period rollover. One job, one
// interval: every tick the record for the current accounting period is
// recomputed so it always reflects the latest orders and expenses.
package scheduler

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/atelier/internal/clock"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	vatperioddomain "github.com/smallbiznis/atelier/internal/vatperiod/domain"
)

const (
	rolloverJobName = "vat_period_rollover"
	rolloverLockKey = "atelier:lock:vat_period_rollover"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	VATPeriods vatperioddomain.Service
	JobMetrics *obsmetrics.JobMetrics
	Redis      *redis.Client `optional:"true"`
	Config     Config        `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	vatPeriods vatperioddomain.Service
	metrics    *obsmetrics.JobMetrics
	locker     *Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.VATPeriods == nil || p.JobMetrics == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		vatPeriods: p.VATPeriods,
		metrics:    p.JobMetrics,
		locker:     NewLocker(p.Redis),
	}, nil
}

// RunOnce executes a single rollover pass. Exposed for tests and one-shot
// invocation; RunForever calls it on every tick.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	token, acquired, err := s.locker.TryLock(ctx, rolloverLockKey, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("rollover lock acquisition failed", zap.Error(err))
		s.metrics.IncJobError(rolloverJobName)
		return err
	}
	if !acquired {
		s.log.Debug("rollover already running elsewhere, skipping")
		s.metrics.IncJobSkipped(rolloverJobName)
		return nil
	}
	defer func() {
		if releaseErr := s.locker.Release(context.WithoutCancel(ctx), rolloverLockKey, token); releaseErr != nil {
			s.log.Warn("rollover lock release failed", zap.Error(releaseErr))
		}
	}()

	start := s.clock.Now()
	s.metrics.IncJobRun(rolloverJobName)

	record, err := s.vatPeriods.Rollover(ctx, start)
	s.metrics.ObserveJobDuration(rolloverJobName, s.clock.Now().Sub(start))
	if err != nil {
		s.metrics.IncJobError(rolloverJobName)
		s.log.Error("period rollover failed", zap.Error(err))
		return err
	}

	s.log.Info("period rollover complete",
		zap.Int("period_month", record.PeriodMonth),
		zap.Int("period_year", record.PeriodYear),
		zap.Int64("output_vat", record.OutputVAT),
		zap.Int64("input_vat", record.InputVAT),
		zap.Int64("vat_payable", record.VATPayable),
	)
	return nil
}

// RunForever ticks until the context is cancelled. Errors from individual
// runs are logged and do not stop the loop.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.log.Warn("initial rollover run failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Warn("scheduled rollover run failed", zap.Error(err))
			}
		}
	}
}
