package scheduler

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/smallbiznis/atelier/internal/config"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(Start),
)

func ProvideConfig(cfg config.Config) Config {
	out := DefaultConfig()
	if cfg.RolloverIntervalMins > 0 {
		out.RunInterval = time.Duration(cfg.RolloverIntervalMins) * time.Minute
	}
	return out
}

func Start(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.SchedulerEnabled {
		return
	}

	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go sched.RunForever(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
