package billing

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/internal/app/service/payment"
	"github.com/fatflowers/paygate/pkg/config"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/tool"
)

// Runner ticks the scheduler on a fixed interval for the lifetime of the
// application.
type Runner struct {
	scheduler *Scheduler
	interval  time.Duration
	log       *zap.SugaredLogger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRunner(s *Scheduler, cfg *config.Config, log *zap.SugaredLogger) *Runner {
	return &Runner{scheduler: s, interval: cfg.Billing.Interval, log: log}
}

// Start runs one tick immediately, then one per interval until Stop.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	interval := r.interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			r.runOnce(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (r *Runner) runOnce(ctx context.Context) {
	ctx = logctx.WithTraceID(ctx, tool.GenerateUUIDV7())
	if _, err := r.scheduler.Tick(ctx); err != nil {
		logctx.FromCtx(ctx, r.log).Errorw("billing_tick_failed", "err", err)
	}
}

// Stop cancels the loop and waits for an in-progress tick to return.
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runBilling(lc fx.Lifecycle, cfg *config.Config, r *Runner, log *zap.SugaredLogger) {
	if !cfg.Billing.Enabled {
		log.Infow("billing runner disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Infow("starting billing runner", "interval", r.interval, "workers", cfg.Billing.Workers)
			r.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping billing runner")
			return r.Stop(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(
		NewScheduler,
		NewRunner,
		func(p *payment.Service) Charger { return p },
	),
	fx.Invoke(runBilling),
)
